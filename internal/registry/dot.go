package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/meridian-automation/engine/internal/device"
	"github.com/meridian-automation/engine/internal/output"
)

// passthroughElidable is implemented by Logic controls that can report pure
// passthrough mode (a single input, one operation) so DOT export can decide
// whether to elide them.
type passthroughElidable interface {
	IsPassthrough() bool
}

// edgeAware is implemented by anything the builder resolved inputs/outputs
// for - control.Base and notify.Base both expose this shape.
type edgeAware interface {
	Inputs() map[string]device.Device
}

type outputAware interface {
	Outputs() map[string]device.Device
}

// DOT renders the post-wiring device graph as a DOT digraph: one node per
// device, edges producer->consumer. A Logic control in pure passthrough
// mode (IsPassthrough() true, single input) whose every direct consumer is
// a physical output is elided; its input is connected straight through to
// each of those outputs instead. Elision does not apply when any consumer
// is itself a control - a downstream control must still see the
// passthrough node so its own describe/graph context stays accurate.
func DOT(reg *Registry) string {
	ids := reg.IDs()
	sort.Strings(ids)

	elided := make(map[string]device.Device) // elided control id -> its sole input
	for _, id := range ids {
		dev, _ := reg.Get(id)
		pe, ok := dev.(passthroughElidable)
		if !ok || !pe.IsPassthrough() {
			continue
		}
		ea, ok := dev.(edgeAware)
		if !ok {
			continue
		}
		oa, ok := dev.(outputAware)
		if !ok {
			continue
		}
		ins := ea.Inputs()
		if len(ins) != 1 {
			continue
		}
		if !allPhysicalOutputs(oa.Outputs()) {
			continue
		}
		for _, in := range ins {
			elided[id] = in
		}
	}

	var b strings.Builder
	b.WriteString("digraph devicegraph {\n")
	for _, id := range ids {
		if _, skip := elided[id]; skip {
			continue
		}
		dev, _ := reg.Get(id)
		b.WriteString(fmt.Sprintf("  %q [label=%q];\n", id, nodeLabel(dev)))
	}
	seen := make(map[[2]string]bool)
	for _, id := range ids {
		dev, _ := reg.Get(id)
		if oa, ok := dev.(outputAware); ok {
			for _, consumer := range oa.Outputs() {
				writeEdge(&b, seen, elided, id, consumer.UniqueID())
			}
		}
		// A producer that is a raw Input (sensor/switch) never implements
		// outputAware - it has no Outputs() to walk. Every control does
		// expose Inputs() though, so draw the edge from that side too;
		// seen dedupes the cases (control<->control) where both sides
		// already listed the edge via Outputs().
		if ea, ok := dev.(edgeAware); ok {
			for _, producer := range ea.Inputs() {
				writeEdge(&b, seen, elided, producer.UniqueID(), id)
			}
		}
	}
	b.WriteString("}\n")
	return b.String()
}

func writeEdge(b *strings.Builder, seen map[[2]string]bool, elided map[string]device.Device, producerID, consumerID string) {
	if in, ok := elided[producerID]; ok {
		// The elided control's own input becomes the producer of record.
		producerID = in.UniqueID()
	}
	if in, ok := elided[consumerID]; ok {
		// The consumer is itself elided; its outputs are already linked
		// directly from its input elsewhere in this loop, so skip drawing
		// an edge into the vanished node.
		_ = in
		return
	}
	if producerID == consumerID {
		return
	}
	key := [2]string{producerID, consumerID}
	if seen[key] {
		return
	}
	seen[key] = true
	fmt.Fprintf(b, "  %q -> %q;\n", producerID, consumerID)
}

func allPhysicalOutputs(outs map[string]device.Device) bool {
	if len(outs) == 0 {
		return false
	}
	for _, d := range outs {
		if _, ok := d.(*output.Output); !ok {
			return false
		}
	}
	return true
}

func nodeLabel(dev device.Device) string {
	if dev.UserName() != "" {
		return fmt.Sprintf("%s (%s)", dev.UniqueID(), dev.UserName())
	}
	return dev.UniqueID()
}
