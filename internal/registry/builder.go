package registry

import (
	"github.com/pkg/errors"

	"github.com/meridian-automation/engine/internal/device"
)

// Spec is the builder's view of one configured device, supplied by the
// config package's decode step. The builder never needs to know a concrete
// device's wiring API - each Spec carries its own Finish hook that performs
// the device-specific part (AddInput, Claim, direct Subscribe) once the
// generic edges have been resolved, checked for arity, and cleared of
// cycles.
type Spec struct {
	ID string

	// Construct builds the concrete device. An error marks it unparsed -
	// it is dropped in phase 1 (Create), the rest of the build continues.
	Construct func() (device.Device, error)

	// Inputs maps role name -> producer unique id; Outputs maps role name
	// -> consumer unique id. Together they describe the producer->consumer
	// edges used for arity checks, cycle detection, and DOT export.
	Inputs  map[string]string
	Outputs map[string]string

	// MinArity enforces operation-specific arity (logic controls). It is
	// compared against the number of entries in Inputs; 0 means no minimum.
	MinArity int

	// ClaimsOutputs lists the subset of Outputs' values this device becomes
	// the sole owner of (physical outputs it drives directly).
	ClaimsOutputs []string

	// Finish performs the device-specific wiring. inputs/outputs are the
	// resolved device handles, keyed the same way as Inputs/Outputs.
	Finish func(dev device.Device, inputs, outputs map[string]device.Device) error
}

// Builder accumulates Specs and runs them through the four build phases.
type Builder struct {
	specs map[string]*Spec
	order []string
}

// NewBuilder constructs an empty Builder.
func NewBuilder() *Builder {
	return &Builder{specs: make(map[string]*Spec)}
}

// Add registers spec for construction. Specs with a duplicate ID overwrite
// the earlier registration, matching "last one wins" config-merge semantics.
func (b *Builder) Add(spec *Spec) {
	if _, exists := b.specs[spec.ID]; !exists {
		b.order = append(b.order, spec.ID)
	}
	b.specs[spec.ID] = spec
}

// Build runs Create, Validate, Cycle-check and Finish in sequence. It
// returns the populated registry of survivors and every per-device error
// encountered; a non-empty error slice does not mean the build failed as a
// whole; only the offending devices are absent from the returned registry.
func (b *Builder) Build() (*Registry, []error) {
	reg := New()
	var errs []error

	parsed := b.create(reg, &errs)
	survivors, resolvedIn, resolvedOut := b.validate(reg, parsed, &errs)
	b.cycleCheck(reg, survivors, resolvedOut, &errs)
	b.finish(reg, survivors, resolvedIn, resolvedOut, &errs)

	return reg, errs
}

// create is phase 1: instantiate every Spec, skipping (and reporting) the
// ones whose Construct fails. Construction failures do not abort the build.
func (b *Builder) create(reg *Registry, errs *[]error) map[string]*Spec {
	parsed := make(map[string]*Spec)
	for _, id := range b.order {
		spec := b.specs[id]
		dev, err := spec.Construct()
		if err != nil {
			*errs = append(*errs, errors.Wrapf(err, "create %s", id))
			continue
		}
		reg.put(id, dev)
		parsed[id] = spec
	}
	return parsed
}

// validate is phase 2: confirm self-references are absent, resolve every
// input/output id against the registry, enforce producer/consumer symmetry
// between two controls, enforce arity, and enforce single ownership of
// every claimed output. Anything that fails here is dropped; the rest of
// the build continues.
func (b *Builder) validate(reg *Registry, parsed map[string]*Spec, errs *[]error) (map[string]*Spec, map[string]map[string]device.Device, map[string]map[string]device.Device) {
	survivors := make(map[string]*Spec, len(parsed))
	resolvedIn := make(map[string]map[string]device.Device, len(parsed))
	resolvedOut := make(map[string]map[string]device.Device, len(parsed))

	for id, spec := range parsed {
		ins, outs, err := b.resolveAndCheck(reg, id, spec)
		if err != nil {
			*errs = append(*errs, err)
			reg.delete(id)
			continue
		}
		survivors[id] = spec
		resolvedIn[id] = ins
		resolvedOut[id] = outs
	}

	owner := make(map[string]string)
	for id, spec := range survivors {
		conflict := false
		for _, outID := range spec.ClaimsOutputs {
			if prev, ok := owner[outID]; ok && prev != id {
				*errs = append(*errs, errors.Errorf("output %s already owned by %s, rejecting claim from %s", outID, prev, id))
				conflict = true
				continue
			}
			owner[outID] = id
		}
		if conflict {
			delete(survivors, id)
			delete(resolvedIn, id)
			delete(resolvedOut, id)
			reg.delete(id)
		}
	}

	return survivors, resolvedIn, resolvedOut
}

func (b *Builder) resolveAndCheck(reg *Registry, id string, spec *Spec) (map[string]device.Device, map[string]device.Device, error) {
	for role, refID := range spec.Inputs {
		if refID == id {
			return nil, nil, errors.Errorf("%s: input role %q self-references", id, role)
		}
	}
	for role, refID := range spec.Outputs {
		if refID == id {
			return nil, nil, errors.Errorf("%s: output role %q self-references", id, role)
		}
	}
	if spec.MinArity > 0 && len(spec.Inputs) < spec.MinArity {
		return nil, nil, errors.Errorf("%s: arity %d below minimum %d", id, len(spec.Inputs), spec.MinArity)
	}

	ins := make(map[string]device.Device, len(spec.Inputs))
	for role, refID := range spec.Inputs {
		dev, ok := reg.Get(refID)
		if !ok {
			return nil, nil, errors.Errorf("%s: unresolved input %q -> %s", id, role, refID)
		}
		if producerSpec, ok := b.specs[refID]; ok && len(producerSpec.Outputs) > 0 {
			if !listsConsumer(producerSpec.Outputs, id) {
				return nil, nil, errors.Errorf("%s: producer %s does not list %s as an output", id, refID, id)
			}
		}
		ins[role] = dev
	}

	outs := make(map[string]device.Device, len(spec.Outputs))
	for role, refID := range spec.Outputs {
		dev, ok := reg.Get(refID)
		if !ok {
			return nil, nil, errors.Errorf("%s: unresolved output %q -> %s", id, role, refID)
		}
		if consumerSpec, ok := b.specs[refID]; ok && len(consumerSpec.Inputs) > 0 {
			if !listsConsumer(consumerSpec.Inputs, id) {
				return nil, nil, errors.Errorf("%s: consumer %s does not list %s as an input", id, refID, id)
			}
		}
		outs[role] = dev
	}

	return ins, outs, nil
}

func listsConsumer(roleMap map[string]string, id string) bool {
	for _, v := range roleMap {
		if v == id {
			return true
		}
	}
	return false
}

// cycleCheck is phase 3: from every survivor, walk the producer->consumer
// edges (the Outputs maps) recursively; a device whose own id is reached
// again along any path is removed. Every member of a cycle finds it from
// its own walk, so the whole cycle is removed; devices merely upstream or
// downstream of a cycle are kept.
func (b *Builder) cycleCheck(reg *Registry, survivors map[string]*Spec, resolvedOut map[string]map[string]device.Device, errs *[]error) {
	adj := make(map[string][]string, len(survivors))
	for id, outs := range resolvedOut {
		for _, d := range outs {
			adj[id] = append(adj[id], d.UniqueID())
		}
	}

	for id := range survivors {
		if path, cyclic := findCycle(id, adj); cyclic {
			*errs = append(*errs, errors.Errorf("cycle detected: %v", path))
			delete(survivors, id)
			delete(resolvedOut, id)
			reg.delete(id)
		}
	}
}

func findCycle(start string, adj map[string][]string) ([]string, bool) {
	var path []string
	visited := make(map[string]bool)
	var walk func(cur string) bool
	walk = func(cur string) bool {
		for _, next := range adj[cur] {
			path = append(path, next)
			if next == start {
				return true
			}
			if visited[next] {
				path = path[:len(path)-1]
				continue
			}
			visited[next] = true
			if walk(next) {
				return true
			}
			path = path[:len(path)-1]
		}
		return false
	}
	if walk(start) {
		return append([]string{start}, path...), true
	}
	return nil, false
}

// finish is phase 4: establish observer subscriptions and output ownership
// along every resolved edge. Failure here removes only the offending
// device; everything else that already finished stays wired.
func (b *Builder) finish(reg *Registry, survivors map[string]*Spec, resolvedIn, resolvedOut map[string]map[string]device.Device, errs *[]error) {
	for id, spec := range survivors {
		if spec.Finish == nil {
			continue
		}
		dev, ok := reg.Get(id)
		if !ok {
			continue
		}
		if err := spec.Finish(dev, resolvedIn[id], resolvedOut[id]); err != nil {
			*errs = append(*errs, errors.Wrapf(err, "finish %s", id))
			reg.delete(id)
		}
	}
}
