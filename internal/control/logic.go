package control

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/meridian-automation/engine/internal/device"
	"github.com/meridian-automation/engine/internal/stats"
)

// Operation names a logic control's reducer.
type Operation int

// The logic operation catalogue.
const (
	Passthrough Operation = iota
	Equal
	LessThan
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
	All
	Any
	None
	Average
	Maximum
	Minimum
	Multiply
	Toggle
	Invert
	RunningMax
	RunningMin
	RunningAverage
)

var operationNames = map[Operation]string{
	Passthrough:         "Passthrough",
	Equal:               "Equal",
	LessThan:            "LessThan",
	LessThanOrEqual:     "LessThanOrEqual",
	GreaterThan:         "GreaterThan",
	GreaterThanOrEqual:  "GreaterThanOrEqual",
	All:                 "All",
	Any:                 "Any",
	None:                "None",
	Average:             "Average",
	Maximum:             "Maximum",
	Minimum:             "Minimum",
	Multiply:            "Multiply",
	Toggle:              "Toggle",
	Invert:              "Invert",
	RunningMax:          "RunningMax",
	RunningMin:          "RunningMin",
	RunningAverage:      "RunningAverage",
}

func (o Operation) String() string {
	if n, ok := operationNames[o]; ok {
		return n
	}
	return "Unknown"
}

// ParseOperation resolves a config operation name to an Operation.
func ParseOperation(name string) (Operation, error) {
	up := strings.ToLower(strings.TrimSpace(name))
	for op, n := range operationNames {
		if strings.ToLower(n) == up {
			return op, nil
		}
	}
	return Passthrough, fmt.Errorf("unknown logic operation %q", name)
}

// IsComplex reports whether the operation takes a designated reference
// input (and, for RunningAverage, a trigger input) in addition to its
// primary input, as opposed to treating every input identically.
func (o Operation) IsComplex() bool {
	switch o {
	case Equal, LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual,
		RunningMax, RunningMin, RunningAverage:
		return true
	default:
		return false
	}
}

// MinArity returns the minimum number of general inputs (excluding the
// reserved reference/trigger roles) the operation requires. The builder
// enforces this during Validate.
func (o Operation) MinArity() int {
	switch o {
	case Passthrough, Toggle, Invert, Equal, LessThan, LessThanOrEqual,
		GreaterThan, GreaterThanOrEqual, RunningMax, RunningMin, RunningAverage:
		return 1
	case All, Any, None, Average, Maximum, Minimum, Multiply:
		return 2
	default:
		return 1
	}
}

// RequiresReference reports whether the operation requires a "reference"
// role input.
func (o Operation) RequiresReference() bool {
	switch o {
	case Equal, LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual,
		RunningMax, RunningMin, RunningAverage:
		return true
	default:
		return false
	}
}

// RequiresTrigger reports whether the operation requires a "trigger" role
// input. Only RunningAverage does.
func (o Operation) RequiresTrigger() bool {
	return o == RunningAverage
}

const (
	roleReference = "reference"
	roleTrigger   = "trigger"
)

// LogicControl is a stateless or stateful reducer over its resolved inputs.
type LogicControl struct {
	*Base

	Operation Operation

	mu sync.Mutex

	// Toggle state.
	havePrimary bool
	lastPrimary float64
	toggleOut   float64

	// RunningMax/RunningMin state.
	extremum *stats.Extremum

	// RunningAverage state.
	avg           *stats.RollingAverage
	haveReference bool
	lastReference float64
	haveTrigger   bool
	lastTrigger   float64
}

// NewLogicControl constructs a LogicControl for the given operation. window
// is only meaningful for RunningAverage (0 means unbounded) and is ignored
// otherwise.
func NewLogicControl(uniqueID string, op Operation, window int) *LogicControl {
	l := &LogicControl{
		Base:      NewBase(uniqueID, "logic."+op.String()),
		Operation: op,
	}
	l.SetOuter(l)
	l.SetCalculator(l)

	switch op {
	case RunningMax:
		l.extremum = stats.NewMaxExtremum()
	case RunningMin:
		l.extremum = stats.NewMinExtremum()
	case RunningAverage:
		l.avg = stats.NewRollingAverage(window)
	}
	return l
}

// IsPassthrough reports whether this control is eligible for DOT-export
// elision: only a Passthrough operation ever is.
func (l *LogicControl) IsPassthrough() bool {
	return l.Operation == Passthrough
}

// Describe returns a short human-readable summary of this control.
func (l *LogicControl) Describe() []string {
	return []string{fmt.Sprintf("logic %s", l.Operation)}
}

// CalculateOutput implements Calculator.
func (l *LogicControl) CalculateOutput(inputs map[string]float64) float64 {
	switch l.Operation {
	case Passthrough:
		v, _ := primaryValue(inputs)
		return v
	case Equal, LessThan, LessThanOrEqual, GreaterThan, GreaterThanOrEqual:
		in, _ := primaryValue(inputs)
		ref := inputs[roleReference]
		if compare(l.Operation, in, ref) {
			return 1
		}
		return 0
	case All:
		for _, v := range inputs {
			if v < 1 {
				return 0
			}
		}
		return 1
	case Any:
		for _, v := range inputs {
			if v >= 1 {
				return 1
			}
		}
		return 0
	case None:
		for _, v := range inputs {
			if v >= 1 {
				return 0
			}
		}
		return 1
	case Average:
		if len(inputs) == 0 {
			return 0
		}
		sum := 0.0
		for _, v := range inputs {
			sum += v
		}
		return sum / float64(len(inputs))
	case Maximum:
		max := math.Inf(-1)
		for _, v := range inputs {
			if v > max {
				max = v
			}
		}
		return max
	case Minimum:
		min := math.Inf(1)
		for _, v := range inputs {
			if v < min {
				min = v
			}
		}
		return min
	case Multiply:
		p := 1.0
		for _, v := range inputs {
			p *= v
		}
		return p
	case Toggle:
		v, _ := primaryValue(inputs)
		return l.toggle(v)
	case Invert:
		v, _ := primaryValue(inputs)
		if v < 1 {
			return 1
		}
		return 0
	case RunningMax, RunningMin:
		in, _ := primaryValue(inputs)
		ref := inputs[roleReference]
		return l.extremum.Update(in, ref >= 1)
	case RunningAverage:
		return l.runningAverage(inputs)
	default:
		return 0
	}
}

// primaryValue returns the sole non-reserved entry of inputs: the "plain"
// input for operations that also carry a reference and/or trigger role.
func primaryValue(inputs map[string]float64) (float64, bool) {
	for k, v := range inputs {
		if k == roleReference || k == roleTrigger {
			continue
		}
		return v, true
	}
	return 0, false
}

func compare(op Operation, in, ref float64) bool {
	switch op {
	case Equal:
		return device.FuzzyEqual(in, ref)
	case LessThan:
		return in < ref && !device.FuzzyEqual(in, ref)
	case LessThanOrEqual:
		return in < ref || device.FuzzyEqual(in, ref)
	case GreaterThan:
		return in > ref && !device.FuzzyEqual(in, ref)
	case GreaterThanOrEqual:
		return in > ref || device.FuzzyEqual(in, ref)
	default:
		return false
	}
}

// toggle flips the output each time the primary input rises from <1 to >=1.
func (l *LogicControl) toggle(v float64) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	rising := l.havePrimary && l.lastPrimary < 1 && v >= 1
	l.lastPrimary = v
	l.havePrimary = true

	if rising {
		if l.toggleOut >= 1 {
			l.toggleOut = 0
		} else {
			l.toggleOut = 1
		}
	}
	return l.toggleOut
}

// runningAverage samples the primary input each time trigger rises,
// resetting the window each time reference rises. When both rise in the
// same update, reset happens first so the resulting average covers exactly
// one sample.
func (l *LogicControl) runningAverage(inputs map[string]float64) float64 {
	in, _ := primaryValue(inputs)
	ref := inputs[roleReference]
	trig := inputs[roleTrigger]

	l.mu.Lock()
	defer l.mu.Unlock()

	refRising := l.haveReference && l.lastReference < 1 && ref >= 1
	trigRising := l.haveTrigger && l.lastTrigger < 1 && trig >= 1
	l.lastReference = ref
	l.haveReference = true
	l.lastTrigger = trig
	l.haveTrigger = true

	if refRising {
		l.avg.Reset()
	}
	if trigRising {
		l.avg.AddValue(in)
	}
	return l.avg.Mean()
}
