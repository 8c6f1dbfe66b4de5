package dice

import (
	"fmt"
	"strconv"
	"strings"
)

// Result accumulates the sequence of values one die produced during a single
// roll, together with the effect each value was applied with.
//
// Invariant: len(rolls) == len(reasons); Total() is the reduction of the
// sequence; Value() == Total() unless a map rule fired.
type Result struct {
	rolls       []int
	reasons     []Effect
	total       int
	subtracting bool
	value       int
	mapped      bool
	label       string
}

// reduce applies one rolled value to a running total. Once a subtract has been
// applied, later add effects are reinterpreted as subtract for the rest of the
// sequence.
func reduce(total int, subtracting bool, v int, e Effect) (int, bool, Effect) {
	if subtracting && e == EffectAdd {
		e = EffectSubtract
	}
	switch e {
	case EffectBasic:
		total, subtracting = v, false
	case EffectReplace:
		total = v
	case EffectAdd:
		total += v
	case EffectSubtract:
		total -= v
		subtracting = true
	case EffectUseBest:
		total = max(total, v)
	case EffectUseWorst:
		total = min(total, v)
	}
	return total, subtracting, e
}

// Append records v with effect e and updates the total. Any previous map
// result is cleared.
func (r *Result) Append(v int, e Effect) {
	total, subtracting, applied := reduce(r.total, r.subtracting, v, e)
	r.rolls = append(r.rolls, v)
	r.reasons = append(r.reasons, applied)
	r.total, r.subtracting = total, subtracting
	r.value, r.mapped, r.label = total, false, ""
}

// ApplyMap overrides the value with a mapped value and label.
func (r *Result) ApplyMap(value int, label string) {
	r.value, r.mapped, r.label = value, true, label
}

// Total returns the reduced total of all rolls.
func (r Result) Total() int { return r.total }

// Value returns the mapped value if a map fired, 0 when the die has maps and
// none fired, else Total().
func (r Result) Value() int { return r.value }

// Mapped reports whether a map rule fired on the final total.
func (r Result) Mapped() bool { return r.mapped }

// Label returns the label of the map rule that fired, if any.
func (r Result) Label() string { return r.label }

// Rolls returns a copy of the rolled values in order.
func (r Result) Rolls() []int { return append([]int(nil), r.rolls...) }

// Reasons returns a copy of the effect each roll was applied with.
func (r Result) Reasons() []Effect { return append([]Effect(nil), r.reasons...) }

// Clone returns a deep copy of r.
func (r Result) Clone() Result {
	c := r
	c.rolls = r.Rolls()
	c.reasons = r.Reasons()
	return c
}

var effectSymbols = map[Effect]string{
	EffectAdd:      " + ",
	EffectSubtract: " - ",
	EffectReplace:  " → ",
	EffectUseBest:  " best ",
	EffectUseWorst: " worst ",
}

// Explain renders the roll: "6" for a single roll, "(6 + 4 = 10)" for a
// sequence, with the map label or mapped value appended when a map fired.
func (r Result) Explain() string {
	if len(r.rolls) == 0 {
		return ""
	}
	var sb strings.Builder
	if len(r.rolls) == 1 {
		sb.WriteString(strconv.Itoa(r.rolls[0]))
	} else {
		sb.WriteByte('(')
		for i, v := range r.rolls {
			if i > 0 {
				sb.WriteString(effectSymbols[r.reasons[i]])
			}
			sb.WriteString(strconv.Itoa(v))
		}
		fmt.Fprintf(&sb, " = %d)", r.total)
	}
	if r.mapped {
		if r.label != "" {
			fmt.Fprintf(&sb, " (%s)", r.label)
		} else {
			fmt.Fprintf(&sb, " (=%d)", r.value)
		}
	}
	return sb.String()
}

func (r Result) String() string { return r.Explain() }
