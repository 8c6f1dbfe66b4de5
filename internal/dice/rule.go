package dice

import (
	"fmt"
)

// DefaultRerollLimit is the number of times a reroll rule may fire in one die
// roll when no explicit limit is given.
const DefaultRerollLimit = 1000

// Operator is the closed set of trigger comparisons. A trigger with operator
// op and value t matches a rolled value v when "v op t" holds.
type Operator int

const (
	// OpEq matches v == t.
	OpEq Operator = iota + 1
	// OpNe matches v != t.
	OpNe
	// OpGt matches v > t.
	OpGt
	// OpGe matches v >= t.
	OpGe
	// OpLt matches v < t.
	OpLt
	// OpLe matches v <= t.
	OpLe
	// OpIn matches values inside an inclusive range.
	OpIn
)

var operatorNames = map[Operator]string{
	OpEq: "==", OpNe: "!=", OpGt: ">", OpGe: ">=", OpLt: "<", OpLe: "<=", OpIn: "in",
}

var operatorTags = map[string]Operator{
	"==": OpEq, "eq": OpEq,
	"!=": OpNe, "ne": OpNe,
	">": OpGt, "gt": OpGt,
	">=": OpGe, "ge": OpGe,
	"<": OpLt, "lt": OpLt,
	"<=": OpLe, "le": OpLe,
	"in": OpIn, "range": OpIn,
}

func (o Operator) String() string {
	if s, ok := operatorNames[o]; ok {
		return s
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// ParseOperator maps a textual tag ("==", "ge", "in", ...) to an Operator.
func ParseOperator(tag string) (Operator, error) {
	op, ok := operatorTags[tag]
	if !ok {
		return 0, fmt.Errorf("%w: unknown operator %q", ErrConstruction, tag)
	}
	return op, nil
}

// Effect says how a rerolled value combines with the running total.
type Effect int

const (
	// EffectBasic marks the first roll of a die; it replaces the total.
	EffectBasic Effect = iota
	// EffectAdd adds the new roll to the total.
	EffectAdd
	// EffectSubtract subtracts the new roll and flips later adds to subtract.
	EffectSubtract
	// EffectReplace discards the total in favour of the new roll.
	EffectReplace
	// EffectUseBest keeps the higher of the total and the new roll.
	EffectUseBest
	// EffectUseWorst keeps the lower of the total and the new roll.
	EffectUseWorst
)

var effectNames = map[Effect]string{
	EffectBasic:    "basic",
	EffectAdd:      "add",
	EffectSubtract: "subtract",
	EffectReplace:  "replace",
	EffectUseBest:  "use_best",
	EffectUseWorst: "use_worst",
}

func (e Effect) String() string {
	if s, ok := effectNames[e]; ok {
		return s
	}
	return fmt.Sprintf("Effect(%d)", int(e))
}

// ParseEffect maps a textual tag to a reroll Effect. "basic" is not a valid
// reroll effect.
func ParseEffect(tag string) (Effect, error) {
	for e, name := range effectNames {
		if name == tag && e != EffectBasic {
			return e, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown reroll effect %q", ErrConstruction, tag)
}

// Range is an inclusive integer interval used by OpIn triggers.
type Range struct {
	Lo, Hi int
}

// Trigger is an immutable predicate over rolled values.
type Trigger struct {
	op    Operator
	value int
	rng   Range
}

// NewTrigger builds a comparison trigger.
//
// Precondition: op is a comparison operator; OpIn needs NewRangeTrigger.
func NewTrigger(op Operator, value int) (Trigger, error) {
	if _, ok := operatorNames[op]; !ok {
		return Trigger{}, fmt.Errorf("%w: unknown operator %d", ErrConstruction, int(op))
	}
	if op == OpIn {
		return Trigger{}, fmt.Errorf("%w: operator %s needs a range, got %d", ErrConstruction, op, value)
	}
	return Trigger{op: op, value: value}, nil
}

// NewRangeTrigger builds a range-membership trigger matching lo <= v <= hi.
func NewRangeTrigger(lo, hi int) (Trigger, error) {
	if lo > hi {
		return Trigger{}, fmt.Errorf("%w: empty range [%d, %d]", ErrConstruction, lo, hi)
	}
	return Trigger{op: OpIn, rng: Range{Lo: lo, Hi: hi}}, nil
}

// TriggerOf builds a trigger from an untyped value: an integer for comparison
// operators, or a Range, [2]int or two-element []int for OpIn.
//
// Postcondition: ErrType when value is of an unusable kind; ErrConstruction
// when the operator does not apply to the kind of value given.
func TriggerOf(op Operator, value any) (Trigger, error) {
	var r Range
	isRange := true
	switch v := value.(type) {
	case Range:
		r = v
	case [2]int:
		r = Range{Lo: v[0], Hi: v[1]}
	case []int:
		if len(v) != 2 {
			return Trigger{}, fmt.Errorf("%w: range needs two bounds, got %d", ErrType, len(v))
		}
		r = Range{Lo: v[0], Hi: v[1]}
	default:
		isRange = false
	}
	if isRange {
		if op != OpIn {
			return Trigger{}, fmt.Errorf("%w: operator %s does not apply to a range", ErrConstruction, op)
		}
		return NewRangeTrigger(r.Lo, r.Hi)
	}
	n, err := ToInt(value)
	if err != nil {
		return Trigger{}, err
	}
	return NewTrigger(op, n)
}

// Applies reports whether v satisfies the trigger.
func (t Trigger) Applies(v int) bool {
	switch t.op {
	case OpEq:
		return v == t.value
	case OpNe:
		return v != t.value
	case OpGt:
		return v > t.value
	case OpGe:
		return v >= t.value
	case OpLt:
		return v < t.value
	case OpLe:
		return v <= t.value
	case OpIn:
		return v >= t.rng.Lo && v <= t.rng.Hi
	}
	return false
}

// Operator returns the trigger's comparison.
func (t Trigger) Operator() Operator { return t.op }

func (t Trigger) String() string {
	if t.op == OpIn {
		return fmt.Sprintf("in [%d, %d]", t.rng.Lo, t.rng.Hi)
	}
	return fmt.Sprintf("%s%d", t.op, t.value)
}

// RerollRule rolls the die again when its trigger matches the latest roll and
// combines the new value according to its effect, at most Limit times per
// die roll.
type RerollRule struct {
	trigger Trigger
	effect  Effect
	limit   int
}

// NewRerollRule builds a reroll rule.
//
// Precondition: effect is a reroll effect (not EffectBasic); limit >= 0.
// Postcondition: limit 0 becomes DefaultRerollLimit; EffectSubtract always
// has limit 1.
func NewRerollRule(trigger Trigger, effect Effect, limit int) (RerollRule, error) {
	if trigger.op == 0 {
		return RerollRule{}, fmt.Errorf("%w: reroll rule needs a trigger", ErrConstruction)
	}
	if _, ok := effectNames[effect]; !ok || effect == EffectBasic {
		return RerollRule{}, fmt.Errorf("%w: invalid reroll effect %s", ErrConstruction, effect)
	}
	if limit < 0 {
		return RerollRule{}, fmt.Errorf("%w: negative reroll limit %d", ErrConstruction, limit)
	}
	if limit == 0 {
		limit = DefaultRerollLimit
	}
	if effect == EffectSubtract {
		limit = 1
	}
	return RerollRule{trigger: trigger, effect: effect, limit: limit}, nil
}

// Applies reports whether the rule's trigger matches v.
func (r RerollRule) Applies(v int) bool { return r.trigger.Applies(v) }

func (r RerollRule) Trigger() Trigger { return r.trigger }
func (r RerollRule) Effect() Effect   { return r.effect }
func (r RerollRule) Limit() int       { return r.limit }

// MapRule replaces a die's final total with a fixed value when its trigger
// matches, e.g. for success counting. A die with map rules counts a total no
// rule matches as 0.
type MapRule struct {
	trigger Trigger
	value   int
	label   string
}

// NewMapRule builds a map rule.
func NewMapRule(trigger Trigger, mapped int, label string) (MapRule, error) {
	if trigger.op == 0 {
		return MapRule{}, fmt.Errorf("%w: map rule needs a trigger", ErrConstruction)
	}
	return MapRule{trigger: trigger, value: mapped, label: label}, nil
}

// MapRuleOf is NewMapRule with an untyped mapped value.
//
// Postcondition: ErrType when mapped is not integral.
func MapRuleOf(trigger Trigger, mapped any, label string) (MapRule, error) {
	n, err := ToInt(mapped)
	if err != nil {
		return MapRule{}, err
	}
	return NewMapRule(trigger, n, label)
}

// MapFrom returns the mapped value and true when the trigger matches v, and
// false otherwise.
func (m MapRule) MapFrom(v int) (int, bool) {
	if !m.trigger.Applies(v) {
		return 0, false
	}
	return m.value, true
}

func (m MapRule) Trigger() Trigger { return m.trigger }
func (m MapRule) Value() int       { return m.value }
func (m MapRule) Label() string    { return m.label }
