package dice

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/cory-johannsen/diceodds/internal/dice/notation"
	"github.com/cory-johannsen/diceodds/internal/dice/probability"
)

// Term is one signed bunch of an Expression.
type Term struct {
	Bunch      *Bunch
	Multiplier int // +1 or -1
}

// Expression is a signed sum of bunches plus a constant offset, e.g.
// "4d6k3-1d4+2".
type Expression struct {
	terms    []Term
	offset   int
	notation string
	result   int
	rolled   bool

	distribution func() (*probability.Distribution, error)
}

// NewExpression builds an expression from terms and an offset.
//
// Precondition: every term has a non-nil Bunch and a multiplier of +1 or -1.
func NewExpression(terms []Term, offset int) (*Expression, error) {
	for i, t := range terms {
		if t.Bunch == nil {
			return nil, fmt.Errorf("%w: term %d has no bunch", ErrConstruction, i)
		}
		if t.Multiplier != 1 && t.Multiplier != -1 {
			return nil, fmt.Errorf("%w: term %d multiplier must be +1 or -1, got %d", ErrConstruction, i, t.Multiplier)
		}
	}
	e := &Expression{terms: append([]Term(nil), terms...), offset: offset}
	e.distribution = sync.OnceValues(e.computeDistribution)
	return e, nil
}

// FromSpec builds the rule objects, dice and bunches a parsed Spec describes.
//
// Postcondition: Returns ErrConstruction when the Spec names an unknown
// operator or effect, or impossible dice counts.
func FromSpec(spec notation.Spec, opts ...Option) (*Expression, error) {
	terms := make([]Term, 0, len(spec.Bunches))
	for i, bs := range spec.Bunches {
		b, err := bunchFromSpec(bs, opts)
		if err != nil {
			return nil, fmt.Errorf("bunch %d: %w", i, err)
		}
		terms = append(terms, Term{Bunch: b, Multiplier: bs.Multiplier})
	}
	e, err := NewExpression(terms, spec.Offset)
	if err != nil {
		return nil, err
	}
	e.notation = spec.String()
	return e, nil
}

func bunchFromSpec(bs notation.BunchSpec, opts []Option) (*Bunch, error) {
	rerolls := make([]RerollRule, 0, len(bs.Rerolls))
	for _, rs := range bs.Rerolls {
		op, err := ParseOperator(rs.Op)
		if err != nil {
			return nil, err
		}
		trigger, err := NewTrigger(op, rs.Value)
		if err != nil {
			return nil, err
		}
		effect, err := ParseEffect(rs.Effect)
		if err != nil {
			return nil, err
		}
		rule, err := NewRerollRule(trigger, effect, rs.Limit)
		if err != nil {
			return nil, err
		}
		rerolls = append(rerolls, rule)
	}

	maps := make([]MapRule, 0, len(bs.Maps))
	for _, ms := range bs.Maps {
		op, err := ParseOperator(ms.Op)
		if err != nil {
			return nil, err
		}
		trigger, err := NewTrigger(op, ms.Value)
		if err != nil {
			return nil, err
		}
		rule, err := NewMapRule(trigger, ms.MappedValue, ms.Label)
		if err != nil {
			return nil, err
		}
		maps = append(maps, rule)
	}

	die, err := NewComplexDie(bs.Sides, rerolls, maps, opts...)
	if err != nil {
		return nil, err
	}
	mode := KeepNone
	switch bs.KeepMode {
	case notation.KeepBest:
		mode = KeepBest
	case notation.KeepWorst:
		mode = KeepWorst
	case notation.KeepNone:
	default:
		return nil, fmt.Errorf("%w: unknown keep mode %q", ErrConstruction, bs.KeepMode)
	}
	return NewBunch(bs.NDice, die, mode, bs.KeepNumber)
}

// Parse parses text and builds the Expression it describes.
func Parse(text string, opts ...Option) (*Expression, error) {
	spec, err := notation.Parse(text)
	if err != nil {
		return nil, err
	}
	return FromSpec(spec, opts...)
}

// MustParse is Parse that panics on error. Useful for package-level values.
//
// Precondition: text must be valid dice notation.
func MustParse(text string, opts ...Option) *Expression {
	e, err := Parse(text, opts...)
	if err != nil {
		panic("dice: MustParse failed for expression " + text + ": " + err.Error())
	}
	return e
}

// Terms returns the expression's signed bunches.
func (e *Expression) Terms() []Term { return append([]Term(nil), e.terms...) }

// Offset returns the constant offset.
func (e *Expression) Offset() int { return e.offset }

// Notation returns the canonical notation the expression was parsed from, or
// "" for expressions built directly with NewExpression.
func (e *Expression) Notation() string { return e.notation }

// Roll rolls every bunch with src.
//
// Postcondition: Result() == Σ multiplier·bunch.Result() + Offset().
func (e *Expression) Roll(src Source) int {
	total := e.offset
	for _, t := range e.terms {
		total += t.Multiplier * t.Bunch.Roll(src)
	}
	e.result, e.rolled = total, true
	return total
}

// Result returns the total of the last Roll.
func (e *Expression) Result() int { return e.result }

// Explain renders the last roll term by term with signs, e.g.
// "6, 3, 2, 3. Keep: 3 + 3 + 6 = 12 - 2 + 1 = 11".
func (e *Expression) Explain() string {
	if !e.rolled {
		return ""
	}
	var sb strings.Builder
	parts := 0
	for _, t := range e.terms {
		switch {
		case t.Multiplier < 0 && parts == 0:
			sb.WriteString("-")
		case t.Multiplier < 0:
			sb.WriteString(" - ")
		case parts > 0:
			sb.WriteString(" + ")
		}
		sb.WriteString(t.Bunch.Explain())
		parts++
	}
	if e.offset != 0 || parts == 0 {
		switch {
		case parts == 0:
			sb.WriteString(strconv.Itoa(e.offset))
		case e.offset < 0:
			sb.WriteString(" - " + strconv.Itoa(-e.offset))
		default:
			sb.WriteString(" + " + strconv.Itoa(e.offset))
		}
		parts++
	}
	if parts > 1 {
		fmt.Fprintf(&sb, " = %d", e.result)
	}
	return sb.String()
}

func (e *Expression) String() string {
	if e.notation != "" {
		return e.notation
	}
	return fmt.Sprintf("Expression(%d terms%+d)", len(e.terms), e.offset)
}

// Probabilities returns the distribution of Result(), computed once.
func (e *Expression) Probabilities() (*probability.Distribution, error) {
	return e.distribution()
}

func (e *Expression) computeDistribution() (*probability.Distribution, error) {
	var opts []probability.Option
	if len(e.terms) > 0 {
		opts = e.terms[0].Bunch.die.opts.probabilityOptions()
	}
	acc := probability.Point(0, opts...)
	for _, t := range e.terms {
		d, err := t.Bunch.Probabilities()
		if err != nil {
			return nil, err
		}
		acc, err = probability.AddScaled(1, acc, t.Multiplier, d)
		if err != nil {
			return nil, err
		}
	}
	return acc.Shift(e.offset), nil
}
