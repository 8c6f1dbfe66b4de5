package dice

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/cory-johannsen/diceodds/internal/dice/probability"
)

// ComplexDie is a die with ordered reroll rules and ordered map rules.
//
// Rules are immutable after construction, so the distribution is computed at
// most once per instance. Roll mutates the last result and must not be called
// concurrently on the same instance.
type ComplexDie struct {
	die     *Die
	rerolls []RerollRule
	maps    []MapRule
	opts    Options
	last    Result

	distribution func() (*probability.Distribution, error)
	computations int
}

// NewComplexDie builds a die with the given rules.
//
// Precondition: sides >= 1; rule slices may be empty.
// Postcondition: Returns a die whose Roll cannot fail, or ErrConstruction.
func NewComplexDie(sides int, rerolls []RerollRule, maps []MapRule, opts ...Option) (*ComplexDie, error) {
	die, err := NewDie(sides)
	if err != nil {
		return nil, err
	}
	for i, r := range rerolls {
		if r.limit < 1 {
			return nil, fmt.Errorf("%w: reroll rule %d was not built with NewRerollRule", ErrConstruction, i)
		}
	}
	c := &ComplexDie{
		die:     die,
		rerolls: slices.Clone(rerolls),
		maps:    slices.Clone(maps),
		opts:    newOptions(opts),
	}
	c.distribution = sync.OnceValues(c.computeDistribution)
	return c, nil
}

// Sides returns the number of faces of the underlying die.
func (c *ComplexDie) Sides() int { return c.die.sides }

// HasMaps reports whether any map rule is configured.
func (c *ComplexDie) HasMaps() bool { return len(c.maps) > 0 }

// Last returns the result of the most recent Roll.
func (c *ComplexDie) Last() Result { return c.last.Clone() }

func (c *ComplexDie) budgets() []int {
	b := make([]int, len(c.rerolls))
	for i, r := range c.rerolls {
		b[i] = r.limit
	}
	return b
}

// nextRule returns the index of the first reroll rule with uses left whose
// trigger matches last, or -1. Subtract only fires on the first extra roll.
func (c *ComplexDie) nextRule(last, rolls int, budgets []int) int {
	for i, r := range c.rerolls {
		if budgets[i] <= 0 {
			continue
		}
		if r.effect == EffectSubtract && rolls > 1 {
			continue
		}
		if r.Applies(last) {
			return i
		}
	}
	return -1
}

// mapValue returns the first matching map rule's value and label. A die
// without maps passes total through; a die with maps counts an unmatched
// total as 0.
func (c *ComplexDie) mapValue(total int) (int, string, bool) {
	for _, m := range c.maps {
		if v, ok := m.MapFrom(total); ok {
			return v, m.label, true
		}
	}
	if len(c.maps) > 0 {
		return 0, "", false
	}
	return total, "", false
}

// Roll performs one full roll: a basic draw followed by rerolls while a rule
// with remaining uses matches the latest drawn value, then the map rules on
// the final total.
//
// Postcondition: Returns the new result, which also becomes Last().
func (c *ComplexDie) Roll(src Source) Result {
	var res Result
	v := c.die.Roll(src)
	res.Append(v, EffectBasic)

	budgets := c.budgets()
	for {
		i := c.nextRule(v, len(res.rolls), budgets)
		if i < 0 {
			break
		}
		v = c.die.Roll(src)
		res.Append(v, c.rerolls[i].effect)
		budgets[i]--
	}
	mv, label, ok := c.mapValue(res.total)
	switch {
	case ok:
		res.ApplyMap(mv, label)
	case len(c.maps) > 0:
		res.value = mv
	}
	c.last = res
	return res.Clone()
}

// Probabilities returns the distribution of Value() over all rolls. The
// result is computed once and shared by every later call.
//
// Postcondition: when rerolls can chain beyond Options.MaxDepth or below
// Options.Epsilon the result is flagged Incomplete.
func (c *ComplexDie) Probabilities() (*probability.Distribution, error) {
	return c.distribution()
}

// Complete reports whether the distribution accounts for every outcome.
func (c *ComplexDie) Complete() bool {
	d, err := c.Probabilities()
	return err == nil && !d.Incomplete()
}

// Min returns the smallest possible value. For incomplete distributions it is
// the logical bound derived from the rules.
func (c *ComplexDie) Min() int {
	d, err := c.Probabilities()
	if err != nil || d.Incomplete() {
		lo, _ := c.logicalBounds()
		return lo
	}
	return d.Min()
}

// Max returns the largest possible value, falling back to the logical bound
// like Min.
func (c *ComplexDie) Max() int {
	d, err := c.Probabilities()
	if err != nil || d.Incomplete() {
		_, hi := c.logicalBounds()
		return hi
	}
	return d.Max()
}

// logicalBounds derives value bounds from the rule extremes without
// expanding any reroll chain.
func (c *ComplexDie) logicalBounds() (int, int) {
	sides := c.die.sides
	adds := 0
	subtracts := false
	for _, r := range c.rerolls {
		switch r.effect {
		case EffectAdd:
			adds += r.limit
		case EffectSubtract:
			subtracts = true
		}
	}
	lo, hi := 1, sides*(1+adds)
	if subtracts {
		lo = 1 - sides*(1+adds)
	}
	if len(c.maps) > 0 {
		lo, hi = 0, 0
	}
	for _, m := range c.maps {
		lo = min(lo, m.value)
		hi = max(hi, m.value)
	}
	return lo, hi
}

func (c *ComplexDie) computeDistribution() (*probability.Distribution, error) {
	c.computations++
	popts := c.opts.probabilityOptions()
	sides := c.die.sides
	if len(c.rerolls) == 0 && len(c.maps) == 0 {
		return probability.ForFairDie(sides, popts...)
	}
	if limit := c.opts.maxOutcomes(); sides > limit {
		return nil, fmt.Errorf("%w: die with %d sides (max %d outcomes)", probability.ErrResourceLimit, sides, limit)
	}

	face := 1 / float64(sides)
	mass := make(map[int]float64)
	if len(c.rerolls) == 0 {
		for f := 1; f <= sides; f++ {
			v, _, _ := c.mapValue(f)
			mass[v] += face
		}
		return probability.FromMap(mass, popts...)
	}

	incomplete := false
	frontier := newFrontier()
	budgets := c.budgets()
	for f := 1; f <= sides; f++ {
		frontier.merge(branch{total: f, last: f, rolls: 1, budgets: budgets, p: face})
	}
	for depth := 0; len(frontier.order) > 0; depth++ {
		next := newFrontier()
		for _, b := range frontier.order {
			i := c.nextRule(b.last, b.rolls, b.budgets)
			if i < 0 {
				v, _, _ := c.mapValue(b.total)
				mass[v] += b.p
				continue
			}
			if depth >= c.opts.MaxDepth || b.p < c.opts.Epsilon {
				incomplete = true
				continue
			}
			effect := c.rerolls[i].effect
			for f := 1; f <= sides; f++ {
				next.merge(b.child(i, effect, f, face))
			}
		}
		frontier = next
	}
	if len(mass) == 0 {
		return nil, fmt.Errorf("%w: every reroll branch was abandoned", probability.ErrResourceLimit)
	}
	if incomplete {
		return probability.FromMapIncomplete(mass, popts...)
	}
	return probability.FromMap(mass, popts...)
}

// branch is one partial roll sequence in the reroll expansion. Branches are
// values: child copies the budget slice, so siblings never share state.
type branch struct {
	total       int
	last        int
	rolls       int
	subtracting bool
	budgets     []int
	p           float64
}

func (b branch) child(rule int, e Effect, v int, face float64) branch {
	budgets := slices.Clone(b.budgets)
	budgets[rule]--
	total, subtracting, _ := reduce(b.total, b.subtracting, v, e)
	return branch{
		total:       total,
		last:        v,
		rolls:       b.rolls + 1,
		subtracting: subtracting,
		budgets:     budgets,
		p:           b.p * face,
	}
}

// key identifies branches with identical futures; only whether more than one
// roll happened matters for rule matching.
func (b branch) key() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(b.total))
	sb.WriteByte('|')
	sb.WriteString(strconv.Itoa(b.last))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatBool(b.rolls > 1))
	sb.WriteString(strconv.FormatBool(b.subtracting))
	for _, n := range b.budgets {
		sb.WriteByte('|')
		sb.WriteString(strconv.Itoa(n))
	}
	return sb.String()
}

// frontier holds the branches at one expansion depth, merging branches with
// equal keys and preserving first-seen order.
type frontier struct {
	order []*branch
	index map[string]*branch
}

func newFrontier() *frontier {
	return &frontier{index: make(map[string]*branch)}
}

func (f *frontier) merge(b branch) {
	k := b.key()
	if existing, ok := f.index[k]; ok {
		existing.p += b.p
		return
	}
	nb := b
	f.order = append(f.order, &nb)
	f.index[k] = &nb
}
