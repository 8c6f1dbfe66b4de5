package dice

import (
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/cory-johannsen/diceodds/internal/dice/probability"
)

// KeepMode selects the keep-best/worst reduction of a Bunch.
type KeepMode int

const (
	KeepNone KeepMode = iota
	KeepBest
	KeepWorst
)

func (m KeepMode) String() string {
	switch m {
	case KeepNone:
		return "none"
	case KeepBest:
		return "best"
	case KeepWorst:
		return "worst"
	}
	return fmt.Sprintf("KeepMode(%d)", int(m))
}

// Bunch is N identical dice, optionally reduced to the best or worst K.
type Bunch struct {
	ndice    int
	die      *ComplexDie
	keepMode KeepMode
	keepN    int

	results []Result
	kept    []int
	dropped []int
	result  int

	distribution func() (*probability.Distribution, error)
}

// NewBunch groups ndice draws of die.
//
// Precondition: ndice in [1, die's MaxDice option]; die non-nil; keepN >= 1
// unless keepMode is KeepNone. keepN >= ndice keeps every die.
func NewBunch(ndice int, die *ComplexDie, keepMode KeepMode, keepN int) (*Bunch, error) {
	if ndice < 1 {
		return nil, fmt.Errorf("%w: bunch needs at least one die, got %d", ErrConstruction, ndice)
	}
	if die == nil {
		return nil, fmt.Errorf("%w: bunch needs a die", ErrConstruction)
	}
	if ndice > die.opts.MaxDice {
		return nil, fmt.Errorf("%w: %d dice exceeds the maximum of %d", ErrConstruction, ndice, die.opts.MaxDice)
	}
	switch keepMode {
	case KeepNone:
		keepN = 0
	case KeepBest, KeepWorst:
		if keepN < 1 {
			return nil, fmt.Errorf("%w: keep count must be >= 1, got %d", ErrConstruction, keepN)
		}
	default:
		return nil, fmt.Errorf("%w: unknown keep mode %d", ErrConstruction, int(keepMode))
	}
	b := &Bunch{ndice: ndice, die: die, keepMode: keepMode, keepN: keepN}
	b.distribution = sync.OnceValues(b.computeDistribution)
	return b, nil
}

// NDice returns the number of dice rolled.
func (b *Bunch) NDice() int { return b.ndice }

// Die returns the shared die template.
func (b *Bunch) Die() *ComplexDie { return b.die }

// Keep returns the keep mode and count.
func (b *Bunch) Keep() (KeepMode, int) { return b.keepMode, b.keepN }

// Roll rolls every die and reduces the results.
//
// Postcondition: Results() has NDice entries; Result() is the sum of the kept
// values (all values when KeepMode is KeepNone).
func (b *Bunch) Roll(src Source) int {
	b.results = make([]Result, b.ndice)
	for i := range b.results {
		b.results[i] = b.die.Roll(src)
	}

	order := make([]int, b.ndice)
	for i := range order {
		order[i] = i
	}
	k := b.ndice
	if b.keepMode != KeepNone {
		sort.SliceStable(order, func(i, j int) bool {
			vi, vj := b.results[order[i]].value, b.results[order[j]].value
			if b.keepMode == KeepBest {
				return vi > vj
			}
			return vi < vj
		})
		k = min(b.keepN, b.ndice)
	}
	b.kept, b.dropped = order[:k], order[k:]

	b.result = 0
	for _, i := range b.kept {
		b.result += b.results[i].value
	}
	return b.result
}

// Result returns the reduced result of the last Roll.
func (b *Bunch) Result() int { return b.result }

// Results returns every die result of the last Roll in roll order.
func (b *Bunch) Results() []Result { return b.pick(nil) }

// Kept returns the kept results of the last Roll.
func (b *Bunch) Kept() []Result { return b.pick(b.kept) }

// Discarded returns the results dropped by the keep reduction.
func (b *Bunch) Discarded() []Result { return b.pick(b.dropped) }

func (b *Bunch) pick(idx []int) []Result {
	if idx == nil {
		out := make([]Result, len(b.results))
		for i, r := range b.results {
			out[i] = r.Clone()
		}
		return out
	}
	out := make([]Result, len(idx))
	for i, j := range idx {
		out[i] = b.results[j].Clone()
	}
	return out
}

// Explain renders the last roll, e.g. "6, 3, 2, 3. Keep: 3 + 3 + 6 = 12".
// With map rules the total is reported as successes.
func (b *Bunch) Explain() string {
	if len(b.results) == 0 {
		return ""
	}
	all := make([]string, len(b.results))
	for i, r := range b.results {
		all[i] = r.Explain()
	}
	maps := b.die.HasMaps()

	if b.keepMode == KeepNone {
		if maps {
			return fmt.Sprintf("%s. Successes: %d", strings.Join(all, ", "), b.result)
		}
		if len(all) == 1 {
			return all[0]
		}
		return fmt.Sprintf("%s = %d", strings.Join(all, " + "), b.result)
	}

	kept := make([]int, len(b.kept))
	for i, j := range b.kept {
		kept[i] = b.results[j].value
	}
	slices.Sort(kept)
	keptStr := make([]string, len(kept))
	for i, v := range kept {
		keptStr[i] = strconv.Itoa(v)
	}
	if maps {
		return fmt.Sprintf("%s. Keep: %s. Successes: %d", strings.Join(all, ", "), strings.Join(keptStr, ", "), b.result)
	}
	return fmt.Sprintf("%s. Keep: %s = %d", strings.Join(all, ", "), strings.Join(keptStr, " + "), b.result)
}

// Probabilities returns the distribution of Result(), computed once.
func (b *Bunch) Probabilities() (*probability.Distribution, error) {
	return b.distribution()
}

func (b *Bunch) computeDistribution() (*probability.Distribution, error) {
	single, err := b.die.Probabilities()
	if err != nil {
		return nil, err
	}
	switch b.keepMode {
	case KeepBest:
		return single.RepeatNSumK(b.ndice, b.keepN, probability.KeepBest)
	case KeepWorst:
		return single.RepeatNSumK(b.ndice, b.keepN, probability.KeepWorst)
	}
	return single.RepeatSum(b.ndice)
}
