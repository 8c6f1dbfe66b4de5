// Package dice models dice with reroll and map rules, groups of identical dice
// with keep-best/worst reduction, and signed sums of such groups. Every level
// can both roll and report its exact probability distribution.
package dice

import (
	"fmt"

	"github.com/cory-johannsen/diceodds/internal/dice/probability"
)

// Die is a single fair die with faces 1..Sides.
type Die struct {
	sides  int
	result int
}

// NewDie returns a die with the given number of sides.
//
// Precondition: sides >= 1.
func NewDie(sides int) (*Die, error) {
	if sides < 1 {
		return nil, fmt.Errorf("%w: die needs at least one side, got %d", ErrConstruction, sides)
	}
	return &Die{sides: sides}, nil
}

// Sides returns the number of faces.
func (d *Die) Sides() int { return d.sides }

// Roll draws a face from src and records it as the die's last result.
//
// Postcondition: 1 <= result <= Sides().
func (d *Die) Roll(src Source) int {
	d.result = src.Intn(d.sides) + 1
	return d.result
}

// Result returns the last rolled face, or false if the die was never rolled.
func (d *Die) Result() (int, bool) {
	return d.result, d.result != 0
}

// Probabilities returns the uniform distribution over the die's faces.
//
// Postcondition: sides above the MaxOutcomes limit yield
// probability.ErrResourceLimit.
func (d *Die) Probabilities(opts ...probability.Option) (*probability.Distribution, error) {
	return probability.ForFairDie(d.sides, opts...)
}
