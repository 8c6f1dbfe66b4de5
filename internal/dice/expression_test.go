package dice_test

import (
	"testing"

	"github.com/cory-johannsen/diceodds/internal/dice"
	"github.com/cory-johannsen/diceodds/internal/dice/notation"
	"github.com/cory-johannsen/diceodds/internal/dice/probability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParse_KeepBest(t *testing.T) {
	e, err := dice.Parse("4d6k3")
	require.NoError(t, err)
	assert.Equal(t, "4d6k:3,best.", e.Notation())

	assert.Equal(t, 12, e.Roll(seq(6, 3, 2, 3)))
	assert.Equal(t, "6, 3, 2, 3. Keep: 3 + 3 + 6 = 12", e.Explain())
}

func TestExpression_RollAndExplain(t *testing.T) {
	cases := []struct {
		text    string
		faces   []int
		total   int
		explain string
	}{
		{"1d6+2", []int{4}, 6, "4 + 2 = 6"},
		{"2d6-1d4+1", []int{3, 4, 2}, 6, "3 + 4 = 7 - 2 + 1 = 6"},
		{"-1d4", []int{3}, -3, "-3"},
		{"5", nil, 5, "5"},
		{"1d6x-2", []int{6, 1}, 5, "(6 + 1 = 7) - 2 = 5"},
	}
	for _, c := range cases {
		t.Run(c.text, func(t *testing.T) {
			e := dice.MustParse(c.text)
			assert.Equal(t, c.total, e.Roll(seq(c.faces...)))
			assert.Equal(t, c.total, e.Result())
			assert.Equal(t, c.explain, e.Explain())
		})
	}
}

func TestExpression_Probabilities(t *testing.T) {
	e := dice.MustParse("2d6-1d4")
	p, err := e.Probabilities()
	require.NoError(t, err)
	assert.Equal(t, -2, p.Min())
	assert.Equal(t, 11, p.Max())
	assert.InDelta(t, 4.5, p.Expected(), 1e-12)
	assert.InDelta(t, 1.0, p.TotalMass(), 1e-12)

	again, err := e.Probabilities()
	require.NoError(t, err)
	assert.Same(t, p, again)

	c, err := dice.MustParse("7").Probabilities()
	require.NoError(t, err)
	assert.Equal(t, 1.0, c.PEq(7))
}

func TestExpression_IncompletePropagates(t *testing.T) {
	p, err := dice.MustParse("2d10x+1").Probabilities()
	require.NoError(t, err)
	assert.True(t, p.Incomplete())
	assert.InDelta(t, 2*5.5*10.0/9+1, p.Expected(), 1e-9)
}

func TestExpression_Errors(t *testing.T) {
	_, err := dice.Parse("2d")
	assert.ErrorIs(t, err, notation.ErrSyntax)

	_, err = dice.Parse("2d0")
	assert.ErrorIs(t, err, dice.ErrConstruction)

	_, err = dice.Parse("0d6")
	assert.ErrorIs(t, err, dice.ErrConstruction)

	_, err = dice.Parse("3d6k0")
	assert.ErrorIs(t, err, dice.ErrConstruction)

	assert.Panics(t, func() { dice.MustParse("d") })

	_, err = dice.NewExpression([]dice.Term{{Multiplier: 1}}, 0)
	assert.ErrorIs(t, err, dice.ErrConstruction)
}

func TestExpression_ResourceLimit(t *testing.T) {
	e, err := dice.Parse("1000d1000", dice.WithLimits(probability.Limits{MaxOutcomes: 1000, MaxKeepDice: 10}))
	require.NoError(t, err)
	_, err = e.Probabilities()
	assert.ErrorIs(t, err, probability.ErrResourceLimit)
}

func TestExpression_HugeSidesFailInsteadOfPanicking(t *testing.T) {
	for _, text := range []string{"1d1000000000000000", "1d1000000000000000x", "2d1000000000000000m:>=5."} {
		t.Run(text, func(t *testing.T) {
			e, err := dice.Parse(text)
			require.NoError(t, err)
			assert.NotPanics(t, func() {
				_, err = e.Probabilities()
			})
			assert.ErrorIs(t, err, probability.ErrResourceLimit)

			total := e.Roll(dice.NewSeededSource(7))
			assert.Equal(t, total, e.Result())
		})
	}
}

func TestExpression_HugeRepeatCountFailsFast(t *testing.T) {
	e, err := dice.Parse("100000d100000")
	require.NoError(t, err)
	_, err = e.Probabilities()
	assert.ErrorIs(t, err, probability.ErrResourceLimit)
}

func TestExpression_HugeDiceCountRejected(t *testing.T) {
	_, err := dice.Parse("1000000000000000000d6")
	assert.ErrorIs(t, err, dice.ErrConstruction)

	_, err = dice.Parse("11d6", dice.WithMaxDice(10))
	assert.ErrorIs(t, err, dice.ErrConstruction)
}

func TestExpression_VerboseMapCountsSuccesses(t *testing.T) {
	e := dice.MustParse("3d6m:>=5.")
	assert.Equal(t, 0, e.Roll(seq(2, 2, 1)))
	assert.Equal(t, "2, 2, 1. Successes: 0", e.Explain())

	p, err := e.Probabilities()
	require.NoError(t, err)
	assert.Equal(t, 0, p.Min())
	assert.Equal(t, 3, p.Max())
	assert.InDelta(t, 1.0, p.Expected(), 1e-12)
}

func TestExpression_ExplainBeforeRoll(t *testing.T) {
	assert.Equal(t, "", dice.MustParse("2d6+1").Explain())
	assert.Equal(t, "", dice.MustParse("5").Explain())
}

func TestExpression_FairDiceProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(rt, "n")
		sides := rapid.IntRange(1, 12).Draw(rt, "sides")
		offset := rapid.IntRange(-10, 10).Draw(rt, "offset")

		e, err := dice.FromSpec(notation.Spec{
			Bunches: []notation.BunchSpec{{NDice: n, Sides: sides, Multiplier: 1}},
			Offset:  offset,
		})
		require.NoError(rt, err)
		p, err := e.Probabilities()
		require.NoError(rt, err)

		assert.InDelta(rt, 1.0, p.TotalMass(), 1e-9)
		assert.Equal(rt, n+offset, p.Min())
		assert.Equal(rt, n*sides+offset, p.Max())
		assert.InDelta(rt, float64(n*(sides+1))/2+float64(offset), p.Expected(), 1e-9)

		v := e.Roll(dice.NewSeededSource(uint64(n*sides)))
		assert.True(rt, v >= p.Min() && v <= p.Max())
	})
}
