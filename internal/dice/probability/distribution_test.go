package probability_test

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/diceodds/internal/dice/probability"
)

func fairDie(t testing.TB, sides int) *probability.Distribution {
	t.Helper()
	d, err := probability.ForFairDie(sides)
	require.NoError(t, err)
	return d
}

func TestForFairDie_RejectsNoSides(t *testing.T) {
	_, err := probability.ForFairDie(0)
	assert.ErrorIs(t, err, probability.ErrInvalid)
}

func TestForFairDie_Uniform(t *testing.T) {
	d := fairDie(t, 6)
	assert.Equal(t, 1, d.Min())
	assert.Equal(t, 6, d.Max())
	for v := 1; v <= 6; v++ {
		assert.InDelta(t, 1.0/6, d.PEq(v), 1e-15)
	}
	assert.InDelta(t, 3.5, d.Expected(), 1e-12)
	assert.False(t, d.Incomplete())
}

func TestNew_RejectsBadMass(t *testing.T) {
	_, err := probability.New([]float64{0.5, 0.4}, 1)
	assert.ErrorIs(t, err, probability.ErrInvalid)

	_, err = probability.New([]float64{1.5, -0.5}, 1)
	assert.ErrorIs(t, err, probability.ErrInvalid)

	_, err = probability.New(nil, 0)
	assert.ErrorIs(t, err, probability.ErrInvalid)

	_, err = probability.New([]float64{math.NaN()}, 0)
	assert.ErrorIs(t, err, probability.ErrInvalid)
}

func TestNew_TrimsZeroEdges(t *testing.T) {
	d, err := probability.New([]float64{0, 0, 0.25, 0.75, 0}, 10)
	require.NoError(t, err)
	assert.Equal(t, 12, d.Min())
	assert.Equal(t, 13, d.Max())
}

func TestNewIncomplete_AllowsMissingMass(t *testing.T) {
	d, err := probability.NewIncomplete([]float64{0.5, 0.4}, 1)
	require.NoError(t, err)
	assert.True(t, d.Incomplete())
	assert.InDelta(t, 0.9, d.TotalMass(), 1e-12)

	_, err = probability.NewIncomplete([]float64{0.9, 0.4}, 1)
	assert.ErrorIs(t, err, probability.ErrInvalid)
}

func TestIncomplete_TailsAgreeWithPointMasses(t *testing.T) {
	d, err := probability.NewIncomplete([]float64{0.5, 0.4}, 1)
	require.NoError(t, err)
	assert.InDelta(t, d.PEq(1)+d.PEq(2), d.PLe(2), 1e-12)
	assert.InDelta(t, d.TotalMass(), d.PLe(100), 1e-12)
	assert.InDelta(t, 0.1, d.PGt(2), 1e-12)
}

func TestFromMap(t *testing.T) {
	d, err := probability.FromMap(map[int]float64{-2: 0.5, 3: 0.5})
	require.NoError(t, err)
	assert.Equal(t, -2, d.Min())
	assert.Equal(t, 3, d.Max())
	assert.Equal(t, 0.0, d.PEq(0))
	assert.Equal(t, []int{-2, 3}, d.Outcomes())
	assert.Equal(t, map[int]float64{-2: 0.5, 3: 0.5}, d.Map())
}

func TestTailQueries_ShortCircuitOutsideSupport(t *testing.T) {
	d := fairDie(t, 6)
	assert.Equal(t, 0.0, d.PEq(0))
	assert.Equal(t, 0.0, d.PEq(7))
	assert.Equal(t, 0.0, d.PLe(0))
	assert.Equal(t, 1.0, d.PLe(6))
	assert.Equal(t, 1.0, d.PGe(-100))
	assert.Equal(t, 0.0, d.PGt(6))
	assert.InDelta(t, 0.5, d.PGe(4), 1e-12)
	assert.InDelta(t, 0.5, d.PLt(4), 1e-12)
}

func TestRepeatSum_TwoD6(t *testing.T) {
	d, err := fairDie(t, 6).RepeatSum(2)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Min())
	assert.Equal(t, 12, d.Max())
	assert.InDelta(t, 6.0/36, d.PEq(7), 1e-12)
	assert.InDelta(t, 1.0/36, d.PEq(12), 1e-12)
	assert.InDelta(t, 7.0, d.Expected(), 1e-12)
}

func TestRepeatSum_ZeroIsPointMass(t *testing.T) {
	d, err := fairDie(t, 6).RepeatSum(0)
	require.NoError(t, err)
	assert.Equal(t, 0, d.Min())
	assert.Equal(t, 0, d.Max())
	assert.Equal(t, 1.0, d.PEq(0))
}

// Property: for_fair_die(sides).repeat_sum(n) has unit mass over [n, n·sides].
func TestRepeatSum_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sides := rapid.IntRange(1, 20).Draw(rt, "sides")
		n := rapid.IntRange(1, 40).Draw(rt, "n")
		d, err := probability.ForFairDie(sides)
		require.NoError(rt, err)
		sum, err := d.RepeatSum(n)
		require.NoError(rt, err)
		assert.InDelta(rt, 1.0, sum.TotalMass(), 1e-9)
		assert.Equal(rt, n, sum.Min())
		assert.Equal(rt, n*sides, sum.Max())
		assert.InDelta(rt, float64(n)*float64(sides+1)/2, sum.Expected(), 1e-6)
	})
}

func TestRepeatSum_ResourceLimit(t *testing.T) {
	d, err := probability.ForFairDie(6, probability.WithLimits(probability.Limits{MaxOutcomes: 100}))
	require.NoError(t, err)
	_, err = d.RepeatSum(100)
	assert.ErrorIs(t, err, probability.ErrResourceLimit)

	_, err = d.RepeatSum(-1)
	assert.ErrorIs(t, err, probability.ErrInvalid)
}

func TestRepeatSum_HugeCountFailsFast(t *testing.T) {
	d := fairDie(t, 5)
	for _, n := range []int{1<<62 + 1, math.MaxInt, 1 << 40} {
		_, err := d.RepeatSum(n)
		assert.ErrorIs(t, err, probability.ErrResourceLimit, "n=%d", n)
	}
}

func TestScale_HugeMultiplierFailsFast(t *testing.T) {
	d := fairDie(t, 6)
	for _, m := range []int{math.MaxInt, math.MinInt + 1, 1 << 61} {
		_, err := d.Scale(m)
		assert.ErrorIs(t, err, probability.ErrResourceLimit, "m=%d", m)
	}
}

func TestForFairDie_SidesAboveCeiling(t *testing.T) {
	_, err := probability.ForFairDie(1_000_000_000_000_000)
	assert.ErrorIs(t, err, probability.ErrResourceLimit)

	_, err = probability.ForFairDie(101, probability.WithLimits(probability.Limits{MaxOutcomes: 100}))
	assert.ErrorIs(t, err, probability.ErrResourceLimit)

	d, err := probability.ForFairDie(100, probability.WithLimits(probability.Limits{MaxOutcomes: 100}))
	require.NoError(t, err)
	assert.Equal(t, 100, d.Len())
}

func TestRepeatNSumK_KeptWidthAboveCeiling(t *testing.T) {
	d, err := probability.ForFairDie(6, probability.WithLimits(probability.Limits{MaxOutcomes: 20}))
	require.NoError(t, err)
	_, err = d.RepeatNSumK(10, 5, probability.KeepBest)
	assert.ErrorIs(t, err, probability.ErrResourceLimit)

	_, err = d.RepeatNSumK(10, 3, probability.KeepBest)
	assert.NoError(t, err)
}

func randomDistribution(rt *rapid.T) *probability.Distribution {
	weights := rapid.SliceOfN(rapid.IntRange(0, 100), 1, 12).Draw(rt, "weights")
	offset := rapid.IntRange(-20, 20).Draw(rt, "offset")
	var total float64
	for _, w := range weights {
		total += float64(w)
	}
	if total == 0 {
		weights[0] = 1
		total = 1
	}
	masses := make([]float64, len(weights))
	for i, w := range weights {
		masses[i] = float64(w) / total
	}
	d, err := probability.New(masses, offset)
	require.NoError(rt, err)
	return d
}

// Property: p_ge(k) + p_lt(k) == 1 for every distribution and every k.
func TestTail_Complement_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		d := randomDistribution(rt)
		k := rapid.IntRange(-40, 40).Draw(rt, "k")
		assert.InDelta(rt, 1.0, d.PGe(k)+d.PLt(k), 1e-12)
		assert.InDelta(rt, 1.0, d.PGt(k)+d.PLe(k), 1e-12)
	})
}

func TestAddScaled_Difference(t *testing.T) {
	d6 := fairDie(t, 6)
	diff, err := probability.AddScaled(1, d6, -1, d6)
	require.NoError(t, err)
	assert.Equal(t, -5, diff.Min())
	assert.Equal(t, 5, diff.Max())
	assert.InDelta(t, 0, diff.Expected(), 1e-12)
	assert.InDelta(t, 6.0/36, diff.PEq(0), 1e-12)
	assert.InDelta(t, diff.PEq(3), diff.PEq(-3), 1e-15)
}

func TestAddScaled_ZeroMultiplier(t *testing.T) {
	d6 := fairDie(t, 6)
	_, err := probability.AddScaled(0, d6, 1, d6)
	assert.ErrorIs(t, err, probability.ErrInvalid)
}

func TestScale_Doubles(t *testing.T) {
	d, err := fairDie(t, 4).Scale(2)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 6, 8}, d.Outcomes())
	assert.InDelta(t, 5.0, d.Expected(), 1e-12)
}

func TestShift(t *testing.T) {
	d := fairDie(t, 6).Shift(-3)
	assert.Equal(t, -2, d.Min())
	assert.Equal(t, 3, d.Max())
	assert.InDelta(t, 0.5, d.Expected(), 1e-12)
}

func TestGiven(t *testing.T) {
	d6 := fairDie(t, 6)
	ge, err := d6.GivenGE(4)
	require.NoError(t, err)
	assert.Equal(t, 4, ge.Min())
	assert.InDelta(t, 1.0/3, ge.PEq(5), 1e-12)

	le, err := d6.GivenLE(2)
	require.NoError(t, err)
	assert.Equal(t, 2, le.Max())
	assert.InDelta(t, 0.5, le.PEq(1), 1e-12)

	_, err = d6.GivenGT(6)
	assert.ErrorIs(t, err, probability.ErrInvalid)
}

func TestQuantile(t *testing.T) {
	d6 := fairDie(t, 6)
	assert.Equal(t, 1, d6.Quantile(0))
	assert.Equal(t, 3, d6.Quantile(0.45))
	assert.Equal(t, 6, d6.Quantile(1))
}

// Round-trip: the dense export fed back into New reproduces the distribution.
func TestMasses_RoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sides := rapid.IntRange(1, 12).Draw(rt, "sides")
		n := rapid.IntRange(1, 6).Draw(rt, "n")
		d, err := probability.ForFairDie(sides)
		require.NoError(rt, err)
		sum, err := d.RepeatSum(n)
		require.NoError(rt, err)

		masses, offset := sum.Masses()
		back, err := probability.New(masses, offset)
		require.NoError(rt, err)
		require.Equal(rt, sum.Min(), back.Min())
		require.Equal(rt, sum.Max(), back.Max())
		for v := sum.Min(); v <= sum.Max(); v++ {
			assert.InDelta(rt, sum.PEq(v), back.PEq(v), 1e-12)
		}
	})
}

func TestTable_YAMLRoundTrip(t *testing.T) {
	d, err := fairDie(t, 8).RepeatSum(3)
	require.NoError(t, err)

	raw, err := yaml.Marshal(d.Table())
	require.NoError(t, err)

	var tbl probability.Table
	require.NoError(t, yaml.Unmarshal(raw, &tbl))
	back, err := probability.FromTable(tbl)
	require.NoError(t, err)
	assert.Equal(t, d.Map(), back.Map())
	assert.False(t, back.Incomplete())
}

func TestTable_KeepsIncompleteFlag(t *testing.T) {
	d, err := probability.NewIncomplete([]float64{0.5, 0.25}, 3)
	require.NoError(t, err)
	back, err := probability.FromTable(d.Table())
	require.NoError(t, err)
	assert.True(t, back.Incomplete())
}

// enumerateKeep brute-forces the best/worst-k-of-n distribution of a fair die.
func enumerateKeep(sides, n, k int, mode probability.KeepMode) map[int]float64 {
	out := map[int]float64{}
	total := math.Pow(float64(sides), float64(n))
	roll := make([]int, n)
	var walk func(i int)
	walk = func(i int) {
		if i == n {
			sorted := append([]int(nil), roll...)
			sort.Ints(sorted)
			if mode == probability.KeepBest {
				sorted = sorted[n-k:]
			} else {
				sorted = sorted[:k]
			}
			s := 0
			for _, v := range sorted {
				s += v
			}
			out[s] += 1 / total
			return
		}
		for v := 1; v <= sides; v++ {
			roll[i] = v
			walk(i + 1)
		}
	}
	walk(0)
	return out
}

// Property: the combinatorial keep routine agrees with brute-force enumeration.
func TestRepeatNSumK_MatchesEnumeration_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sides := rapid.IntRange(1, 6).Draw(rt, "sides")
		n := rapid.IntRange(2, 4).Draw(rt, "n")
		k := rapid.IntRange(1, n-1).Draw(rt, "k")
		mode := rapid.SampledFrom([]probability.KeepMode{probability.KeepBest, probability.KeepWorst}).Draw(rt, "mode")

		d, err := probability.ForFairDie(sides)
		require.NoError(rt, err)
		got, err := d.RepeatNSumK(n, k, mode)
		require.NoError(rt, err)

		want := enumerateKeep(sides, n, k, mode)
		for v, p := range want {
			assert.InDelta(rt, p, got.PEq(v), 1e-9, "outcome %d", v)
		}
		assert.InDelta(rt, 1.0, got.TotalMass(), 1e-9)
	})
}

// Property: keeping all n of n is the plain repeated sum.
func TestRepeatNSumK_AllKept_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		sides := rapid.IntRange(1, 12).Draw(rt, "sides")
		n := rapid.IntRange(1, 10).Draw(rt, "n")
		mode := rapid.SampledFrom([]probability.KeepMode{probability.KeepBest, probability.KeepWorst}).Draw(rt, "mode")
		d, err := probability.ForFairDie(sides)
		require.NoError(rt, err)

		kept, err := d.RepeatNSumK(n, n, mode)
		require.NoError(rt, err)
		sum, err := d.RepeatSum(n)
		require.NoError(rt, err)
		assert.Equal(rt, sum.Map(), kept.Map())
	})
}

func TestRepeatNSumK_AdvantageSymmetry(t *testing.T) {
	d20 := fairDie(t, 20)
	best, err := d20.RepeatNSumK(2, 1, probability.KeepBest)
	require.NoError(t, err)
	worst, err := d20.RepeatNSumK(2, 1, probability.KeepWorst)
	require.NoError(t, err)

	assert.InDelta(t, 13.825, best.Expected(), 1e-9)
	assert.InDelta(t, 7.175, worst.Expected(), 1e-9)
	assert.InDelta(t, 21.0, best.Expected()+worst.Expected(), 1e-9)
}

func TestRepeatNSumK_FourD6DropLowest(t *testing.T) {
	d, err := fairDie(t, 6).RepeatNSumK(4, 3, probability.KeepBest)
	require.NoError(t, err)
	assert.Equal(t, 3, d.Min())
	assert.Equal(t, 18, d.Max())
	assert.InDelta(t, 15869.0/1296, d.Expected(), 1e-9)
	assert.InDelta(t, 1.0/1296, d.PEq(3), 1e-12)
}

func TestRepeatNSumK_TwentyD10(t *testing.T) {
	d, err := fairDie(t, 10).RepeatNSumK(20, 10, probability.KeepBest)
	require.NoError(t, err)
	assert.Equal(t, 10, d.Min())
	assert.Equal(t, 100, d.Max())
	assert.InDelta(t, 1.0, d.TotalMass(), 1e-9)
	assert.InDelta(t, math.Pow(0.1, 20), d.PEq(10), 1e-30)
}

func TestRepeatNSumK_Validation(t *testing.T) {
	d, err := probability.ForFairDie(6, probability.WithLimits(probability.Limits{MaxKeepDice: 10}))
	require.NoError(t, err)

	_, err = d.RepeatNSumK(11, 3, probability.KeepBest)
	assert.ErrorIs(t, err, probability.ErrResourceLimit)

	_, err = d.RepeatNSumK(4, 0, probability.KeepBest)
	assert.ErrorIs(t, err, probability.ErrInvalid)

	_, err = d.RepeatNSumK(4, 2, probability.KeepMode(9))
	assert.ErrorIs(t, err, probability.ErrInvalid)
}

func TestLimits_Propagate(t *testing.T) {
	lim := probability.Limits{MaxOutcomes: 50, MaxKeepDice: 5}
	d, err := probability.ForFairDie(6, probability.WithLimits(lim))
	require.NoError(t, err)
	sum, err := d.RepeatSum(3)
	require.NoError(t, err)
	assert.Equal(t, lim, sum.Limits())
	_, err = sum.RepeatSum(4)
	assert.ErrorIs(t, err, probability.ErrResourceLimit)
}
