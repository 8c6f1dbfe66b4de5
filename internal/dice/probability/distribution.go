// Package probability implements an immutable algebra over finite,
// integer-keyed probability distributions: construction, convolution,
// conditioning, repeated self-convolution, best/worst-K-of-N sums and tail
// queries.
//
// A Distribution is stored densely as a slice of masses plus the integer value
// of the first slot, so min/max are O(1) and convolution is O(range_a*range_b).
package probability

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Tolerance is the maximum deviation of total mass from 1.0 accepted by the
// validating constructors.
const Tolerance = 1e-6

var (
	// ErrInvalid is returned when a distribution cannot be constructed from the
	// supplied arguments.
	ErrInvalid = errors.New("probability: invalid distribution")
	// ErrResourceLimit is returned when a computation would exceed the
	// configured outcome-count or dice-count ceiling.
	ErrResourceLimit = errors.New("probability: resource limit exceeded")
)

// Limits bounds the size of derived distributions.
type Limits struct {
	// MaxOutcomes is the largest support size RepeatSum, RepeatNSumK and
	// AddScaled may produce.
	MaxOutcomes int
	// MaxKeepDice is the largest n accepted by RepeatNSumK.
	MaxKeepDice int
}

// DefaultLimits is used when no Limits are supplied.
var DefaultLimits = Limits{
	MaxOutcomes: 1 << 20,
	MaxKeepDice: 1000,
}

// span returns the support width n·gaps+1 of a sum of n draws whose supports
// are gaps+1 wide. ok is false when the width exceeds MaxOutcomes, checked
// before multiplying so huge n cannot overflow.
func (l Limits) span(n, gaps int) (width int, ok bool) {
	if gaps > 0 && n > (l.MaxOutcomes-1)/gaps {
		return 0, false
	}
	width = n*gaps + 1
	return width, width <= l.MaxOutcomes
}

// limitsOf returns the limits opts would give a new Distribution.
func limitsOf(opts []Option) Limits {
	d := &Distribution{limits: DefaultLimits}
	for _, opt := range opts {
		opt(d)
	}
	return d.limits
}

func (l Limits) normalized() Limits {
	if l.MaxOutcomes <= 0 {
		l.MaxOutcomes = DefaultLimits.MaxOutcomes
	}
	if l.MaxKeepDice <= 0 {
		l.MaxKeepDice = DefaultLimits.MaxKeepDice
	}
	return l
}

// Option customizes a Distribution at construction.
type Option func(*Distribution)

// WithLimits sets the resource limits inherited by every distribution
// derived from the constructed one.
func WithLimits(l Limits) Option {
	return func(d *Distribution) { d.limits = l.normalized() }
}

// Distribution is an immutable finite mapping from integer outcomes to
// probabilities.
//
// Invariant: masses has no leading or trailing zero entries; masses[i] is the
// probability of outcome offset+i.
type Distribution struct {
	masses     []float64
	offset     int
	incomplete bool
	limits     Limits
	cumulative func() []float64
}

// derive builds a Distribution without validation. Callers own masses.
func derive(masses []float64, offset int, incomplete bool, limits Limits) *Distribution {
	lo, hi := 0, len(masses)
	for lo < hi && masses[lo] == 0 {
		lo++
	}
	for hi > lo && masses[hi-1] == 0 {
		hi--
	}
	d := &Distribution{
		masses:     masses[lo:hi],
		offset:     offset + lo,
		incomplete: incomplete,
		limits:     limits,
	}
	d.cumulative = sync.OnceValue(d.buildCumulative)
	return d
}

func checkMasses(masses []float64) (float64, error) {
	if len(masses) == 0 {
		return 0, fmt.Errorf("%w: no outcomes", ErrInvalid)
	}
	var total float64
	for i, p := range masses {
		if math.IsNaN(p) || math.IsInf(p, 0) || p < 0 {
			return 0, fmt.Errorf("%w: mass %v at index %d", ErrInvalid, p, i)
		}
		total += p
	}
	if total == 0 {
		return 0, fmt.Errorf("%w: zero total mass", ErrInvalid)
	}
	return total, nil
}

// New builds a validated Distribution from dense masses where masses[i] is the
// probability of outcome offset+i.
//
// Precondition: every mass is finite and non-negative.
// Postcondition: Returns a Distribution whose total mass is within Tolerance of
// 1.0, or an error wrapping ErrInvalid.
func New(masses []float64, offset int, opts ...Option) (*Distribution, error) {
	total, err := checkMasses(masses)
	if err != nil {
		return nil, err
	}
	if math.Abs(total-1) > Tolerance {
		return nil, fmt.Errorf("%w: total mass %v is not 1", ErrInvalid, total)
	}
	return build(masses, offset, false, opts), nil
}

// NewIncomplete builds a Distribution whose total mass may fall short of 1.0
// because part of the outcome space was abandoned. The result is flagged
// Incomplete.
//
// Precondition: total mass must not exceed 1.0 + Tolerance.
func NewIncomplete(masses []float64, offset int, opts ...Option) (*Distribution, error) {
	total, err := checkMasses(masses)
	if err != nil {
		return nil, err
	}
	if total > 1+Tolerance {
		return nil, fmt.Errorf("%w: total mass %v exceeds 1", ErrInvalid, total)
	}
	return build(masses, offset, true, opts), nil
}

func build(masses []float64, offset int, incomplete bool, opts []Option) *Distribution {
	cp := make([]float64, len(masses))
	copy(cp, masses)
	d := derive(cp, offset, incomplete, DefaultLimits)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// FromMap builds a validated Distribution from a sparse outcome→mass map.
func FromMap(m map[int]float64, opts ...Option) (*Distribution, error) {
	masses, offset := densify(m)
	return New(masses, offset, opts...)
}

// FromMapIncomplete is the sparse counterpart of NewIncomplete.
func FromMapIncomplete(m map[int]float64, opts ...Option) (*Distribution, error) {
	masses, offset := densify(m)
	return NewIncomplete(masses, offset, opts...)
}

func densify(m map[int]float64) ([]float64, int) {
	if len(m) == 0 {
		return nil, 0
	}
	lo, hi := math.MaxInt, math.MinInt
	for v := range m {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	masses := make([]float64, hi-lo+1)
	for v, p := range m {
		masses[v-lo] = p
	}
	return masses, lo
}

// ForFairDie returns the uniform distribution over 1..n.
//
// Precondition: n >= 1.
// Postcondition: n above Limits.MaxOutcomes yields ErrResourceLimit.
func ForFairDie(n int, opts ...Option) (*Distribution, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: fair die needs at least one side, got %d", ErrInvalid, n)
	}
	if limits := limitsOf(opts); n > limits.MaxOutcomes {
		return nil, fmt.Errorf("%w: die with %d sides (max %d outcomes)", ErrResourceLimit, n, limits.MaxOutcomes)
	}
	masses := make([]float64, n)
	for i := range masses {
		masses[i] = 1 / float64(n)
	}
	return New(masses, 1, opts...)
}

// Point returns the distribution that is v with certainty.
func Point(v int, opts ...Option) *Distribution {
	return build([]float64{1}, v, false, opts)
}

func (d *Distribution) point(v int) *Distribution {
	return derive([]float64{1}, v, false, d.limits)
}

// Min returns the smallest outcome with non-zero mass.
func (d *Distribution) Min() int { return d.offset }

// Max returns the largest outcome with non-zero mass.
func (d *Distribution) Max() int { return d.offset + len(d.masses) - 1 }

// Len returns the width of the support, Max()-Min()+1.
func (d *Distribution) Len() int { return len(d.masses) }

// Incomplete reports whether part of the outcome mass was abandoned while
// computing this distribution (or any distribution it was derived from).
func (d *Distribution) Incomplete() bool { return d.incomplete }

// Limits returns the resource limits this distribution propagates.
func (d *Distribution) Limits() Limits { return d.limits }

// Masses exports the dense representation: a copy of the masses and the
// outcome of the first slot. New(d.Masses()) reproduces d.
func (d *Distribution) Masses() ([]float64, int) {
	cp := make([]float64, len(d.masses))
	copy(cp, d.masses)
	return cp, d.offset
}

// Map returns every outcome with non-zero mass.
func (d *Distribution) Map() map[int]float64 {
	out := make(map[int]float64, len(d.masses))
	for i, p := range d.masses {
		if p != 0 {
			out[d.offset+i] = p
		}
	}
	return out
}

// Outcomes returns the outcomes with non-zero mass in ascending order.
func (d *Distribution) Outcomes() []int {
	out := make([]int, 0, len(d.masses))
	for i, p := range d.masses {
		if p != 0 {
			out = append(out, d.offset+i)
		}
	}
	return out
}

// TotalMass returns the sum of all masses; 1.0 up to rounding unless the
// distribution is incomplete.
func (d *Distribution) TotalMass() float64 {
	c := d.cumulative()
	return c[len(c)-1]
}

// Expected returns Σ value·probability.
func (d *Distribution) Expected() float64 {
	var e float64
	for i, p := range d.masses {
		e += float64(d.offset+i) * p
	}
	return e
}

// Variance returns the variance about Expected.
func (d *Distribution) Variance() float64 {
	mean := d.Expected()
	var v float64
	for i, p := range d.masses {
		dv := float64(d.offset+i) - mean
		v += dv * dv * p
	}
	return v
}

func (d *Distribution) buildCumulative() []float64 {
	c := make([]float64, len(d.masses))
	var run float64
	for i, p := range d.masses {
		run += p
		c[i] = run
	}
	return c
}

// PEq returns P(X == t).
func (d *Distribution) PEq(t int) float64 {
	if t < d.Min() || t > d.Max() {
		return 0
	}
	return d.masses[t-d.offset]
}

// PLe returns P(X <= t). For an incomplete distribution PLe(Max()) is
// TotalMass(), so the abandoned mass counts toward the upper tails.
func (d *Distribution) PLe(t int) float64 {
	c := d.cumulative()
	switch {
	case t < d.Min():
		return 0
	case t >= d.Max() && d.incomplete:
		return c[len(c)-1]
	case t >= d.Max():
		return 1
	}
	return c[t-d.offset]
}

// PLt returns P(X < t).
func (d *Distribution) PLt(t int) float64 { return d.PLe(t - 1) }

// PGt returns P(X > t).
func (d *Distribution) PGt(t int) float64 { return 1 - d.PLe(t) }

// PGe returns P(X >= t).
//
// Postcondition: PGe(t) + PLt(t) == 1.
func (d *Distribution) PGe(t int) float64 { return 1 - d.PLt(t) }

// Quantile returns the smallest outcome v with P(X <= v) >= q.
func (d *Distribution) Quantile(q float64) int {
	c := d.cumulative()
	i := sort.Search(len(c), func(i int) bool { return c[i] >= q })
	if i == len(c) {
		return d.Max()
	}
	return d.offset + i
}

// Shift returns the distribution of X + k.
func (d *Distribution) Shift(k int) *Distribution {
	masses, _ := d.Masses()
	return derive(masses, d.offset+k, d.incomplete, d.limits)
}

// Scale returns the distribution of m·X.
//
// Precondition: m != 0.
func (d *Distribution) Scale(m int) (*Distribution, error) {
	if m == 0 {
		return nil, fmt.Errorf("%w: zero multiplier", ErrInvalid)
	}
	if m == 1 {
		return d, nil
	}
	width, ok := d.limits.span(abs(m), len(d.masses)-1)
	if !ok {
		return nil, fmt.Errorf("%w: scaling by %d exceeds %d outcomes",
			ErrResourceLimit, m, d.limits.MaxOutcomes)
	}
	lo := m * d.Min()
	if m < 0 {
		lo = m * d.Max()
	}
	out := make([]float64, width)
	for i, p := range d.masses {
		out[m*(d.offset+i)-lo] = p
	}
	return derive(out, lo, d.incomplete, d.limits), nil
}

// Add returns the distribution of X + Y for independent X ~ d and Y ~ b.
func (d *Distribution) Add(b *Distribution) *Distribution {
	return derive(convolve(d.masses, b.masses), d.offset+b.offset, d.incomplete || b.incomplete, d.limits)
}

func convolve(a, b []float64) []float64 {
	out := make([]float64, len(a)+len(b)-1)
	for i, pa := range a {
		if pa == 0 {
			continue
		}
		for j, pb := range b {
			out[i+j] += pa * pb
		}
	}
	return out
}

// AddScaled returns the distribution of ma·A + mb·B for independent A and B.
// Subtraction is expressed with a negative multiplier.
//
// Precondition: ma and mb are non-zero.
func AddScaled(ma int, a *Distribution, mb int, b *Distribution) (*Distribution, error) {
	sa, err := a.Scale(ma)
	if err != nil {
		return nil, err
	}
	sb, err := b.Scale(mb)
	if err != nil {
		return nil, err
	}
	if width := sa.Len() + sb.Len() - 1; width > a.limits.MaxOutcomes {
		return nil, fmt.Errorf("%w: sum needs %d outcomes (max %d)",
			ErrResourceLimit, width, a.limits.MaxOutcomes)
	}
	return sa.Add(sb), nil
}

// RepeatSum returns the distribution of the sum of n independent draws from d,
// using O(log n) convolutions by repeated doubling.
//
// Precondition: n >= 0; RepeatSum(0) is the point mass at 0.
// Postcondition: support is [n·Min(), n·Max()], or ErrResourceLimit when that
// support would exceed Limits.MaxOutcomes.
func (d *Distribution) RepeatSum(n int) (*Distribution, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative repeat count %d", ErrInvalid, n)
	}
	if n == 0 {
		return d.point(0), nil
	}
	if _, ok := d.limits.span(n, len(d.masses)-1); !ok {
		return nil, fmt.Errorf("%w: %d draws exceed %d outcomes",
			ErrResourceLimit, n, d.limits.MaxOutcomes)
	}
	var result *Distribution
	base := d
	for n > 0 {
		if n&1 == 1 {
			if result == nil {
				result = base
			} else {
				result = result.Add(base)
			}
		}
		n >>= 1
		if n > 0 {
			base = base.Add(base)
		}
	}
	return result, nil
}

// GivenGE returns the distribution of X conditioned on X >= t.
func (d *Distribution) GivenGE(t int) (*Distribution, error) {
	return d.given(max(t, d.Min()), d.Max())
}

// GivenGT returns the distribution of X conditioned on X > t.
func (d *Distribution) GivenGT(t int) (*Distribution, error) { return d.GivenGE(t + 1) }

// GivenLE returns the distribution of X conditioned on X <= t.
func (d *Distribution) GivenLE(t int) (*Distribution, error) {
	return d.given(d.Min(), min(t, d.Max()))
}

// GivenLT returns the distribution of X conditioned on X < t.
func (d *Distribution) GivenLT(t int) (*Distribution, error) { return d.GivenLE(t - 1) }

func (d *Distribution) given(lo, hi int) (*Distribution, error) {
	if lo > hi {
		return nil, fmt.Errorf("%w: conditioning on [%d, %d] leaves no outcomes", ErrInvalid, lo, hi)
	}
	window := d.masses[lo-d.offset : hi-d.offset+1]
	var mass float64
	for _, p := range window {
		mass += p
	}
	if mass == 0 {
		return nil, fmt.Errorf("%w: conditioning on [%d, %d] has zero mass", ErrInvalid, lo, hi)
	}
	out := make([]float64, len(window))
	for i, p := range window {
		out[i] = p / mass
	}
	return derive(out, lo, d.incomplete, d.limits), nil
}

// String renders the distribution as "{v: p, ...}" over non-zero outcomes.
func (d *Distribution) String() string {
	s := "{"
	first := true
	for i, p := range d.masses {
		if p == 0 {
			continue
		}
		if !first {
			s += ", "
		}
		first = false
		s += fmt.Sprintf("%d: %.6g", d.offset+i, p)
	}
	return s + "}"
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
