package dice

import "github.com/cory-johannsen/diceodds/internal/dice/probability"

// Bounds on reroll expansion when computing a die's distribution.
const (
	DefaultMaxDepth = 20
	DefaultEpsilon  = 1e-16
)

// DefaultMaxDice caps the dice count of one Bunch.
const DefaultMaxDice = 100_000

// Options tunes probability computation and bounds construction.
type Options struct {
	// MaxDepth is the largest number of rerolls followed on one branch.
	MaxDepth int
	// Epsilon abandons branches whose probability falls below it.
	Epsilon float64
	// Limits bounds derived distributions.
	Limits probability.Limits
	// MaxDice is the largest dice count NewBunch accepts.
	MaxDice int
}

// Option customizes Options.
type Option func(*Options)

// WithMaxDepth sets Options.MaxDepth.
func WithMaxDepth(n int) Option { return func(o *Options) { o.MaxDepth = n } }

// WithEpsilon sets Options.Epsilon.
func WithEpsilon(eps float64) Option { return func(o *Options) { o.Epsilon = eps } }

// WithLimits sets Options.Limits.
func WithLimits(l probability.Limits) Option { return func(o *Options) { o.Limits = l } }

// WithMaxDice sets Options.MaxDice.
func WithMaxDice(n int) Option { return func(o *Options) { o.MaxDice = n } }

func newOptions(opts []Option) Options {
	o := Options{
		MaxDepth: DefaultMaxDepth,
		Epsilon:  DefaultEpsilon,
		Limits:   probability.DefaultLimits,
		MaxDice:  DefaultMaxDice,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.MaxDepth < 0 {
		o.MaxDepth = 0
	}
	if o.MaxDice < 1 {
		o.MaxDice = DefaultMaxDice
	}
	return o
}

func (o Options) maxOutcomes() int {
	if o.Limits.MaxOutcomes < 1 {
		return probability.DefaultLimits.MaxOutcomes
	}
	return o.Limits.MaxOutcomes
}

func (o Options) probabilityOptions() []probability.Option {
	return []probability.Option{probability.WithLimits(o.Limits)}
}
