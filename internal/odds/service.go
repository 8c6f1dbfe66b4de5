// Package odds answers probability questions about dice notation, caching
// computed distributions in a Store.
package odds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/diceodds/internal/config"
	"github.com/cory-johannsen/diceodds/internal/dice"
	"github.com/cory-johannsen/diceodds/internal/dice/probability"
	"github.com/cory-johannsen/diceodds/internal/observability"
)

// Report is the answer to one odds query.
type Report struct {
	// Notation is the canonical form of the queried expression.
	Notation     string
	Distribution *probability.Distribution
	// Cached reports whether the distribution came from the Store.
	Cached bool
}

// Service computes distributions for notation strings with a read-through
// cache. Store failures degrade to recomputation and are logged, never
// returned.
type Service struct {
	store  Store
	logger *zap.Logger
	cfg    config.ProbabilityConfig
	opts   []dice.Option
}

// NewService builds a Service.
//
// Precondition: logger must be non-nil; a nil store caches nothing.
func NewService(store Store, logger *zap.Logger, cfg config.ProbabilityConfig) *Service {
	if store == nil {
		store = NopStore{}
	}
	return &Service{
		store:  store,
		logger: logger,
		cfg:    cfg,
		opts:   DiceOptions(cfg),
	}
}

// DiceOptions converts probability settings into dice options.
func DiceOptions(cfg config.ProbabilityConfig) []dice.Option {
	return []dice.Option{
		dice.WithMaxDepth(cfg.MaxDepth),
		dice.WithEpsilon(cfg.Epsilon),
		dice.WithLimits(probability.Limits{
			MaxOutcomes: cfg.MaxOutcomes,
			MaxKeepDice: cfg.MaxKeepDice,
		}),
		dice.WithMaxDice(cfg.MaxDice),
	}
}

// Options returns the dice options the service builds expressions with.
func (s *Service) Options() []dice.Option { return s.opts }

// key scopes the canonical notation by the truncation settings, which change
// the computed masses of open-ended rerolls.
func (s *Service) key(notation string) string {
	return fmt.Sprintf("%s@%d:%g", notation, s.cfg.MaxDepth, s.cfg.Epsilon)
}

// Odds returns the distribution of text.
//
// Postcondition: Returns notation.ErrSyntax, dice.ErrConstruction or
// probability.ErrResourceLimit wrapped errors; Store errors are not returned.
func (s *Service) Odds(ctx context.Context, text string) (Report, error) {
	expr, err := dice.Parse(text, s.opts...)
	if err != nil {
		return Report{}, err
	}
	report := Report{Notation: expr.Notation()}
	key := s.key(report.Notation)

	d, err := s.store.Get(ctx, key)
	switch {
	case err == nil:
		s.logger.Debug("odds cache hit", zap.String("notation", report.Notation))
		report.Distribution, report.Cached = d, true
		return report, nil
	case errors.Is(err, ErrNotFound):
		s.logger.Debug("odds cache miss", zap.String("notation", report.Notation))
	default:
		s.logger.Warn("odds cache read failed", zap.String("notation", report.Notation), zap.Error(err))
	}

	start := time.Now()
	d, err = expr.Probabilities()
	if err != nil {
		return Report{}, err
	}
	s.logger.Info("odds computed",
		zap.String("notation", report.Notation),
		zap.Int("outcomes", d.Len()),
		observability.Elapsed(start),
	)
	if d.Incomplete() {
		s.logger.Warn("incomplete distribution",
			zap.String("notation", report.Notation),
			zap.Float64("total_mass", d.TotalMass()),
		)
	}

	if err := s.store.Put(ctx, key, d); err != nil {
		s.logger.Warn("odds cache write failed", zap.String("notation", report.Notation), zap.Error(err))
	}
	report.Distribution = d
	return report, nil
}

// P returns the probability that text rolls a value v with "v op target".
//
// Precondition: op is a comparison operator; OpIn is rejected.
func (s *Service) P(ctx context.Context, text string, op dice.Operator, target int) (float64, error) {
	report, err := s.Odds(ctx, text)
	if err != nil {
		return 0, err
	}
	d := report.Distribution
	switch op {
	case dice.OpEq:
		return d.PEq(target), nil
	case dice.OpNe:
		return 1 - d.PEq(target), nil
	case dice.OpGt:
		return d.PGt(target), nil
	case dice.OpGe:
		return d.PGe(target), nil
	case dice.OpLt:
		return d.PLt(target), nil
	case dice.OpLe:
		return d.PLe(target), nil
	}
	return 0, fmt.Errorf("%w: operator %s needs a single target", dice.ErrConstruction, op)
}
