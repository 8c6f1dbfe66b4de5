package dice

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/diceodds/internal/dice/probability"
)

// RollResult holds the audit trail for one roll of an Expression.
//
// Postcondition: Total == the expression's Result() right after the roll.
type RollResult struct {
	ID          uuid.UUID
	Notation    string // canonical notation, e.g. "4d6k:3,best."
	Total       int
	Explanation string
}

// String returns a human-readable audit string in the format:
//
//	"1d6+2 → 4 + 2 = 6"
//
// Precondition: r.Notation is non-empty.
func (r RollResult) String() string {
	if r.Notation == "" {
		panic("dice: RollResult.String() precondition violated: Notation must be non-empty")
	}
	return fmt.Sprintf("%s → %s", r.Notation, r.Explanation)
}

// Roller wraps a Source and logger to provide logged dice rolling and odds.
// All rolls are logged at debug level with notation, roll ID, total and
// explanation.
type Roller struct {
	src    Source
	logger *zap.Logger
	opts   []Option
}

// NewLoggedRoller creates a Roller that rolls with src and logs each roll to logger.
//
// Precondition: src and logger must be non-nil.
func NewLoggedRoller(src Source, logger *zap.Logger, opts ...Option) *Roller {
	return &Roller{src: src, logger: logger, opts: opts}
}

// Roll rolls expr and logs the result at debug level.
//
// Precondition: expr must be non-nil.
// Postcondition: result logged with a fresh roll ID.
func (r *Roller) Roll(expr *Expression) RollResult {
	total := expr.Roll(r.src)
	result := RollResult{
		ID:          uuid.New(),
		Notation:    expr.String(),
		Total:       total,
		Explanation: expr.Explain(),
	}
	r.logger.Debug("dice roll",
		zap.String("notation", result.Notation),
		zap.String("roll_id", result.ID.String()),
		zap.Int("total", result.Total),
		zap.String("explanation", result.Explanation),
	)
	return result
}

// RollExpr parses text and rolls it, logging the result.
//
// Precondition: text must be valid dice notation.
// Postcondition: Returns a RollResult or a parse/construction error.
func (r *Roller) RollExpr(text string) (RollResult, error) {
	e, err := Parse(text, r.opts...)
	if err != nil {
		return RollResult{}, err
	}
	return r.Roll(e), nil
}

// Odds parses text and returns its distribution. Incomplete distributions are
// logged at warn.
func (r *Roller) Odds(text string) (*probability.Distribution, error) {
	e, err := Parse(text, r.opts...)
	if err != nil {
		return nil, err
	}
	d, err := e.Probabilities()
	if err != nil {
		r.logger.Warn("odds computation failed", zap.String("notation", e.String()), zap.Error(err))
		return nil, err
	}
	if d.Incomplete() {
		r.logger.Warn("incomplete distribution",
			zap.String("notation", e.String()),
			zap.Float64("total_mass", d.TotalMass()),
		)
	}
	return d, nil
}
