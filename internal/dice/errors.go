package dice

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrConstruction is returned when a die, rule, bunch or expression is
	// built from invalid arguments. A successfully constructed object never
	// fails to roll.
	ErrConstruction = errors.New("dice: invalid construction")
	// ErrType is returned when a value of the wrong kind is supplied where an
	// integer or a range was required.
	ErrType = errors.New("dice: wrong value type")
)

// ToInt converts an integral value of any Go numeric kind to int.
//
// Postcondition: Returns ErrType for non-numeric values and for floats with a
// fractional part.
func ToInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int8:
		return int(n), nil
	case int16:
		return int(n), nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint8:
		return int(n), nil
	case uint16:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	default:
		return 0, fmt.Errorf("%w: expected an integer, got %T", ErrType, v)
	}
}

func floatToInt(f float64) (int, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("%w: %v is not integral", ErrType, f)
	}
	return int(f), nil
}
