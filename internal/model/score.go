package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ScorePlaces is the fixed precision used whenever a score leaves the process.
const ScorePlaces = 2

// Score is a fixed-point amount. It serializes as a string with exactly two
// decimal places so clients never round-trip it through a binary float.
type Score struct {
	decimal.Decimal
}

// NewScore wraps a decimal value.
func NewScore(d decimal.Decimal) Score {
	return Score{Decimal: d}
}

// ScoreFromInt is a convenience for whole-point weights.
func ScoreFromInt(n int64) Score {
	return Score{Decimal: decimal.NewFromInt(n)}
}

// ParseScore parses a numeric string such as the text form of a NUMERIC column.
func ParseScore(s string) (Score, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Score{}, fmt.Errorf("parse score %q: %w", s, err)
	}
	return Score{Decimal: d}, nil
}

// Fixed returns the two-decimal text form.
func (s Score) Fixed() string {
	return s.StringFixed(ScorePlaces)
}

// MarshalJSON implements json.Marshaler.
func (s Score) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.Fixed() + `"`), nil
}

// UnmarshalJSON accepts both quoted and bare numbers.
func (s *Score) UnmarshalJSON(b []byte) error {
	return s.Decimal.UnmarshalJSON(b)
}
