// Package rating models personal ratings: half-star steps on a 0-10 scale.
package rating

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	// Stars is the number of star glyphs in a rating widget.
	Stars = 10
	// Max is the highest rating value.
	Max = 10.0
	// Step is the rating granularity.
	Step = 0.5
)

// ErrInvalid indicates a value that is not a half step in [0.5, 10].
var ErrInvalid = errors.New("invalid rating")

// Rating is either unset or a half-step value in [0.5, 10].
// It is stored as a count of half steps (1..20), so the zero value is unset
// and an out-of-range value cannot be represented.
type Rating struct {
	halves uint8
}

// None is the unset rating.
var None = Rating{}

// New validates v and returns the matching Rating.
func New(v float64) (Rating, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return None, fmt.Errorf("%w: %v", ErrInvalid, v)
	}
	halves := v / Step
	if halves != math.Trunc(halves) || halves < 1 || halves > Max/Step {
		return None, fmt.Errorf("%w: %v", ErrInvalid, v)
	}
	return Rating{halves: uint8(halves)}, nil
}

// MustNew is New for constants; it panics on invalid input.
func MustNew(v float64) Rating {
	r, err := New(v)
	if err != nil {
		panic(err)
	}
	return r
}

// FromPtr converts a nullable float. nil yields None.
func FromPtr(v *float64) (Rating, error) {
	if v == nil {
		return None, nil
	}
	return New(*v)
}

// Parse reads a rating from user input. Empty, "none" and "null" mean unset.
func Parse(s string) (Rating, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "none", "null":
		return None, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return None, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return New(v)
}

// IsSet reports whether the rating has a value.
func (r Rating) IsSet() bool { return r.halves != 0 }

// Float returns the numeric value and whether it is set.
func (r Rating) Float() (float64, bool) {
	if r.halves == 0 {
		return 0, false
	}
	return float64(r.halves) * Step, true
}

// OrZero returns the numeric value, or 0 when unset.
func (r Rating) OrZero() float64 {
	v, _ := r.Float()
	return v
}

// Ptr returns the value as a nullable float.
func (r Rating) Ptr() *float64 {
	v, ok := r.Float()
	if !ok {
		return nil
	}
	return &v
}

func (r Rating) String() string {
	v, ok := r.Float()
	if !ok {
		return "none"
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// Quantize maps a pointer position within a star glyph to a rating.
// pos is the fraction across the glyph (clamped to [0, 1]); the left half
// selects starIndex+0.5 and the right half starIndex+1.
func Quantize(pos float64, starIndex int) Rating {
	if math.IsNaN(pos) || pos < 0 {
		pos = 0
	}
	if pos > 1 {
		pos = 1
	}
	starIndex = max(0, min(starIndex, Stars-1))

	halves := uint8(starIndex*2 + 2)
	if pos < 0.5 {
		halves--
	}
	return Rating{halves: halves}
}

// Toggle returns the rating after selecting proposed while current is stored.
// Selecting the stored value again clears it.
func Toggle(current, proposed Rating) Rating {
	if proposed == current {
		return None
	}
	return proposed
}

// MarshalJSON encodes an unset rating as null.
func (r Rating) MarshalJSON() ([]byte, error) {
	v, ok := r.Float()
	if !ok {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(v, 'f', -1, 64)), nil
}

// UnmarshalJSON accepts null or a half-step number.
func (r *Rating) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		*r = None
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, s)
	}
	parsed, err := New(v)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Scan implements sql.Scanner.
func (r *Rating) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = None
		return nil
	case float64:
		parsed, err := New(v)
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	case int64:
		parsed, err := New(float64(v))
		if err != nil {
			return err
		}
		*r = parsed
		return nil
	default:
		return fmt.Errorf("scan rating: unsupported type %T", src)
	}
}

// Value implements driver.Valuer.
func (r Rating) Value() (driver.Value, error) {
	v, ok := r.Float()
	if !ok {
		return nil, nil
	}
	return v, nil
}
