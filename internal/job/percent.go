package job

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Percent is a raw percentage as received on the wire. Valid is false when
// the value was absent, null, NaN or not a JSON number.
type Percent struct {
	Value float64
	Valid bool
}

// Pct builds a valid Percent.
func Pct(v float64) Percent {
	return Percent{Value: v, Valid: !math.IsNaN(v)}
}

func (p *Percent) UnmarshalJSON(b []byte) error {
	*p = Percent{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || b[0] == 'n' {
		return nil
	}
	// strings, booleans, objects and arrays are accepted and treated as
	// non-numeric so a single bad field never rejects the whole record
	if b[0] != '-' && (b[0] < '0' || b[0] > '9') {
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil && !isRangeErr(err) {
		return nil
	}
	*p = Pct(v)
	return nil
}

func (p Percent) MarshalJSON() ([]byte, error) {
	if !p.Valid || math.IsInf(p.Value, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value)
}

// Clamp applies ClampPercent, mapping invalid values to 0.
func (p Percent) Clamp() int {
	if !p.Valid {
		return 0
	}
	return ClampPercent(p.Value)
}

// ClampPercent rounds v to the nearest integer and then clamps it into
// [0, 100]. NaN yields 0.
func ClampPercent(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	r := math.Round(v)
	if r <= 0 {
		return 0
	}
	if r >= 100 {
		return 100
	}
	return int(r)
}

func isRangeErr(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}
