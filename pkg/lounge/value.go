package lounge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Value is a wire field kept verbatim. The service is inconsistent about
// whether numbers and booleans are JSON strings or literals, so both decode to
// the same text and interpretation is left to the accessors.
type Value string

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*v = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value(s)
		return nil
	}
	if data[0] == '{' || data[0] == '[' {
		return fmt.Errorf("lounge: unexpected %s for scalar field", data[:1])
	}
	*v = Value(data)
	return nil
}

// String returns the raw text.
func (v Value) String() string { return string(v) }

// IsZero reports whether the field was absent or empty.
func (v Value) IsZero() bool { return v == "" }

// Float parses the value as a float64.
func (v Value) Float() (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrNumericParse, string(v), err)
	}
	return f, nil
}

// FloatOr parses the value, returning def when empty. Parse failures are
// still reported.
func (v Value) FloatOr(def float64) (float64, error) {
	if v.IsZero() {
		return def, nil
	}
	return v.Float()
}

// Int parses the value as an integer. Fractional encodings such as "50.0"
// are accepted and truncated.
func (v Value) Int() (int64, error) {
	s := strings.TrimSpace(string(v))
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrNumericParse, string(v), err)
	}
	return int64(f), nil
}

// Bool parses "true"/"false" (any case) and "1"/"0".
func (v Value) Bool() (bool, error) {
	b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(string(v))))
	if err != nil {
		return false, fmt.Errorf("%w: %q is not a boolean", ErrNumericParse, string(v))
	}
	return b, nil
}
