package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// FlexDecimal is a percentage that decodes from a JSON number, a numeric string,
// or a string with a trailing percent sign ("37.5%"). Empty strings decode to zero.
type FlexDecimal struct {
	decimal.Decimal
}

// UnmarshalJSON implements the json.Unmarshaler interface.
func (f *FlexDecimal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		f.Decimal = decimal.Zero
		return nil
	}

	if data[0] != '"' {
		d, err := decimal.NewFromString(string(data))
		if err != nil {
			return fmt.Errorf("FlexDecimal: invalid number %s: %w", data, err)
		}
		f.Decimal = d
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("FlexDecimal: %w", err)
	}
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		f.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("FlexDecimal: invalid decimal string %q: %w", s, err)
	}
	f.Decimal = d
	return nil
}

// MarshalJSON writes the value as a JSON number.
func (f FlexDecimal) MarshalJSON() ([]byte, error) {
	return []byte(f.Decimal.String()), nil
}

// NewFlexDecimal wraps a float for tests and fixtures.
func NewFlexDecimal(v float64) FlexDecimal {
	return FlexDecimal{Decimal: decimal.NewFromFloat(v)}
}
