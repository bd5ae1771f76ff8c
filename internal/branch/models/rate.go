package models

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"

	dErrors "branchrate/pkg/domain-errors"
)

// Rate is a non-negative decimal percentage. It keeps the exact precision it
// was parsed with: the value shown in a preview is the value written.
type Rate struct {
	d decimal.Decimal
}

// Bounds on the decimal representation. A rate is a percentage; these keep
// the textual form short however the input is written.
const (
	maxRateDigits   = 30
	maxRateExponent = 20
)

// ParseRate validates raw user input. Empty, unparseable, negative and
// out-of-range input fails with CodeInvalidRate.
func ParseRate(raw string) (Rate, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Rate{}, dErrors.New(dErrors.CodeInvalidRate, "rate is required")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return Rate{}, dErrors.Wrap(err, dErrors.CodeInvalidRate, "rate must be a decimal number")
	}
	return RateFromDecimal(d)
}

// MustParseRate is ParseRate for literals known to be valid.
func MustParseRate(raw string) Rate {
	r, err := ParseRate(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// RateFromDecimal wraps d, rejecting negative and out-of-range values.
func RateFromDecimal(d decimal.Decimal) (Rate, error) {
	if d.IsNegative() {
		return Rate{}, dErrors.New(dErrors.CodeInvalidRate, "rate must not be negative")
	}
	if exp := d.Exponent(); exp > maxRateExponent || exp < -maxRateExponent {
		return Rate{}, dErrors.New(dErrors.CodeInvalidRate, "rate is out of range")
	}
	if d.NumDigits() > maxRateDigits {
		return Rate{}, dErrors.New(dErrors.CodeInvalidRate, "rate has too many digits")
	}
	return Rate{d: d}, nil
}

func (r Rate) Decimal() decimal.Decimal {
	return r.d
}

// String is the wire form; it round-trips through ParseRate.
func (r Rate) String() string {
	return r.d.String()
}

// Display renders the rate with two decimals, e.g. "5.25%".
func (r Rate) Display() string {
	return r.d.StringFixed(2) + "%"
}

// Equal compares numerically, so 6 and 6.0 are equal.
func (r Rate) Equal(other Rate) bool {
	return r.d.Equal(other.d)
}

func (r Rate) MarshalJSON() ([]byte, error) {
	return []byte(r.d.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal.
func (r *Rate) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidRate, "rate must be a decimal number")
		}
	}
	if raw == "null" || strings.TrimSpace(raw) == "" {
		*r = Rate{}
		return nil
	}
	parsed, err := ParseRate(raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
