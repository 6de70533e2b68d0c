// Package budget provides fixed-point money arithmetic for plan costs, budget
// caps, and cumulative spend. Remaining budget is clamped at zero and a
// step that does not fit is blocked outright.
package budget

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Amount is a quantity of abstract currency in millionths of a unit. Fixed
// point keeps cap/spend comparisons exact: 0.10 spent against a 0.10 cap
// leaves exactly zero.
type Amount int64

// Unit is one whole currency unit.
const Unit Amount = 1_000_000

var ErrInvalidAmount = errors.New("budget: invalid amount")

// Parse reads a decimal string such as "5.00" or "0.0025".
func Parse(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	neg := false
	if s[0] == '-' {
		neg = true
		s = s[1:]
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > 6 {
		return 0, fmt.Errorf("%w: %q has more than 6 decimal places", ErrInvalidAmount, s)
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	var f int64
	if frac != "" {
		f, err = strconv.ParseInt(frac+strings.Repeat("0", 6-len(frac)), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
		}
	}
	a := Amount(w)*Unit + Amount(f)
	if neg {
		a = -a
	}
	return a, nil
}

// MustParse is Parse for constants in tables and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// FromFloat rounds a float to the nearest micro-unit.
func FromFloat(f float64) Amount {
	if f < 0 {
		return -FromFloat(-f)
	}
	return Amount(f*float64(Unit) + 0.5)
}

// Float returns the amount as a float for display math.
func (a Amount) Float() float64 {
	return float64(a) / float64(Unit)
}

// String formats with at least two decimals, keeping any significant
// sub-cent digits ("5.00", "0.0025").
func (a Amount) String() string {
	sign := ""
	if a < 0 {
		sign = "-"
		a = -a
	}
	frac := strconv.FormatInt(int64(a%Unit)+int64(Unit), 10)[1:]
	frac = strings.TrimRight(frac, "0")
	for len(frac) < 2 {
		frac += "0"
	}
	return fmt.Sprintf("%s%d.%s", sign, a/Unit, frac)
}

// MarshalJSON encodes the amount as a decimal string.
func (a Amount) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a decimal string or a JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("%w: %s", ErrInvalidAmount, data)
		}
		s = n.String()
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// MarshalText lets YAML and other text codecs carry the decimal form.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText parses the decimal form.
func (a *Amount) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Remaining returns cap minus spent, clamped at zero.
func Remaining(cap, spent Amount) Amount {
	r := cap - spent
	if r < 0 {
		return 0
	}
	return r
}

// Sum adds amounts.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}
