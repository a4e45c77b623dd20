package types

import (
	"bytes"
	"fmt"

	"github.com/shopspring/decimal"
)

const moneyPlaces = 2

// Money is a monetary amount held at exactly two decimal places. It marshals as a bare
// JSON number ("12.50", never "12.5" or "\"12.50\"").
type Money struct {
	value decimal.Decimal
}

// NewMoney rounds d half away from zero to two places.
func NewMoney(d decimal.Decimal) Money {
	return Money{value: d.Round(moneyPlaces)}
}

func MoneyFromFloat(f float64) Money {
	return NewMoney(decimal.NewFromFloat(f))
}

// ParseMoney accepts a numeric string such as "1,234.5" or " 99.999 ".
func ParseMoney(raw string) (Money, error) {
	d, err := ParseDecimal(raw)
	if err != nil {
		return Money{}, err
	}
	return NewMoney(d), nil
}

func (m Money) Decimal() decimal.Decimal {
	return m.value
}

func (m Money) Float64() float64 {
	return m.value.InexactFloat64()
}

func (m Money) IsZero() bool {
	return m.value.IsZero()
}

func (m Money) Add(other Money) Money {
	return NewMoney(m.value.Add(other.value))
}

func (m Money) String() string {
	return m.value.StringFixed(moneyPlaces)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	d, err := unmarshalDecimal(data)
	if err != nil {
		return fmt.Errorf("money: %w", err)
	}
	*m = NewMoney(d)
	return nil
}

// Number is an unrounded decimal (quantities, tax rates) that marshals as a bare JSON number.
type Number struct {
	value decimal.Decimal
}

func NewNumber(d decimal.Decimal) Number {
	return Number{value: d}
}

func NumberFromFloat(f float64) Number {
	return Number{value: decimal.NewFromFloat(f)}
}

func (n Number) Decimal() decimal.Decimal {
	return n.value
}

func (n Number) Float64() float64 {
	return n.value.InexactFloat64()
}

func (n Number) String() string {
	return n.value.String()
}

func (n Number) MarshalJSON() ([]byte, error) {
	return []byte(n.value.String()), nil
}

func (n *Number) UnmarshalJSON(data []byte) error {
	d, err := unmarshalDecimal(data)
	if err != nil {
		return fmt.Errorf("number: %w", err)
	}
	n.value = d
	return nil
}

func unmarshalDecimal(data []byte) (decimal.Decimal, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return decimal.Zero, nil
	}
	trimmed = bytes.Trim(trimmed, `"`)
	return ParseDecimal(string(trimmed))
}
