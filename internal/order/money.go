package order

import (
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Money is an amount in cents.
type Money int64

func Dollars(d float64) Money {
	return Money(math.Round(d * 100))
}

func ParseMoney(s string) (Money, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("parse money %q: %w", s, err)
	}
	return Dollars(f), nil
}

func (m Money) Float() float64 {
	return float64(m) / 100
}

// String formats the amount with two decimals and no currency sign.
func (m Money) String() string {
	sign := ""
	if m < 0 {
		sign, m = "-", -m
	}
	return fmt.Sprintf("%s%d.%02d", sign, m/100, m%100)
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Money) UnmarshalJSON(b []byte) error {
	v, err := ParseMoney(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m Money) MarshalYAML() (any, error) {
	return m.Float(), nil
}

func (m *Money) UnmarshalYAML(n *yaml.Node) error {
	v, err := ParseMoney(n.Value)
	if err != nil {
		return err
	}
	*m = v
	return nil
}
