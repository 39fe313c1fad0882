// Package money provides the monetary value type shared by all workflows.
package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/questline/storefront/internal/app/apperr"
)

// Money is an immutable amount in a single ISO 4217 currency. The amount is
// always rounded to two decimal places at construction; arithmetic between
// differing currencies fails.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// New builds a Money value from a decimal amount and a currency code.
func New(amount decimal.Decimal, code string) (Money, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Money{}, apperr.Validationf("currency is required")
	}
	if _, err := currency.ParseISO(code); err != nil {
		return Money{}, apperr.Validationf("currency %s is not a valid ISO 4217 code", code)
	}
	if amount.IsNegative() {
		return Money{}, apperr.Validationf("amount must not be negative")
	}
	return Money{Amount: amount.Round(2), Currency: code}, nil
}

// Parse builds a Money value from a decimal string such as "29.99".
func Parse(amount, code string) (Money, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return Money{}, apperr.Validationf("amount is required")
	}
	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, apperr.Validationf("amount %q is not a valid decimal", amount)
	}
	return New(dec, code)
}

// MustParse is a test and seed helper that panics on invalid input.
func MustParse(amount, code string) Money {
	m, err := Parse(amount, code)
	if err != nil {
		panic(err)
	}
	return m
}

// Positive reports whether the amount is strictly greater than zero.
func (m Money) Positive() bool { return m.Amount.IsPositive() }

// IsZero reports whether the value is the zero Money.
func (m Money) IsZero() bool { return m.Currency == "" && m.Amount.IsZero() }

// Add returns the sum of two amounts in the same currency.
func (m Money) Add(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount.Add(other.Amount).Round(2), Currency: m.Currency}, nil
}

// Sub returns the difference of two amounts in the same currency. A negative
// result is rejected.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.sameCurrency(other); err != nil {
		return Money{}, err
	}
	result := m.Amount.Sub(other.Amount).Round(2)
	if result.IsNegative() {
		return Money{}, apperr.Validationf("subtraction result must not be negative")
	}
	return Money{Amount: result, Currency: m.Currency}, nil
}

// Cmp compares two amounts in the same currency. It returns -1, 0 or 1.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.sameCurrency(other); err != nil {
		return 0, err
	}
	return m.Amount.Cmp(other.Amount), nil
}

// Equal reports whether two values have the same currency and amount.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

func (m Money) String() string {
	return m.Amount.StringFixed(2) + " " + m.Currency
}

func (m Money) sameCurrency(other Money) error {
	if m.Currency != other.Currency {
		return apperr.Validationf("currency mismatch: %s vs %s", m.Currency, other.Currency)
	}
	return nil
}
