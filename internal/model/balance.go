package model

import "github.com/shopspring/decimal"

// Balance is one output row: the final state of a client account.
type Balance struct {
	Client    uint16
	Available decimal.Decimal
	Held      decimal.Decimal
	Total     decimal.Decimal
	Locked    bool
}

// Rounded returns a copy with the amounts rounded to places using
// banker's rounding. The receiver is left untouched.
func (b Balance) Rounded(places int32) Balance {
	return Balance{
		Client:    b.Client,
		Available: b.Available.RoundBank(places),
		Held:      b.Held.RoundBank(places),
		Total:     b.Total.RoundBank(places),
		Locked:    b.Locked,
	}
}
