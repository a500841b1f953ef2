// Package account holds the per-client balance state machine.
package account

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/txengine/internal/model"
)

var (
	ErrAccountLocked              = errors.New("account is locked")
	ErrInsufficientFunds          = errors.New("insufficient funds")
	ErrTransactionAlreadyDisputed = errors.New("transaction already disputed")
	ErrTransactionNotDisputed     = errors.New("transaction not disputed")
)

// Account tracks one client's funds. Every method either applies in full
// or returns an error and leaves the account unchanged.
type Account struct {
	client    uint16
	available decimal.Decimal
	held      decimal.Decimal
	total     decimal.Decimal
	locked    bool
	disputed  map[uint32]decimal.Decimal // open disputes: tx -> held amount
}

// New returns an empty, unlocked account.
func New(client uint16) *Account {
	return &Account{
		client:   client,
		disputed: make(map[uint32]decimal.Decimal),
	}
}

func (a *Account) Client() uint16             { return a.client }
func (a *Account) Available() decimal.Decimal { return a.available }
func (a *Account) Held() decimal.Decimal      { return a.held }
func (a *Account) Total() decimal.Decimal     { return a.total }
func (a *Account) Locked() bool               { return a.locked }

// Disputed reports whether tx has an open dispute and the amount held for it.
func (a *Account) Disputed(tx uint32) (decimal.Decimal, bool) {
	amt, ok := a.disputed[tx]
	return amt, ok
}

// Deposit credits amount to the available balance. amount must be
// positive; the caller validates it.
func (a *Account) Deposit(amount decimal.Decimal) error {
	if a.locked {
		return ErrAccountLocked
	}
	a.available = a.available.Add(amount)
	a.total = a.total.Add(amount)
	return nil
}

// Withdraw debits amount from the available balance. amount must be
// positive; the caller validates it.
func (a *Account) Withdraw(amount decimal.Decimal) error {
	if a.locked {
		return ErrAccountLocked
	}
	if a.available.LessThan(amount) {
		return ErrInsufficientFunds
	}
	a.available = a.available.Sub(amount)
	a.total = a.total.Sub(amount)
	return nil
}

// Dispute moves amount from available to held for tx. If part of the
// disputed funds has already left the account, only what is still
// available gets held. Returns the amount actually held.
func (a *Account) Dispute(tx uint32, amount decimal.Decimal) (decimal.Decimal, error) {
	if a.locked {
		return decimal.Zero, ErrAccountLocked
	}
	if _, ok := a.disputed[tx]; ok {
		return decimal.Zero, ErrTransactionAlreadyDisputed
	}

	if a.available.LessThan(amount) {
		amount = a.available
	}

	a.available = a.available.Sub(amount)
	a.held = a.held.Add(amount)
	a.disputed[tx] = amount
	return amount, nil
}

// Resolve releases the funds held for tx back to available.
func (a *Account) Resolve(tx uint32) error {
	if a.locked {
		return ErrAccountLocked
	}
	amount, ok := a.disputed[tx]
	if !ok {
		return ErrTransactionNotDisputed
	}

	a.held = a.held.Sub(amount)
	a.available = a.available.Add(amount)
	delete(a.disputed, tx)
	return nil
}

// Chargeback removes the funds held for tx and locks the account.
// It does not check the lock so that an open dispute can always be
// charged back.
func (a *Account) Chargeback(tx uint32) error {
	amount, ok := a.disputed[tx]
	if !ok {
		return ErrTransactionNotDisputed
	}

	a.held = a.held.Sub(amount)
	a.total = a.total.Sub(amount)
	a.locked = true
	delete(a.disputed, tx)
	return nil
}

// Balance returns the account's current state at full precision.
func (a *Account) Balance() model.Balance {
	return model.Balance{
		Client:    a.Client(),
		Available: a.available,
		Held:      a.held,
		Total:     a.total,
		Locked:    a.locked,
	}
}
