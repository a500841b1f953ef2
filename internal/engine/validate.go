package engine

import (
	"github.com/cleared-dev/txengine/internal/model"
)

// validate applies the static checks and the duplicate-id check, in
// order. The first failing check wins.
func (e *Engine) validate(tx model.Transaction) error {
	// Amount presence.
	if tx.Type.MovesFunds() && !tx.Amount.Valid {
		return invalid("%s must have an amount", tx.Type)
	}
	if !tx.Type.MovesFunds() && tx.Amount.Valid {
		return invalid("%s must not have an amount", tx.Type)
	}

	// Positivity.
	if tx.Amount.Valid && !tx.Amount.Decimal.IsPositive() {
		return invalid("amount %s must be positive", tx.Amount.Decimal)
	}

	// Duplicate id.
	if tx.Type.MovesFunds() {
		if _, ok := e.history[tx.TX]; ok {
			return invalid("duplicate transaction id %d", tx.TX)
		}
	}

	return nil
}

// referenced looks up the deposit or withdrawal a dispute-family record
// points at and checks that it belongs to the same client.
func (e *Engine) referenced(tx model.Transaction) (model.Transaction, error) {
	orig, ok := e.history[tx.TX]
	if !ok {
		return model.Transaction{}, invalid("cannot %s unknown transaction %d", tx.Type, tx.TX)
	}
	if orig.Client != tx.Client {
		return model.Transaction{}, invalid("cannot %s transaction %d of client %d from client %d",
			tx.Type, tx.TX, orig.Client, tx.Client)
	}
	return orig, nil
}
