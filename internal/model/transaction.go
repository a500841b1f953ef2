package model

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TransactionType identifies what a record in the input stream does.
type TransactionType string

const (
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeDispute    TransactionType = "dispute"
	TypeResolve    TransactionType = "resolve"
	TypeChargeback TransactionType = "chargeback"
)

// ParseTransactionType matches s case-insensitively against the known types.
func ParseTransactionType(s string) (TransactionType, error) {
	t := TransactionType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case TypeDeposit, TypeWithdrawal, TypeDispute, TypeResolve, TypeChargeback:
		return t, nil
	}
	return "", fmt.Errorf("unknown transaction type %q", s)
}

// MovesFunds reports whether the type carries its own amount
// (deposit and withdrawal).
func (t TransactionType) MovesFunds() bool {
	return t == TypeDeposit || t == TypeWithdrawal
}

// Transaction is one record from the input stream.
type Transaction struct {
	Type   TransactionType
	Client uint16
	TX     uint32
	Amount decimal.NullDecimal // only valid for deposit/withdrawal
}
