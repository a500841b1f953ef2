// Package engine replays an ordered stream of transactions against client
// accounts. Records that fail validation or an account check are reported
// and skipped; only errors from the stream itself stop a run.
package engine

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/cleared-dev/txengine/internal/account"
	"github.com/cleared-dev/txengine/internal/model"
)

// Source yields transactions in arrival order. Next returns io.EOF once
// the stream is exhausted; any other error is fatal to the run.
type Source interface {
	Next() (model.Transaction, error)
}

// Rejection describes a record that was skipped.
type Rejection struct {
	Seq         int // 1-based position in the stream
	Transaction model.Transaction
	Err         error
}

// Stats summarizes a Process call.
type Stats struct {
	Applied  int
	Rejected int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the diagnostic logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithRejectHandler registers a callback invoked once per skipped record.
func WithRejectHandler(fn func(Rejection)) Option {
	return func(e *Engine) { e.onReject = fn }
}

// Engine owns all account state and the deposit/withdrawal history for a
// single run. It is not safe for concurrent use.
type Engine struct {
	accounts map[uint16]*account.Account
	history  map[uint32]model.Transaction
	log      *zap.Logger
	onReject func(Rejection)
	seq      int
}

// New creates an empty Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		accounts: make(map[uint16]*account.Account),
		history:  make(map[uint32]model.Transaction),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Process consumes src until io.EOF. Rejected records are logged and
// skipped. An error from src aborts the run and is returned wrapped.
func (e *Engine) Process(src Source) (Stats, error) {
	var stats Stats
	for {
		tx, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("reading record %d: %w", e.seq+1, err)
		}

		if err := e.Apply(tx); err != nil {
			stats.Rejected++
			continue
		}
		stats.Applied++
	}

	e.log.Info("replay finished",
		zap.Int("applied", stats.Applied),
		zap.Int("rejected", stats.Rejected),
		zap.Int("accounts", len(e.accounts)),
	)
	return stats, nil
}

// Apply validates and applies a single record. A non-nil error means the
// record was rejected and left no trace in the engine state; it has
// already been reported.
func (e *Engine) Apply(tx model.Transaction) error {
	e.seq++
	err := e.validate(tx)
	if err == nil {
		err = e.dispatch(tx)
	}
	if err != nil {
		e.reject(tx, err)
	}
	return err
}

func (e *Engine) dispatch(tx model.Transaction) error {
	switch tx.Type {
	case model.TypeDeposit:
		if err := e.getOrCreate(tx.Client).Deposit(tx.Amount.Decimal); err != nil {
			return err
		}
		e.history[tx.TX] = tx
	case model.TypeWithdrawal:
		if err := e.getOrCreate(tx.Client).Withdraw(tx.Amount.Decimal); err != nil {
			return err
		}
		e.history[tx.TX] = tx
	case model.TypeDispute:
		return e.dispute(tx)
	case model.TypeResolve:
		acct, err := e.disputeTarget(tx)
		if err != nil {
			return err
		}
		return acct.Resolve(tx.TX)
	case model.TypeChargeback:
		acct, err := e.disputeTarget(tx)
		if err != nil {
			return err
		}
		return acct.Chargeback(tx.TX)
	default:
		return invalid("unknown transaction type %q", tx.Type)
	}
	return nil
}

func (e *Engine) dispute(tx model.Transaction) error {
	orig, err := e.referenced(tx)
	if err != nil {
		return err
	}
	if orig.Type != model.TypeDeposit {
		return invalid("only deposits can be disputed, transaction %d is a %s", tx.TX, orig.Type)
	}
	acct, ok := e.accounts[tx.Client]
	if !ok {
		return ErrUnknownAccount
	}

	requested := orig.Amount.Decimal
	held, err := acct.Dispute(tx.TX, requested)
	if err != nil {
		return err
	}
	if held.LessThan(requested) {
		e.log.Info("dispute held less than the disputed amount",
			zap.Uint16("client", tx.Client),
			zap.Uint32("tx", tx.TX),
			zap.String("requested", requested.String()),
			zap.String("held", held.String()),
		)
	}
	return nil
}

// disputeTarget resolves the account a resolve or chargeback applies to.
func (e *Engine) disputeTarget(tx model.Transaction) (*account.Account, error) {
	if _, err := e.referenced(tx); err != nil {
		return nil, err
	}
	acct, ok := e.accounts[tx.Client]
	if !ok {
		return nil, ErrUnknownAccount
	}
	return acct, nil
}

func (e *Engine) getOrCreate(client uint16) *account.Account {
	acct, ok := e.accounts[client]
	if !ok {
		acct = account.New(client)
		e.accounts[client] = acct
	}
	return acct
}

func (e *Engine) reject(tx model.Transaction, err error) {
	e.log.Warn("skipping transaction",
		zap.Int("seq", e.seq),
		zap.String("type", string(tx.Type)),
		zap.Uint16("client", tx.Client),
		zap.Uint32("tx", tx.TX),
		zap.Error(err),
	)
	if e.onReject != nil {
		e.onReject(Rejection{Seq: e.seq, Transaction: tx, Err: err})
	}
}

// Account returns the current full-precision state of a client account.
func (e *Engine) Account(client uint16) (model.Balance, bool) {
	acct, ok := e.accounts[client]
	if !ok {
		return model.Balance{}, false
	}
	return acct.Balance(), true
}

// Balances returns one row per known account, ascending by client id,
// with amounts rounded to places for display. Stored state keeps full
// precision.
func (e *Engine) Balances(places int32) []model.Balance {
	out := make([]model.Balance, 0, len(e.accounts))
	for _, acct := range e.accounts {
		out = append(out, acct.Balance().Rounded(places))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Client < out[j].Client })
	return out
}
