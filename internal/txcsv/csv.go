// Package txcsv reads transaction records and writes account balances
// in CSV form.
package txcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/txengine/internal/model"
)

// InputHeader is the expected header of a transactions file.
const InputHeader = "type,client,tx,amount"

// OutputHeader is the header written before account balances.
const OutputHeader = "client,available,held,total,locked"

const (
	colType   = 0
	colClient = 1
	colTX     = 2
	colAmount = 3

	minFields = 3 // amount may be omitted for dispute/resolve/chargeback
	maxFields = 4

	maxAmountScale = 28

	colOutClient    = 0
	colOutAvailable = 1
	colOutHeld      = 2
	colOutTotal     = 3
	colOutLocked    = 4
	numOutFields    = 5
)

// ParseError reports a row that could not be turned into a Transaction.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Reader streams transactions from a CSV file one row at a time.
type Reader struct {
	cr         *csv.Reader
	headerSeen bool
}

// NewReader returns a Reader over r. The first row must be the header.
func NewReader(r io.Reader) *Reader {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true
	return &Reader{cr: cr}
}

// Next returns the next transaction, or io.EOF at the end of input.
func (r *Reader) Next() (model.Transaction, error) {
	if !r.headerSeen {
		if err := r.readHeader(); err != nil {
			return model.Transaction{}, err
		}
	}

	rec, err := r.cr.Read()
	if err == io.EOF {
		return model.Transaction{}, io.EOF
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("reading transactions CSV: %w", err)
	}

	line, _ := r.cr.FieldPos(0)
	tx, err := UnmarshalTransaction(rec)
	if err != nil {
		return model.Transaction{}, &ParseError{Line: line, Err: err}
	}
	return tx, nil
}

func (r *Reader) readHeader() error {
	rec, err := r.cr.Read()
	if err == io.EOF {
		return io.EOF
	}
	if err != nil {
		return fmt.Errorf("reading transactions CSV: %w", err)
	}
	r.headerSeen = true

	want := strings.Split(InputHeader, ",")
	if len(rec) < minFields || len(rec) > maxFields {
		return &ParseError{Line: 1, Err: fmt.Errorf("unexpected header %q", strings.Join(rec, ","))}
	}
	for i, name := range rec {
		if !strings.EqualFold(strings.TrimSpace(name), want[i]) {
			return &ParseError{Line: 1, Err: fmt.Errorf("unexpected header column %d %q, want %q", i+1, name, want[i])}
		}
	}
	return nil
}

// UnmarshalTransaction converts a CSV row to a Transaction. Only the
// shape of the row is checked here; whether an amount belongs on the
// row is left to the engine.
func UnmarshalTransaction(record []string) (model.Transaction, error) {
	if len(record) < minFields || len(record) > maxFields {
		return model.Transaction{}, fmt.Errorf("expected %d or %d fields, got %d", minFields, maxFields, len(record))
	}

	typ, err := model.ParseTransactionType(record[colType])
	if err != nil {
		return model.Transaction{}, err
	}

	client, err := strconv.ParseUint(strings.TrimSpace(record[colClient]), 10, 16)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing client %q: %w", record[colClient], err)
	}

	txID, err := strconv.ParseUint(strings.TrimSpace(record[colTX]), 10, 32)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing tx %q: %w", record[colTX], err)
	}

	var amount decimal.NullDecimal
	if len(record) > colAmount {
		if s := strings.TrimSpace(record[colAmount]); s != "" {
			d, err := parseAmount(s)
			if err != nil {
				return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", record[colAmount], err)
			}
			amount = decimal.NewNullDecimal(d)
		}
	}

	return model.Transaction{
		Type:   typ,
		Client: uint16(client),
		TX:     uint32(txID),
		Amount: amount,
	}, nil
}

// parseAmount accepts plain decimal notation only. Exponents and scales
// past maxAmountScale are refused; a tiny exponent would otherwise blow
// up every later addition.
func parseAmount(s string) (decimal.Decimal, error) {
	if strings.ContainsAny(s, "eE") {
		return decimal.Decimal{}, errors.New("exponent notation not supported")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if d.Exponent() < -maxAmountScale {
		return decimal.Decimal{}, fmt.Errorf("more than %d decimal places", maxAmountScale)
	}
	return d, nil
}

// MarshalBalance converts a Balance to a CSV row. Amounts are written
// as-is; round them before calling if needed.
func MarshalBalance(b model.Balance) []string {
	row := make([]string, numOutFields)
	row[colOutClient] = strconv.FormatUint(uint64(b.Client), 10)
	row[colOutAvailable] = b.Available.String()
	row[colOutHeld] = b.Held.String()
	row[colOutTotal] = b.Total.String()
	row[colOutLocked] = strconv.FormatBool(b.Locked)
	return row
}

// WriteBalances writes balances (including header) to w.
func WriteBalances(w io.Writer, balances []model.Balance) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(strings.Split(OutputHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for i, b := range balances {
		if err := cw.Write(MarshalBalance(b)); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadBalances reads a balances file produced by WriteBalances.
func ReadBalances(r io.Reader) ([]model.Balance, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numOutFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading balances CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var out []model.Balance
	for i, rec := range records[1:] {
		b, err := unmarshalBalance(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		out = append(out, b)
	}
	return out, nil
}

func unmarshalBalance(rec []string) (model.Balance, error) {
	client, err := strconv.ParseUint(rec[colOutClient], 10, 16)
	if err != nil {
		return model.Balance{}, fmt.Errorf("parsing client %q: %w", rec[colOutClient], err)
	}
	var amounts [3]decimal.Decimal
	for i, col := range []int{colOutAvailable, colOutHeld, colOutTotal} {
		amounts[i], err = decimal.NewFromString(rec[col])
		if err != nil {
			return model.Balance{}, fmt.Errorf("parsing amount %q: %w", rec[col], err)
		}
	}
	locked, err := strconv.ParseBool(rec[colOutLocked])
	if err != nil {
		return model.Balance{}, fmt.Errorf("parsing locked %q: %w", rec[colOutLocked], err)
	}
	return model.Balance{
		Client:    uint16(client),
		Available: amounts[0],
		Held:      amounts[1],
		Total:     amounts[2],
		Locked:    locked,
	}, nil
}

// IsParseError reports whether err came from a malformed row.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
