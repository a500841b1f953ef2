// Package rejectlog records transactions the engine skipped, one CSV row
// per record, so a run can be audited afterwards.
package rejectlog

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cleared-dev/txengine/internal/engine"
)

// Entry is one row in the reject log.
type Entry struct {
	Seq    int
	Type   string
	Client uint16
	TX     uint32
	Amount string
	Reason string
}

// Header is the CSV header for the reject log.
const Header = "seq,type,client,tx,amount,reason"

const (
	numFields = 6
	colSeq    = 0
	colType   = 1
	colClient = 2
	colTX     = 3
	colAmount = 4
	colReason = 5
)

// FromRejection builds an Entry from an engine rejection.
func FromRejection(r engine.Rejection) Entry {
	e := Entry{
		Seq:    r.Seq,
		Type:   string(r.Transaction.Type),
		Client: r.Transaction.Client,
		TX:     r.Transaction.TX,
		Reason: r.Err.Error(),
	}
	if r.Transaction.Amount.Valid {
		e.Amount = r.Transaction.Amount.Decimal.String()
	}
	return e
}

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colSeq] = strconv.Itoa(e.Seq)
	row[colType] = e.Type
	row[colClient] = strconv.FormatUint(uint64(e.Client), 10)
	row[colTX] = strconv.FormatUint(uint64(e.TX), 10)
	row[colAmount] = e.Amount
	row[colReason] = e.Reason
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	seq, err := strconv.Atoi(record[colSeq])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing seq %q: %w", record[colSeq], err)
	}
	client, err := strconv.ParseUint(record[colClient], 10, 16)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing client %q: %w", record[colClient], err)
	}
	tx, err := strconv.ParseUint(record[colTX], 10, 32)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing tx %q: %w", record[colTX], err)
	}

	return Entry{
		Seq:    seq,
		Type:   record[colType],
		Client: uint16(client),
		TX:     uint32(tx),
		Amount: record[colAmount],
		Reason: record[colReason],
	}, nil
}

// Writer streams entries to an io.Writer, writing the header first.
// Write errors are sticky and surface from Flush.
type Writer struct {
	cw          *csv.Writer
	wroteHeader bool
	err         error
}

// NewWriter returns a Writer over w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{cw: csv.NewWriter(w)}
}

// Write appends one entry.
func (w *Writer) Write(e Entry) error {
	if w.err != nil {
		return w.err
	}
	if !w.wroteHeader {
		if err := w.cw.Write(strings.Split(Header, ",")); err != nil {
			w.err = fmt.Errorf("writing header: %w", err)
			return w.err
		}
		w.wroteHeader = true
	}
	if err := w.cw.Write(MarshalEntry(e)); err != nil {
		w.err = fmt.Errorf("writing entry %d: %w", e.Seq, err)
	}
	return w.err
}

// Record is an engine reject handler.
func (w *Writer) Record(r engine.Rejection) {
	_ = w.Write(FromRejection(r))
}

// Flush writes the header if nothing was logged, flushes buffered rows
// and returns the first error seen.
func (w *Writer) Flush() error {
	if !w.wroteHeader && w.err == nil {
		if err := w.cw.Write(strings.Split(Header, ",")); err != nil {
			w.err = fmt.Errorf("writing header: %w", err)
		}
		w.wroteHeader = true
	}
	w.cw.Flush()
	if w.err != nil {
		return w.err
	}
	return w.cw.Error()
}

// File is a reject log backed by a file on disk.
type File struct {
	*Writer
	f *os.File
}

// Create truncates or creates the reject log at path, creating parent
// directories as needed.
func Create(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating reject log dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating reject log: %w", err)
	}
	return &File{Writer: NewWriter(f), f: f}, nil
}

// Close flushes and closes the file.
func (f *File) Close() error {
	flushErr := f.Flush()
	closeErr := f.f.Close()
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return fmt.Errorf("closing reject log: %w", closeErr)
	}
	return nil
}

// Read returns all entries from the reject log at path.
// Returns an empty slice if the file does not exist.
func Read(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening reject log: %w", err)
	}
	defer f.Close()

	return ReadEntries(f)
}

// ReadEntries parses a reject log.
func ReadEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading reject log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
