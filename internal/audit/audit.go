// Package audit keeps an append-only trail of executed commands under
// <booksDir>/logs/audit-log.csv. The trail is informational; engines never
// read it back for correctness.
package audit

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Entry is one row in the audit log.
type Entry struct {
	Timestamp time.Time
	Actor     string // caller identity as passed in by the API layer
	Command   string // e.g. "post", "stock move"
	Details   string
	ResultID  string // entry ID, movement ID, etc.
}

// Header is the CSV header for audit-log.csv.
const Header = "timestamp,actor,command,details,result_id"

const (
	numFields    = 5
	logFile      = "logs/audit-log.csv"
	colTimestamp = 0
	colActor     = 1
	colCommand   = 2
	colDetails   = 3
	colResultID  = 4
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colActor] = e.Actor
	row[colCommand] = e.Command
	row[colDetails] = e.Details
	row[colResultID] = e.ResultID
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	return Entry{
		Timestamp: ts,
		Actor:     record[colActor],
		Command:   record[colCommand],
		Details:   record[colDetails],
		ResultID:  record[colResultID],
	}, nil
}

// Append writes entries to <booksDir>/logs/audit-log.csv, creating the file
// and header if needed.
func Append(booksDir string, entries []Entry) error {
	path := filepath.Join(booksDir, logFile)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	needsHeader := false
	if _, err := os.Stat(path); os.IsNotExist(err) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	if needsHeader {
		if _, err := fmt.Fprintln(f, Header); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}

	cw := csv.NewWriter(f)
	for _, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing audit row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries from the audit log. A missing log reads as empty.
func Read(booksDir string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(booksDir, logFile))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()
	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading audit CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		if strings.Join(rec, ",") == Header {
			continue
		}
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
