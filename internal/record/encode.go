package record

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Encode returns the exact wire bytes of a record body: the two-character
// record type followed by every field in layout order. The result does not
// include the length prefix written by Writer.
func Encode(r Record, cs Charset) ([]byte, error) {
	var buf bytes.Buffer

	typeCode, err := cs.encode(r.RecordType().String())
	if err != nil {
		return nil, err
	}
	buf.Write(typeCode)

	for _, f := range r.Fields() {
		if f.Kind == Binary {
			buf.Write(f.Data)
			continue
		}

		text, err := f.layout()
		if err != nil {
			var fe *FormatError
			if errors.As(err, &fe) {
				fe.Record = r.RecordType()
			}
			return nil, err
		}

		encoded, err := cs.encode(text)
		if err != nil {
			return nil, &FormatError{
				Record: r.RecordType(),
				Field:  f.Name,
				Value:  f.Text,
				Width:  f.Width,
				Reason: err.Error(),
			}
		}
		buf.Write(encoded)
	}

	return buf.Bytes(), nil
}

// =============================================================================
// STREAM WRITER
// =============================================================================

// Writer writes records to an underlying stream, each preceded by its body
// length as a 4-byte big-endian integer.
type Writer struct {
	w       io.Writer
	charset Charset
	count   int
}

// NewWriter returns a Writer that encodes text fields with cs.
func NewWriter(w io.Writer, cs Charset) *Writer {
	return &Writer{w: w, charset: cs}
}

// WriteRecord encodes r and writes it with its length prefix.
func (w *Writer) WriteRecord(r Record) error {
	body, err := Encode(r, w.charset)
	if err != nil {
		return err
	}

	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := w.w.Write(prefix[:]); err != nil {
		return fmt.Errorf("failed to write record length: %w", err)
	}
	if _, err := w.w.Write(body); err != nil {
		return fmt.Errorf("failed to write record %s: %w", r.RecordType(), err)
	}

	w.count++
	return nil
}

// Count returns the number of records written so far.
func (w *Writer) Count() int {
	return w.count
}

// EncodeAll encodes every record in order into one contiguous stream. On any
// failure it returns no bytes at all.
func EncodeAll(records []Record, cs Charset) ([]byte, error) {
	var buf bytes.Buffer
	w := NewWriter(&buf, cs)

	for i, r := range records {
		if err := w.WriteRecord(r); err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
	}

	return buf.Bytes(), nil
}

// =============================================================================
// STREAM HELPERS
// =============================================================================

// CountTypes counts the records whose type is one of types.
func CountTypes(records []Record, types ...Type) int {
	n := 0
	for _, r := range records {
		for _, t := range types {
			if r.RecordType() == t {
				n++
				break
			}
		}
	}
	return n
}

// closers maps each header type to the control type that closes it.
var closers = map[Type]Type{
	FileHeaderType:       FileControlType,
	CashLetterHeaderType: CashLetterControlType,
	BundleHeaderType:     BundleControlType,
}

// CheckNesting verifies that every header record is closed by its matching
// control record and that scopes do not overlap.
func CheckNesting(records []Record) error {
	var open []Type

	for i, r := range records {
		t := r.RecordType()

		if _, ok := closers[t]; ok {
			open = append(open, t)
			continue
		}

		for header, control := range closers {
			if t != control {
				continue
			}
			if len(open) == 0 || open[len(open)-1] != header {
				return fmt.Errorf("record %d: control %s without matching header %s", i+1, t, header)
			}
			open = open[:len(open)-1]
		}
	}

	if len(open) > 0 {
		return fmt.Errorf("header %s is never closed", open[len(open)-1])
	}
	return nil
}
