package core

// csv.go turns raw upload bytes into a validated, rectangular table.
//
// Structural rules, checked in order:
//  1. The file must contain at least one row.
//  2. It must be valid UTF-8 without NUL bytes and well-formed RFC 4180
//     (strict quoting).
//  3. Every row must have the same field count as the first row. A blank
//     line is a row with zero fields, so a blank line inside or after the
//     data fails this check.
//
// No row is treated as a header unless SkipHeader is set explicitly.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"unicode/utf8"
)

// utf8BOM is the byte order mark Excel prepends to UTF-8 exports.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVValidator parses and validates CSV content.
type CSVValidator struct {
	// SkipHeader drops the first row after it has fixed the column count.
	SkipHeader bool
}

// ParseAndValidate parses data and enforces the structural rules.
// Failures are returned as *Rejection values.
func (v CSVValidator) ParseAndValidate(data []byte) (ParsedTable, error) {
	if len(data) == 0 {
		return ParsedTable{}, reject(EmptyFile)
	}

	data = bytes.TrimPrefix(data, utf8BOM)

	if line, ok := firstInvalidUTF8Line(data); !ok {
		return ParsedTable{}, rejectf(MalformedContent, "invalid UTF-8 encoding on line %d", line)
	}

	if i := bytes.IndexByte(data, 0); i >= 0 {
		return ParsedTable{}, rejectf(MalformedContent, "NUL byte on line %d", lineOf(data, i))
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1 // column consistency is checked below with a clearer error

	var (
		rows     [][]string
		columns  int
		consumed int // bytes of data already accounted for
		line     = 1 // line at consumed
	)

	add := func(record []string, at int) error {
		if len(rows) == 0 {
			columns = len(record)
		} else if len(record) != columns {
			return rejectf(InconsistentColumns,
				"line %d has %d columns, expected %d", at, len(record), columns)
		}
		rows = append(rows, record)
		return nil
	}

	for {
		record, err := r.Read()
		if err != nil && !errors.Is(err, io.EOF) {
			return ParsedTable{}, malformed(err)
		}

		end := int(r.InputOffset())
		if errors.Is(err, io.EOF) {
			end = len(data)
		}

		// The csv reader skips blank lines; they are zero-field rows here.
		for _, blank := range blankLines(data[consumed:end], line) {
			if err := add([]string{}, blank); err != nil {
				return ParsedTable{}, err
			}
		}
		line += bytes.Count(data[consumed:end], []byte{'\n'})
		consumed = end

		if errors.Is(err, io.EOF) {
			break
		}

		at, _ := r.FieldPos(0)
		if err := add(record, at); err != nil {
			return ParsedTable{}, err
		}
	}

	if len(rows) == 0 || columns == 0 {
		return ParsedTable{}, rejectf(EmptyFile, "CSV contains no rows")
	}

	if v.SkipHeader {
		rows = rows[1:]
		if len(rows) == 0 {
			return ParsedTable{}, rejectf(EmptyFile, "CSV contains only a header row")
		}
	}

	return ParsedTable{
		Rows:        rows,
		RowCount:    len(rows),
		ColumnCount: columns,
	}, nil
}

// malformed converts a csv parse failure into a MalformedContent rejection.
func malformed(err error) *Rejection {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return rejectf(MalformedContent, "%s", pe.Error())
	}
	return rejectf(MalformedContent, "%v", err)
}

// blankLines returns the line numbers of the empty lines at the start of
// seg, which begins on line first.
func blankLines(seg []byte, first int) []int {
	var out []int
	for line := first; ; line++ {
		switch {
		case bytes.HasPrefix(seg, []byte("\n")):
			seg = seg[1:]
		case bytes.HasPrefix(seg, []byte("\r\n")):
			seg = seg[2:]
		default:
			return out
		}
		out = append(out, line)
	}
}

// lineOf returns the 1-based line containing data[offset].
func lineOf(data []byte, offset int) int {
	return bytes.Count(data[:offset], []byte{'\n'}) + 1
}

// firstInvalidUTF8Line returns the 1-based line of the first invalid UTF-8
// sequence. ok is true when the whole input is valid.
func firstInvalidUTF8Line(data []byte) (line int, ok bool) {
	if utf8.Valid(data) {
		return 0, true
	}

	line = 1
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			return line, false
		}
		if r == '\n' {
			line++
		}
		data = data[size:]
	}
	return line, false
}
