// Package tabular parses comma-delimited open-data extracts into a header and
// data rows.
//
// The parser is deliberately permissive: quoted fields may contain delimiters,
// doubled quotes and newlines, both LF and CRLF line endings are accepted, and
// malformed quoting never produces an error. Parse is total over all strings.
package tabular

import "strings"

// Row is an ordered sequence of cells. Rows may be shorter than the header;
// use Dataset.Cell to read with an empty-string default.
type Row []string

// Dataset is a parsed header plus its data rows.
type Dataset struct {
	Header []string
	Rows   []Row
}

// Empty reports whether the dataset carries neither a header nor rows.
func (d Dataset) Empty() bool {
	return len(d.Header) == 0 && len(d.Rows) == 0
}

// Cell returns the cell at idx in row, or "" when idx is negative or the row
// is ragged.
func (r Row) Cell(idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return r[idx]
}

// Parse converts raw text into a Dataset.
//
// The first emitted row becomes the header. Rows whose cells are all empty or
// whitespace are dropped. Cell values are not trimmed.
func Parse(text string) Dataset {
	var (
		rows     []Row
		row      Row
		field    strings.Builder
		inQuotes bool
	)

	// Every delimiter the scanner cares about is ASCII, so walking bytes is
	// safe for UTF-8 input: multi-byte sequences never contain these values.
	for i := 0; i < len(text); i++ {
		c := text[i]

		if inQuotes {
			if c == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					field.WriteByte('"')
					i++
				} else {
					inQuotes = false
				}
			} else {
				field.WriteByte(c)
			}
			continue
		}

		switch c {
		case '"':
			inQuotes = true
		case ',':
			row = append(row, field.String())
			field.Reset()
		case '\n':
			row = append(row, field.String())
			rows = append(rows, row)
			row = nil
			field.Reset()
		case '\r':
			// ignored so CRLF and LF files parse identically
		default:
			field.WriteByte(c)
		}
	}

	if field.Len() > 0 || len(row) > 0 {
		row = append(row, field.String())
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return Dataset{Header: []string{}, Rows: []Row{}}
	}

	header := []string(rows[0])
	cleaned := make([]Row, 0, len(rows)-1)
	for _, r := range rows[1:] {
		if isBlank(r) {
			continue
		}
		cleaned = append(cleaned, r)
	}

	return Dataset{Header: header, Rows: cleaned}
}

// isBlank reports whether every cell in r is empty after trimming.
func isBlank(r Row) bool {
	for _, cell := range r {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
