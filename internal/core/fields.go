package core

// fields.go maps header names to column positions and reads typed values
// from rows.
//
// Lookups come in two flavours. Required lookups fail with a
// *MissingColumnError when the header lacks the column; optional lookups
// return -1 and every reader treats -1 as "empty". Readers are tolerant of
// ragged rows.

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/JonMunkholm/nurserymap/internal/tabular"
	"golang.org/x/text/width"
)

// ErrColumnNotFound is the NotFound kind for required header lookups.
var ErrColumnNotFound = errors.New("column not found")

// MissingColumnError reports a structurally required column absent from a
// header.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column %q", e.Column)
}

func (e *MissingColumnError) Unwrap() error {
	return ErrColumnNotFound
}

// HeaderIndex maps trimmed column names to their position in a row.
// When a name repeats, the first position wins.
type HeaderIndex map[string]int

// MakeHeaderIndex creates a HeaderIndex from a header row.
// Call once per dataset and reuse for all rows.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := CleanHeader(h)
		if _, seen := idx[key]; seen {
			continue
		}
		idx[key] = i
	}
	return idx
}

// Index returns the position of name, or -1 when absent.
func (h HeaderIndex) Index(name string) int {
	if i, ok := h[name]; ok {
		return i
	}
	return -1
}

// Has reports whether the header contains name.
func (h HeaderIndex) Has(name string) bool {
	_, ok := h[name]
	return ok
}

// Require returns the position of name or a *MissingColumnError.
func (h HeaderIndex) Require(name string) (int, error) {
	if i, ok := h[name]; ok {
		return i, nil
	}
	return -1, &MissingColumnError{Column: name}
}

// ColumnIndex is the optional lookup: the index of name in header, or -1.
func ColumnIndex(header []string, name string) int {
	return MakeHeaderIndex(header).Index(name)
}

// RequiredColumnIndex is the required lookup for a single column.
func RequiredColumnIndex(header []string, name string) (int, error) {
	return MakeHeaderIndex(header).Require(name)
}

// CleanHeader strips whitespace and a stray UTF-8 BOM from a header cell.
func CleanHeader(s string) string {
	s = strings.TrimPrefix(s, "\ufeff")
	return strings.TrimSpace(s)
}

// Cell returns the trimmed value at idx, or "" for absent columns and
// ragged rows.
func Cell(row tabular.Row, idx int) string {
	return strings.TrimSpace(row.Cell(idx))
}

// ParseCoordinate parses a latitude or longitude.
// Full-width digits are folded first; the parse itself is locale invariant.
// Empty, non-numeric and non-finite values report false.
func ParseCoordinate(s string) (float64, bool) {
	s = strings.TrimSpace(width.Narrow.String(s))
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// JoinAddress joins the non-empty address parts with a single space.
func JoinAddress(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
