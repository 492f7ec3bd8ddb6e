package core

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// agePattern matches "<digits>歳" tokens such as "0歳" or "２歳".
var agePattern = regexp.MustCompile(`([0-9０-９]+)歳`)

// NormalizeNo converts a raw facility number into its identity key.
//
// Full-width characters are folded to ASCII, all whitespace is removed and
// purely numeric numbers lose their zero padding, so "001", " 1" and "００１"
// compare equal. Non-numeric numbers are kept verbatim after folding.
// Returns "" when nothing usable remains.
func NormalizeNo(raw string) string {
	s := width.Narrow.String(raw)
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	if s == "" {
		return ""
	}
	if isDigits(s) {
		s = strings.TrimLeft(s, "0")
		if s == "" {
			s = "0"
		}
	}
	return s
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ParseAges extracts the eligible ages from free text like "0歳1歳2歳".
// The result is ascending and free of duplicates; never nil.
func ParseAges(raw string) []int {
	ages := []int{}
	for _, m := range agePattern.FindAllStringSubmatch(raw, -1) {
		n, err := strconv.Atoi(width.Narrow.String(m[1]))
		if err != nil {
			continue
		}
		ages = append(ages, n)
	}
	slices.Sort(ages)
	return slices.Compact(ages)
}
