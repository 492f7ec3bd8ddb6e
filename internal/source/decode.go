package source

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// DefaultEncoding is the encoding the municipal open-data portal publishes.
const DefaultEncoding = "shift-jis"

// encodings maps accepted names to decoders; nil means UTF-8 passthrough.
var encodings = map[string]encoding.Encoding{
	"utf-8":       nil,
	"utf8":        nil,
	"shift-jis":   japanese.ShiftJIS,
	"shift_jis":   japanese.ShiftJIS,
	"sjis":        japanese.ShiftJIS,
	"cp932":       japanese.ShiftJIS,
	"windows-31j": japanese.ShiftJIS,
	"euc-jp":      japanese.EUCJP,
	"eucjp":       japanese.EUCJP,
}

// ValidEncoding reports whether name is a supported encoding.
func ValidEncoding(name string) bool {
	_, ok := encodings[normalizeEncoding(name)]
	return ok
}

func normalizeEncoding(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return "utf-8"
	}
	return name
}

// Decode converts raw bytes in the named encoding to UTF-8 text.
// A leading BOM is dropped and invalid sequences become U+FFFD.
func Decode(raw []byte, enc string) (string, error) {
	e, ok := encodings[normalizeEncoding(enc)]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedEncoding, enc)
	}

	var r io.Reader = bytes.NewReader(raw)
	if e != nil {
		r = transform.NewReader(r, e.NewDecoder())
	}

	out, err := io.ReadAll(wrapDecoded(r))
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrDecode, enc, err)
	}
	return string(out), nil
}
