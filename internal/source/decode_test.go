package source

import (
	"errors"
	"testing"

	"golang.org/x/text/encoding/japanese"
)

func TestDecode(t *testing.T) {
	const text = "NO,名称,受入枠1_月\n1,浜松こども園,○\n"

	sjis, err := japanese.ShiftJIS.NewEncoder().Bytes([]byte(text))
	if err != nil {
		t.Fatalf("encode shift-jis: %v", err)
	}
	eucjp, err := japanese.EUCJP.NewEncoder().Bytes([]byte(text))
	if err != nil {
		t.Fatalf("encode euc-jp: %v", err)
	}

	tests := []struct {
		name string
		raw  []byte
		enc  string
	}{
		{"shift-jis", sjis, "shift-jis"},
		{"shift_jis alias", sjis, "Shift_JIS"},
		{"cp932 alias", sjis, "cp932"},
		{"euc-jp", eucjp, "euc-jp"},
		{"utf-8", []byte(text), "utf-8"},
		{"empty encoding is utf-8", []byte(text), ""},
		{"utf-8 with bom", append([]byte{0xEF, 0xBB, 0xBF}, text...), "utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.raw, tt.enc)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got != text {
				t.Errorf("Decode = %q, want %q", got, text)
			}
		})
	}
}

func TestDecode_UnsupportedEncoding(t *testing.T) {
	_, err := Decode([]byte("x"), "latin-1")
	if !errors.Is(err, ErrUnsupportedEncoding) {
		t.Errorf("error = %v, want ErrUnsupportedEncoding", err)
	}
}

func TestDecode_InvalidUTF8IsSanitized(t *testing.T) {
	got, err := Decode([]byte{'a', 0xFF}, "utf-8")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got != "a\uFFFD" {
		t.Errorf("Decode = %q", got)
	}
}

func TestValidEncoding(t *testing.T) {
	for name, want := range map[string]bool{
		"shift-jis": true,
		" EUC-JP ":  true,
		"":          true,
		"utf-16":    false,
	} {
		if got := ValidEncoding(name); got != want {
			t.Errorf("ValidEncoding(%q) = %v, want %v", name, got, want)
		}
	}
}
