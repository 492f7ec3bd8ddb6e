package source

// streaming.go provides the readers applied to decoded source text:
//
//   - BOMSkippingReader: removes a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - UTF8Sanitizer: replaces invalid UTF-8 with U+FFFD
//   - LimitedReader: fails once more than a fixed number of bytes is read
//
// Use wrapDecoded to apply BOM skipping and sanitizing in the right order.

import (
	"bytes"
	"fmt"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// BOMSkippingReader skips a UTF-8 BOM at the start of the stream.
type BOMSkippingReader struct {
	reader  io.Reader
	checked bool
	head    []byte // bytes read during the BOM check, not yet returned
}

// NewBOMSkippingReader creates a new BOM-skipping reader.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{reader: r}
}

// Read implements io.Reader.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true

		buf := make([]byte, len(utf8BOM))
		n, err := io.ReadFull(r.reader, buf)
		switch err {
		case nil:
		case io.EOF, io.ErrUnexpectedEOF:
			// Short stream: whatever was read is the whole content.
		default:
			return 0, err
		}
		if n == len(utf8BOM) && bytes.Equal(buf, utf8BOM) {
			n = 0
		}
		r.head = buf[:n]
	}

	if len(r.head) > 0 {
		n := copy(p, r.head)
		r.head = r.head[n:]
		return n, nil
	}
	return r.reader.Read(p)
}

// UTF8Sanitizer replaces invalid UTF-8 sequences with U+FFFD while
// streaming. Multi-byte sequences split across reads are carried over.
type UTF8Sanitizer struct {
	reader io.Reader
	buf    []byte
	carry  []byte
	out    []byte
	err    error
}

// NewUTF8Sanitizer creates a new streaming sanitizer.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{reader: r, buf: make([]byte, 32*1024)}
}

// Read implements io.Reader.
func (s *UTF8Sanitizer) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	for len(s.out) == 0 {
		if s.err != nil {
			return 0, s.err
		}
		s.fill()
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

func (s *UTF8Sanitizer) fill() {
	n, err := s.reader.Read(s.buf)
	data := append(s.carry, s.buf[:n]...)
	s.carry = nil

	if err != nil {
		s.err = err
	} else if tail := incompleteTail(data); tail > 0 {
		s.carry = bytes.Clone(data[len(data)-tail:])
		data = data[:len(data)-tail]
	}

	if utf8.Valid(data) {
		s.out = data
		return
	}
	s.out = bytes.ToValidUTF8(data, []byte("\uFFFD"))
}

// incompleteTail returns the length of a truncated multi-byte sequence at
// the end of b, or 0.
func incompleteTail(b []byte) int {
	for i := 1; i < utf8.UTFMax && i <= len(b); i++ {
		if utf8.RuneStart(b[len(b)-i]) {
			if utf8.FullRune(b[len(b)-i:]) {
				return 0
			}
			return i
		}
	}
	return 0
}

// LimitedReader returns ErrSourceTooLarge once more than Max bytes have been
// read. A non-positive Max disables the limit.
type LimitedReader struct {
	Reader    io.Reader
	Max       int64
	BytesRead int64
}

// Read implements io.Reader.
func (r *LimitedReader) Read(p []byte) (int, error) {
	n, err := r.Reader.Read(p)
	r.BytesRead += int64(n)
	if r.Max > 0 && r.BytesRead > r.Max {
		return n, fmt.Errorf("%w: more than %d bytes", ErrSourceTooLarge, r.Max)
	}
	return n, err
}

// wrapDecoded strips a BOM and then sanitizes UTF-8.
func wrapDecoded(r io.Reader) io.Reader {
	return NewUTF8Sanitizer(NewBOMSkippingReader(r))
}
