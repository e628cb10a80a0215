package core

// Reader wrappers applied to label input before parsing.
//
// Label files come out of browsers and spreadsheet tools, so they may start
// with a UTF-8 BOM or carry stray non-UTF-8 bytes. WrapForParsing strips the
// first, rewrites the second and counts what the parser consumed.

import (
	"bufio"
	"bytes"
	"io"
	"unicode/utf8"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const (
	minSanitizeChunk = 512
	maxSanitizeChunk = 64 << 10
)

// UTF8Sanitizer replaces every invalid UTF-8 byte with '?'.
// A rune split across reads of the source is held back until it completes.
type UTF8Sanitizer struct {
	src   io.Reader
	raw   []byte // scratch for reads from src
	carry []byte // leading bytes of a rune still waiting for the rest
	buf   []byte // backing store for out
	out   []byte // sanitized bytes not yet returned
	err   error  // sticky error from src, returned once out is drained
}

// NewUTF8Sanitizer wraps r.
func NewUTF8Sanitizer(r io.Reader) *UTF8Sanitizer {
	return &UTF8Sanitizer{src: r, carry: make([]byte, 0, utf8.UTFMax)}
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
		s.fill(len(p))
	}
	n := copy(p, s.out)
	s.out = s.out[n:]
	return n, nil
}

// fill reads one chunk from src and sanitizes it into out.
func (s *UTF8Sanitizer) fill(hint int) {
	size := min(max(hint, minSanitizeChunk), maxSanitizeChunk) + utf8.UTFMax
	if cap(s.raw) < size {
		s.raw = make([]byte, size)
	}
	raw := s.raw[:cap(s.raw)]

	k := copy(raw, s.carry)
	s.carry = s.carry[:0]
	n, err := s.src.Read(raw[k:])
	s.err = err
	data := raw[:k+n]

	out := s.buf[:0]
	if utf8.Valid(data) {
		out = append(out, data...)
		data = nil
	}
	for len(data) > 0 {
		r, width := utf8.DecodeRune(data)
		switch {
		case r != utf8.RuneError || width > 1:
			out = append(out, data[:width]...)
		case s.err == nil && !utf8.FullRune(data):
			// Only a rune prefix left; wait for the next read.
			s.carry = append(s.carry, data...)
			width = len(data)
		default:
			out = append(out, '?')
		}
		data = data[width:]
	}
	s.buf, s.out = out, out
}

// BOMSkippingReader drops a leading UTF-8 byte order mark.
type BOMSkippingReader struct {
	br      *bufio.Reader
	checked bool
}

// NewBOMSkippingReader wraps r.
func NewBOMSkippingReader(r io.Reader) *BOMSkippingReader {
	return &BOMSkippingReader{br: bufio.NewReader(r)}
}

// Read implements io.Reader.
func (r *BOMSkippingReader) Read(p []byte) (int, error) {
	if !r.checked {
		r.checked = true
		// A short or failed peek means no BOM; the error resurfaces from Read below.
		if head, err := r.br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
			_, _ = r.br.Discard(len(utf8BOM))
		}
	}
	return r.br.Read(p)
}

// CountingReader counts the bytes passed through it.
type CountingReader struct {
	reader    io.Reader
	BytesRead int64
}

// NewCountingReader wraps r.
func NewCountingReader(r io.Reader) *CountingReader {
	return &CountingReader{reader: r}
}

// Read implements io.Reader.
func (r *CountingReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	r.BytesRead += int64(n)
	return n, err
}

// LineEndingReader rewrites CR and CRLF line endings to LF, so files saved
// with old Mac line endings split into lines like any other.
type LineEndingReader struct {
	reader  io.Reader
	afterCR bool // last byte handed out was a rewritten CR
}

// NewLineEndingReader wraps r.
func NewLineEndingReader(r io.Reader) *LineEndingReader {
	return &LineEndingReader{reader: r}
}

// Read implements io.Reader.
func (r *LineEndingReader) Read(p []byte) (int, error) {
	for {
		n, err := r.reader.Read(p)
		w := 0
		for _, b := range p[:n] {
			switch {
			case b == '\n' && r.afterCR:
				r.afterCR = false
				continue
			case b == '\r':
				b = '\n'
				r.afterCR = true
			default:
				r.afterCR = false
			}
			p[w] = b
			w++
		}
		// A read holding only the LF of a split CRLF yields nothing; read again.
		if w > 0 || n == 0 || err != nil {
			return w, err
		}
	}
}

// WrapForParsing strips a BOM, then sanitizes UTF-8, then counts.
// BytesRead therefore excludes the BOM.
func WrapForParsing(r io.Reader) *CountingReader {
	return NewCountingReader(NewUTF8Sanitizer(NewBOMSkippingReader(r)))
}
