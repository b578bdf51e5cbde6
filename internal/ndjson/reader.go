// Package ndjson reads newline-delimited JSON streams line by line.
package ndjson

import (
	"bufio"
	"bytes"
	"io"
)

const (
	// initialBufSize fits typical plugin events without reallocation.
	initialBufSize = 256 * 1024
	// maxLineSize caps a single line; anything larger is broken input,
	// not data.
	maxLineSize = 1024 * 1024
)

// Reader yields one trimmed, non-blank line per call.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader wraps r for line-by-line reading.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, initialBufSize), maxLineSize)
	return &Reader{scanner: sc}
}

// ReadLine returns the next non-blank line. The returned slice is a
// copy and stays valid across subsequent calls. io.EOF signals a clean
// end of stream.
func (r *Reader) ReadLine() ([]byte, error) {
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}
