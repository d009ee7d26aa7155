// Package ndjson reads and writes newline-delimited JSON.
package ndjson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"sync"
)

// maxLineSize bounds a single line; channel lists of large boards stay far below it.
const maxLineSize = 1024 * 1024

// Reader reads newline-delimited JSON from an io.Reader.
type Reader struct {
	scanner *bufio.Scanner
}

// NewReader creates a new NDJSON reader.
func NewReader(r io.Reader) *Reader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	return &Reader{scanner: scanner}
}

// ReadLine returns the next non-blank line as raw bytes.
// Returns io.EOF when there are no more lines.
func (r *Reader) ReadLine() ([]byte, error) {
	for r.scanner.Scan() {
		line := bytes.TrimSpace(r.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		// Scanner reuses its buffer
		result := make([]byte, len(line))
		copy(result, line)
		return result, nil
	}
	if err := r.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

// Decode reads lines until one decodes into v as a JSON object. Lines that are
// not JSON objects, such as log output interleaved by the producer, are
// skipped. Returns io.EOF when no such line remains.
func (r *Reader) Decode(v interface{}) error {
	for {
		line, err := r.ReadLine()
		if err != nil {
			return err
		}
		if line[0] != '{' {
			continue
		}
		if err := json.Unmarshal(line, v); err == nil {
			return nil
		}
	}
}

// Writer writes newline-delimited JSON to an io.Writer. It is safe for
// concurrent use.
type Writer struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriter creates a new NDJSON writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes a value as a JSON line.
func (w *Writer) Write(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	data = append(data, '\n')
	_, err = w.w.Write(data)
	return err
}
