// Package download streams HTTP resources into caller-supplied sinks.
package download

import (
	"bytes"
	"fmt"
)

// Sink receives a download as it arrives.
type Sink interface {
	// SetLength records the expected size; 0 means unknown.
	SetLength(n uint64)
	// SetFilename is called once, before any data, with the remote file name.
	SetFilename(name string) error
	// Add appends the next chunk of data.
	Add(p []byte) error
}

// DefaultMaxStringSize bounds how much a StringSink will buffer.
const DefaultMaxStringSize = 16 << 20

// StringSink buffers a (small) download in memory, e.g. a feed document.
type StringSink struct {
	MaxSize int // Zero means DefaultMaxStringSize

	buf      bytes.Buffer
	length   uint64
	filename string
}

// SetLength implements Sink.
func (s *StringSink) SetLength(n uint64) {
	s.length = n
}

// SetFilename implements Sink.
func (s *StringSink) SetFilename(name string) error {
	s.filename = name
	return nil
}

// Add implements Sink.
func (s *StringSink) Add(p []byte) error {
	limit := s.MaxSize
	if limit <= 0 {
		limit = DefaultMaxStringSize
	}
	if s.buf.Len()+len(p) > limit {
		return fmt.Errorf("response exceeds %d bytes", limit)
	}
	s.buf.Write(p)
	return nil
}

// Bytes returns the buffered data.
func (s *StringSink) Bytes() []byte {
	return s.buf.Bytes()
}

// String returns the buffered data as a string.
func (s *StringSink) String() string {
	return s.buf.String()
}

// Length returns the length announced by the server, if any.
func (s *StringSink) Length() uint64 {
	return s.length
}

// Filename returns the remote file name.
func (s *StringSink) Filename() string {
	return s.filename
}
