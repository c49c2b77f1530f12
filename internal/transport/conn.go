// Package transport adapts byte streams into the line-oriented connections the
// matchmaker and sessions talk to.
package transport

import (
	"errors"
	"time"
)

const (
	// maxLineBytes bounds a single inbound line, terminator included.
	maxLineBytes = 4096
	writeTimeout = 10 * time.Second
)

var (
	ErrClosed      = errors.New("connection closed")
	ErrLineTooLong = errors.New("line too long")
	ErrBinaryFrame = errors.New("binary frame not supported")
)

// Conn is one peer speaking newline-delimited text.
type Conn interface {
	// ReadLine blocks for the next line and returns it without the terminator.
	ReadLine() (string, error)
	// WriteLine sends line followed by a newline.
	WriteLine(line string) error
	// SetReadDeadline bounds pending and future reads. The zero time clears it.
	SetReadDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

// Handler takes ownership of a freshly accepted connection.
type Handler func(Conn)
