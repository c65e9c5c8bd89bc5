// Package event decodes the tagged events the host streams for a spawned
// command.
//
// Every callback payload has the shape {"event": <tag>, "payload": <value>}
// where tag is one of Stdout, Stderr, Error or Terminated. Output chunks are
// strings in text mode and arrays of byte values in raw mode.
package event

import "slices"

// Tag names the kind of a streamed event.
type Tag string

const (
	TagStdout     Tag = "Stdout"
	TagStderr     Tag = "Stderr"
	TagError      Tag = "Error"
	TagTerminated Tag = "Terminated"
)

// Event is implemented by every decoded event.
type Event interface {
	Tag() Tag
	Terminal() bool
}

// Compile-time verification that all event types implement Event.
var (
	_ Event = (*StdoutEvent)(nil)
	_ Event = (*StderrEvent)(nil)
	_ Event = (*ErrorEvent)(nil)
	_ Event = (*TerminatedEvent)(nil)
)

// Chunk is one unit of process output: a line of text in text mode or a
// byte sequence in raw mode.
type Chunk struct {
	text string
	data []byte
	raw  bool
}

// TextChunk returns a text-mode chunk.
func TextChunk(s string) Chunk {
	return Chunk{text: s}
}

// BytesChunk returns a raw-mode chunk. The slice is not copied.
func BytesChunk(b []byte) Chunk {
	return Chunk{data: b, raw: true}
}

// Raw reports whether the chunk carries bytes rather than text.
func (c Chunk) Raw() bool { return c.raw }

// Text returns the chunk as a string. Raw chunks are converted as-is.
func (c Chunk) Text() string {
	if c.raw {
		return string(c.data)
	}

	return c.text
}

// Bytes returns a copy of the chunk's bytes.
func (c Chunk) Bytes() []byte {
	if c.raw {
		return slices.Clone(c.data)
	}

	return []byte(c.text)
}

// Len returns the chunk size in bytes.
func (c Chunk) Len() int {
	if c.raw {
		return len(c.data)
	}

	return len(c.text)
}

// AppendTo appends the chunk's bytes to dst.
func (c Chunk) AppendTo(dst []byte) []byte {
	if c.raw {
		return append(dst, c.data...)
	}

	return append(dst, c.text...)
}

// StdoutEvent carries a chunk written to the child's standard output.
type StdoutEvent struct {
	Chunk Chunk
}

func (*StdoutEvent) Tag() Tag        { return TagStdout }
func (*StdoutEvent) Terminal() bool { return false }

// StderrEvent carries a chunk written to the child's standard error.
type StderrEvent struct {
	Chunk Chunk
}

func (*StderrEvent) Tag() Tag        { return TagStderr }
func (*StderrEvent) Terminal() bool { return false }

// ErrorEvent reports that the host failed to run or monitor the child.
// It is terminal.
type ErrorEvent struct {
	Message string

	// Err is set when the event was synthesized locally from a protocol
	// violation rather than sent by the host.
	Err error
}

func (*ErrorEvent) Tag() Tag        { return TagError }
func (*ErrorEvent) Terminal() bool { return true }

func (e *ErrorEvent) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return e.Message
}

func (e *ErrorEvent) Unwrap() error {
	return e.Err
}

// TerminatedEvent reports that the child exited. Code is nil when the
// process was killed by a signal; Signal is nil when it exited normally.
type TerminatedEvent struct {
	Code   *int
	Signal *string
}

func (*TerminatedEvent) Tag() Tag        { return TagTerminated }
func (*TerminatedEvent) Terminal() bool { return true }

// Success reports whether the child exited with code 0.
func (e *TerminatedEvent) Success() bool {
	return e.Code != nil && *e.Code == 0
}
