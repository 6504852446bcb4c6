package types

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrUnexpectedEndOfFrame is reported when a frame's bit reader runs out of payload.
	ErrUnexpectedEndOfFrame = errors.New("unexpected end of frame")

	// ErrNotSeekable is returned when a forward-only source would have to move backwards.
	ErrNotSeekable = errors.New("source is not seekable")

	// ErrShortBuffer is returned when an output buffer cannot hold a whole decoded frame.
	ErrShortBuffer = errors.New("alac: output buffer too small for one frame")
)

// OutOfBoundsError is returned when a read runs past the end of the stream.
type OutOfBoundsError struct {
	Source string
	What   string
	Offset int64
	Length int
	Got    int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("%s: short read of %s at offset %d: got %d of %d bytes",
		e.Source, e.What, e.Offset, e.Got, e.Length)
}

// Unwrap lets callers match short reads with errors.Is(err, io.ErrUnexpectedEOF).
func (e *OutOfBoundsError) Unwrap() error {
	return io.ErrUnexpectedEOF
}

// UnsupportedFormatError is returned when the stream holds no usable ALAC track.
type UnsupportedFormatError struct {
	Source string
	Reason string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("%s: unsupported format: %s", e.Source, e.Reason)
}

// ContainerError is returned when the box hierarchy is absent, truncated or
// inconsistent. It is fatal for the stream.
type ContainerError struct {
	Source string
	Stage  string // hierarchy level being parsed: "moov", "stsd", "stts", ...
	Reason string
	Offset int64
	Err    error
}

func (e *ContainerError) Error() string {
	msg := fmt.Sprintf("%s: container error in %s at offset %d: %s", e.Source, e.Stage, e.Offset, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ContainerError) Unwrap() error {
	return e.Err
}

// SampleNotFoundError is returned when a sample number is past the indexed total.
type SampleNotFoundError struct {
	Sample uint64
	Count  uint64
}

func (e *SampleNotFoundError) Error() string {
	return fmt.Sprintf("sample %d not found (table holds %d samples)", e.Sample, e.Count)
}

// DurationMissingError is returned when the time-to-sample runs end before
// the requested sample is reached.
type DurationMissingError struct {
	Sample  uint64
	Covered uint64 // samples covered by all time-to-sample runs
}

func (e *DurationMissingError) Error() string {
	return fmt.Sprintf("no duration for sample %d (time-to-sample runs cover %d samples)", e.Sample, e.Covered)
}

// CorruptFrameError is returned when a compressed frame cannot be decoded.
// Decoding cannot continue past the failing sample.
type CorruptFrameError struct {
	Sample uint64
	Reason string
	Err    error
}

func (e *CorruptFrameError) Error() string {
	msg := fmt.Sprintf("corrupt frame at sample %d: %s", e.Sample, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptFrameError) Unwrap() error {
	return e.Err
}

// SeekOutOfRangeError is returned when a seek target lies past the end of the stream.
type SeekOutOfRangeError struct {
	Position uint64
	Total    uint64
}

func (e *SeekOutOfRangeError) Error() string {
	return fmt.Sprintf("seek position %d out of range (stream has %d samples)", e.Position, e.Total)
}

// Warning represents a non-fatal issue encountered while opening a stream.
//
// Warnings indicate problems that don't prevent decoding but may point at
// an unusual or damaged file. Examples include:
//   - A second audio track that was ignored
//   - A time-to-sample table that covers more samples than the size table
//   - Header fields that disagree with the codec configuration
type Warning struct {
	// Stage where the warning occurred
	Stage string // "container", "config", "index"

	// Warning message
	Message string

	// Stream offset where the issue occurred (0 if not applicable)
	Offset int64
}

// String returns a human-readable warning message.
func (w Warning) String() string {
	if w.Offset > 0 {
		return fmt.Sprintf("%s (at offset %d): %s", w.Stage, w.Offset, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Stage, w.Message)
}
