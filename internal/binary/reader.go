// Package binary provides type-safe big-endian reading primitives over
// byte streams and in-memory payloads, with contextual error messages.
package binary

import (
	"errors"
	"fmt"
	"io"

	"github.com/simonhull/alac/internal/types"
)

// Reader wraps an io.Reader and tracks the absolute stream offset.
//
// When the underlying source implements io.Seeker (and the reader was not
// built forward-only), Skip and SeekTo reposition with Seek. Otherwise they
// discard bytes, and moving backwards fails with types.ErrNotSeekable.
type Reader struct {
	r      io.Reader
	seeker io.Seeker
	source string
	offset int64
}

// NewReader creates a Reader positioned at offset 0 of the source.
func NewReader(r io.Reader, source string, forwardOnly bool) *Reader {
	sr := &Reader{r: r, source: source}
	if s, ok := r.(io.Seeker); ok && !forwardOnly {
		sr.seeker = s
	}
	return sr
}

// NewReaderAt creates a Reader for a stream whose next byte is at offset.
func NewReaderAt(r io.Reader, source string, offset int64, forwardOnly bool) *Reader {
	sr := NewReader(r, source, forwardOnly)
	sr.offset = offset
	return sr
}

// Source returns the name used in error messages.
func (r *Reader) Source() string {
	return r.source
}

// Offset returns the absolute stream offset of the next byte to be read.
func (r *Reader) Offset() int64 {
	return r.offset
}

// Seekable reports whether the reader can move backwards.
func (r *Reader) Seekable() bool {
	return r.seeker != nil
}

// ReadFull reads exactly len(b) bytes. A short read is reported as an
// OutOfBoundsError; other failures are wrapped with context.
func (r *Reader) ReadFull(b []byte, what string) error {
	n, err := io.ReadFull(r.r, b)
	start := r.offset
	r.offset += int64(n)

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return &types.OutOfBoundsError{
			Source: r.source,
			What:   what,
			Offset: start,
			Length: len(b),
			Got:    n,
		}
	}
	if err != nil {
		return fmt.Errorf("%s: failed to read %s at offset %d: %w", r.source, what, start, err)
	}

	return nil
}

// ReadValue reads a big-endian numeric value and advances the offset.
func ReadValue[T uint8 | uint16 | uint32 | uint64](r *Reader, what string) (T, error) {
	var buf [8]byte
	b := buf[:sizeOf[T]()]
	if err := r.ReadFull(b, what); err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](b, BigEndian), nil
}

// Skip advances the stream by n bytes.
func (r *Reader) Skip(n int64, what string) error {
	if n < 0 {
		return fmt.Errorf("%s: negative skip of %d bytes over %s", r.source, n, what)
	}
	if n == 0 {
		return nil
	}

	if r.seeker != nil {
		if _, err := r.seeker.Seek(n, io.SeekCurrent); err != nil {
			return fmt.Errorf("%s: failed to skip %s at offset %d: %w", r.source, what, r.offset, err)
		}
		r.offset += n
		return nil
	}

	copied, err := io.CopyN(io.Discard, r.r, n)
	start := r.offset
	r.offset += copied
	if errors.Is(err, io.EOF) {
		return &types.OutOfBoundsError{
			Source: r.source,
			What:   what,
			Offset: start,
			Length: int(n),
			Got:    int(copied),
		}
	}
	if err != nil {
		return fmt.Errorf("%s: failed to skip %s at offset %d: %w", r.source, what, start, err)
	}

	return nil
}

// SeekTo moves to an absolute offset. Forward-only readers can only move forward.
func (r *Reader) SeekTo(off int64, what string) error {
	if off == r.offset {
		return nil
	}

	if r.seeker != nil {
		if _, err := r.seeker.Seek(off, io.SeekStart); err != nil {
			return fmt.Errorf("%s: failed to seek to %s at offset %d: %w", r.source, what, off, err)
		}
		r.offset = off
		return nil
	}

	if off < r.offset {
		return fmt.Errorf("%s: %s at offset %d is behind read position %d: %w",
			r.source, what, off, r.offset, types.ErrNotSeekable)
	}

	return r.Skip(off-r.offset, what)
}

// ChainReader reads big-endian fields from an in-memory payload with
// deferred error checking. This avoids repetitive "if err != nil" checks.
//
// Offsets in error messages are absolute: base is the stream offset of buf[0].
type ChainReader struct {
	buf    []byte
	base   int64
	pos    int
	source string
	err    error
}

// NewChainReader creates a ChainReader over buf.
func NewChainReader(buf []byte, base int64, source string) *ChainReader {
	return &ChainReader{buf: buf, base: base, source: source}
}

// ReadChained reads a value with deferred error checking.
// If a previous read failed, returns zero value without attempting read.
func ReadChained[T uint8 | uint16 | uint32 | uint64](cr *ChainReader, what string) T {
	var zero T
	b := cr.Bytes(sizeOf[T](), what)
	if b == nil {
		return zero
	}
	return Decode[T](b, BigEndian)
}

// Bytes returns the next n bytes of the payload, or nil once an error occurred.
// The returned slice aliases the payload.
func (cr *ChainReader) Bytes(n int, what string) []byte {
	if cr.err != nil {
		return nil
	}

	if n < 0 || cr.pos+n > len(cr.buf) {
		cr.err = &types.OutOfBoundsError{
			Source: cr.source,
			What:   what,
			Offset: cr.base + int64(cr.pos),
			Length: n,
			Got:    len(cr.buf) - cr.pos,
		}
		return nil
	}

	b := cr.buf[cr.pos : cr.pos+n]
	cr.pos += n
	return b
}

// String reads a fixed-length string, accumulating any error.
func (cr *ChainReader) String(length int, what string) string {
	return string(cr.Bytes(length, what))
}

// Skip advances by n bytes, accumulating any error.
func (cr *ChainReader) Skip(n int, what string) {
	_ = cr.Bytes(n, what)
}

// Offset returns the absolute offset of the next unread byte.
func (cr *ChainReader) Offset() int64 {
	return cr.base + int64(cr.pos)
}

// Remaining returns the number of unread bytes.
func (cr *ChainReader) Remaining() int {
	return len(cr.buf) - cr.pos
}

// Error returns the accumulated error, if any.
func (cr *ChainReader) Error() error {
	return cr.err
}

func sizeOf[T uint8 | uint16 | uint32 | uint64]() int {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return 1
	case uint16:
		return 2
	case uint32:
		return 4
	default:
		return 8
	}
}
