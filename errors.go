package alac

import (
	"errors"

	"github.com/simonhull/alac/internal/types"
)

// OutOfBoundsError is an alias to types.OutOfBoundsError.
// Re-exporting from internal/types to maintain public API.
type OutOfBoundsError = types.OutOfBoundsError

// UnsupportedFormatError is an alias to types.UnsupportedFormatError.
// Re-exporting from internal/types to maintain public API.
type UnsupportedFormatError = types.UnsupportedFormatError

// ContainerError is an alias to types.ContainerError.
// Re-exporting from internal/types to maintain public API.
type ContainerError = types.ContainerError

// SampleNotFoundError is an alias to types.SampleNotFoundError.
type SampleNotFoundError = types.SampleNotFoundError

// DurationMissingError is an alias to types.DurationMissingError.
type DurationMissingError = types.DurationMissingError

// CorruptFrameError is an alias to types.CorruptFrameError.
type CorruptFrameError = types.CorruptFrameError

// SeekOutOfRangeError is an alias to types.SeekOutOfRangeError.
type SeekOutOfRangeError = types.SeekOutOfRangeError

// Warning is an alias to types.Warning.
// Re-exporting from internal/types to maintain public API.
type Warning = types.Warning

var (
	// ErrNotSeekable is returned when an operation needs to move backwards
	// in a stream that can only be read forward.
	ErrNotSeekable = types.ErrNotSeekable

	// ErrShortBuffer is returned when an output buffer cannot hold a
	// whole decoded frame.
	ErrShortBuffer = types.ErrShortBuffer

	// ErrClosed is returned by every method of a closed Decoder.
	ErrClosed = errors.New("alac: decoder closed")
)
