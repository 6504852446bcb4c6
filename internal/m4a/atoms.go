// Package m4a walks the MP4 box hierarchy of an ALAC stream and extracts the
// codec configuration and sample tables of its audio track.
package m4a

import (
	"errors"
	"fmt"
	"math"

	"github.com/simonhull/alac/internal/binary"
	"github.com/simonhull/alac/internal/types"
)

const (
	headerSize         = 8
	extendedHeaderSize = 16
)

// Box represents an MP4 box (atom) header.
type Box struct {
	Type     string // 4-character type code
	Offset   int64  // absolute offset of the header
	Size     uint64 // total size including header; 0 when ToEnd
	Extended bool   // 64-bit size follows the type
	ToEnd    bool   // declared size 0: the box runs to the end of the stream
}

// HeaderSize returns the number of header bytes.
func (b Box) HeaderSize() int64 {
	if b.Extended {
		return extendedHeaderSize
	}
	return headerSize
}

// DataSize returns the size of the box payload (excluding header).
func (b Box) DataSize() uint64 {
	if b.ToEnd || b.Size < uint64(b.HeaderSize()) {
		return 0
	}
	return b.Size - uint64(b.HeaderSize())
}

// DataOffset returns the absolute offset where the payload starts.
func (b Box) DataOffset() int64 {
	return b.Offset + b.HeaderSize()
}

// End returns the absolute offset just past the box.
func (b Box) End() int64 {
	return b.Offset + int64(b.Size)
}

// containerTypes are the boxes whose payload is a list of child boxes.
var containerTypes = map[string]bool{
	"moov": true, // movie
	"trak": true, // track
	"mdia": true, // media
	"minf": true, // media information
	"stbl": true, // sample table
	"udta": true, // user data
	"edts": true, // edit list container
	"dinf": true, // data information
	"mvex": true, // movie extends
	"moof": true, // movie fragment
	"traf": true, // track fragment
}

// IsContainer returns true if this box type holds child boxes.
func (b Box) IsContainer() bool {
	return containerTypes[b.Type]
}

// errEndOfStream reports a clean end of stream at a box boundary.
var errEndOfStream = errors.New("end of stream")

// readBoxHeader reads a box header at the reader's current offset.
//
// A stream that ends exactly at the box boundary returns errEndOfStream.
func readBoxHeader(r *binary.Reader) (Box, error) {
	var hdr [headerSize]byte
	offset := r.Offset()

	if err := r.ReadFull(hdr[:], "box header"); err != nil {
		var oob *types.OutOfBoundsError
		if errors.As(err, &oob) && oob.Got == 0 {
			return Box{}, errEndOfStream
		}
		return Box{}, err
	}

	box := Box{
		Type:   string(hdr[4:8]),
		Offset: offset,
	}

	switch size32 := binary.Decode[uint32](hdr[:4], binary.BigEndian); size32 {
	case 0:
		box.ToEnd = true
	case 1:
		size64, err := binary.ReadValue[uint64](r, "extended box size")
		if err != nil {
			return Box{}, err
		}
		if size64 > uint64(math.MaxInt64-offset) {
			return Box{}, &types.ContainerError{
				Source: r.Source(),
				Stage:  box.Type,
				Offset: offset,
				Reason: fmt.Sprintf("box size %d runs past the largest stream offset", size64),
			}
		}
		box.Size = size64
		box.Extended = true
	default:
		box.Size = uint64(size32)
	}

	if !box.ToEnd && box.Size < uint64(box.HeaderSize()) {
		return Box{}, &types.ContainerError{
			Source: r.Source(),
			Stage:  box.Type,
			Offset: offset,
			Reason: fmt.Sprintf("invalid box size %d (minimum is %d)", box.Size, box.HeaderSize()),
		}
	}

	return box, nil
}

// skipBox moves the reader to the end of the box. Boxes that run to the end
// of the stream cannot be skipped.
func skipBox(r *binary.Reader, box Box) error {
	if box.ToEnd {
		return &types.ContainerError{
			Source: r.Source(),
			Stage:  box.Type,
			Offset: box.Offset,
			Reason: "box without size cannot be skipped",
		}
	}
	return r.SeekTo(box.End(), box.Type+" box")
}
