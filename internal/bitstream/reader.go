// Package bitstream reads MSB-first bit fields from a compressed frame.
package bitstream

import (
	"fmt"

	"github.com/simonhull/alac/internal/types"
)

// Reader is a bit cursor over one frame's payload.
//
// Reads are big-endian, most significant bit first. Reading past the end
// of the payload fails with types.ErrUnexpectedEndOfFrame; the cursor is
// left unchanged in that case.
type Reader struct {
	buf []byte
	pos uint // absolute bit position
	end uint // len(buf) * 8
}

// NewReader creates a Reader over buf.
func NewReader(buf []byte) *Reader {
	r := &Reader{}
	r.Reset(buf)
	return r
}

// Reset points the reader at a new payload, so one Reader can serve every frame.
func (r *Reader) Reset(buf []byte) {
	r.buf = buf
	r.pos = 0
	r.end = uint(len(buf)) * 8
}

// BitsLeft returns the number of unread bits.
func (r *Reader) BitsLeft() int {
	return int(r.end - r.pos)
}

// Position returns the number of bits consumed so far.
func (r *Reader) Position() int {
	return int(r.pos)
}

// ReadBits reads n bits (1 ≤ n ≤ 32) and returns them right-aligned.
func (r *Reader) ReadBits(n uint) (uint32, error) {
	if n == 0 || n > 32 {
		return 0, fmt.Errorf("bitstream: invalid read width %d", n)
	}
	if r.pos+n > r.end {
		return 0, fmt.Errorf("read of %d bits at bit %d of %d: %w", n, r.pos, r.end, types.ErrUnexpectedEndOfFrame)
	}

	v := r.PeekBits(n)
	r.pos += n
	return v, nil
}

// ReadBit reads a single bit.
func (r *Reader) ReadBit() (uint32, error) {
	if r.pos >= r.end {
		return 0, fmt.Errorf("read of 1 bit at bit %d of %d: %w", r.pos, r.end, types.ErrUnexpectedEndOfFrame)
	}
	bit := uint32(r.buf[r.pos>>3]>>(7-r.pos&7)) & 1
	r.pos++
	return bit, nil
}

// ReadSigned reads n bits as a two's-complement signed value.
func (r *Reader) ReadSigned(n uint) (int32, error) {
	v, err := r.ReadBits(n)
	if err != nil {
		return 0, err
	}
	shift := 32 - n
	return int32(v<<shift) >> shift, nil
}

// PeekBits returns the next n bits (1 ≤ n ≤ 32) without consuming them.
// Bits past the end of the payload read as zero.
func (r *Reader) PeekBits(n uint) uint32 {
	if n == 0 || n > 32 {
		return 0
	}

	// Gather the 40-bit window starting at the current byte.
	byteIdx := r.pos >> 3
	var window uint64
	for i := uint(0); i < 5; i++ {
		window <<= 8
		if idx := byteIdx + i; idx < uint(len(r.buf)) {
			window |= uint64(r.buf[idx])
		}
	}

	window <<= 24 + r.pos&7
	return uint32(window >> (64 - n))
}

// SkipBits advances the cursor by n bits.
func (r *Reader) SkipBits(n uint) error {
	if r.pos+n > r.end {
		return fmt.Errorf("skip of %d bits at bit %d of %d: %w", n, r.pos, r.end, types.ErrUnexpectedEndOfFrame)
	}
	r.pos += n
	return nil
}

// AlignToByte advances to the next byte boundary (if not already aligned).
func (r *Reader) AlignToByte() {
	r.pos = (r.pos + 7) &^ 7
	if r.pos > r.end {
		r.pos = r.end
	}
}
