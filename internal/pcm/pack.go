// Package pcm packs decoded integer samples into little-endian PCM bytes.
package pcm

import (
	"fmt"

	"github.com/simonhull/alac/internal/binary"
	"github.com/simonhull/alac/internal/types"
)

// DefaultDepth returns the output bit depth used for a stream bit depth.
// 20-bit streams are widened to 24 bits, left aligned.
func DefaultDepth(streamDepth int) int {
	if streamDepth == 20 {
		return 24
	}
	return streamDepth
}

// ValidDepth reports whether depth is a supported output bit depth.
func ValidDepth(depth int) bool {
	switch depth {
	case 8, 16, 24, 32:
		return true
	}
	return false
}

// BytesPerSample returns the packed size of one sample at an output depth.
func BytesPerSample(depth int) int {
	return (depth + 7) / 8
}

// Pack writes src, sampled at srcDepth bits, into dst as dstDepth-bit PCM
// and returns the number of bytes written. 8-bit output is offset binary;
// wider output is signed little-endian. Depth changes shift the samples,
// dropping low bits when narrowing.
func Pack(dst []byte, src []int32, srcDepth, dstDepth int) (int, error) {
	if !ValidDepth(dstDepth) {
		return 0, fmt.Errorf("pcm: unsupported output depth %d", dstDepth)
	}
	if srcDepth < 1 || srcDepth > 32 {
		return 0, fmt.Errorf("pcm: unsupported source depth %d", srcDepth)
	}

	size := BytesPerSample(dstDepth)
	if len(dst) < len(src)*size {
		return 0, fmt.Errorf("pcm: %w: buffer holds %d bytes, need %d", types.ErrShortBuffer, len(dst), len(src)*size)
	}

	for i, s := range src {
		v := rescale(s, srcDepth, dstDepth)
		out := dst[i*size:]

		switch dstDepth {
		case 8:
			out[0] = byte(v + 128)
		case 16:
			binary.Put(out, uint16(v), binary.LittleEndian)
		case 24:
			binary.PutUint24(out, uint32(v), binary.LittleEndian)
		default:
			binary.Put(out, uint32(v), binary.LittleEndian)
		}
	}

	return len(src) * size, nil
}

func rescale(v int32, from, to int) int32 {
	switch {
	case to > from:
		return int32(uint32(v) << (to - from))
	case to < from:
		return v >> (from - to)
	default:
		return v
	}
}
