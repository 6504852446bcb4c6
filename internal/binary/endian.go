package binary

import "encoding/binary"

// Endianness represents byte order for multi-byte values.
type Endianness int

const (
	// BigEndian uses big-endian byte order.
	// Used by: MP4 boxes and the ALAC magic cookie.
	BigEndian Endianness = iota

	// LittleEndian uses little-endian byte order.
	// Used by: packed PCM output and WAV.
	LittleEndian
)

// Decode converts len(T) bytes at the start of b into a value of type T.
// b must hold at least as many bytes as T.
func Decode[T uint8 | uint16 | uint32 | uint64](b []byte, endian Endianness) T {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return T(b[0])
	case uint16:
		if endian == LittleEndian {
			return T(binary.LittleEndian.Uint16(b))
		}
		return T(binary.BigEndian.Uint16(b))
	case uint32:
		if endian == LittleEndian {
			return T(binary.LittleEndian.Uint32(b))
		}
		return T(binary.BigEndian.Uint32(b))
	default:
		if endian == LittleEndian {
			return T(binary.LittleEndian.Uint64(b))
		}
		return T(binary.BigEndian.Uint64(b))
	}
}

// Put stores v into the first len(T) bytes of b.
func Put[T uint8 | uint16 | uint32 | uint64](b []byte, v T, endian Endianness) {
	var order binary.ByteOrder = binary.BigEndian
	if endian == LittleEndian {
		order = binary.LittleEndian
	}

	var zero T
	switch any(zero).(type) {
	case uint8:
		b[0] = byte(v)
	case uint16:
		order.PutUint16(b, uint16(v))
	case uint32:
		order.PutUint32(b, uint32(v))
	default:
		order.PutUint64(b, uint64(v))
	}
}

// PutUint24 stores the low 24 bits of v in b[0:3].
//
// Example:
//
//	binary.PutUint24(out[i:], uint32(sample), binary.LittleEndian)
func PutUint24(b []byte, v uint32, endian Endianness) {
	_ = b[2]
	if endian == LittleEndian {
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
		return
	}
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

// Uint24 reads a 24-bit unsigned value from b[0:3].
func Uint24(b []byte, endian Endianness) uint32 {
	_ = b[2]
	if endian == LittleEndian {
		return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16
	}
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}
