package binary

import "io"

// SafeWriter wraps io.Writer with position tracking and a sticky error:
// after the first failed write every later write is a no-op, so callers
// building a structure check Err once at the end.
type SafeWriter struct {
	w      io.Writer
	offset int64
	err    error
}

// NewSafeWriter creates a new SafeWriter.
func NewSafeWriter(w io.Writer) *SafeWriter {
	return &SafeWriter{w: w}
}

// Offset returns the current position (number of bytes written).
func (sw *SafeWriter) Offset() int64 {
	return sw.offset
}

// Err returns the first write error, if any.
func (sw *SafeWriter) Err() error {
	return sw.err
}

// WriteBytes writes raw bytes to the underlying writer.
func (sw *SafeWriter) WriteBytes(b []byte) error {
	if sw.err != nil {
		return sw.err
	}
	n, err := sw.w.Write(b)
	sw.offset += int64(n)
	if err == nil && n < len(b) {
		err = io.ErrShortWrite
	}
	sw.err = err
	return err
}

// WriteFourCC writes a four-character box type. Shorter codes are space padded.
func (sw *SafeWriter) WriteFourCC(code string) error {
	var b [4]byte
	copy(b[:], code+"    ")
	return sw.WriteBytes(b[:])
}

// Write writes a value of type T in big-endian byte order.
func Write[T uint8 | uint16 | uint32 | uint64](sw *SafeWriter, val T) error {
	return writeEndian(sw, val, BigEndian)
}

// WriteLE writes a value of type T in little-endian byte order.
func WriteLE[T uint8 | uint16 | uint32 | uint64](sw *SafeWriter, val T) error {
	return writeEndian(sw, val, LittleEndian)
}

// WriteUint24 writes the low 24 bits of v, e.g. full-box flags.
func (sw *SafeWriter) WriteUint24(v uint32, endian Endianness) error {
	var b [3]byte
	PutUint24(b[:], v, endian)
	return sw.WriteBytes(b[:])
}

func writeEndian[T uint8 | uint16 | uint32 | uint64](sw *SafeWriter, val T, endian Endianness) error {
	var buf [8]byte
	b := buf[:sizeOf[T]()]
	Put(b, val, endian)
	return sw.WriteBytes(b)
}
