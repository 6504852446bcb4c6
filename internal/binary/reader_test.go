package binary

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/simonhull/alac/internal/types"
)

// forwardOnly hides the Seek method of a bytes.Reader.
type forwardOnly struct {
	io.Reader
}

func TestReader_Sequential(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	r := NewReader(bytes.NewReader(data), "test.m4a", false)

	val1, err := ReadValue[uint8](r, "first byte")
	if err != nil {
		t.Fatalf("read 1 failed: %v", err)
	}
	if val1 != 0x01 {
		t.Errorf("expected 0x01, got 0x%02x", val1)
	}

	val2, err := ReadValue[uint16](r, "second word")
	if err != nil {
		t.Fatalf("read 2 failed: %v", err)
	}
	expected := binary.BigEndian.Uint16([]byte{0x02, 0x03})
	if val2 != expected {
		t.Errorf("expected 0x%04x, got 0x%04x", expected, val2)
	}

	if r.Offset() != 3 {
		t.Errorf("expected offset 3, got %d", r.Offset())
	}
}

func TestReadValue_Widths(t *testing.T) {
	data := make([]byte, 14)
	binary.BigEndian.PutUint32(data[0:], 0x12345678)
	binary.BigEndian.PutUint64(data[4:], 0x123456789ABCDEF0)
	binary.BigEndian.PutUint16(data[12:], 0xBEEF)
	r := NewReader(bytes.NewReader(data), "test.m4a", false)

	v32, err := ReadValue[uint32](r, "u32")
	if err != nil || v32 != 0x12345678 {
		t.Fatalf("uint32 = 0x%x, %v", v32, err)
	}
	v64, err := ReadValue[uint64](r, "u64")
	if err != nil || v64 != 0x123456789ABCDEF0 {
		t.Fatalf("uint64 = 0x%x, %v", v64, err)
	}
	v16, err := ReadValue[uint16](r, "u16")
	if err != nil || v16 != 0xBEEF {
		t.Fatalf("uint16 = 0x%x, %v", v16, err)
	}
}

func TestReader_ShortRead(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte{0x01, 0x02}), "short.m4a", false)

	_, err := ReadValue[uint32](r, "box size")
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var oob *types.OutOfBoundsError
	if !errors.As(err, &oob) {
		t.Fatalf("expected OutOfBoundsError, got %T", err)
	}
	if oob.Got != 2 || oob.Length != 4 {
		t.Errorf("got %d of %d, want 2 of 4", oob.Got, oob.Length)
	}

	errMsg := err.Error()
	if !strings.Contains(errMsg, "short.m4a") {
		t.Errorf("error should contain source: %v", errMsg)
	}
	if !strings.Contains(errMsg, "box size") {
		t.Errorf("error should contain context: %v", errMsg)
	}
}

func TestReader_SkipSeekable(t *testing.T) {
	data := make([]byte, 100)
	data[30] = 0x7F
	r := NewReader(bytes.NewReader(data), "test.m4a", false)

	if !r.Seekable() {
		t.Fatal("bytes.Reader should be seekable")
	}
	if err := r.Skip(30, "padding"); err != nil {
		t.Fatalf("skip failed: %v", err)
	}
	if r.Offset() != 30 {
		t.Errorf("expected offset 30 after skip, got %d", r.Offset())
	}

	v, err := ReadValue[uint8](r, "marker")
	if err != nil || v != 0x7F {
		t.Fatalf("marker = 0x%x, %v", v, err)
	}
}

func TestReader_SkipForwardOnly(t *testing.T) {
	data := make([]byte, 10)
	data[6] = 0x42
	r := NewReader(forwardOnly{bytes.NewReader(data)}, "pipe", false)

	if r.Seekable() {
		t.Fatal("forward-only source should not be seekable")
	}
	if err := r.Skip(6, "gap"); err != nil {
		t.Fatalf("skip failed: %v", err)
	}
	v, err := ReadValue[uint8](r, "marker")
	if err != nil || v != 0x42 {
		t.Fatalf("marker = 0x%x, %v", v, err)
	}

	err = r.Skip(10, "too far")
	var oob *types.OutOfBoundsError
	if !errors.As(err, &oob) {
		t.Fatalf("expected OutOfBoundsError past end, got %v", err)
	}
}

func TestReader_ForceForwardOnly(t *testing.T) {
	r := NewReader(bytes.NewReader(make([]byte, 8)), "file", true)
	if r.Seekable() {
		t.Error("forwardOnly flag should disable seeking")
	}
}

func TestReader_SeekTo(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7}

	t.Run("seekable moves both ways", func(t *testing.T) {
		r := NewReader(bytes.NewReader(data), "file", false)
		if err := r.SeekTo(6, "sample"); err != nil {
			t.Fatal(err)
		}
		if err := r.SeekTo(2, "sample"); err != nil {
			t.Fatal(err)
		}
		v, err := ReadValue[uint8](r, "byte")
		if err != nil || v != 2 {
			t.Fatalf("got %d, %v", v, err)
		}
	})

	t.Run("forward-only rejects backwards", func(t *testing.T) {
		r := NewReader(forwardOnly{bytes.NewReader(data)}, "pipe", false)
		if err := r.SeekTo(5, "sample"); err != nil {
			t.Fatal(err)
		}
		err := r.SeekTo(1, "sample")
		if !errors.Is(err, types.ErrNotSeekable) {
			t.Fatalf("expected ErrNotSeekable, got %v", err)
		}
	})
}

func TestNewReaderAt(t *testing.T) {
	data := []byte{0x00, 0x01, 0x02, 0x03}
	src := forwardOnly{bytes.NewReader(data)}

	// The first two bytes were consumed elsewhere.
	if _, err := io.CopyN(io.Discard, src, 2); err != nil {
		t.Fatal(err)
	}

	r := NewReaderAt(src, "test.m4a", 2, true)
	if r.Offset() != 2 {
		t.Fatalf("offset = %d, want 2", r.Offset())
	}
	if err := r.SeekTo(3, "last byte"); err != nil {
		t.Fatalf("SeekTo: %v", err)
	}
	v, err := ReadValue[uint8](r, "last byte")
	if err != nil || v != 0x03 {
		t.Errorf("got 0x%02x, %v; want 0x03", v, err)
	}
	if err := r.SeekTo(0, "start"); !errors.Is(err, types.ErrNotSeekable) {
		t.Errorf("backward SeekTo: got %v, want ErrNotSeekable", err)
	}
}

func TestChainReader_Success(t *testing.T) {
	cr := NewChainReader([]byte{0x01, 0x02, 0x03, 0x04, 'a', 'l', 'a', 'c'}, 100, "test.m4a")

	v1 := ReadChained[uint8](cr, "first")
	v2 := ReadChained[uint8](cr, "second")
	v3 := ReadChained[uint16](cr, "third")
	code := cr.String(4, "fourcc")

	if err := cr.Error(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v1 != 0x01 || v2 != 0x02 || v3 != 0x0304 {
		t.Errorf("unexpected values: %02x %02x %04x", v1, v2, v3)
	}
	if code != "alac" {
		t.Errorf("expected fourcc 'alac', got %q", code)
	}
	if cr.Offset() != 108 || cr.Remaining() != 0 {
		t.Errorf("offset %d remaining %d", cr.Offset(), cr.Remaining())
	}
}

func TestChainReader_ErrorAccumulation(t *testing.T) {
	cr := NewChainReader([]byte{0x01, 0x02}, 0, "test.m4a")

	_ = ReadChained[uint8](cr, "first")  // OK
	_ = ReadChained[uint8](cr, "second") // OK
	_ = ReadChained[uint8](cr, "third")  // Error - out of bounds

	if cr.Error() == nil {
		t.Fatal("expected error, got nil")
	}
	first := cr.Error()

	// Once error occurs, subsequent reads should not execute
	if v := ReadChained[uint32](cr, "fourth"); v != 0 {
		t.Errorf("read after error returned %d", v)
	}
	if cr.Error() != first {
		t.Fatal("first error should persist")
	}
	if !strings.Contains(first.Error(), "third") {
		t.Errorf("error should name the failing field: %v", first)
	}
}

func BenchmarkReader_Sequential(b *testing.B) {
	data := make([]byte, 4000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r := NewReader(bytes.NewReader(data), "bench.m4a", false)
		for j := 0; j < 1000; j++ {
			_, _ = ReadValue[uint32](r, "test")
		}
	}
}
