package pcm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/simonhull/alac/internal/types"
)

func TestPack(t *testing.T) {
	tests := []struct {
		name     string
		src      []int32
		srcDepth int
		dstDepth int
		want     []byte
	}{
		{"16 to 16", []int32{1, -1, 0x1234}, 16, 16, []byte{0x01, 0x00, 0xff, 0xff, 0x34, 0x12}},
		{"16 to 8", []int32{0, -32768, 32767}, 16, 8, []byte{0x80, 0x00, 0xff}},
		{"16 to 24", []int32{-2}, 16, 24, []byte{0x00, 0xfe, 0xff}},
		{"20 to 24", []int32{1, -1}, 20, 24, []byte{0x10, 0x00, 0x00, 0xf0, 0xff, 0xff}},
		{"24 to 24", []int32{0x123456}, 24, 24, []byte{0x56, 0x34, 0x12}},
		{"24 to 16", []int32{0x123456, -256}, 24, 16, []byte{0x34, 0x12, 0xff, 0xff}},
		{"32 to 32", []int32{-2147483648}, 32, 32, []byte{0x00, 0x00, 0x00, 0x80}},
		{"16 to 32", []int32{1}, 16, 32, []byte{0x00, 0x00, 0x01, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dst := make([]byte, len(tt.want)+4)
			n, err := Pack(dst, tt.src, tt.srcDepth, tt.dstDepth)
			if err != nil {
				t.Fatalf("Pack: %v", err)
			}
			if n != len(tt.want) {
				t.Fatalf("Pack wrote %d bytes, want %d", n, len(tt.want))
			}
			if !bytes.Equal(dst[:n], tt.want) {
				t.Errorf("Pack = % x, want % x", dst[:n], tt.want)
			}
		})
	}
}

func TestPack_Errors(t *testing.T) {
	if _, err := Pack(make([]byte, 1), []int32{1}, 16, 16); !errors.Is(err, types.ErrShortBuffer) {
		t.Errorf("short buffer: got %v, want ErrShortBuffer", err)
	}
	if _, err := Pack(make([]byte, 8), []int32{1}, 16, 12); err == nil {
		t.Error("expected error for 12-bit output")
	}
	if _, err := Pack(make([]byte, 8), []int32{1}, 0, 16); err == nil {
		t.Error("expected error for zero source depth")
	}
}

func TestDefaultDepth(t *testing.T) {
	tests := map[int]int{16: 16, 20: 24, 24: 24, 32: 32}
	for in, want := range tests {
		if got := DefaultDepth(in); got != want {
			t.Errorf("DefaultDepth(%d) = %d, want %d", in, got, want)
		}
		if !ValidDepth(DefaultDepth(in)) {
			t.Errorf("DefaultDepth(%d) is not a valid output depth", in)
		}
	}
}

func TestBytesPerSample(t *testing.T) {
	for depth, want := range map[int]int{8: 1, 16: 2, 24: 3, 32: 4} {
		if got := BytesPerSample(depth); got != want {
			t.Errorf("BytesPerSample(%d) = %d, want %d", depth, got, want)
		}
	}
}
