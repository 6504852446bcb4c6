package alac

import (
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/simonhull/alac/internal/bitstream"
	"github.com/simonhull/alac/internal/m4atest"
)

func TestDecodeResiduals_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	noisy := make([]int32, 4096)
	for i := range noisy {
		noisy[i] = int32(rng.IntN(2001) - 1000)
	}

	sparse := make([]int32, 1024)
	for i := 0; i < len(sparse); i += 97 {
		sparse[i] = int32(i%7) - 3
	}

	tests := []struct {
		name      string
		residuals []int32
		width     uint
	}{
		{"small", []int32{0, 1, -1, 2, -2, 3, -3, 7}, 16},
		{"leading zeros", []int32{0, 0, 0, 0, 5, 0, 0, -4}, 16},
		{"all zero", make([]int32, 300), 16},
		{"large values escape", []int32{30000, -30000, 12345, -1, 0, 32767, -32768}, 17},
		{"noise", noisy, 16},
		{"sparse", sparse, 16},
		{"single", []int32{-42}, 16},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w m4atest.BitWriter
			m4atest.EncodeResiduals(&w, tt.residuals, 10, 40, 14, tt.width)

			got := make([]int32, len(tt.residuals))
			br := bitstream.NewReader(w.Bytes())
			err := decodeResiduals(br, got, riceParams{mb: 10, mult: 40, kb: 14}, tt.width)
			if err != nil {
				t.Fatalf("decodeResiduals: %v", err)
			}
			if !slices.Equal(got, tt.residuals) {
				t.Errorf("round trip mismatch\n got %v\nwant %v", head(got), head(tt.residuals))
			}
			if br.Position() != int(w.Len()) {
				t.Errorf("consumed %d bits, encoder wrote %d", br.Position(), w.Len())
			}
		})
	}
}

func TestDecodeResiduals_LongZeroRun(t *testing.T) {
	residuals := make([]int32, 70000)
	residuals[len(residuals)-1] = 9

	var w m4atest.BitWriter
	m4atest.EncodeResiduals(&w, residuals, 10, 40, 14, 16)

	got := make([]int32, len(residuals))
	if err := decodeResiduals(bitstream.NewReader(w.Bytes()), got, riceParams{mb: 10, mult: 40, kb: 14}, 16); err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(got, residuals) {
		t.Error("long zero run did not round trip")
	}
}

func TestDecodeResiduals_Truncated(t *testing.T) {
	var w m4atest.BitWriter
	m4atest.EncodeResiduals(&w, []int32{100, -200, 300, -400}, 10, 40, 14, 16)

	payload := w.Bytes()
	got := make([]int32, 4)
	err := decodeResiduals(bitstream.NewReader(payload[:len(payload)/2]), got, riceParams{mb: 10, mult: 40, kb: 14}, 16)
	if err == nil {
		t.Fatal("expected error on truncated residuals")
	}
}

func TestDecodeResiduals_RunOverflow(t *testing.T) {
	// One zero symbol, then a zero run claiming far more residuals than remain.
	var w m4atest.BitWriter
	w.WriteBits(0, 1) // symbol 0 with k=1
	w.WriteOnes(9)    // escaped run length
	w.WriteBits(500, 16)

	got := make([]int32, 10)
	err := decodeResiduals(bitstream.NewReader(w.Bytes()), got, riceParams{mb: 10, mult: 40, kb: 14}, 16)
	if err == nil {
		t.Fatal("expected error for oversized zero run")
	}
}

func TestDecodeResiduals_InvalidWidth(t *testing.T) {
	got := make([]int32, 1)
	if err := decodeResiduals(bitstream.NewReader([]byte{0}), got, riceParams{mb: 10, mult: 40, kb: 14}, 33); err == nil {
		t.Error("expected error for 33-bit residuals")
	}
}

func TestLog2Plus3(t *testing.T) {
	tests := []struct {
		in, want uint32
	}{
		{0, 1},
		{1, 2},
		{5, 3},
		{13, 4},
		{0xffff, 16},
	}
	for _, tt := range tests {
		if got := log2Plus3(tt.in); got != tt.want {
			t.Errorf("log2Plus3(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func head(s []int32) []int32 {
	if len(s) > 16 {
		return s[:16]
	}
	return s
}
