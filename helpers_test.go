package alac_test

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/simonhull/alac"
	"github.com/simonhull/alac/internal/m4atest"
)

// forwardReader hides the Seek method of the wrapped reader.
type forwardReader struct {
	io.Reader
}

// opener serves fresh readers over data and counts the opens.
type opener struct {
	data  []byte
	opens int
}

func (o *opener) open() (io.ReadCloser, error) {
	o.opens++
	return io.NopCloser(forwardReader{bytes.NewReader(o.data)}), nil
}

// writeTestFile writes data to a temporary .m4a file and returns its path.
func writeTestFile(tb testing.TB, data []byte) string {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "test.m4a")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatal(err)
	}
	return path
}

// stereoFile returns a compressed 16-bit stereo file of total PCM frames
// in frames of 64, along with its samples.
func stereoFile(total int) (m4atest.File, [][]int32) {
	samples := m4atest.Ramp(2, total, 16, 3)
	return m4atest.CompressedFile(44100, 16, 64, samples), samples
}

// decodeAll decodes the rest of the stream with DecodeSamples.
func decodeAll(tb testing.TB, dec *alac.Decoder) []int32 {
	tb.Helper()

	buf := make([]int32, dec.FrameLength()*dec.Channels())
	var out []int32
	for {
		n, err := dec.DecodeSamples(buf)
		if err != nil {
			tb.Fatalf("DecodeSamples at position %d: %v", dec.Position(), err)
		}
		if n == 0 {
			return out
		}
		out = append(out, buf[:n*dec.Channels()]...)
	}
}

// decodeErr decodes until the first error or the end of the stream.
func decodeErr(dec *alac.Decoder) ([]int32, error) {
	buf := make([]int32, dec.FrameLength()*dec.Channels())
	var out []int32
	for {
		n, err := dec.DecodeSamples(buf)
		if err != nil {
			return out, err
		}
		if n == 0 {
			return out, nil
		}
		out = append(out, buf[:n*dec.Channels()]...)
	}
}

func equalSamples(tb testing.TB, got, want []int32) {
	tb.Helper()

	if len(got) != len(want) {
		tb.Fatalf("decoded %d samples, want %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			tb.Fatalf("sample %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func isCorrupt(err error, sample uint64) bool {
	var cf *alac.CorruptFrameError
	return errors.As(err, &cf) && cf.Sample == sample
}
