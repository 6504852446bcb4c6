package alac_test

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/simonhull/alac"
)

// matrixConfig describes one encoded reference file.
type matrixConfig struct {
	SampleRate  int `json:"sample_rate"`
	SampleSize  int `json:"sample_size"`
	NumChannels int `json:"num_channels"`
}

// TestMatrix decodes encoder output against raw little-endian PCM
// references. Each testdata/generated/<config>/<name>.m4a comes with a
// <name>.json config and a <name>.raw reference, for example:
//
//	ffmpeg -i in.wav -c:a alac -sample_fmt s16p name.m4a
//	ffmpeg -i name.m4a -f s16le name.raw
func TestMatrix(t *testing.T) {
	baseDir := filepath.Join("testdata", "generated")

	entries, err := os.ReadDir(baseDir)
	if os.IsNotExist(err) {
		t.Skip("reference files not generated (requires FFmpeg)")
	}
	if err != nil {
		t.Fatalf("read %s: %v", baseDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		configDir := filepath.Join(baseDir, entry.Name())
		files, err := filepath.Glob(filepath.Join(configDir, "*.m4a"))
		if err != nil {
			t.Fatalf("glob %s: %v", configDir, err)
		}
		for _, path := range files {
			base := strings.TrimSuffix(path, ".m4a")
			t.Run(entry.Name()+"/"+filepath.Base(base), func(t *testing.T) {
				runMatrixTest(t, base)
			})
		}
	}
}

func runMatrixTest(t *testing.T, base string) {
	data, err := os.ReadFile(base + ".json")
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var cfg matrixConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}

	want, err := os.ReadFile(base + ".raw")
	if err != nil {
		t.Fatalf("read reference: %v", err)
	}

	dec, err := alac.Open(base+".m4a", alac.WithOutputBitDepth(cfg.SampleSize))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer dec.Close()

	if dec.SampleRate() != cfg.SampleRate || dec.Channels() != cfg.NumChannels {
		t.Errorf("stream is %d Hz %d channels, want %d Hz %d channels",
			dec.SampleRate(), dec.Channels(), cfg.SampleRate, cfg.NumChannels)
	}

	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("decoded %d bytes, want %d", len(got), len(want))
	}
	if !bytes.Equal(got, want) {
		for i := range got {
			if got[i] != want[i] {
				t.Fatalf("first mismatch at byte %d (sample %d)", i, i/(cfg.SampleSize/8))
			}
		}
	}
}
