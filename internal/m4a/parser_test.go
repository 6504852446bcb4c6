package m4a

import (
	"bytes"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"github.com/simonhull/alac/internal/alac"
	"github.com/simonhull/alac/internal/m4atest"
	"github.com/simonhull/alac/internal/types"
)

// forwardReader hides the Seek method of the wrapped reader.
type forwardReader struct {
	io.Reader
}

func testFile(frames int) m4atest.File {
	samples := m4atest.Ramp(2, frames*16-5, 16, 1)
	return m4atest.VerbatimFile(44100, 16, 16, samples)
}

func TestDemux_MoovFirst(t *testing.T) {
	f := testFile(6)
	f.SamplesPerChunk = 2
	f.ChunkGap = 7
	data, layout := f.Build()

	track, err := Demux(bytes.NewReader(data), "test.m4a", Options{})
	if err != nil {
		t.Fatalf("Demux: %v", err)
	}

	if _, ok := track.Strategy.(Seekable); !ok {
		t.Errorf("strategy = %#v, want Seekable", track.Strategy)
	}
	if track.Brand != "M4A " {
		t.Errorf("brand = %q", track.Brand)
	}
	if track.Format != "alac" {
		t.Errorf("format = %q", track.Format)
	}
	if track.Channels != 2 || track.SampleSize != 16 || track.SampleRate != 44100 {
		t.Errorf("sample entry = %d ch, %d bits, %d Hz", track.Channels, track.SampleSize, track.SampleRate)
	}
	if track.Timescale != 44100 {
		t.Errorf("timescale = %d", track.Timescale)
	}
	if track.MediaDuration != 6*16-5 {
		t.Errorf("media duration = %d, want %d", track.MediaDuration, 6*16-5)
	}
	if !slices.Equal(track.ChunkOffsets, layout.ChunkOffsets) {
		t.Errorf("chunk offsets = %v, want %v", track.ChunkOffsets, layout.ChunkOffsets)
	}
	if track.MdatOffset != layout.MdatOffset || track.MdatDataOffset != layout.MdatDataOffset {
		t.Errorf("mdat at %d/%d, want %d/%d",
			track.MdatOffset, track.MdatDataOffset, layout.MdatOffset, layout.MdatDataOffset)
	}
	if len(track.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", track.Warnings)
	}

	if got := track.Index.SampleCount(); got != 6 {
		t.Errorf("sample count = %d, want 6", got)
	}
	total, err := track.Index.TotalDuration()
	if err != nil || total != 6*16-5 {
		t.Errorf("total duration = %d, %v", total, err)
	}

	// Every sample offset must address its frame bytes.
	for n := range uint64(6) {
		off, err := track.Index.SampleOffset(n)
		if err != nil {
			t.Fatalf("SampleOffset(%d): %v", n, err)
		}
		frame := f.Frames[n]
		if !bytes.Equal(data[off:off+int64(len(frame))], frame) {
			t.Errorf("sample %d offset %d does not hold its frame", n, off)
		}
	}

	cfg, err := alac.ParseConfig(track.Cookie)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.FrameLength != 16 || cfg.Channels != 2 || cfg.BitDepth != 16 {
		t.Errorf("config = %+v", cfg)
	}
}

func TestDemux_Strategy(t *testing.T) {
	tests := []struct {
		name        string
		mdatFirst   bool
		forwardOnly bool
		wrap        bool
		want        string
	}{
		{"seekable moov first", false, false, false, "seekable"},
		{"seekable mdat first", true, false, false, "seekable"},
		{"plain reader moov first", false, false, true, "forward"},
		{"plain reader mdat first", true, false, true, "forward"},
		{"forced forward", false, true, false, "forward"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testFile(4)
			f.MdatFirst = tt.mdatFirst
			data, layout := f.Build()

			var r io.Reader = bytes.NewReader(data)
			if tt.wrap {
				r = forwardReader{r}
			}

			track, err := Demux(r, "test.m4a", Options{ForwardOnly: tt.forwardOnly})
			if err != nil {
				t.Fatalf("Demux: %v", err)
			}

			switch s := track.Strategy.(type) {
			case Seekable:
				if tt.want != "seekable" {
					t.Fatalf("got Seekable, want %s", tt.want)
				}
			case ForwardOnly:
				if tt.want != "forward" {
					t.Fatalf("got ForwardOnly, want %s", tt.want)
				}
				if s.ResumeOffset != layout.ChunkOffsets[0] {
					t.Errorf("resume offset = %d, want %d", s.ResumeOffset, layout.ChunkOffsets[0])
				}
				passed := track.StopOffset > s.ResumeOffset
				if passed != tt.mdatFirst {
					t.Errorf("stop offset %d, resume offset %d: passed = %v, want %v",
						track.StopOffset, s.ResumeOffset, passed, tt.mdatFirst)
				}
			default:
				t.Fatalf("unexpected strategy %#v", s)
			}
		})
	}
}

func TestDemux_Variants(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*m4atest.File)
		warn   string
	}{
		{"co64", func(f *m4atest.File) { f.Co64 = true }, ""},
		{"wave cookie", func(f *m4atest.File) { f.WaveCookie = true }, ""},
		{"video track first", func(f *m4atest.File) { f.VideoTrack = true }, ""},
		{"large chunks", func(f *m4atest.File) { f.SamplesPerChunk = 3 }, ""},
		{"no ftyp", func(f *m4atest.File) { f.NoFtyp = true }, "container"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := testFile(5)
			tt.modify(&f)
			data, layout := f.Build()

			track, err := Demux(bytes.NewReader(data), "test.m4a", Options{})
			if err != nil {
				t.Fatalf("Demux: %v", err)
			}
			if !slices.Equal(track.ChunkOffsets, layout.ChunkOffsets) {
				t.Errorf("chunk offsets = %v, want %v", track.ChunkOffsets, layout.ChunkOffsets)
			}
			if _, err := alac.ParseConfig(track.Cookie); err != nil {
				t.Errorf("ParseConfig: %v", err)
			}

			if tt.warn == "" {
				if len(track.Warnings) != 0 {
					t.Errorf("unexpected warnings: %v", track.Warnings)
				}
				return
			}
			if len(track.Warnings) != 1 || track.Warnings[0].Stage != tt.warn {
				t.Errorf("warnings = %v, want one %q warning", track.Warnings, tt.warn)
			}
		})
	}
}

func TestDemux_MissingBoxes(t *testing.T) {
	tests := []struct {
		omit  string
		stage string
	}{
		{"stsd", "stsd"},
		{"stts", "stts"},
		{"stsc", "stsc"},
		{"stsz", "stsz"},
		{"stco", "stco"},
		{"mdat", "mdat"},
	}

	for _, tt := range tests {
		t.Run(tt.omit, func(t *testing.T) {
			f := testFile(3)
			f.Omit = tt.omit

			_, err := Demux(bytes.NewReader(f.Bytes()), "test.m4a", Options{})
			var ce *types.ContainerError
			if !errors.As(err, &ce) {
				t.Fatalf("got %v, want ContainerError", err)
			}
			if ce.Stage != tt.stage {
				t.Errorf("stage = %q, want %q", ce.Stage, tt.stage)
			}
		})
	}
}

func TestDemux_NotALAC(t *testing.T) {
	f := testFile(2)
	f.Format = "mp4a"

	_, err := Demux(bytes.NewReader(f.Bytes()), "test.m4a", Options{})
	var ue *types.UnsupportedFormatError
	if !errors.As(err, &ue) {
		t.Fatalf("got %v, want UnsupportedFormatError", err)
	}
	if !strings.Contains(ue.Reason, "AAC") {
		t.Errorf("reason %q should name the codec", ue.Reason)
	}
}

func TestDemux_Malformed(t *testing.T) {
	valid := testFile(3).Bytes()

	overrun := createMockAtom("ftyp", []byte("M4A \x00\x00\x00\x00"))
	child := createMockAtom("trak", make([]byte, 8))
	child[3] = 200 // claims more than the parent holds
	overrun = append(overrun, createMockAtom("moov", child)...)

	tests := []struct {
		name string
		data []byte
		opts Options
	}{
		{"empty", nil, Options{}},
		{"only ftyp", createMockAtom("ftyp", []byte("M4A \x00\x00\x00\x00")), Options{}},
		{"truncated moov", valid[:len(valid)/3], Options{}},
		{"child overruns parent", overrun, Options{}},
		{"table limit", valid, Options{MaxTableSize: 16}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Demux(bytes.NewReader(tt.data), "test.m4a", tt.opts)
			var ce *types.ContainerError
			if !errors.As(err, &ce) {
				t.Fatalf("got %v, want ContainerError", err)
			}
			if ce.Source != "test.m4a" {
				t.Errorf("source = %q", ce.Source)
			}
		})
	}
}

func TestDemux_DurationMismatch(t *testing.T) {
	f := testFile(4)
	f.Durations = []uint32{16, 16, 16}

	track, err := Demux(bytes.NewReader(f.Bytes()), "test.m4a", Options{})
	if err != nil {
		t.Fatalf("Demux: %v", err)
	}
	if len(track.Warnings) != 1 || track.Warnings[0].Stage != "index" {
		t.Fatalf("warnings = %v, want one index warning", track.Warnings)
	}

	_, _, err = track.Index.SampleInfo(3)
	var dm *types.DurationMissingError
	if !errors.As(err, &dm) {
		t.Errorf("SampleInfo(3): got %v, want DurationMissingError", err)
	}
}

func TestDump(t *testing.T) {
	f := testFile(3)
	var out strings.Builder

	if err := Dump(&out, bytes.NewReader(f.Bytes()), "test.m4a"); err != nil {
		t.Fatalf("Dump: %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"ftyp (size: 28, offset: 0)",
		"moov (size: ",
		"\n  trak (size: ",
		"\n        stbl (size: ",
		"stsz (size: ",
		"entries: 3",
		"\nmdat (size: ",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("dump lacks %q:\n%s", want, text)
		}
	}
}
