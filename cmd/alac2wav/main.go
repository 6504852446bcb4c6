// Command alac2wav decodes the ALAC track of an MP4 file to a WAV file.
//
// Usage:
//
//	alac2wav [-seek frames] [-bits n] [-forward] [-v] in.m4a out.wav
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/simonhull/alac"
)

// wavFormat is the WAVE_FORMAT_PCM audio format tag.
const wavFormat = 1

func main() {
	seek := flag.Uint64("seek", 0, "start decoding at this PCM frame")
	bits := flag.Int("bits", 0, "output bit depth (8, 16, 24 or 32), default from the stream")
	forward := flag.Bool("forward", false, "read the input strictly forward")
	verbose := flag.Bool("v", false, "log decoder diagnostics")
	version := flag.Bool("version", false, "print version and exit")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: alac2wav [flags] <in.m4a> <out.wav>")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *version {
		fmt.Println(alac.GetVersionInfo())
		return
	}
	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(flag.Arg(0), flag.Arg(1), *seek, *bits, *forward); err != nil {
		slog.Error("conversion failed", "input", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

func run(in, out string, seek uint64, bits int, forward bool) (err error) {
	opts := []alac.Option{alac.WithLogger(slog.Default())}
	if bits != 0 {
		opts = append(opts, alac.WithOutputBitDepth(bits))
	}
	if forward {
		opts = append(opts, alac.WithForwardOnly())
	}

	dec, err := alac.Open(in, opts...)
	if err != nil {
		return err
	}
	defer dec.Close()

	for _, w := range dec.Warnings() {
		slog.Warn("stream warning", "stage", w.Stage, "message", w.Message)
	}

	if seek > 0 {
		if err := dec.Seek(seek); err != nil {
			return err
		}
	}

	info := dec.Info()
	slog.Info("decoding", "input", in, "stream", info.String(), "duration", info.Duration)

	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	enc := wav.NewEncoder(f, info.SampleRate, info.OutputBitDepth, info.Channels, wavFormat)

	intBuf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: info.Channels, SampleRate: info.SampleRate},
		SourceBitDepth: info.OutputBitDepth,
	}
	if err := encode(dec, enc, intBuf, info); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// encode decodes the rest of the stream into enc.
func encode(dec *alac.Decoder, enc *wav.Encoder, intBuf *audio.IntBuffer, info alac.StreamInfo) error {
	shift := info.OutputBitDepth - info.BitDepth
	buf := make([]int32, dec.FrameLength()*dec.Channels())

	for {
		n, err := dec.DecodeSamples(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}

		data := intBuf.Data[:0]
		for _, s := range buf[:n*dec.Channels()] {
			v := int(s)
			if shift > 0 {
				v <<= shift
			} else if shift < 0 {
				v >>= -shift
			}
			// WAV stores 8-bit samples unsigned.
			if info.OutputBitDepth == 8 {
				v += 128
			}
			data = append(data, v)
		}
		intBuf.Data = data
		if err := enc.Write(intBuf); err != nil {
			return fmt.Errorf("write %d frames: %w", n, err)
		}
	}
}
