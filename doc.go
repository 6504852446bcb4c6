// Package alac decodes Apple Lossless (ALAC) audio stored in MP4 containers.
//
// The package walks the container's box hierarchy once at open time, builds
// an index from the track's sample tables and then decodes one compressed
// sample (frame) per call into integer or packed little-endian PCM, with
// sample-accurate seeking.
//
// # Quick Start
//
// Decoding a file to raw PCM:
//
//	dec, err := alac.Open("song.m4a")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer dec.Close()
//
//	fmt.Println(dec.Info()) // ALAC 44.1kHz 16-bit stereo
//	io.Copy(out, dec)       // Decoder is an io.Reader over packed PCM
//
// Frame by frame:
//
//	buf := make([]byte, dec.MaxFrameBytes())
//	for {
//		n, err := dec.DecodeNext(buf)
//		if err != nil {
//			return err
//		}
//		if n == 0 {
//			break // end of stream
//		}
//		play(buf[:n*dec.Channels()*dec.BytesPerSample()])
//	}
//
// # Seeking
//
// Seek takes a position in PCM frames. The decoder jumps to the sample that
// holds the position and drops the leading frames of its output, so the
// next decoded frame is exactly the one requested:
//
//	if err := dec.Seek(44100 * 30); err != nil { // 30 seconds in
//		return err
//	}
//
// # Forward-only Sources
//
// Sources that cannot seek are decoded by reading strictly forward. When
// the media data comes before the movie box the index is only known after
// the samples went by, so the source has to be opened again:
//
//	dec, err := alac.NewForwardOnlyDecoder(func() (io.ReadCloser, error) {
//		return fetch(url)
//	})
//
// # Architecture
//
// The library uses a layered architecture:
//
//	[Decoder]                  - Entry point with Open(), owns the stream
//	  ├─ [m4a.Demux]           - Container walk, seek strategy
//	  ├─ [sampletable.Table]   - Sample sizes, durations and offsets
//	  ├─ [alac.Decoder]        - Frame decoding (Rice, predictor, unmix)
//	  └─ [pcm.Pack]            - Output packing
//
// # Error Handling
//
// Fatal errors are typed: ContainerError for a missing or malformed box
// hierarchy, UnsupportedFormatError for tracks this package cannot decode,
// CorruptFrameError for undecodable frames, SeekOutOfRangeError for seeks
// past the end. After a decode error the Decoder keeps returning it until
// the next successful Seek.
//
// Non-fatal issues found while opening are collected as warnings:
//
//	for _, w := range dec.Warnings() {
//		log.Printf("Warning: %s", w)
//	}
//
// # Logging
//
// Diagnostics go to a log/slog logger passed with WithLogger; by default
// nothing is logged.
package alac
