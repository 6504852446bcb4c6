package alac

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Open opens an MP4 file (usually .m4a) holding an ALAC track for decoding.
//
// The file is read in seekable mode unless WithForwardOnly is given, in
// which case it is read strictly forward and reopened when a backward move
// is needed.
//
// Options can be provided to customize decoding:
//
//	dec, err := alac.Open("song.m4a",
//	    alac.WithOutputBitDepth(24),
//	    alac.WithLogger(slog.Default()),
//	)
//
// Example:
//
//	dec, err := alac.Open("song.m4a")
//	if err != nil {
//		return err
//	}
//	defer dec.Close()
//	fmt.Println(dec.Info())
func Open(path string, opts ...Option) (*Decoder, error) {
	options := applyOptions(opts)

	if options.forwardOnly {
		open := func() (io.ReadCloser, error) {
			return os.Open(path)
		}
		rc, err := open()
		if err != nil {
			return nil, fmt.Errorf("open file: %w", err)
		}
		return newDecoder(rc, path, open, options)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	d, err := newDecoder(f, path, nil, options)
	if err != nil {
		f.Close()
		return nil, err
	}

	// Keep the file handle for decoding
	d.closer = f
	return d, nil
}

// OpenContext opens a file with context support for cancellation.
//
// This is a thin wrapper around Open() that checks context before starting.
// Opening reads only the container boxes, never the media data.
func OpenContext(ctx context.Context, path string, opts ...Option) (*Decoder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Open(path, opts...)
}

// OpenMany opens multiple ALAC files concurrently, one Decoder per file.
//
// Files are opened in parallel using up to runtime.NumCPU() goroutines.
// Results are returned in the same order as the input paths.
//
// If any file fails to open, all successfully opened decoders are closed
// and an error is returned.
//
// Example:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//
//	decoders, err := alac.OpenMany(ctx, paths...)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer func() {
//		for _, d := range decoders {
//			d.Close()
//		}
//	}()
func OpenMany(ctx context.Context, paths ...string) ([]*Decoder, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU()) // Limit concurrent operations

	results := make([]*Decoder, len(paths))

	for i, path := range paths {
		g.Go(func() error {
			// Check for cancellation
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			d, err := Open(path)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			results[i] = d
			return nil
		})
	}

	// Wait for all to complete
	if err := g.Wait(); err != nil {
		// Close any successfully opened decoders
		for _, d := range results {
			if d != nil {
				d.Close()
			}
		}
		return nil, err
	}

	return results, nil
}
