package alac

import "log/slog"

// Option configures behavior when opening a stream.
//
// Options use the functional options pattern for clean, extensible APIs.
//
// Example:
//
//	dec, err := alac.Open("song.m4a",
//	    alac.WithOutputBitDepth(16),
//	    alac.WithStrictParsing(),
//	)
type Option func(*decoderOptions)

// decoderOptions holds configuration for opening streams.
type decoderOptions struct {
	logger         *slog.Logger
	outputBitDepth int   // 0 = derived from the stream bit depth
	forwardOnly    bool  // Never seek the source, even when it can
	strictParsing  bool  // Fail on any warning
	ignoreWarnings bool  // Suppress all warnings
	maxTableSize   int64 // Largest box payload read into memory (0 = default)
}

// defaultOptions returns the default configuration.
func defaultOptions() *decoderOptions {
	return &decoderOptions{
		logger:         nil, // discard
		outputBitDepth: 0,
		forwardOnly:    false,
		strictParsing:  false,
		ignoreWarnings: false,
		maxTableSize:   0,
	}
}

// WithLogger sends diagnostics to logger.
//
// Container walking and seeks log at Debug level; warnings collected while
// opening are also logged at Warn level. By default nothing is logged.
func WithLogger(logger *slog.Logger) Option {
	return func(o *decoderOptions) {
		o.logger = logger
	}
}

// WithOutputBitDepth selects the width of packed PCM: 8, 16, 24 or 32.
//
// By default the output matches the stream, except that 20-bit streams
// are delivered as 24-bit samples. Narrower output drops low bits, wider
// output shifts samples left.
//
// Example:
//
//	// Always deliver 16-bit PCM
//	dec, err := alac.Open("hires.m4a", alac.WithOutputBitDepth(16))
func WithOutputBitDepth(bits int) Option {
	return func(o *decoderOptions) {
		o.outputBitDepth = bits
	}
}

// WithForwardOnly reads the source strictly forward, as if it could not seek.
//
// Open combined with WithForwardOnly reopens the file when the media data
// precedes the movie box, and for backward seeks.
func WithForwardOnly() Option {
	return func(o *decoderOptions) {
		o.forwardOnly = true
	}
}

// WithStrictParsing treats any warning as a fatal error.
//
// By default, the decoder opens streams with oddities such as a second
// audio track or a time-to-sample table that disagrees with the size
// table, and reports them through Decoder.Warnings.
//
// With strict parsing enabled, any warning becomes a fatal error.
//
// Example:
//
//	dec, err := alac.Open("song.m4a", alac.WithStrictParsing())
//	// err != nil if ANY issue is encountered
func WithStrictParsing() Option {
	return func(o *decoderOptions) {
		o.strictParsing = true
	}
}

// WithIgnoreWarnings suppresses all warnings.
//
// Decoder.Warnings will always be empty.
func WithIgnoreWarnings() Option {
	return func(o *decoderOptions) {
		o.ignoreWarnings = true
	}
}

// WithMaxTableSize limits the size of any box payload read into memory
// while opening, protecting against hostile sample tables.
//
// Default is 64 MiB.
func WithMaxTableSize(bytes int64) Option {
	return func(o *decoderOptions) {
		o.maxTableSize = bytes
	}
}
