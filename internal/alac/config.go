// Package alac decodes Apple Lossless frames into per-channel integer PCM.
package alac

import (
	"fmt"
	"slices"

	"github.com/simonhull/alac/internal/binary"
	"github.com/simonhull/alac/internal/types"
)

// ConfigSize is the size of the ALACSpecificConfig magic cookie.
const ConfigSize = 24

// MaxChannels is the largest channel count an ALAC stream may declare.
const MaxChannels = 8

var supportedBitDepths = []uint8{16, 20, 24, 32}

// Config is the codec configuration carried by the magic cookie.
type Config struct {
	FrameLength       uint32 // PCM frames per compressed sample
	CompatibleVersion uint8
	BitDepth          uint8
	PB                uint8 // Rice history multiplier base
	MB                uint8 // Rice initial history
	KB                uint8 // Rice parameter limit
	Channels          uint8
	MaxRun            uint16
	MaxFrameBytes     uint32
	AvgBitRate        uint32
	SampleRate        uint32
}

// ParseConfig reads the codec configuration from a magic cookie.
//
// Cookies copied out of QuickTime files may still carry a 'frma' atom and
// an 'alac' full-box header in front of the configuration; both are skipped.
func ParseConfig(cookie []byte) (Config, error) {
	data := skipWrapper(cookie, "frma")
	data = skipWrapper(data, "alac")

	cr := binary.NewChainReader(data, 0, "alac cookie")
	cfg := Config{
		FrameLength:       binary.ReadChained[uint32](cr, "frame length"),
		CompatibleVersion: binary.ReadChained[uint8](cr, "compatible version"),
		BitDepth:          binary.ReadChained[uint8](cr, "bit depth"),
		PB:                binary.ReadChained[uint8](cr, "pb"),
		MB:                binary.ReadChained[uint8](cr, "mb"),
		KB:                binary.ReadChained[uint8](cr, "kb"),
		Channels:          binary.ReadChained[uint8](cr, "channel count"),
		MaxRun:            binary.ReadChained[uint16](cr, "max run"),
		MaxFrameBytes:     binary.ReadChained[uint32](cr, "max frame bytes"),
		AvgBitRate:        binary.ReadChained[uint32](cr, "average bit rate"),
		SampleRate:        binary.ReadChained[uint32](cr, "sample rate"),
	}
	if err := cr.Error(); err != nil {
		return Config{}, &types.UnsupportedFormatError{
			Source: "alac cookie",
			Reason: fmt.Sprintf("cookie holds %d bytes, need %d: %v", len(data), ConfigSize, err),
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks that the configuration describes a stream this package
// can decode.
func (c Config) Validate() error {
	var reason string
	switch {
	case c.CompatibleVersion != 0:
		reason = fmt.Sprintf("compatible version %d", c.CompatibleVersion)
	case !slices.Contains(supportedBitDepths, c.BitDepth):
		reason = fmt.Sprintf("bit depth %d", c.BitDepth)
	case c.Channels == 0 || c.Channels > MaxChannels:
		reason = fmt.Sprintf("%d channels", c.Channels)
	case c.FrameLength == 0:
		reason = "zero frame length"
	case c.KB == 0 || c.KB > 31:
		reason = fmt.Sprintf("rice limit %d", c.KB)
	default:
		return nil
	}

	return &types.UnsupportedFormatError{Source: "alac cookie", Reason: reason}
}

// skipWrapper drops a 12-byte [size][type][4 bytes] atom header when the
// payload starts with the given atom type.
func skipWrapper(data []byte, atom string) []byte {
	const headerSize = 12
	if len(data) >= headerSize && string(data[4:8]) == atom {
		return data[headerSize:]
	}
	return data
}
