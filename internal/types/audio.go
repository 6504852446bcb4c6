// Package types holds the value and error types shared by the demuxer,
// the sample index, the frame decoder and the public API.
package types

import (
	"fmt"
	"strings"
	"time"
)

// StreamInfo describes the decoded PCM stream.
type StreamInfo struct {
	Codec          string // sample entry FourCC, always "alac" today
	Brand          string // ftyp major brand ("M4A ", "mp42", ...), empty if absent
	Duration       time.Duration
	TotalSamples   int64 // PCM frames, UnknownSampleCount if the index is unusable
	SampleRate     int
	BitDepth       int // source bit depth from the codec configuration
	OutputBitDepth int // bit depth of packed output
	Channels       int
	FrameLength    int // maximum PCM frames per compressed frame
	AvgBitRate     int
}

// UnknownSampleCount is reported when the total sample count cannot be derived.
const UnknownSampleCount int64 = -1

// String returns a human-readable representation of the stream.
// Example output: "ALAC 44.1kHz 16-bit stereo".
func (s StreamInfo) String() string {
	parts := []string{"ALAC"}

	if s.SampleRate > 0 {
		parts = append(parts, fmt.Sprintf("%.1fkHz", float64(s.SampleRate)/1000))
	}
	if s.BitDepth > 0 {
		parts = append(parts, fmt.Sprintf("%d-bit", s.BitDepth))
	}
	if ch := channelDescription(s.Channels); ch != "" {
		parts = append(parts, ch)
	}

	return strings.Join(parts, " ")
}

// BytesPerSample returns the packed output width of one channel sample.
func (s StreamInfo) BytesPerSample() int {
	return (s.OutputBitDepth + 7) / 8
}

// IsHighRes returns true if the audio is high-resolution.
//
// High-resolution is defined as:
//   - Sample rate > 48kHz, OR
//   - Bit depth > 16
func (s StreamInfo) IsHighRes() bool {
	return s.SampleRate > 48000 || s.BitDepth > 16
}

// channelDescription returns a human-readable channel description.
func channelDescription(channels int) string {
	switch channels {
	case 0:
		return ""
	case 1:
		return "mono"
	case 2:
		return "stereo"
	case 4:
		return "quad"
	case 6:
		return "5.1"
	case 8:
		return "7.1"
	default:
		return fmt.Sprintf("%dch", channels)
	}
}
