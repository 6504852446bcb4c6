package alac

import (
	"github.com/simonhull/alac/internal/types"
)

// StreamInfo is an alias to types.StreamInfo.
// Re-exporting from internal/types to maintain public API.
type StreamInfo = types.StreamInfo

// UnknownSampleCount is reported by TotalSamples when the sample index
// cannot produce a total.
const UnknownSampleCount = types.UnknownSampleCount
