// Package sampletable maps container samples to byte sizes, durations and
// absolute stream offsets.
//
// The tables are the raw run-length structures found in an MP4 sample
// table box (stsc, stco/co64, stts, stsz). They are read-only after New.
package sampletable

import (
	"fmt"

	"github.com/simonhull/alac/internal/types"
)

// ChunkRun is one chunk-map entry: every chunk from FirstChunk (1-based)
// up to the next run's FirstChunk holds SamplesPerChunk samples.
type ChunkRun struct {
	FirstChunk      uint32
	SamplesPerChunk uint32
}

// DurationRun is one time-to-sample entry: SampleCount consecutive samples
// each lasting SampleDuration PCM frames.
type DurationRun struct {
	SampleCount    uint32
	SampleDuration uint32
}

// Location is the answer to a seek query.
type Location struct {
	Offset int64  // absolute byte offset of the sample holding the position
	Sample uint64 // zero-based sample number
	Skip   uint32 // PCM frames to discard from the front of that sample
}

// Table is the queryable sample index.
type Table struct {
	chunkMap     []ChunkRun
	chunkOffsets []int64
	durations    []DurationRun
	sizes        []uint32
}

// New validates the raw tables and builds a Table.
//
// Validation covers the structural invariants only: the chunk map starts at
// chunk 1 and is strictly increasing, it implies exactly len(chunkOffsets)
// chunks holding len(sizes) samples. Duration runs are checked lazily by
// SampleInfo, so a stream with a short time-to-sample table still plays up
// to its last timed sample.
func New(chunkMap []ChunkRun, chunkOffsets []int64, durations []DurationRun, sizes []uint32) (*Table, error) {
	if len(chunkMap) == 0 && (len(chunkOffsets) > 0 || len(sizes) > 0) {
		return nil, fmt.Errorf("chunk map is empty but %d chunks are present", len(chunkOffsets))
	}

	for i, run := range chunkMap {
		if i == 0 && run.FirstChunk != 1 {
			return nil, fmt.Errorf("chunk map starts at chunk %d, want 1", run.FirstChunk)
		}
		if i > 0 && run.FirstChunk <= chunkMap[i-1].FirstChunk {
			return nil, fmt.Errorf("chunk map entry %d: first chunk %d not after %d",
				i, run.FirstChunk, chunkMap[i-1].FirstChunk)
		}
		if int(run.FirstChunk) > len(chunkOffsets) {
			return nil, fmt.Errorf("chunk map entry %d: first chunk %d beyond %d chunk offsets",
				i, run.FirstChunk, len(chunkOffsets))
		}
	}

	t := &Table{
		chunkMap:     chunkMap,
		chunkOffsets: chunkOffsets,
		durations:    durations,
		sizes:        sizes,
	}

	var implied uint64
	for chunk := range t.chunkRuns() {
		implied += uint64(chunk.samples)
	}
	if implied != uint64(len(sizes)) {
		return nil, fmt.Errorf("chunk map implies %d samples, size table holds %d", implied, len(sizes))
	}

	return t, nil
}

// SampleCount returns the number of indexed samples.
func (t *Table) SampleCount() uint64 {
	return uint64(len(t.sizes))
}

// ChunkCount returns the number of chunks.
func (t *Table) ChunkCount() int {
	return len(t.chunkOffsets)
}

// ChunkOffset returns the absolute byte offset of a zero-based chunk.
func (t *Table) ChunkOffset(chunk int) (int64, bool) {
	if chunk < 0 || chunk >= len(t.chunkOffsets) {
		return 0, false
	}
	return t.chunkOffsets[chunk], true
}

// TimedSamples returns the number of samples covered by the duration runs.
func (t *Table) TimedSamples() uint64 {
	var n uint64
	for _, run := range t.durations {
		n += uint64(run.SampleCount)
	}
	return n
}

// SampleInfo returns the compressed byte size and PCM duration of sample n.
//
// The duration is found by walking the time-to-sample runs from the start,
// so the cost is linear in the number of runs.
func (t *Table) SampleInfo(n uint64) (size uint32, duration uint32, err error) {
	if n >= uint64(len(t.sizes)) {
		return 0, 0, &types.SampleNotFoundError{Sample: n, Count: uint64(len(t.sizes))}
	}

	var first uint64
	for _, run := range t.durations {
		next := first + uint64(run.SampleCount)
		if n < next {
			return t.sizes[n], run.SampleDuration, nil
		}
		first = next
	}

	return 0, 0, &types.DurationMissingError{Sample: n, Covered: first}
}

// Locate finds the sample holding PCM position pcm.
//
// Chunks are enumerated in order; inside each chunk the byte offset grows by
// every skipped sample's size while durations accumulate until they pass
// pcm. This is a linear scan over samples, with SampleInfo re-deriving each
// duration.
func (t *Table) Locate(pcm uint64) (Location, error) {
	var elapsed uint64
	var sample uint64

	for chunk := range t.chunkRuns() {
		offset := t.chunkOffsets[chunk.index]

		for range chunk.samples {
			size, duration, err := t.SampleInfo(sample)
			if err != nil {
				return Location{}, err
			}

			if elapsed+uint64(duration) > pcm {
				return Location{
					Offset: offset,
					Sample: sample,
					Skip:   uint32(pcm - elapsed),
				}, nil
			}

			elapsed += uint64(duration)
			offset += int64(size)
			sample++
		}
	}

	return Location{}, &types.SeekOutOfRangeError{Position: pcm, Total: elapsed}
}

// TotalDuration sums the duration of every indexed sample.
func (t *Table) TotalDuration() (uint64, error) {
	var total uint64
	for n := range uint64(len(t.sizes)) {
		_, duration, err := t.SampleInfo(n)
		if err != nil {
			return 0, err
		}
		total += uint64(duration)
	}
	return total, nil
}

// SampleOffset returns the absolute byte offset of sample n.
func (t *Table) SampleOffset(n uint64) (int64, error) {
	if n >= uint64(len(t.sizes)) {
		return 0, &types.SampleNotFoundError{Sample: n, Count: uint64(len(t.sizes))}
	}

	var first uint64
	for chunk := range t.chunkRuns() {
		if n < first+uint64(chunk.samples) {
			offset := t.chunkOffsets[chunk.index]
			for s := first; s < n; s++ {
				offset += int64(t.sizes[s])
			}
			return offset, nil
		}
		first += uint64(chunk.samples)
	}

	return 0, &types.SampleNotFoundError{Sample: n, Count: first}
}

type chunkSpan struct {
	index   int // zero-based chunk index
	samples uint32
}

// chunkRuns yields every chunk with its sample count, expanding the chunk map.
func (t *Table) chunkRuns() func(yield func(chunkSpan) bool) {
	return func(yield func(chunkSpan) bool) {
		for i, run := range t.chunkMap {
			last := len(t.chunkOffsets)
			if i+1 < len(t.chunkMap) {
				last = int(t.chunkMap[i+1].FirstChunk) - 1
			}
			for c := int(run.FirstChunk) - 1; c < last; c++ {
				if !yield(chunkSpan{index: c, samples: run.SamplesPerChunk}) {
					return
				}
			}
		}
	}
}
