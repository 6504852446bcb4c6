package m4a

import (
	"github.com/abema/go-mp4"

	"github.com/simonhull/alac/internal/sampletable"
)

func parseStts(source string, box Box, payload []byte) ([]sampletable.DurationRun, error) {
	var stts mp4.Stts
	if err := unmarshalPayload(source, box, payload, &stts); err != nil {
		return nil, err
	}

	runs := make([]sampletable.DurationRun, len(stts.Entries))
	for i, e := range stts.Entries {
		runs[i] = sampletable.DurationRun{SampleCount: e.SampleCount, SampleDuration: e.SampleDelta}
	}
	return runs, nil
}

func parseStsc(source string, box Box, payload []byte) ([]sampletable.ChunkRun, error) {
	var stsc mp4.Stsc
	if err := unmarshalPayload(source, box, payload, &stsc); err != nil {
		return nil, err
	}

	runs := make([]sampletable.ChunkRun, len(stsc.Entries))
	for i, e := range stsc.Entries {
		runs[i] = sampletable.ChunkRun{FirstChunk: e.FirstChunk, SamplesPerChunk: e.SamplesPerChunk}
	}
	return runs, nil
}

func parseStco(source string, box Box, payload []byte) ([]int64, error) {
	var stco mp4.Stco
	if err := unmarshalPayload(source, box, payload, &stco); err != nil {
		return nil, err
	}

	offsets := make([]int64, len(stco.ChunkOffset))
	for i, off := range stco.ChunkOffset {
		offsets[i] = int64(off)
	}
	return offsets, nil
}

func parseCo64(source string, box Box, payload []byte) ([]int64, error) {
	var co64 mp4.Co64
	if err := unmarshalPayload(source, box, payload, &co64); err != nil {
		return nil, err
	}

	offsets := make([]int64, len(co64.ChunkOffset))
	for i, off := range co64.ChunkOffset {
		offsets[i] = int64(off)
	}
	return offsets, nil
}

// parseStsz returns one size per sample, expanding a constant sample size.
func parseStsz(source string, box Box, payload []byte, maxEntries uint64) ([]uint32, error) {
	var stsz mp4.Stsz
	if err := unmarshalPayload(source, box, payload, &stsz); err != nil {
		return nil, err
	}

	if stsz.SampleSize == 0 {
		return stsz.EntrySize, nil
	}

	if uint64(stsz.SampleCount) > maxEntries {
		return nil, tableLimitError(source, box, uint64(stsz.SampleCount)*4, maxEntries*4)
	}
	sizes := make([]uint32, stsz.SampleCount)
	for i := range sizes {
		sizes[i] = stsz.SampleSize
	}
	return sizes, nil
}
