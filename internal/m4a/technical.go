package m4a

import (
	"bytes"
	"fmt"

	"github.com/abema/go-mp4"

	"github.com/simonhull/alac/internal/binary"
	"github.com/simonhull/alac/internal/types"
)

// sampleEntry is the first audio sample description of a track.
type sampleEntry struct {
	Format     string // sample entry FourCC, "alac" for Apple Lossless
	Channels   uint16
	SampleSize uint16
	SampleRate uint32 // integer part of the 16.16 rate
	Cookie     []byte // codec configuration, nil when absent
}

// unmarshalPayload decodes a full box payload with go-mp4.
func unmarshalPayload(source string, box Box, payload []byte, dst mp4.IBox) error {
	_, err := mp4.Unmarshal(bytes.NewReader(payload), uint64(len(payload)), dst, mp4.Context{})
	if err != nil {
		return &types.ContainerError{
			Source: source,
			Stage:  box.Type,
			Offset: box.Offset,
			Reason: "malformed payload",
			Err:    err,
		}
	}
	return nil
}

// parseFtyp returns the major brand.
func parseFtyp(source string, box Box, payload []byte) (string, error) {
	var ftyp mp4.Ftyp
	if err := unmarshalPayload(source, box, payload, &ftyp); err != nil {
		return "", err
	}
	return string(ftyp.MajorBrand[:]), nil
}

// parseMdhd returns the media timescale and duration.
func parseMdhd(source string, box Box, payload []byte) (timescale uint32, duration uint64, err error) {
	var mdhd mp4.Mdhd
	if err := unmarshalPayload(source, box, payload, &mdhd); err != nil {
		return 0, 0, err
	}

	if mdhd.GetVersion() == 1 {
		return mdhd.Timescale, mdhd.DurationV1, nil
	}
	return mdhd.Timescale, uint64(mdhd.DurationV0), nil
}

// parseHdlr returns the handler type ("soun" for audio).
func parseHdlr(source string, box Box, payload []byte) (string, error) {
	var hdlr mp4.Hdlr
	if err := unmarshalPayload(source, box, payload, &hdlr); err != nil {
		return "", err
	}
	return string(hdlr.HandlerType[:]), nil
}

// parseStsd parses the first sample description.
//
// Layout of an audio sample entry:
//
//	[4]  size        [4] format
//	[6]  reserved    [2] data reference index
//	[2]  version     [2] revision level   [4] vendor
//	[2]  channels    [2] sample size
//	[2]  compression [2] packet size      [4] sample rate (16.16)
//	version 1: 16 more bytes, version 2: 36 more bytes
//	child boxes: 'alac' (ISO) or 'wave' (QuickTime) holding the cookie
func parseStsd(source string, box Box, payload []byte) (*sampleEntry, error) {
	cr := binary.NewChainReader(payload, box.DataOffset(), source)

	cr.Skip(4, "stsd version and flags")
	entries := binary.ReadChained[uint32](cr, "stsd entry count")
	if err := cr.Error(); err != nil {
		return nil, stsdError(source, box, "truncated header", err)
	}
	if entries == 0 {
		return nil, stsdError(source, box, "no sample entries", nil)
	}

	entryStart := cr.Offset()
	entrySize := binary.ReadChained[uint32](cr, "sample entry size")
	format := cr.String(4, "sample entry format")
	if err := cr.Error(); err != nil {
		return nil, stsdError(source, box, "truncated sample entry", err)
	}

	entry := &sampleEntry{Format: format}
	if format != "alac" {
		return entry, nil
	}

	cr.Skip(6, "reserved")
	cr.Skip(2, "data reference index")
	version := binary.ReadChained[uint16](cr, "sound description version")
	cr.Skip(2, "revision level")
	cr.Skip(4, "vendor")
	entry.Channels = binary.ReadChained[uint16](cr, "channel count")
	entry.SampleSize = binary.ReadChained[uint16](cr, "sample size")
	cr.Skip(2, "compression id")
	cr.Skip(2, "packet size")
	entry.SampleRate = binary.ReadChained[uint32](cr, "sample rate") >> 16

	switch version {
	case 1:
		cr.Skip(16, "sound description v1 fields")
	case 2:
		cr.Skip(36, "sound description v2 fields")
	}
	if err := cr.Error(); err != nil {
		return nil, stsdError(source, box, "truncated alac sample entry", err)
	}

	consumed := cr.Offset() - entryStart
	if int64(entrySize) < consumed || int64(entrySize)-consumed > int64(cr.Remaining()) {
		return nil, stsdError(source, box, fmt.Sprintf("sample entry size %d is inconsistent", entrySize), nil)
	}

	children := cr.Bytes(int(int64(entrySize)-consumed), "sample entry children")
	entry.Cookie = findCookie(children)

	return entry, nil
}

// findCookie returns the codec configuration among a sample entry's
// children. An 'alac' child yields its payload after version and flags; a
// QuickTime 'wave' child is returned whole and unwrapped by the codec.
func findCookie(children []byte) []byte {
	for len(children) >= headerSize {
		size := int(binary.Decode[uint32](children, binary.BigEndian))
		if size < headerSize || size > len(children) {
			return nil
		}

		switch string(children[4:8]) {
		case "alac":
			if size < headerSize+4 {
				return nil
			}
			return children[headerSize+4 : size]
		case "wave":
			return children[headerSize:size]
		}
		children = children[size:]
	}
	return nil
}

func stsdError(source string, box Box, reason string, err error) error {
	return &types.ContainerError{
		Source: source,
		Stage:  "stsd",
		Offset: box.Offset,
		Reason: reason,
		Err:    err,
	}
}
