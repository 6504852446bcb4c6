package m4atest

import (
	"bytes"
	"slices"

	"github.com/simonhull/alac/internal/binary"
)

// File describes a synthetic MP4 file holding one ALAC track.
type File struct {
	SampleRate  uint32
	Channels    int
	BitDepth    int
	FrameLength int

	// Frames are the compressed samples, in decode order.
	Frames [][]byte

	// Durations holds the PCM frame count of each sample. Nil means
	// FrameLength for every sample.
	Durations []uint32

	// SamplesPerChunk groups samples into chunks. Zero means 1.
	SamplesPerChunk int

	// ChunkGap inserts padding bytes between chunks inside mdat.
	ChunkGap int

	// MaxFrameBytes is written to the codec configuration. Zero leaves the
	// largest frame size undeclared.
	MaxFrameBytes uint32

	MdatFirst  bool   // write mdat before moov
	Co64       bool   // 64-bit chunk offsets
	WaveCookie bool   // QuickTime 'wave' wrapper around the cookie
	NoFtyp     bool   // omit the ftyp box
	VideoTrack bool   // add a video track before the audio track
	Format     string // sample entry FourCC, default "alac"
	Omit       string // leave out the named stbl child or "mdat"
}

// Layout reports where Build placed the media data.
type Layout struct {
	MdatOffset     int64
	MdatDataOffset int64
	ChunkOffsets   []int64
	MoovOffset     int64
}

// Build serializes the file.
func (f File) Build() ([]byte, Layout) {
	spc := max(f.SamplesPerChunk, 1)
	chunks := chunkFrames(f.Frames, spc)

	var ftyp []byte
	if !f.NoFtyp {
		ftyp = box("ftyp", []byte("M4A "), u32(0), []byte("M4A mp42isom"))
	}

	mdatPayload, rel := f.mdatPayload(chunks)
	mdat := box("mdat", mdatPayload)

	// Offset widths are fixed, so the moov size does not depend on them.
	moovSize := len(f.moov(chunks, make([]int64, len(chunks))))

	var layout Layout
	if f.MdatFirst {
		layout.MdatOffset = int64(len(ftyp))
		layout.MoovOffset = layout.MdatOffset + int64(len(mdat))
	} else {
		layout.MoovOffset = int64(len(ftyp))
		layout.MdatOffset = layout.MoovOffset + int64(moovSize)
	}
	layout.MdatDataOffset = layout.MdatOffset + 8
	for _, r := range rel {
		layout.ChunkOffsets = append(layout.ChunkOffsets, layout.MdatDataOffset+r)
	}

	moov := f.moov(chunks, layout.ChunkOffsets)
	if f.Omit == "mdat" {
		mdat = nil
	}

	out := slices.Clone(ftyp)
	if f.MdatFirst {
		out = append(out, mdat...)
		out = append(out, moov...)
	} else {
		out = append(out, moov...)
		out = append(out, mdat...)
	}
	return out, layout
}

// Bytes serializes the file, discarding the layout.
func (f File) Bytes() []byte {
	b, _ := f.Build()
	return b
}

func chunkFrames(frames [][]byte, spc int) [][][]byte {
	var chunks [][][]byte
	for len(frames) > 0 {
		n := min(spc, len(frames))
		chunks = append(chunks, frames[:n])
		frames = frames[n:]
	}
	return chunks
}

// mdatPayload lays out the chunks and returns their offsets relative to
// the payload start.
func (f File) mdatPayload(chunks [][][]byte) ([]byte, []int64) {
	var payload []byte
	var rel []int64
	for i, chunk := range chunks {
		if i > 0 {
			payload = append(payload, make([]byte, f.ChunkGap)...)
		}
		rel = append(rel, int64(len(payload)))
		for _, frame := range chunk {
			payload = append(payload, frame...)
		}
	}
	return payload, rel
}

func (f File) moov(chunks [][][]byte, offsets []int64) []byte {
	mvhd := fullBox("mvhd", 0, make([]byte, 96))

	var traks []byte
	if f.VideoTrack {
		traks = append(traks, box("trak",
			box("mdia",
				f.mdhd(0),
				hdlr("vide"),
				box("minf", box("stbl", fullBox("stsd", 0, u32(1), box("avc1", make([]byte, 70))))),
			),
		)...)
	}

	var total uint64
	for _, d := range f.durations() {
		total += uint64(d)
	}

	traks = append(traks, box("trak",
		box("mdia",
			f.mdhd(total),
			hdlr("soun"),
			box("minf",
				box("smhd", make([]byte, 8)),
				box("dinf", fullBox("dref", 0, u32(0))),
				f.stbl(chunks, offsets),
			),
		),
	)...)

	return box("moov", mvhd, traks, box("udta", box("free", []byte("padding"))))
}

func (f File) mdhd(duration uint64) []byte {
	p := u32(0) // creation time
	p = append(p, u32(0)...)
	p = append(p, u32(f.SampleRate)...)
	p = append(p, u32(uint32(duration))...)
	p = append(p, 0x55, 0xc4, 0, 0) // language "und", pre-defined
	return fullBox("mdhd", 0, p)
}

func hdlr(handler string) []byte {
	p := u32(0)
	p = append(p, handler...)
	p = append(p, make([]byte, 12)...)
	p = append(p, "Handler\x00"...)
	return fullBox("hdlr", 0, p)
}

func (f File) stbl(chunks [][][]byte, offsets []int64) []byte {
	children := map[string][]byte{
		"stsd": f.stsd(),
		"stts": f.stts(),
		"stsc": stsc(chunks),
		"stsz": f.stsz(),
	}
	if f.Co64 {
		p := u32(uint32(len(offsets)))
		for _, off := range offsets {
			p = append(p, be(uint64(off))...)
		}
		children["co64"] = fullBox("co64", 0, p)
	} else {
		p := u32(uint32(len(offsets)))
		for _, off := range offsets {
			p = append(p, u32(uint32(off))...)
		}
		children["stco"] = fullBox("stco", 0, p)
	}

	var payload []byte
	for _, name := range []string{"stsd", "stts", "stsc", "stsz", "stco", "co64"} {
		if name != f.Omit {
			payload = append(payload, children[name]...)
		}
	}
	return box("stbl", payload)
}

func (f File) stsd() []byte {
	format := f.Format
	if format == "" {
		format = "alac"
	}

	entry := make([]byte, 6)         // reserved
	entry = append(entry, 0, 1)      // data reference index
	entry = append(entry, u32(0)...) // version and revision
	entry = append(entry, u32(0)...) // vendor
	entry = append(entry, u16(uint16(f.Channels))...)
	entry = append(entry, u16(uint16(f.BitDepth))...)
	entry = append(entry, u32(0)...) // compression id and packet size
	entry = append(entry, u32(f.SampleRate<<16)...)

	if format == "alac" {
		cookie := f.Cookie()
		if f.WaveCookie {
			entry = append(entry, box("wave",
				box("frma", []byte("alac")),
				fullBox("alac", 0, cookie),
				u32(8), u32(0),
			)...)
		} else {
			entry = append(entry, fullBox("alac", 0, cookie)...)
		}
	}

	return fullBox("stsd", 0, u32(1), box(format, entry))
}

// Cookie returns the 24-byte codec configuration of the track.
func (f File) Cookie() []byte {
	c := DefaultCodec(f.BitDepth, f.FrameLength)
	b := u32(uint32(f.FrameLength))
	b = append(b, 0, byte(f.BitDepth), byte(c.PB), byte(c.MB), byte(c.KB), byte(f.Channels))
	b = append(b, u16(255)...)
	b = append(b, u32(f.MaxFrameBytes)...)
	b = append(b, u32(0)...) // average bit rate
	b = append(b, u32(f.SampleRate)...)
	return b
}

func (f File) durations() []uint32 {
	if f.Durations != nil {
		return f.Durations
	}
	d := make([]uint32, len(f.Frames))
	for i := range d {
		d[i] = uint32(f.FrameLength)
	}
	return d
}

func (f File) stts() []byte {
	var runs [][2]uint32
	for _, d := range f.durations() {
		if n := len(runs); n > 0 && runs[n-1][1] == d {
			runs[n-1][0]++
			continue
		}
		runs = append(runs, [2]uint32{1, d})
	}

	p := u32(uint32(len(runs)))
	for _, r := range runs {
		p = append(p, u32(r[0])...)
		p = append(p, u32(r[1])...)
	}
	return fullBox("stts", 0, p)
}

func stsc(chunks [][][]byte) []byte {
	var entries [][2]uint32
	for i, chunk := range chunks {
		n := uint32(len(chunk))
		if len(entries) > 0 && entries[len(entries)-1][1] == n {
			continue
		}
		entries = append(entries, [2]uint32{uint32(i + 1), n})
	}

	p := u32(uint32(len(entries)))
	for _, e := range entries {
		p = append(p, u32(e[0])...)
		p = append(p, u32(e[1])...)
		p = append(p, u32(1)...)
	}
	return fullBox("stsc", 0, p)
}

func (f File) stsz() []byte {
	p := u32(0)
	p = append(p, u32(uint32(len(f.Frames)))...)
	for _, frame := range f.Frames {
		p = append(p, u32(uint32(len(frame)))...)
	}
	return fullBox("stsz", 0, p)
}

// box builds a box from the concatenated payload parts.
func box(typ string, parts ...[]byte) []byte {
	size := 8
	for _, p := range parts {
		size += len(p)
	}

	var buf bytes.Buffer
	sw := binary.NewSafeWriter(&buf)
	_ = binary.Write(sw, uint32(size))
	_ = sw.WriteFourCC(typ)
	for _, p := range parts {
		_ = sw.WriteBytes(p)
	}
	if sw.Err() != nil {
		panic(sw.Err())
	}
	return buf.Bytes()
}

// fullBox builds a box whose payload starts with version and flags.
func fullBox(typ string, version uint8, parts ...[]byte) []byte {
	var header bytes.Buffer
	sw := binary.NewSafeWriter(&header)
	_ = binary.Write(sw, version)
	_ = sw.WriteUint24(0, binary.BigEndian)
	return box(typ, append([][]byte{header.Bytes()}, parts...)...)
}

// Box exposes box for hand-built fixtures.
func Box(typ string, parts ...[]byte) []byte {
	return box(typ, parts...)
}

// be returns v in big-endian byte order.
func be[T uint8 | uint16 | uint32 | uint64](v T) []byte {
	var buf bytes.Buffer
	_ = binary.Write(binary.NewSafeWriter(&buf), v)
	return buf.Bytes()
}

func u16(v uint16) []byte { return be(v) }

func u32(v uint32) []byte { return be(v) }

// Ramp returns count deterministic pseudo-random samples per channel that
// cover the signed range of bitDepth.
func Ramp(channels, count, bitDepth, seed int) [][]int32 {
	out := make([][]int32, channels)
	for ch := range out {
		out[ch] = make([]int32, count)
		v := uint64(seed)*7919 + uint64(ch)*104729
		for i := range out[ch] {
			v = v*6364136223846793005 + 1442695040888963407
			out[ch][i] = int32(int64(v) >> (64 - bitDepth))
		}
	}
	return out
}

// VerbatimFile splits samples into frames of frameLength, encodes each one
// verbatim and returns the file description. The last frame may be short.
// samples holds one or two channels.
func VerbatimFile(sampleRate uint32, bitDepth, frameLength int, samples [][]int32) File {
	return splitFile(sampleRate, bitDepth, frameLength, samples, VerbatimFrame)
}

// CompressedFile is VerbatimFile with Rice-coded order-0 elements, so every
// frame decodes back to its samples through the compressed path.
func CompressedFile(sampleRate uint32, bitDepth, frameLength int, samples [][]int32) File {
	return splitFile(sampleRate, bitDepth, frameLength, samples, func(c Codec, frame [][]int32) []byte {
		return Frame(c, Element{
			Samples: frame,
			Partial: len(frame[0]) != c.FrameLength,
		})
	})
}

func splitFile(sampleRate uint32, bitDepth, frameLength int, samples [][]int32, encode func(Codec, [][]int32) []byte) File {
	c := DefaultCodec(bitDepth, frameLength)
	f := File{
		SampleRate:  sampleRate,
		Channels:    len(samples),
		BitDepth:    bitDepth,
		FrameLength: frameLength,
	}

	total := len(samples[0])
	for start := 0; start < total; start += frameLength {
		end := min(start+frameLength, total)
		frame := make([][]int32, len(samples))
		for ch := range samples {
			frame[ch] = samples[ch][start:end]
		}
		f.Frames = append(f.Frames, encode(c, frame))
		f.Durations = append(f.Durations, uint32(end-start))
	}
	return f
}

// Interleave flattens per-channel samples into frame order.
func Interleave(samples [][]int32) []int32 {
	out := make([]int32, 0, len(samples)*len(samples[0]))
	for i := range samples[0] {
		for ch := range samples {
			out = append(out, samples[ch][i])
		}
	}
	return out
}
