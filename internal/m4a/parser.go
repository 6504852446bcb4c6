package m4a

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/simonhull/alac/internal/binary"
	"github.com/simonhull/alac/internal/sampletable"
	"github.com/simonhull/alac/internal/types"
)

// DefaultMaxTableSize bounds the payload of any box read into memory.
const DefaultMaxTableSize = 64 << 20

// Options configures Demux.
type Options struct {
	// ForwardOnly walks the stream without seeking even when it implements
	// io.Seeker.
	ForwardOnly bool

	// MaxTableSize is the largest box payload read into memory.
	// Zero means DefaultMaxTableSize.
	MaxTableSize int64

	// Logger receives debug output. Nil discards it.
	Logger *slog.Logger
}

// Strategy says how sample data is reached once the index is built.
type Strategy interface {
	strategy()
}

// Seekable streams are repositioned with Seek at every chunk boundary.
type Seekable struct{}

// ForwardOnly streams are read forward from ResumeOffset, the absolute offset
// of the first sample. When the walk already passed it (mdat before moov) the
// stream has to be opened again.
type ForwardOnly struct {
	ResumeOffset int64
}

func (Seekable) strategy()    {}
func (ForwardOnly) strategy() {}

// Track is the demuxed ALAC audio track.
type Track struct {
	Brand  string // ftyp major brand, empty when there is no ftyp
	Format string // sample entry FourCC

	Cookie     []byte // codec configuration
	Channels   uint16 // from the sample entry
	SampleSize uint16 // from the sample entry
	SampleRate uint32 // from the sample entry, integer Hz

	Timescale     uint32
	MediaDuration uint64 // in Timescale units

	ChunkMap     []sampletable.ChunkRun
	ChunkOffsets []int64
	TimeToSample []sampletable.DurationRun
	SampleSizes  []uint32
	Index        *sampletable.Table

	MdatOffset     int64 // header offset of the first mdat box, -1 if none
	MdatDataOffset int64
	StopOffset     int64 // stream offset where the walk stopped

	Strategy Strategy
	Warnings []types.Warning
}

// leafTypes are the track boxes whose payload is decoded.
var leafTypes = map[string]bool{
	"mdhd": true,
	"hdlr": true,
	"stsd": true,
	"stts": true,
	"stsc": true,
	"stco": true,
	"co64": true,
	"stsz": true,
}

// trackState collects the boxes of one trak.
type trackState struct {
	handler   string
	timescale uint32
	duration  uint64
	entry     *sampleEntry

	stts    []sampletable.DurationRun
	stsc    []sampletable.ChunkRun
	offsets []int64
	sizes   []uint32
	seen    map[string]bool
}

type demuxer struct {
	r        *binary.Reader
	opts     Options
	logger   *slog.Logger
	track    *Track
	audio    *trackState
	formats  []string // sample entry formats of rejected audio tracks
	noEntry  bool     // an audio track had no sample description
	moovSeen bool
	mdatSeen bool
}

// Demux walks the box hierarchy of r and returns its ALAC track.
//
// When r implements io.Seeker (and opts.ForwardOnly is not set) media data
// is skipped with Seek and the returned strategy is Seekable. Otherwise the
// walk discards bytes as it goes and returns ForwardOnly. Track.StopOffset
// tells the caller whether the first sample is still ahead of the stream.
func Demux(r io.Reader, source string, opts Options) (*Track, error) {
	if opts.MaxTableSize <= 0 {
		opts.MaxTableSize = DefaultMaxTableSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	d := &demuxer{
		r:      binary.NewReader(r, source, opts.ForwardOnly),
		opts:   opts,
		logger: logger,
		track:  &Track{MdatOffset: -1},
	}

	if err := d.walkTopLevel(); err != nil {
		return nil, err
	}
	if err := d.finish(); err != nil {
		return nil, err
	}

	return d.track, nil
}

func (d *demuxer) source() string {
	return d.r.Source()
}

func (d *demuxer) walkTopLevel() error {
	first := true

	for !(d.moovSeen && d.mdatSeen) {
		box, err := readBoxHeader(d.r)
		if errors.Is(err, errEndOfStream) {
			return nil
		}
		if err != nil {
			return d.containerError("file", d.r.Offset(), "unreadable box header", err)
		}

		d.logger.Debug("box", "type", box.Type, "offset", box.Offset, "size", box.Size)

		if first && box.Type != "ftyp" {
			d.warn("container", box.Offset, fmt.Sprintf("stream starts with %q instead of ftyp", box.Type))
		}
		first = false

		switch box.Type {
		case "ftyp":
			payload, err := d.readPayload(box)
			if err != nil {
				return err
			}
			if d.track.Brand, err = parseFtyp(d.source(), box, payload); err != nil {
				return err
			}

		case "moov":
			if d.moovSeen {
				d.warn("container", box.Offset, "additional moov box ignored")
				if err := skipBox(d.r, box); err != nil {
					return err
				}
				continue
			}
			if box.ToEnd {
				return d.containerError("moov", box.Offset, "moov box without size", nil)
			}
			d.moovSeen = true
			if err := d.walkContainer(box, nil); err != nil {
				return err
			}

		case "mdat":
			if !d.mdatSeen {
				d.mdatSeen = true
				d.track.MdatOffset = box.Offset
				d.track.MdatDataOffset = box.DataOffset()
			}
			if box.ToEnd {
				return nil
			}
			if d.moovSeen {
				continue
			}
			if err := skipBox(d.r, box); err != nil {
				return d.containerError("mdat", box.Offset, "truncated media data", err)
			}

		default:
			if box.ToEnd {
				return nil
			}
			if err := skipBox(d.r, box); err != nil {
				return d.containerError(box.Type, box.Offset, "truncated box", err)
			}
		}
	}

	return nil
}

// walkContainer visits the children of a container box. trak is the state
// of the enclosing track, nil outside a trak.
func (d *demuxer) walkContainer(parent Box, trak *trackState) error {
	for d.r.Offset() < parent.End() {
		box, err := readBoxHeader(d.r)
		if err != nil {
			if errors.Is(err, errEndOfStream) {
				err = io.ErrUnexpectedEOF
			}
			return d.containerError(parent.Type, parent.Offset, "truncated child box header", err)
		}
		if box.ToEnd || box.End() > parent.End() {
			return d.containerError(box.Type, box.Offset,
				fmt.Sprintf("box overruns its %s parent ending at %d", parent.Type, parent.End()), nil)
		}

		switch {
		case box.Type == "trak":
			state := &trackState{seen: map[string]bool{}}
			if err := d.walkContainer(box, state); err != nil {
				return err
			}
			d.finishTrak(box, state)

		case box.Type == "mdia" || box.Type == "minf" || box.Type == "stbl":
			if trak == nil {
				d.logger.Debug("skipping box outside trak", "type", box.Type, "offset", box.Offset)
				if err := skipBox(d.r, box); err != nil {
					return err
				}
				continue
			}
			if err := d.walkContainer(box, trak); err != nil {
				return err
			}

		case trak != nil && leafTypes[box.Type]:
			payload, err := d.readPayload(box)
			if err != nil {
				return err
			}
			if err := d.parseLeaf(box, payload, trak); err != nil {
				return err
			}

		default:
			if err := skipBox(d.r, box); err != nil {
				return d.containerError(box.Type, box.Offset, "truncated box", err)
			}
		}
	}

	return nil
}

// parseLeaf decodes one leaf box of a track into trak.
func (d *demuxer) parseLeaf(box Box, payload []byte, trak *trackState) error {
	var err error
	src := d.source()

	switch box.Type {
	case "mdhd":
		trak.timescale, trak.duration, err = parseMdhd(src, box, payload)
	case "hdlr":
		trak.handler, err = parseHdlr(src, box, payload)
	case "stsd":
		trak.entry, err = parseStsd(src, box, payload)
	case "stts":
		trak.stts, err = parseStts(src, box, payload)
	case "stsc":
		trak.stsc, err = parseStsc(src, box, payload)
	case "stco":
		trak.offsets, err = parseStco(src, box, payload)
	case "co64":
		trak.offsets, err = parseCo64(src, box, payload)
	case "stsz":
		trak.sizes, err = parseStsz(src, box, payload, uint64(d.opts.MaxTableSize/4))
	}

	trak.seen[box.Type] = err == nil
	return err
}

// finishTrak keeps the first ALAC audio track.
func (d *demuxer) finishTrak(box Box, trak *trackState) {
	if trak.handler != "soun" {
		d.logger.Debug("skipping non-audio track", "handler", trak.handler, "offset", box.Offset)
		return
	}
	if trak.entry == nil {
		d.noEntry = true
		return
	}
	if trak.entry.Format != "alac" {
		d.formats = append(d.formats, trak.entry.Format)
		return
	}
	if d.audio != nil {
		d.warn("container", box.Offset, "additional ALAC track ignored")
		return
	}
	d.audio = trak
}

// finish validates the selected track and builds its sample index.
func (d *demuxer) finish() error {
	if !d.moovSeen {
		return d.containerError("moov", d.r.Offset(), "no moov box", nil)
	}

	trak := d.audio
	if trak == nil {
		if len(d.formats) > 0 {
			return &types.UnsupportedFormatError{
				Source: d.source(),
				Reason: fmt.Sprintf("audio track is %s, not ALAC", mapCodecName(d.formats[0])),
			}
		}
		if d.noEntry {
			return d.containerError("stsd", 0, "audio track has no sample description", nil)
		}
		return d.containerError("trak", 0, "no audio track", nil)
	}

	if trak.entry.Cookie == nil {
		return d.containerError("alac cookie", 0, "sample entry has no codec configuration", nil)
	}
	if !trak.seen["co64"] && !trak.seen["stco"] {
		return d.containerError("stco", 0, "no chunk offset table", nil)
	}
	for _, stage := range []string{"stts", "stsc", "stsz"} {
		if !trak.seen[stage] {
			return d.containerError(stage, 0, "table missing", nil)
		}
	}
	if !d.mdatSeen {
		return d.containerError("mdat", d.r.Offset(), "no media data", nil)
	}

	var timed uint64
	for _, run := range trak.stts {
		timed += uint64(run.SampleCount)
	}
	if timed != uint64(len(trak.sizes)) {
		d.warn("index", 0, fmt.Sprintf("time-to-sample runs cover %d samples, size table holds %d",
			timed, len(trak.sizes)))
	}

	index, err := sampletable.New(trak.stsc, trak.offsets, trak.stts, trak.sizes)
	if err != nil {
		return d.containerError("tables", 0, "inconsistent sample tables", err)
	}

	t := d.track
	t.Format = trak.entry.Format
	t.Cookie = trak.entry.Cookie
	t.Channels = trak.entry.Channels
	t.SampleSize = trak.entry.SampleSize
	t.SampleRate = trak.entry.SampleRate
	t.Timescale = trak.timescale
	t.MediaDuration = trak.duration
	t.ChunkMap = trak.stsc
	t.ChunkOffsets = trak.offsets
	t.TimeToSample = trak.stts
	t.SampleSizes = trak.sizes
	t.Index = index
	t.StopOffset = d.r.Offset()

	if d.r.Seekable() {
		t.Strategy = Seekable{}
	} else {
		resume := t.MdatDataOffset
		if len(t.ChunkOffsets) > 0 {
			resume = t.ChunkOffsets[0]
		}
		t.Strategy = ForwardOnly{ResumeOffset: resume}
	}

	return nil
}

// readPayload reads a leaf box payload into memory, bounded by MaxTableSize.
func (d *demuxer) readPayload(box Box) ([]byte, error) {
	if box.ToEnd {
		return nil, d.containerError(box.Type, box.Offset, "box without size", nil)
	}
	size := box.DataSize()
	if size > uint64(d.opts.MaxTableSize) {
		return nil, tableLimitError(d.source(), box, size, uint64(d.opts.MaxTableSize))
	}

	payload := make([]byte, size)
	if err := d.r.ReadFull(payload, box.Type+" payload"); err != nil {
		return nil, d.containerError(box.Type, box.Offset, "truncated payload", err)
	}
	return payload, nil
}

func (d *demuxer) warn(stage string, offset int64, msg string) {
	d.logger.Warn(msg, "stage", stage, "offset", offset)
	d.track.Warnings = append(d.track.Warnings, types.Warning{Stage: stage, Message: msg, Offset: offset})
}

func (d *demuxer) containerError(stage string, offset int64, reason string, err error) error {
	var ce *types.ContainerError
	if errors.As(err, &ce) {
		return err
	}
	return &types.ContainerError{
		Source: d.source(),
		Stage:  stage,
		Offset: offset,
		Reason: reason,
		Err:    err,
	}
}

func tableLimitError(source string, box Box, size, limit uint64) error {
	return &types.ContainerError{
		Source: source,
		Stage:  box.Type,
		Offset: box.Offset,
		Reason: fmt.Sprintf("payload of %d bytes exceeds the %d byte table limit", size, limit),
	}
}
