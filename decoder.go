package alac

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	codec "github.com/simonhull/alac/internal/alac"
	"github.com/simonhull/alac/internal/binary"
	"github.com/simonhull/alac/internal/m4a"
	"github.com/simonhull/alac/internal/pcm"
	"github.com/simonhull/alac/internal/sampletable"
	"github.com/simonhull/alac/internal/types"
)

// Decoder turns an ALAC track stored in an MP4 container into PCM.
//
// A Decoder owns its byte stream: every read and reposition goes through
// it, and it is not safe for concurrent use. Decode independent streams
// with independent Decoders.
//
// Always call Close() when done if the Decoder owns a file:
//
//	dec, err := alac.Open("song.m4a")
//	if err != nil {
//		return err
//	}
//	defer dec.Close()
type Decoder struct {
	source string
	logger *slog.Logger

	track    *m4a.Track
	index    *sampletable.Table
	frames   *codec.Decoder
	cfg      codec.Config
	info     StreamInfo
	warnings []Warning

	// Stream handle. open is nil when the source cannot be reopened.
	r           *binary.Reader
	closer      io.Closer
	open        func() (io.ReadCloser, error)
	forwardOnly bool

	// Playback position.
	sample   uint64 // next sample to decode
	skip     uint32 // PCM frames to drop from the next decoded sample
	position uint64 // PCM frames delivered or skipped by Seek

	// Scratch buffers, sized once at open.
	maxPacket int64 // largest compressed sample accepted from the size table
	packet    []byte
	planes    [][]int32
	samples   []int32
	packed    []byte
	pending   []byte // packed PCM not yet returned by Read

	err    error // sticky decode failure, cleared by Seek
	closed bool
}

// NewDecoder opens an ALAC stream read from r.
//
// When r implements io.Seeker the stream is decoded in seekable mode and
// r must be positioned at the start of the container. Otherwise r is read
// forward only; that works when the movie box precedes the media data and
// returns ErrNotSeekable when it does not. Use NewForwardOnlyDecoder for
// sources that can be reopened.
func NewDecoder(r io.Reader, opts ...Option) (*Decoder, error) {
	return newDecoder(r, "stream", nil, applyOptions(opts))
}

// NewForwardOnlyDecoder opens an ALAC stream that can only be read forward.
//
// open is called once for the container walk. When the walk has already
// consumed the first sample (media data stored before the movie box), the
// stream is closed and open is called again; later backward seeks reopen
// it too. The Decoder closes the last stream it opened on Close.
func NewForwardOnlyDecoder(open func() (io.ReadCloser, error), opts ...Option) (*Decoder, error) {
	o := applyOptions(opts)
	o.forwardOnly = true

	rc, err := open()
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return newDecoder(rc, "stream", open, o)
}

func applyOptions(opts []Option) *decoderOptions {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// newDecoder demuxes r and prepares decoding. With an opener the Decoder
// owns r and closes it on failure.
func newDecoder(r io.Reader, source string, open func() (io.ReadCloser, error), o *decoderOptions) (_ *Decoder, err error) {
	logger := o.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	d := &Decoder{
		source: source,
		logger: logger,
		open:   open,
	}
	if c, ok := r.(io.Closer); ok && open != nil {
		d.closer = c
	}
	defer func() {
		if err != nil && d.closer != nil {
			d.closer.Close()
		}
	}()

	track, err := m4a.Demux(r, source, m4a.Options{
		ForwardOnly:  o.forwardOnly,
		MaxTableSize: o.maxTableSize,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	cfg, err := codec.ParseConfig(track.Cookie)
	if err != nil {
		return nil, err
	}
	frames, err := codec.NewDecoder(cfg, logger)
	if err != nil {
		return nil, err
	}

	outDepth := o.outputBitDepth
	if outDepth == 0 {
		outDepth = pcm.DefaultDepth(int(cfg.BitDepth))
	}
	if !pcm.ValidDepth(outDepth) {
		return nil, &UnsupportedFormatError{
			Source: source,
			Reason: fmt.Sprintf("output bit depth %d", outDepth),
		}
	}

	d.track = track
	d.index = track.Index
	d.maxPacket = int64(cfg.MaxFrameBytes)
	if d.maxPacket == 0 {
		d.maxPacket = o.maxTableSize
	}
	if d.maxPacket <= 0 {
		d.maxPacket = m4a.DefaultMaxTableSize
	}
	d.frames = frames
	d.cfg = cfg

	d.warnings = append(d.warnings, track.Warnings...)
	d.checkConfig()

	if o.strictParsing && len(d.warnings) > 0 {
		return nil, fmt.Errorf("strict parsing failed: %s", d.warnings[0])
	}
	if o.ignoreWarnings {
		d.warnings = nil
	}

	if err := d.attach(r, track); err != nil {
		return nil, err
	}

	d.info = d.buildInfo(outDepth)

	n := int(cfg.FrameLength)
	channels := int(cfg.Channels)
	d.planes = make([][]int32, channels)
	for ch := range d.planes {
		d.planes[ch] = make([]int32, n)
	}
	d.samples = make([]int32, n*channels)
	d.packed = make([]byte, d.MaxFrameBytes())

	logger.Debug("opened ALAC stream",
		"source", source,
		"info", d.info.String(),
		"samples", d.index.SampleCount(),
		"total_frames", d.info.TotalSamples,
		"forward_only", d.forwardOnly)

	return d, nil
}

// attach positions the stream at the first sample according to the
// strategy chosen by the container walk.
func (d *Decoder) attach(r io.Reader, track *m4a.Track) error {
	switch s := track.Strategy.(type) {
	case m4a.Seekable:
		d.r = binary.NewReaderAt(r, d.source, track.StopOffset, false)

	case m4a.ForwardOnly:
		d.forwardOnly = true
		if track.StopOffset <= s.ResumeOffset {
			d.r = binary.NewReaderAt(r, d.source, track.StopOffset, true)
			break
		}
		if d.open == nil {
			return &ContainerError{
				Source: d.source,
				Stage:  "mdat",
				Offset: track.MdatOffset,
				Reason: "media data precedes the movie box in a stream that cannot be reopened",
				Err:    ErrNotSeekable,
			}
		}
		d.logger.Debug("reopening stream", "resume_offset", s.ResumeOffset, "stop_offset", track.StopOffset)
		if err := d.reopen(); err != nil {
			return err
		}

	default:
		return fmt.Errorf("%s: unknown container strategy %T", d.source, s)
	}

	if first, ok := d.index.ChunkOffset(0); ok {
		return d.r.SeekTo(first, "first sample")
	}
	return nil
}

// reopen replaces the stream with a fresh one from the opener.
func (d *Decoder) reopen() error {
	if d.closer != nil {
		if err := d.closer.Close(); err != nil {
			d.logger.Debug("closing stream before reopen", "error", err)
		}
		d.closer = nil
	}

	rc, err := d.open()
	if err != nil {
		return fmt.Errorf("%s: reopen stream: %w", d.source, err)
	}
	d.closer = rc
	d.r = binary.NewReader(rc, d.source, true)
	return nil
}

// checkConfig records disagreements between the sample entry and the codec
// configuration. The codec configuration wins.
func (d *Decoder) checkConfig() {
	t := d.track
	if t.Channels != 0 && int(t.Channels) != int(d.cfg.Channels) {
		d.warn("config", fmt.Sprintf("sample entry declares %d channels, codec configuration %d",
			t.Channels, d.cfg.Channels))
	}
	if t.SampleSize != 0 && int(t.SampleSize) != int(d.cfg.BitDepth) {
		d.warn("config", fmt.Sprintf("sample entry declares %d-bit samples, codec configuration %d-bit",
			t.SampleSize, d.cfg.BitDepth))
	}
	if t.SampleRate != 0 && d.cfg.SampleRate != 0 && t.SampleRate != d.cfg.SampleRate {
		d.warn("config", fmt.Sprintf("sample entry declares %d Hz, codec configuration %d Hz",
			t.SampleRate, d.cfg.SampleRate))
	}
}

func (d *Decoder) warn(stage, msg string) {
	d.logger.Warn(msg, "stage", stage)
	d.warnings = append(d.warnings, Warning{Stage: stage, Message: msg})
}

func (d *Decoder) buildInfo(outDepth int) StreamInfo {
	rate := int(d.cfg.SampleRate)
	if rate == 0 {
		rate = int(d.track.SampleRate)
	}

	total := types.UnknownSampleCount
	if sum, err := d.index.TotalDuration(); err == nil {
		total = int64(sum)
	} else {
		d.logger.Warn("total sample count unknown", "error", err)
	}

	info := StreamInfo{
		Codec:          d.track.Format,
		Brand:          d.track.Brand,
		TotalSamples:   total,
		SampleRate:     rate,
		BitDepth:       int(d.cfg.BitDepth),
		OutputBitDepth: outDepth,
		Channels:       int(d.cfg.Channels),
		FrameLength:    int(d.cfg.FrameLength),
		AvgBitRate:     int(d.cfg.AvgBitRate),
	}
	if total > 0 && rate > 0 {
		info.Duration = time.Duration(float64(total) / float64(rate) * float64(time.Second))
	}
	return info
}

// Info returns the stream description.
func (d *Decoder) Info() StreamInfo {
	return d.info
}

// Warnings returns the non-fatal issues found while opening the stream.
func (d *Decoder) Warnings() []Warning {
	return d.warnings
}

// SampleRate returns the sample rate in Hz.
func (d *Decoder) SampleRate() int {
	return d.info.SampleRate
}

// Channels returns the number of interleaved channels.
func (d *Decoder) Channels() int {
	return d.info.Channels
}

// BitDepth returns the bit depth of packed output samples.
func (d *Decoder) BitDepth() int {
	return d.info.OutputBitDepth
}

// BytesPerSample returns the packed size of one channel sample.
func (d *Decoder) BytesPerSample() int {
	return d.info.BytesPerSample()
}

// FrameLength returns the largest number of PCM frames one decode call
// delivers.
func (d *Decoder) FrameLength() int {
	return d.info.FrameLength
}

// MaxFrameBytes returns the buffer size DecodeNext needs.
func (d *Decoder) MaxFrameBytes() int {
	return d.info.FrameLength * d.info.Channels * d.BytesPerSample()
}

// TotalSamples returns the stream length in PCM frames, or
// UnknownSampleCount when the time-to-sample table is incomplete.
func (d *Decoder) TotalSamples() int64 {
	return d.info.TotalSamples
}

// Duration returns the stream length, zero when it is unknown.
func (d *Decoder) Duration() time.Duration {
	return d.info.Duration
}

// Position returns the PCM frame position of the next decoded frame.
func (d *Decoder) Position() uint64 {
	return d.position
}

// DecodeNext decodes the next sample into dst as packed PCM and returns the
// number of PCM frames written. dst must hold MaxFrameBytes bytes. At the
// end of the stream it returns 0 and a nil error.
func (d *Decoder) DecodeNext(dst []byte) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if len(dst) < d.MaxFrameBytes() {
		return 0, fmt.Errorf("%w: have %d bytes, need %d", ErrShortBuffer, len(dst), d.MaxFrameBytes())
	}

	start, end, err := d.decodeSample()
	if err != nil || end == start {
		return 0, err
	}

	frames := end - start
	d.interleave(d.samples, start, end)
	if _, err := pcm.Pack(dst, d.samples[:frames*d.info.Channels], d.info.BitDepth, d.info.OutputBitDepth); err != nil {
		return 0, err
	}
	return frames, nil
}

// DecodeSamples decodes the next sample into dst as interleaved samples at
// the stream bit depth, without packing. dst must hold FrameLength ×
// Channels values. At the end of the stream it returns 0 and a nil error.
func (d *Decoder) DecodeSamples(dst []int32) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}
	if need := d.info.FrameLength * d.info.Channels; len(dst) < need {
		return 0, fmt.Errorf("%w: have %d samples, need %d", ErrShortBuffer, len(dst), need)
	}

	start, end, err := d.decodeSample()
	if err != nil || end == start {
		return 0, err
	}
	d.interleave(dst, start, end)
	return end - start, nil
}

// Read implements io.Reader over the packed PCM stream.
func (d *Decoder) Read(p []byte) (int, error) {
	if d.closed {
		return 0, ErrClosed
	}

	for len(d.pending) == 0 {
		frames, err := d.DecodeNext(d.packed)
		if err != nil {
			return 0, err
		}
		if frames == 0 {
			return 0, io.EOF
		}
		d.pending = d.packed[:frames*d.info.Channels*d.BytesPerSample()]
	}

	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

// decodeSample decodes samples into the channel planes until one of them
// has PCM frames to deliver and returns their range. An empty range means
// the end of the stream.
func (d *Decoder) decodeSample() (start, end int, err error) {
	for {
		start, end, err = d.decodeOne()
		if err != nil || end > start || d.sample >= d.index.SampleCount() {
			return start, end, err
		}
	}
}

// decodeOne decodes the current sample. Samples with a zero duration, or
// entirely skipped after a Seek, yield an empty range.
func (d *Decoder) decodeOne() (start, end int, err error) {
	if d.err != nil {
		return 0, 0, d.err
	}
	if d.sample >= d.index.SampleCount() {
		return 0, 0, nil
	}

	n := d.sample
	size, duration, err := d.index.SampleInfo(n)
	if err != nil {
		return 0, 0, d.fail(err)
	}
	offset, err := d.index.SampleOffset(n)
	if err != nil {
		return 0, 0, d.fail(err)
	}

	if err := d.r.SeekTo(offset, fmt.Sprintf("sample %d", n)); err != nil {
		return 0, 0, d.fail(fmt.Errorf("read sample %d at offset %d: %w", n, offset, err))
	}
	if int64(size) > d.maxPacket {
		return 0, 0, d.fail(&CorruptFrameError{
			Sample: n,
			Reason: fmt.Sprintf("sample of %d bytes exceeds the %d byte limit", size, d.maxPacket),
		})
	}
	if cap(d.packet) < int(size) {
		d.packet = make([]byte, size)
	}
	packet := d.packet[:size]
	if err := d.r.ReadFull(packet, fmt.Sprintf("sample %d", n)); err != nil {
		return 0, 0, d.fail(fmt.Errorf("read sample %d at offset %d: %w", n, offset, err))
	}

	got, err := d.frames.Decode(packet, d.planes)
	if err != nil {
		var cf *CorruptFrameError
		if errors.As(err, &cf) {
			cf.Sample = n
		}
		return 0, 0, d.fail(err)
	}

	if got < d.info.FrameLength && n+1 < d.index.SampleCount() {
		return 0, 0, d.fail(&CorruptFrameError{
			Sample: n,
			Reason: fmt.Sprintf("partial frame of %d samples before the last sample", got),
		})
	}

	switch {
	case int(duration) < got:
		d.logger.Debug("trimming frame to its duration", "sample", n, "decoded", got, "duration", duration)
		got = int(duration)
	case int(duration) > got:
		d.logger.Debug("frame shorter than its duration", "sample", n, "decoded", got, "duration", duration)
	}

	start = min(int(d.skip), got)
	d.skip = 0
	d.sample++
	d.position += uint64(got - start)

	return start, got, nil
}

// fail makes err sticky until the next successful Seek.
func (d *Decoder) fail(err error) error {
	d.err = err
	return err
}

func (d *Decoder) interleave(dst []int32, start, end int) {
	channels := d.info.Channels
	for i := start; i < end; i++ {
		row := dst[(i-start)*channels:]
		for ch := range channels {
			row[ch] = d.planes[ch][i]
		}
	}
}

// Seek positions the decoder so that the next decoded frame is PCM frame
// pos. Seeking to exactly TotalSamples positions at the end of the stream.
//
// Forward-only streams seek forward by discarding bytes; seeking backwards
// reopens the stream when possible and fails with ErrNotSeekable otherwise.
func (d *Decoder) Seek(pos uint64) error {
	if d.closed {
		return ErrClosed
	}

	loc, err := d.index.Locate(pos)
	var oor *SeekOutOfRangeError
	switch {
	case errors.As(err, &oor) && oor.Position == oor.Total:
		loc = sampletable.Location{Offset: -1, Sample: d.index.SampleCount()}
	case err != nil:
		return err
	}

	if loc.Offset >= 0 {
		if err := d.reposition(loc.Offset); err != nil {
			return err
		}
	}

	d.logger.Debug("seek", "position", pos, "sample", loc.Sample, "skip", loc.Skip, "offset", loc.Offset)

	d.sample = loc.Sample
	d.skip = loc.Skip
	d.position = pos
	d.pending = nil
	d.err = nil
	d.frames.Reset()
	return nil
}

// reposition moves the stream to an absolute offset.
func (d *Decoder) reposition(offset int64) error {
	if !d.forwardOnly || offset >= d.r.Offset() {
		return d.r.SeekTo(offset, "seek target")
	}
	if d.open == nil {
		return fmt.Errorf("%s: seek to offset %d behind read position %d: %w",
			d.source, offset, d.r.Offset(), ErrNotSeekable)
	}
	if err := d.reopen(); err != nil {
		return err
	}
	return d.r.SeekTo(offset, "seek target")
}

// Close releases the stream if the Decoder owns it. Later calls return
// ErrClosed from every decoding method.
func (d *Decoder) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}
