package alac

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/simonhull/alac/internal/bitstream"
	"github.com/simonhull/alac/internal/types"
)

// Element tags.
const (
	tagSCE = 0 // single channel
	tagCPE = 1 // channel pair
	tagCCE = 2 // coupling channel
	tagLFE = 3 // low-frequency effects channel
	tagDSE = 4 // data stream
	tagPCE = 5 // program config
	tagFIL = 6 // fill
	tagEND = 7 // end of frame
)

// Element header field widths.
const (
	tagBits        = 3
	instanceBits   = 4
	reservedBits   = 12
	shiftBytesBits = 2
	sampleCountBit = 32
	modeAdaptive   = 0 // prediction mode selecting the adaptive filter alone
	modeDifference = 15
)

// Decoder decodes the frames of one stream. It is not safe for concurrent use.
type Decoder struct {
	cfg    Config
	logger *slog.Logger

	br       bitstream.Reader
	residual []int32
	shifted  [2][]uint32
	coefs    [2][firstOrder]int16
}

// NewDecoder creates a Decoder for the given configuration. A nil logger
// discards diagnostics.
func NewDecoder(cfg Config, logger *slog.Logger) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	n := int(cfg.FrameLength)
	return &Decoder{
		cfg:      cfg,
		logger:   logger,
		residual: make([]int32, n),
		shifted:  [2][]uint32{make([]uint32, n), make([]uint32, n)},
	}, nil
}

// Config returns the configuration the decoder was built with.
func (d *Decoder) Config() Config {
	return d.cfg
}

// Reset discards all per-frame state.
func (d *Decoder) Reset() {
	d.br.Reset(nil)
	clear(d.residual)
	clear(d.shifted[0])
	clear(d.shifted[1])
	d.coefs = [2][firstOrder]int16{}
}

// Decode decodes one compressed frame into dst, one slice per channel, each
// able to hold FrameLength samples. It returns the number of samples
// written per channel.
//
// Failures are *types.CorruptFrameError with Sample left at zero; callers
// that know the sample number fill it in.
func (d *Decoder) Decode(frame []byte, dst [][]int32) (int, error) {
	channels := int(d.cfg.Channels)
	if len(dst) < channels {
		return 0, fmt.Errorf("alac: output has %d channels, stream has %d", len(dst), channels)
	}
	for c := range channels {
		if len(dst[c]) < int(d.cfg.FrameLength) {
			return 0, fmt.Errorf("alac: channel %d output holds %d samples, need %d",
				c, len(dst[c]), d.cfg.FrameLength)
		}
	}

	d.br.Reset(frame)
	samples := -1
	ch := 0

	for ch < channels {
		tag, err := d.br.ReadBits(tagBits)
		if err != nil {
			return 0, corrupt("element tag", err)
		}

		width := 0
		switch tag {
		case tagSCE, tagLFE:
			width = 1
		case tagCPE:
			width = 2
			if ch+width > channels {
				return 0, corrupt(fmt.Sprintf("channel pair at channel %d exceeds %d channels", ch, channels), nil)
			}
		case tagDSE:
			if err := d.skipData(); err != nil {
				return 0, corrupt("data stream element", err)
			}
			continue
		case tagFIL:
			if err := d.skipFill(); err != nil {
				return 0, corrupt("fill element", err)
			}
			continue
		case tagEND:
			return 0, corrupt(fmt.Sprintf("frame ended after %d of %d channels", ch, channels), nil)
		default:
			return 0, corrupt(fmt.Sprintf("unsupported element type %d", tag), nil)
		}

		n, err := d.decodeElement(dst[ch : ch+width])
		if err != nil {
			return 0, err
		}
		if samples >= 0 && n != samples {
			return 0, corrupt(fmt.Sprintf("element at channel %d holds %d samples, previous held %d", ch, n, samples), nil)
		}

		samples = n
		ch += width
	}

	if d.br.BitsLeft() >= tagBits && d.br.PeekBits(tagBits) != tagEND {
		d.logger.Debug("frame continues past last channel", "bits_left", d.br.BitsLeft())
	}

	return samples, nil
}

// decodeElement decodes a single channel or channel pair element.
func (d *Decoder) decodeElement(dst [][]int32) (int, error) {
	br := &d.br
	chans := len(dst)

	fields, err := readFields(br, instanceBits, reservedBits, 1, shiftBytesBits, 1)
	if err != nil {
		return 0, corrupt("element header", err)
	}
	if fields[1] != 0 {
		return 0, corrupt(fmt.Sprintf("reserved header bits set: 0x%03x", fields[1]), nil)
	}
	hasSize, shiftBytes, verbatim := fields[2] == 1, fields[3], fields[4] == 1
	if shiftBytes == 3 {
		return 0, corrupt("shifted byte count of 3", nil)
	}
	// Escaped samples are always stored at the full bit depth.
	if verbatim && shiftBytes != 0 {
		return 0, corrupt(fmt.Sprintf("uncompressed element with %d shifted bytes", shiftBytes), nil)
	}

	n := int(d.cfg.FrameLength)
	if hasSize {
		v, err := br.ReadBits(sampleCountBit)
		if err != nil {
			return 0, corrupt("sample count", err)
		}
		if v == 0 || v > d.cfg.FrameLength {
			return 0, corrupt(fmt.Sprintf("sample count %d outside 1..%d", v, d.cfg.FrameLength), nil)
		}
		n = int(v)
	}

	if verbatim {
		return n, d.readVerbatim(dst, n)
	}

	mixBits, err := br.ReadBits(8)
	if err != nil {
		return 0, corrupt("mix shift", err)
	}
	mixRes, err := br.ReadSigned(8)
	if err != nil {
		return 0, corrupt("mix weight", err)
	}

	type channelParams struct {
		mode, quant, factor uint32
		coefs               []int16
	}
	var params [2]channelParams

	for c := range chans {
		f, err := readFields(br, 4, 4, 3, 5)
		if err != nil {
			return 0, corrupt(fmt.Sprintf("predictor header of channel %d", c), err)
		}
		p := channelParams{mode: f[0], quant: f[1], factor: f[2], coefs: d.coefs[c][:f[3]]}
		for i := range p.coefs {
			v, err := br.ReadSigned(16)
			if err != nil {
				return 0, corrupt(fmt.Sprintf("coefficient %d of channel %d", i, c), err)
			}
			p.coefs[i] = int16(v)
		}
		if p.quant == 0 && len(p.coefs) > 0 && len(p.coefs) != firstOrder {
			return 0, corrupt(fmt.Sprintf("zero quantisation shift for order %d on channel %d", len(p.coefs), c), nil)
		}
		params[c] = p
	}

	extraBits := uint(shiftBytes) * 8
	width := uint32(d.cfg.BitDepth) - uint32(extraBits) + uint32(chans) - 1
	if width > maxSymbolBits {
		return 0, corrupt(fmt.Sprintf("%d-bit residuals need shifted bytes", width), nil)
	}

	if extraBits > 0 {
		for i := range n {
			for c := range chans {
				v, err := br.ReadBits(extraBits)
				if err != nil {
					return 0, corrupt("shifted low bits", err)
				}
				d.shifted[c][i] = v
			}
		}
	}

	for c := range chans {
		p := params[c]
		residual := d.residual[:n]

		rp := riceParams{
			mb:   uint32(d.cfg.MB),
			mult: uint32(d.cfg.PB) * p.factor / 4,
			kb:   uint32(d.cfg.KB),
		}
		if err := decodeResiduals(br, residual, rp, uint(width)); err != nil {
			return 0, corrupt(fmt.Sprintf("residuals of channel %d", c), err)
		}

		if p.mode != modeAdaptive {
			if p.mode != modeDifference {
				d.logger.Debug("unknown prediction mode treated as first difference", "mode", p.mode, "channel", c)
			}
			runningSum(residual, width)
		}

		predict(residual, dst[c][:n], p.coefs, width, p.quant)
	}

	if chans == 2 && mixRes != 0 {
		unmix(dst[0][:n], dst[1][:n], mixBits, mixRes)
	}

	if extraBits > 0 {
		for c := range chans {
			out := dst[c][:n]
			for i, v := range out {
				out[i] = int32(uint32(v)<<extraBits | d.shifted[c][i])
			}
		}
	}

	return n, nil
}

// readVerbatim reads uncompressed samples, interleaved by channel.
func (d *Decoder) readVerbatim(dst [][]int32, n int) error {
	width := uint(d.cfg.BitDepth)
	for i := range n {
		for c := range dst {
			v, err := d.br.ReadSigned(width)
			if err != nil {
				return corrupt(fmt.Sprintf("verbatim sample %d of channel %d", i, c), err)
			}
			dst[c][i] = v
		}
	}
	return nil
}

// unmix reverses the weighted mid/side transform of a channel pair.
func unmix(u, v []int32, shift uint32, weight int32) {
	for i := range u {
		r := u[i] - (v[i]*weight)>>shift
		u[i] = r + v[i]
		v[i] = r
	}
}

func (d *Decoder) skipData() error {
	f, err := readFields(&d.br, instanceBits, 1, 8)
	if err != nil {
		return err
	}
	align, count := f[1] == 1, f[2]
	if count == 255 {
		more, err := d.br.ReadBits(8)
		if err != nil {
			return err
		}
		count += more
	}
	if align {
		d.br.AlignToByte()
	}
	return d.br.SkipBits(uint(count) * 8)
}

func (d *Decoder) skipFill() error {
	count, err := d.br.ReadBits(4)
	if err != nil {
		return err
	}
	if count == 15 {
		more, err := d.br.ReadBits(8)
		if err != nil {
			return err
		}
		count += more - 1
	}
	return d.br.SkipBits(uint(count) * 8)
}

// readFields reads consecutive unsigned fields of the given widths.
func readFields(br *bitstream.Reader, widths ...uint) ([]uint32, error) {
	out := make([]uint32, len(widths))
	for i, w := range widths {
		v, err := br.ReadBits(w)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func corrupt(reason string, err error) error {
	return &types.CorruptFrameError{Reason: reason, Err: err}
}
