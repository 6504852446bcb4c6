// Package m4atest builds synthetic ALAC frames and MP4 containers for tests.
package m4atest

import "math/bits"

// BitWriter appends MSB-first bit fields to a byte slice.
type BitWriter struct {
	buf []byte
	n   uint // bits written
}

// WriteBits writes the low n bits of v (0 ≤ n ≤ 32).
func (w *BitWriter) WriteBits(v uint32, n uint) {
	for i := int(n) - 1; i >= 0; i-- {
		if w.n%8 == 0 {
			w.buf = append(w.buf, 0)
		}
		if v>>uint(i)&1 == 1 {
			w.buf[len(w.buf)-1] |= 0x80 >> (w.n % 8)
		}
		w.n++
	}
}

// WriteSigned writes v as an n-bit two's-complement field.
func (w *BitWriter) WriteSigned(v int32, n uint) {
	w.WriteBits(uint32(v)&mask(n), n)
}

// WriteOnes writes n one bits.
func (w *BitWriter) WriteOnes(n uint) {
	for range n {
		w.WriteBits(1, 1)
	}
}

// Len returns the number of bits written.
func (w *BitWriter) Len() uint {
	return w.n
}

// Bytes returns the written bits, zero padded to a whole byte.
func (w *BitWriter) Bytes() []byte {
	return w.buf
}

func mask(n uint) uint32 {
	if n >= 32 {
		return 0xffffffff
	}
	return 1<<n - 1
}

// Codec holds the stream-wide parameters a frame is encoded against.
type Codec struct {
	BitDepth    int
	FrameLength int
	PB, MB, KB  uint32
}

// DefaultCodec returns the parameters used by the reference encoder.
func DefaultCodec(bitDepth, frameLength int) Codec {
	return Codec{BitDepth: bitDepth, FrameLength: frameLength, PB: 40, MB: 10, KB: 14}
}

// Element describes one channel element.
//
// For verbatim elements Samples holds the raw samples. For compressed
// elements Samples holds the residuals of an order-0 predictor, so the
// decoded output equals Samples after the optional running sum, pair unmix
// and shifted-bit merge.
type Element struct {
	Samples    [][]int32 // one slice per channel, 1 or 2 channels
	Verbatim   bool
	Partial    bool // write an explicit sample count
	ShiftBytes int
	Shifted    [][]uint32 // low bits per channel when ShiftBytes > 0
	MixBits    uint8
	MixRes     int8
	Mode       uint8 // 0 or 15
	Factor     uint8 // Rice history multiplier factor, 0 means 4
	Reserved   uint16
}

// Frame encodes elements followed by an end tag.
func Frame(c Codec, elems ...Element) []byte {
	var w BitWriter
	for _, e := range elems {
		writeElement(&w, c, e)
	}
	w.WriteBits(7, 3)
	return w.Bytes()
}

// VerbatimFrame encodes one uncompressed element holding samples.
func VerbatimFrame(c Codec, samples [][]int32) []byte {
	return Frame(c, Element{
		Samples:  samples,
		Verbatim: true,
		Partial:  len(samples[0]) != c.FrameLength,
	})
}

func writeElement(w *BitWriter, c Codec, e Element) {
	chans := len(e.Samples)
	n := len(e.Samples[0])

	tag := uint32(0)
	if chans == 2 {
		tag = 1
	}
	w.WriteBits(tag, 3)
	w.WriteBits(0, 4)
	w.WriteBits(uint32(e.Reserved), 12)
	w.WriteBits(boolBit(e.Partial), 1)
	w.WriteBits(uint32(e.ShiftBytes), 2)
	w.WriteBits(boolBit(e.Verbatim), 1)
	if e.Partial {
		w.WriteBits(uint32(n), 32)
	}

	if e.Verbatim {
		for i := range n {
			for ch := range chans {
				w.WriteSigned(e.Samples[ch][i], uint(c.BitDepth))
			}
		}
		return
	}

	factor := uint32(e.Factor)
	if factor == 0 {
		factor = 4
	}

	w.WriteBits(uint32(e.MixBits), 8)
	w.WriteSigned(int32(e.MixRes), 8)
	for range chans {
		w.WriteBits(uint32(e.Mode), 4)
		w.WriteBits(9, 4)
		w.WriteBits(factor, 3)
		w.WriteBits(0, 5)
	}

	extra := uint(e.ShiftBytes) * 8
	if extra > 0 {
		for i := range n {
			for ch := range chans {
				w.WriteBits(e.Shifted[ch][i], extra)
			}
		}
	}

	width := uint(c.BitDepth) - extra + uint(chans) - 1
	for ch := range chans {
		EncodeResiduals(w, e.Samples[ch], c.MB, c.PB*factor/4, c.KB, width)
	}
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

// EncodeResiduals writes residuals with the adaptive Rice code, including
// zero-run mode. Every residual must fit the symbol width once folded to
// an unsigned value.
func EncodeResiduals(w *BitWriter, residuals []int32, mb, mult, kb uint32, symbolBits uint) {
	n := len(residuals)
	history := mb
	wb := uint32(1)<<kb - 1
	var bias uint32

	for i := 0; i < n; {
		k := min(uint32(31-bits.LeadingZeros32((history>>9)+3)), kb)

		v := fold(residuals[i])
		sym := v - bias
		writeSymbol(w, sym, k, symbolBits)
		i++

		history = mult*v + history - (mult*history)>>9
		if sym > 0xffff {
			history = 0xffff
		}

		bias = 0
		if history<<2 >= 512 || i >= n {
			continue
		}

		bias = 1
		rk := max(bits.LeadingZeros32(history)-24+int((history+16)>>6), 0)
		m := (uint32(1)<<rk - 1) & wb

		run := 0
		for i+run < n && residuals[i+run] == 0 && run < 0xffff {
			run++
		}
		writeRun(w, uint32(run), uint32(rk), m)
		i += run

		if run >= 0xffff {
			bias = 0
		}
		history = 0
	}
}

func fold(x int32) uint32 {
	if x >= 0 {
		return uint32(x) << 1
	}
	return uint32(-x)<<1 - 1
}

func writeSymbol(w *BitWriter, sym, k uint32, symbolBits uint) {
	if k <= 1 {
		if sym >= 9 {
			w.WriteOnes(9)
			w.WriteBits(sym, symbolBits)
			return
		}
		w.WriteOnes(uint(sym))
		w.WriteBits(0, 1)
		return
	}

	m := uint32(1)<<k - 1
	q, r := sym/m, sym%m
	if q >= 9 {
		w.WriteOnes(9)
		w.WriteBits(sym, symbolBits)
		return
	}

	w.WriteOnes(uint(q))
	w.WriteBits(0, 1)
	if r == 0 {
		w.WriteBits(0, uint(k)-1)
		return
	}
	w.WriteBits(r+1, uint(k))
}

func writeRun(w *BitWriter, run, k, m uint32) {
	q, r := run/m, run%m
	if q >= 9 {
		w.WriteOnes(9)
		w.WriteBits(run, 16)
		return
	}

	w.WriteOnes(uint(q))
	w.WriteBits(0, 1)
	if r == 0 {
		w.WriteBits(0, uint(k)-1)
		return
	}
	w.WriteBits(r+1, uint(k))
}
