package alac

import (
	"fmt"
	"math/bits"

	"github.com/simonhull/alac/internal/bitstream"
)

// Adaptive Rice coder constants.
const (
	historyShift   = 9      // fixed-point shift of the running magnitude average
	zeroRunBound   = 1 << 9 // history<<2 below this enters zero-run mode
	unaryEscape    = 9      // unary prefixes this long are followed by a raw value
	historyClamp   = 0xffff // symbols above this pin the history
	zeroRunLimit   = 0xffff // a run this long does not bias the next symbol
	zeroRunRawBits = 16     // raw width of an escaped zero-run length
	zeroRunOffset  = 16     // rounding term in the zero-run parameter
	zeroRunShift   = 6      // scale of the history term in the zero-run parameter
	zeroRunLead    = 24     // leading-zero bias in the zero-run parameter
	maxSymbolBits  = 32     // widest raw escape the reader supports
)

// riceParams holds the per-channel adaptation settings of one element.
type riceParams struct {
	mb   uint32 // initial history
	mult uint32 // history multiplier, pb * factor / 4
	kb   uint32 // parameter limit
}

// decodeResiduals fills out with prediction residuals.
//
// The Rice parameter follows a running average of symbol magnitudes. When
// the average drops low enough a run length of zero residuals is coded
// instead of individual symbols.
func decodeResiduals(br *bitstream.Reader, out []int32, p riceParams, symbolBits uint) error {
	if symbolBits == 0 || symbolBits > maxSymbolBits {
		return fmt.Errorf("residual width %d out of range", symbolBits)
	}

	n := len(out)
	history := p.mb
	wb := uint32(1)<<p.kb - 1
	var bias uint32

	for i := 0; i < n; {
		k := min(log2Plus3(history>>historyShift), p.kb)

		sym, err := readSymbol(br, k, symbolBits)
		if err != nil {
			return fmt.Errorf("residual %d: %w", i, err)
		}

		v := sym + bias
		out[i] = int32(v>>1) ^ -int32(v&1)
		i++

		history = p.mult*v + history - (p.mult*history)>>historyShift
		if sym > historyClamp {
			history = historyClamp
		}

		bias = 0
		if history<<2 >= zeroRunBound || i >= n {
			continue
		}

		bias = 1
		rk := max(bits.LeadingZeros32(history)-zeroRunLead+int((history+zeroRunOffset)>>zeroRunShift), 0)
		run, err := readRun(br, uint32(rk), (uint32(1)<<rk-1)&wb)
		if err != nil {
			return fmt.Errorf("zero run at residual %d: %w", i, err)
		}
		if i+int(run) > n {
			return fmt.Errorf("zero run of %d at residual %d overflows %d residuals", run, i, n)
		}

		clear(out[i : i+int(run)])
		i += int(run)

		if run >= zeroRunLimit {
			bias = 0
		}
		history = 0
	}

	return nil
}

// readSymbol decodes one unsigned Rice symbol with parameter k.
func readSymbol(br *bitstream.Reader, k uint32, symbolBits uint) (uint32, error) {
	prefix := uint32(bits.LeadingZeros32(^br.PeekBits(32)))

	if prefix >= unaryEscape {
		if err := br.SkipBits(unaryEscape); err != nil {
			return 0, err
		}
		return br.ReadBits(symbolBits)
	}

	if err := br.SkipBits(uint(prefix) + 1); err != nil {
		return 0, err
	}
	if k <= 1 {
		return prefix, nil
	}

	m := uint32(1)<<k - 1
	extra := br.PeekBits(uint(k))
	if extra < 2 {
		return prefix * m, br.SkipBits(uint(k) - 1)
	}
	return prefix*m + extra - 1, br.SkipBits(uint(k))
}

// readRun decodes a zero-run length with parameter k and modulus m.
func readRun(br *bitstream.Reader, k, m uint32) (uint32, error) {
	prefix := uint32(bits.LeadingZeros32(^br.PeekBits(32)))

	if prefix >= unaryEscape {
		if err := br.SkipBits(unaryEscape); err != nil {
			return 0, err
		}
		return br.ReadBits(zeroRunRawBits)
	}

	if err := br.SkipBits(uint(prefix) + 1); err != nil {
		return 0, err
	}
	if k == 0 {
		return 0, nil
	}

	extra := br.PeekBits(uint(k))
	if extra < 2 {
		return prefix * m, br.SkipBits(uint(k) - 1)
	}
	return prefix*m + extra - 1, br.SkipBits(uint(k))
}

// log2Plus3 returns floor(log2(x + 3)).
func log2Plus3(x uint32) uint32 {
	return uint32(31 - bits.LeadingZeros32(x+3))
}
