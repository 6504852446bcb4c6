package m4a

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/simonhull/alac/internal/binary"
)

// tableCountOffset is where each sample table keeps its entry count.
var tableCountOffset = map[string]int{
	"stsd": 4,
	"stts": 4,
	"stsc": 4,
	"stco": 4,
	"co64": 4,
	"stsz": 8,
}

// Dump writes the box tree of r to w, one box per line, indented by depth.
// Sample tables also print their entry count.
func Dump(w io.Writer, r io.Reader, source string) error {
	br := binary.NewReader(r, source, false)
	return dumpBoxes(w, br, -1, 0)
}

// dumpBoxes prints boxes until end. A negative end means the end of stream.
func dumpBoxes(w io.Writer, r *binary.Reader, end int64, depth int) error {
	indent := strings.Repeat("  ", depth)

	for end < 0 || r.Offset() < end {
		box, err := readBoxHeader(r)
		if errors.Is(err, errEndOfStream) && end < 0 {
			return nil
		}
		if err != nil {
			return err
		}

		size := fmt.Sprint(box.Size)
		if box.ToEnd {
			size = "to end"
		}
		line := fmt.Sprintf("%s%s (size: %s, offset: %d)", indent, box.Type, size, box.Offset)

		switch {
		case box.IsContainer() && !box.ToEnd:
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
			if err := dumpBoxes(w, r, box.End(), depth+1); err != nil {
				return err
			}
			continue

		case tableCountOffset[box.Type] > 0 && !box.ToEnd:
			at := tableCountOffset[box.Type]
			if box.DataSize() >= uint64(at+4) {
				if err := r.Skip(int64(at), box.Type+" header"); err != nil {
					return err
				}
				count, err := binary.ReadValue[uint32](r, box.Type+" entry count")
				if err != nil {
					return err
				}
				line += fmt.Sprintf(" entries: %d", count)
			}
		}

		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		if box.ToEnd {
			return nil
		}
		if err := r.SeekTo(box.End(), box.Type+" box"); err != nil {
			return err
		}
	}

	return nil
}
