package types

import (
	"errors"
	"io"
	"strings"
	"testing"
)

func TestContainerError_Error(t *testing.T) {
	err := &ContainerError{
		Source: "song.m4a",
		Stage:  "stsd",
		Reason: "no alac sample entry",
		Offset: 612,
	}

	msg := err.Error()
	for _, want := range []string{"song.m4a", "stsd", "offset 612", "no alac sample entry"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q should contain %q", msg, want)
		}
	}
}

func TestContainerError_Unwrap(t *testing.T) {
	err := &ContainerError{Stage: "moov", Reason: "truncated", Err: io.ErrUnexpectedEOF}

	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("ContainerError should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), io.ErrUnexpectedEOF.Error()) {
		t.Errorf("error message %q should include cause", err.Error())
	}
}

func TestCorruptFrameError_Unwrap(t *testing.T) {
	err := &CorruptFrameError{Sample: 7, Reason: "residuals", Err: ErrUnexpectedEndOfFrame}

	if !errors.Is(err, ErrUnexpectedEndOfFrame) {
		t.Error("CorruptFrameError should unwrap to ErrUnexpectedEndOfFrame")
	}
	if !strings.Contains(err.Error(), "sample 7") {
		t.Errorf("error message %q should name the sample", err.Error())
	}
}

func TestIndexErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "sample not found",
			err:      &SampleNotFoundError{Sample: 10, Count: 6},
			contains: []string{"sample 10", "6 samples"},
		},
		{
			name:     "duration missing",
			err:      &DurationMissingError{Sample: 5, Covered: 4},
			contains: []string{"sample 5", "cover 4"},
		},
		{
			name:     "seek out of range",
			err:      &SeekOutOfRangeError{Position: 99999, Total: 22528},
			contains: []string{"99999", "22528"},
		},
		{
			name:     "short read",
			err:      &OutOfBoundsError{Source: "a.m4a", What: "sample 3", Offset: 40, Length: 100, Got: 12},
			contains: []string{"a.m4a", "sample 3", "offset 40", "12 of 100"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, substr := range tt.contains {
				if !strings.Contains(msg, substr) {
					t.Errorf("error message %q should contain %q", msg, substr)
				}
			}
		})
	}
}

func TestWarning_String(t *testing.T) {
	w := Warning{Stage: "index", Message: "extra stts entries"}
	if got := w.String(); got != "index: extra stts entries" {
		t.Errorf("String() = %q", got)
	}

	w.Offset = 128
	if got := w.String(); got != "index (at offset 128): extra stts entries" {
		t.Errorf("String() = %q", got)
	}
}
