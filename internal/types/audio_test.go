package types

import "testing"

func TestStreamInfo_String(t *testing.T) {
	tests := []struct {
		name string
		info StreamInfo
		want string
	}{
		{
			name: "cd quality",
			info: StreamInfo{SampleRate: 44100, BitDepth: 16, Channels: 2},
			want: "ALAC 44.1kHz 16-bit stereo",
		},
		{
			name: "hi-res mono",
			info: StreamInfo{SampleRate: 96000, BitDepth: 24, Channels: 1},
			want: "ALAC 96.0kHz 24-bit mono",
		},
		{
			name: "5.1 surround",
			info: StreamInfo{SampleRate: 48000, BitDepth: 24, Channels: 6},
			want: "ALAC 48.0kHz 24-bit 5.1",
		},
		{
			name: "odd channel count",
			info: StreamInfo{SampleRate: 48000, BitDepth: 16, Channels: 3},
			want: "ALAC 48.0kHz 16-bit 3ch",
		},
		{
			name: "nothing known",
			info: StreamInfo{},
			want: "ALAC",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStreamInfo_BytesPerSample(t *testing.T) {
	tests := []struct {
		depth int
		want  int
	}{
		{8, 1},
		{16, 2},
		{20, 3},
		{24, 3},
		{32, 4},
	}

	for _, tt := range tests {
		info := StreamInfo{OutputBitDepth: tt.depth}
		if got := info.BytesPerSample(); got != tt.want {
			t.Errorf("BytesPerSample() for %d-bit = %d, want %d", tt.depth, got, tt.want)
		}
	}
}

func TestStreamInfo_IsHighRes(t *testing.T) {
	if (StreamInfo{SampleRate: 44100, BitDepth: 16}).IsHighRes() {
		t.Error("44.1kHz/16-bit should not be high-res")
	}
	if !(StreamInfo{SampleRate: 44100, BitDepth: 24}).IsHighRes() {
		t.Error("24-bit should be high-res")
	}
	if !(StreamInfo{SampleRate: 96000, BitDepth: 16}).IsHighRes() {
		t.Error("96kHz should be high-res")
	}
}
