package m4a

// codecNames maps MP4 sample entry FourCC codes to human-readable names.
var codecNames = map[string]string{
	// AAC Family
	"mp4a": "AAC",
	"mhm1": "xHE-AAC",
	"mhm2": "xHE-AAC v2",

	// Dolby Family
	"ac-3": "AC-3",
	"ec-3": "E-AC-3",
	"ac-4": "AC-4",

	// Lossless
	"alac": "Apple Lossless",
	"fLaC": "FLAC",

	// Other
	"Opus": "Opus",
	"mp3 ": "MP3",
	".mp3": "MP3",
	"lpcm": "Linear PCM",
	"sowt": "Linear PCM",
}

// mapCodecName converts a FourCC codec identifier to a human-readable name.
func mapCodecName(fourCC string) string {
	if name, ok := codecNames[fourCC]; ok {
		return name
	}
	return fourCC
}

// CodecName returns the display name of a sample entry format.
func CodecName(format string) string {
	return mapCodecName(format)
}
