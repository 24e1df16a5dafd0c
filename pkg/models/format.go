package models

import "fmt"

// MediaFormat is a target encoding for a transcode.
type MediaFormat string

const (
	FormatWebM    MediaFormat = "webm"
	FormatMP4     MediaFormat = "mp4"
	FormatOgg     MediaFormat = "ogg"
	FormatDefault MediaFormat = "default"
)

// Quality is a coarse quality tier mapped to encoder-specific parameters.
type Quality string

const (
	QualityLowest  Quality = "lowest"
	QualityDefault Quality = "default"
	QualityHighest Quality = "highest"
)

// qualityParams maps (format, tier) to the numeric encoder parameter.
// webm/mp4 use CRF (lower is better), ogg uses qscale (higher is better).
// FormatDefault has no entry: it runs with configured passthrough arguments.
var qualityParams = map[MediaFormat]map[Quality]string{
	FormatWebM: {
		QualityLowest:  "50",
		QualityDefault: "22",
		QualityHighest: "4",
	},
	FormatMP4: {
		QualityLowest:  "28",
		QualityDefault: "24",
		QualityHighest: "18",
	},
	FormatOgg: {
		QualityLowest:  "5",
		QualityDefault: "7",
		QualityHighest: "9",
	},
}

// QualityParam returns the encoder parameter for a format and tier.
func QualityParam(format MediaFormat, quality Quality) (string, error) {
	tiers, ok := qualityParams[format]
	if !ok {
		return "", fmt.Errorf("no quality table for format %q", format)
	}
	param, ok := tiers[quality]
	if !ok {
		return "", fmt.Errorf("unknown quality tier %q", quality)
	}
	return param, nil
}

// Valid reports whether the format is one of the supported targets.
func (f MediaFormat) Valid() bool {
	switch f {
	case FormatWebM, FormatMP4, FormatOgg, FormatDefault:
		return true
	}
	return false
}

// Ext returns the file extension for the format's container.
func (f MediaFormat) Ext() string {
	if f == FormatDefault {
		return "mp4"
	}
	return string(f)
}

// ContentType returns the MIME type served for the format.
func (f MediaFormat) ContentType() string {
	switch f {
	case FormatWebM:
		return "video/webm"
	case FormatOgg:
		return "video/ogg"
	default:
		return "video/mp4"
	}
}

// Valid reports whether the quality is a known tier.
func (q Quality) Valid() bool {
	switch q {
	case QualityLowest, QualityDefault, QualityHighest:
		return true
	}
	return false
}
