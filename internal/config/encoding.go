package config

import "strings"

const (
	// EncodingRaw delivers output chunks as byte sequences.
	EncodingRaw = "raw"

	// EncodingUTF8 delivers output chunks as UTF-8 lines. This is the host default.
	EncodingUTF8 = "utf-8"
)

// NormalizeEncoding maps encoding aliases to the names the host understands.
//
// Alias mappings:
//   - "bytes", "binary" -> "raw"
//   - "utf8", "UTF-8" -> "utf-8"
//
// Other names are passed through unchanged for the host to resolve.
func NormalizeEncoding(encoding string) string {
	switch strings.ToLower(encoding) {
	case "raw", "bytes", "binary":
		return EncodingRaw
	case "utf8", "utf-8":
		return EncodingUTF8
	default:
		return encoding
	}
}
