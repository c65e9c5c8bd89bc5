// Package codec frames messages exchanged with the privileged host.
//
// Two codecs are provided. JSON writes one object per line and is the
// default. CBOR writes a sequence of self-delimiting CBOR items using Core
// Deterministic Encoding. Both decode maps as map[string]any so the rest of
// the bridge handles frames the same way regardless of codec.
package codec

import (
	"fmt"
	"io"
)

const (
	// DefaultMaxFrameSize is the largest frame a decoder accepts.
	DefaultMaxFrameSize = 1024 * 1024 // 1MB
)

// Codec encodes outgoing frames and decodes incoming ones.
type Codec interface {
	// Name returns the codec name used in configuration.
	Name() string

	// Marshal encodes v as one complete frame, including any delimiter.
	Marshal(v any) ([]byte, error)

	// Unmarshal decodes a single frame into v.
	Unmarshal(data []byte, v any) error

	// NewDecoder returns a decoder that reads consecutive frames from r.
	NewDecoder(r io.Reader, maxFrameSize int) Decoder

	// Binary reports whether frames are binary rather than text.
	Binary() bool
}

// Decoder reads frames from a stream.
type Decoder interface {
	// Decode reads the next frame. It returns io.EOF at end of stream and
	// *errors.DecodeError for a frame that could not be decoded; after a
	// DecodeError the decoder may continue with the next frame.
	Decode() (map[string]any, error)
}

// ByName returns the codec registered under name. An empty name selects JSON.
func ByName(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSON, nil
	case "cbor":
		return CBOR, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}
