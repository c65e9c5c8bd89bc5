package codec

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// CBOR is the CBOR sequence codec.
var CBOR Codec = cborCodec{}

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	var err error

	cborEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	// Frames never use non-string map keys; decoding into any must yield
	// map[string]any like the JSON codec does.
	cborDec, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

type cborCodec struct{}

func (cborCodec) Name() string { return "cbor" }

func (cborCodec) Binary() bool { return true }

func (cborCodec) Marshal(v any) ([]byte, error) {
	return cborEnc.Marshal(v)
}

func (cborCodec) Unmarshal(data []byte, v any) error {
	return cborDec.Unmarshal(data, v)
}

// NewDecoder ignores maxFrameSize; CBOR items carry their own lengths and
// the decoder enforces its built-in nesting and element limits.
func (cborCodec) NewDecoder(r io.Reader, _ int) Decoder {
	return &cborDecoder{dec: cborDec.NewDecoder(bufio.NewReader(r))}
}

// cborDecoder reads a CBOR sequence. A malformed item leaves the stream
// position undefined, so decode errors are terminal for this codec.
type cborDecoder struct {
	dec *cbor.Decoder
}

func (d *cborDecoder) Decode() (map[string]any, error) {
	var msg map[string]any

	if err := d.dec.Decode(&msg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}

		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated frame: %w", err)
		}

		return nil, fmt.Errorf("cbor stream: %w", err)
	}

	return msg, nil
}
