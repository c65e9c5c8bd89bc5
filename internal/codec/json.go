package codec

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/wagiedev/shell-bridge-go/internal/errors"
)

// JSON is the newline-delimited JSON codec.
var JSON Codec = jsonCodec{}

type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Marshal(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return append(data, '\n'), nil
}

func (jsonCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

func (jsonCodec) NewDecoder(r io.Reader, maxFrameSize int) Decoder {
	if maxFrameSize <= 0 {
		maxFrameSize = DefaultMaxFrameSize
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxFrameSize)

	return &jsonDecoder{scanner: scanner}
}

// jsonDecoder reads one JSON object per line. Blank lines are skipped.
type jsonDecoder struct {
	scanner *bufio.Scanner
}

func (d *jsonDecoder) Decode() (map[string]any, error) {
	for d.scanner.Scan() {
		line := d.scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg map[string]any
		if err := json.Unmarshal(line, &msg); err != nil {
			return nil, &errors.DecodeError{RawData: string(line), Err: err}
		}

		return msg, nil
	}

	if err := d.scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanner error: %w", err)
	}

	return nil, io.EOF
}
