package event

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/wagiedev/shell-bridge-go/internal/errors"
)

// Parse converts a raw callback payload into a typed Event.
//
// The logger receives debug output about each decoded event. Any payload
// that does not match the event wire shape yields a *errors.ProtocolError.
func Parse(log *slog.Logger, data any) (Event, error) {
	log = log.With("component", "event_parser")

	obj, ok := data.(map[string]any)
	if !ok {
		return nil, &errors.ProtocolError{
			Reason: fmt.Sprintf("event is %T, not an object", data),
		}
	}

	tag, ok := obj["event"].(string)
	if !ok {
		return nil, &errors.ProtocolError{Reason: "missing or invalid 'event' field"}
	}

	payload := obj["payload"]

	log.Debug("Parsing event", "event", tag)

	var (
		ev  Event
		err error
	)

	switch Tag(tag) {
	case TagStdout:
		var chunk Chunk

		chunk, err = parseChunk(payload)
		ev = &StdoutEvent{Chunk: chunk}
	case TagStderr:
		var chunk Chunk

		chunk, err = parseChunk(payload)
		ev = &StderrEvent{Chunk: chunk}
	case TagError:
		ev = parseError(payload)
	case TagTerminated:
		ev, err = parseTerminated(payload)
	default:
		log.Debug("Unknown event tag", "event", tag)

		return nil, &errors.ProtocolError{Event: tag, Reason: "unknown event tag"}
	}

	if err != nil {
		return nil, &errors.ProtocolError{Event: tag, Reason: err.Error()}
	}

	return ev, nil
}

// parseChunk accepts a string (text mode) or an array of byte values
// (raw mode).
func parseChunk(payload any) (Chunk, error) {
	switch v := payload.(type) {
	case string:
		return TextChunk(v), nil
	case []byte:
		return BytesChunk(v), nil
	case []any:
		data := make([]byte, len(v))

		for i, item := range v {
			n, ok := ToInt(item)
			if !ok || n < 0 || n > math.MaxUint8 {
				return Chunk{}, fmt.Errorf("byte %d: invalid value %v", i, item)
			}

			data[i] = byte(n)
		}

		return BytesChunk(data), nil
	default:
		return Chunk{}, fmt.Errorf("chunk is %T, want string or byte array", payload)
	}
}

func parseError(payload any) *ErrorEvent {
	switch v := payload.(type) {
	case string:
		return &ErrorEvent{Message: v}
	case nil:
		return &ErrorEvent{}
	default:
		return &ErrorEvent{Message: fmt.Sprint(v)}
	}
}

func parseTerminated(payload any) (*TerminatedEvent, error) {
	if payload == nil {
		return &TerminatedEvent{}, nil
	}

	obj, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("payload is %T, want object", payload)
	}

	ev := &TerminatedEvent{}

	if raw, ok := obj["code"]; ok && raw != nil {
		code, ok := ToInt(raw)
		if !ok {
			return nil, fmt.Errorf("invalid 'code' field: %v", raw)
		}

		ev.Code = &code
	}

	if raw, ok := obj["signal"]; ok && raw != nil {
		var signal string

		switch v := raw.(type) {
		case string:
			signal = v
		default:
			n, ok := ToInt(v)
			if !ok {
				return nil, fmt.Errorf("invalid 'signal' field: %v", raw)
			}

			signal = strconv.Itoa(n)
		}

		ev.Signal = &signal
	}

	return ev, nil
}

// ToInt converts a decoded number to int. JSON frames decode numbers as
// float64 while CBOR frames yield uint64 or int64.
func ToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case uint64:
		if n > math.MaxInt {
			return 0, false
		}

		return int(n), true
	case float64:
		// -MinInt is a power of two and exact as a float64; MaxInt is not.
		if n != math.Trunc(n) || n < float64(math.MinInt) || n >= -float64(math.MinInt) {
			return 0, false
		}

		return int(n), true
	case uint8:
		return int(n), true
	case int32:
		return int(n), true
	case uint32:
		return int(n), true
	default:
		return 0, false
	}
}
