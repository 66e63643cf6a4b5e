package services

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/stonefell/toolforge-web-ui/internal/models"
)

// eventMarker prefixes every payload-bearing line of a turn stream.
const eventMarker = "data:"

// defaultStepIcon stands in when a step event arrives without one.
const defaultStepIcon = "📋"

type decodeState int

const (
	// stateBuffering: chunks are accumulating, no complete line is pending.
	stateBuffering decodeState = iota
	// stateDispatching: complete lines are being drained from the buffer.
	stateDispatching
	// stateFinished: the stream ended and the residue was discarded.
	stateFinished
)

// streamDecoder reconstructs events from arbitrarily segmented stream chunks.
// Bytes accumulate until a line terminator arrives, so a chunk boundary may
// fall anywhere, including inside a multi-byte character, without corrupting
// the event sequence: nothing is decoded to text before its line is complete.
// The segment after the last terminator always stays in the buffer, because
// it may be an incomplete line awaiting more data.
type streamDecoder struct {
	buf   []byte
	state decodeState
}

// feed appends one delivered chunk and returns the events decoded from every
// line the chunk completed, in stream order.
func (d *streamDecoder) feed(chunk []byte) []models.StreamEvent {
	if d.state == stateFinished {
		return nil
	}
	d.buf = append(d.buf, chunk...)
	if !bytes.ContainsRune(d.buf, '\n') {
		d.state = stateBuffering
		return nil
	}

	d.state = stateDispatching
	segments := bytes.Split(d.buf, []byte{'\n'})
	d.buf = append([]byte(nil), segments[len(segments)-1]...)

	var events []models.StreamEvent
	for _, segment := range segments[:len(segments)-1] {
		if event, ok := decodeLine(segment); ok {
			events = append(events, event)
		}
	}
	d.state = stateBuffering
	return events
}

// finish marks end-of-stream. Whatever is left in the buffer cannot be a
// complete event and is dropped; further feeds are ignored.
func (d *streamDecoder) finish() {
	d.buf = nil
	d.state = stateFinished
}

// wireEvent mirrors the JSON object found after the line marker.
type wireEvent struct {
	Type    string   `json:"type"`
	Icon    string   `json:"icon"`
	Content string   `json:"content"`
	Agents  []string `json:"agents"`
	Tools   []string `json:"tools"`
}

// decodeLine turns one complete line into an event. Lines without the marker,
// empty payloads, unknown kinds (the service emits heartbeats) and payloads
// that fail to parse are all dropped without stopping the stream, since
// diagnostic lines may be interleaved with real events.
func decodeLine(line []byte) (models.StreamEvent, bool) {
	text := strings.TrimRight(string(line), "\r")
	if !strings.HasPrefix(text, eventMarker) {
		return models.StreamEvent{}, false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(text, eventMarker))
	if payload == "" {
		return models.StreamEvent{}, false
	}

	var wire wireEvent
	if err := json.Unmarshal([]byte(payload), &wire); err != nil {
		return models.StreamEvent{}, false
	}

	switch wire.Type {
	case "step":
		icon := wire.Icon
		if icon == "" {
			icon = defaultStepIcon
		}
		return models.StreamEvent{
			Kind: models.EventProgress,
			Icon: icon,
			Text: wire.Content,
		}, true
	case "done":
		return models.StreamEvent{
			Kind:   models.EventCompletion,
			Text:   wire.Content,
			Agents: wire.Agents,
			Tools:  wire.Tools,
		}, true
	case "error":
		return models.StreamEvent{
			Kind: models.EventFailure,
			Text: wire.Content,
		}, true
	default:
		return models.StreamEvent{}, false
	}
}
