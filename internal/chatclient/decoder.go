package chatclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
)

// DefaultMaxPending bounds how many bytes of an incomplete payload the
// decoder holds while waiting for the rest of it.
const DefaultMaxPending = 64 << 10

type decoderState int

const (
	stateAccumulating decoderState = iota
	stateLineReady
	statePayloadParsed
	stateDone
)

func (s decoderState) String() string {
	switch s {
	case stateAccumulating:
		return "accumulating"
	case stateLineReady:
		return "line-ready"
	case statePayloadParsed:
		return "payload-parsed"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

type envelope struct {
	Choices []struct {
		Delta struct {
			Content *string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// Decoder turns a byte stream of server-sent events into completion deltas.
// Bytes are buffered until a full line is available. A data payload whose JSON
// ends early is held back and completed by the following line; payloads that
// are not valid JSON are skipped and counted. A "[DONE]" payload ends the
// stream and any bytes after it are ignored.
//
// A Decoder is not safe for concurrent use.
type Decoder struct {
	buf        []byte
	pending    string
	state      decoderState
	malformed  int
	maxPending int
}

// NewDecoder returns a decoder in the accumulating state.
func NewDecoder() *Decoder {
	return &Decoder{maxPending: DefaultMaxPending}
}

// Feed appends chunk to the buffer and returns the deltas decoded from every
// complete line, plus whether the end-of-stream marker has been seen.
func (d *Decoder) Feed(chunk []byte) ([]string, bool) {
	if d.state == stateDone {
		return nil, true
	}
	d.buf = append(d.buf, chunk...)

	var deltas []string
	for d.state != stateDone {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			d.state = stateAccumulating
			break
		}
		line := string(d.buf[:idx])
		d.buf = d.buf[idx+1:]
		d.state = stateLineReady
		if delta, ok := d.line(line); ok {
			deltas = append(deltas, delta)
		}
	}
	if d.state == stateDone {
		d.buf = nil
	}
	return deltas, d.state == stateDone
}

// Finish processes a trailing line that never received its terminator and
// drops any payload still waiting for more bytes. Call it once the transport
// reports end of body.
func (d *Decoder) Finish() []string {
	if d.state == stateDone {
		return nil
	}
	var deltas []string
	if len(d.buf) > 0 {
		line := string(d.buf)
		d.buf = nil
		if delta, ok := d.line(line); ok {
			deltas = append(deltas, delta)
		}
	}
	if d.pending != "" {
		d.pending = ""
		d.malformed++
	}
	return deltas
}

// Done reports whether the end-of-stream marker was seen.
func (d *Decoder) Done() bool { return d.state == stateDone }

// Truncated reports whether the stream ended without the end-of-stream marker.
// Only meaningful after Finish.
func (d *Decoder) Truncated() bool { return d.state != stateDone }

// Malformed returns how many payloads were skipped as invalid.
func (d *Decoder) Malformed() int { return d.malformed }

// Buffered returns the number of bytes held for a future line or payload.
func (d *Decoder) Buffered() int { return len(d.buf) + len(d.pending) }

func (d *Decoder) line(line string) (string, bool) {
	line = strings.TrimSuffix(line, "\r")

	if d.pending != "" {
		if isEventBoundary(line) {
			// The held payload can no longer be completed.
			d.pending = ""
			d.malformed++
		} else {
			payload := d.pending + "\n" + line
			d.pending = ""
			return d.parse(payload)
		}
	}

	if strings.HasPrefix(line, ":") || strings.TrimSpace(line) == "" {
		return "", false
	}
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == "" {
		return "", false
	}
	if payload == "[DONE]" {
		d.state = stateDone
		return "", false
	}
	return d.parse(payload)
}

func (d *Decoder) parse(payload string) (string, bool) {
	var env envelope
	err := json.NewDecoder(strings.NewReader(payload)).Decode(&env)
	switch {
	case err == nil:
		d.state = statePayloadParsed
		if len(env.Choices) == 0 || env.Choices[0].Delta.Content == nil {
			return "", false
		}
		content := *env.Choices[0].Delta.Content
		return content, content != ""
	case errors.Is(err, io.ErrUnexpectedEOF) && len(payload) <= d.maxPending:
		d.pending = payload
	default:
		d.malformed++
	}
	return "", false
}

func isEventBoundary(line string) bool {
	return strings.TrimSpace(line) == "" || strings.HasPrefix(line, "data:") || strings.HasPrefix(line, ":")
}
