package sse

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws/protocol/eventstream"

	"github.com/llmbridge/transport/internal/bridge"
)

// EventStreamDecoder decodes the binary AWS event-stream framing used by
// cloud-hosted providers (Bedrock) as an alternative to textual SSE. The
// Streaming Delta Parser is framing-agnostic: it consumes SSEEvents
// regardless of which decoder produced them.
type EventStreamDecoder struct {
	dec *eventstream.Decoder
	r   io.Reader
}

// NewEventStreamDecoder wraps r, which must yield AWS event-stream framed
// messages.
func NewEventStreamDecoder(r io.Reader) *EventStreamDecoder {
	return &EventStreamDecoder{dec: eventstream.NewDecoder(), r: r}
}

// Next decodes and returns the next frame as an SSEEvent, unwrapping the
// provider's base64 "bytes" envelope if present.
func (d *EventStreamDecoder) Next() (*bridge.SSEEvent, error) {
	msg, err := d.dec.Decode(d.r, nil)
	if err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, bridge.Wrap(bridge.KindStreaming, "eventstream: decode error", err)
	}

	eventType := headerValue(msg.Headers, ":event-type")
	msgType := headerValue(msg.Headers, ":message-type")
	if msgType == "exception" || msgType == "error" {
		return nil, bridge.Wrap(bridge.KindStreaming, fmt.Sprintf("eventstream: upstream %s frame: %s", msgType, string(msg.Payload)), nil)
	}

	data, err := extractEventBytes(msg.Payload)
	if err != nil {
		return nil, bridge.Wrap(bridge.KindStreaming, "eventstream: malformed payload envelope", err)
	}
	return &bridge.SSEEvent{Event: eventType, Data: string(data)}, nil
}

func headerValue(headers eventstream.Headers, name string) string {
	for _, h := range headers {
		if h.Name == name {
			if s, ok := h.Value.Get().(string); ok {
				return s
			}
			return h.Value.String()
		}
	}
	return ""
}

// extractEventBytes unwraps the provider's {"bytes": "<base64>"} JSON
// envelope that Bedrock places inside each event-stream payload. If the
// payload is not such an envelope, it is returned unchanged.
func extractEventBytes(payload []byte) ([]byte, error) {
	var envelope struct {
		Bytes string `json:"bytes"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Bytes == "" {
		return payload, nil
	}
	return base64.StdEncoding.DecodeString(envelope.Bytes)
}
