// Package sse frames a byte stream into Server-Sent Events (C5), and offers
// a second binary framing mode for cloud-hosted providers that wrap events
// in the AWS event-stream envelope instead of text SSE.
package sse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/llmbridge/transport/internal/bridge"
)

// Done is returned by Parser.Next when the literal payload "[DONE]" is
// observed: a terminal sentinel, not a real error. Callers should treat it
// as end-of-stream.
var Done = errors.New("sse: [DONE] sentinel")

// EventSource is satisfied by both Parser and EventStreamDecoder: anything
// that can yield the next framed bridge.SSEEvent, regardless of whether the
// wire framing is textual SSE or the binary AWS event-stream envelope. The
// Streaming Delta Parser consumes an EventSource, not a concrete decoder.
type EventSource interface {
	Next() (*bridge.SSEEvent, error)
}

// Parser is a stateful, pull-based framer: a state machine plus a Next()
// operation, carrying a residual line buffer -- not a generator or
// continuation-passing construct, per the coroutine-shaped-iteration design
// note.
type Parser struct {
	br     *bufio.Reader
	offset int64
}

// NewParser wraps r for line-oriented SSE framing. The reader is assumed to
// already be decoding UTF-8; bufio buffers partial reads at chunk
// boundaries transparently, since no decode happens until a full line (up
// to '\n') is available.
func NewParser(r io.Reader) *Parser {
	return &Parser{br: bufio.NewReaderSize(r, 64*1024)}
}

// Next returns the next fully-framed event. It returns io.EOF when the
// stream ends cleanly, sse.Done when the [DONE] sentinel is observed, or a
// Streaming bridge.BridgeError annotated with the byte offset on I/O fault.
func (p *Parser) Next() (*bridge.SSEEvent, error) {
	var (
		event      string
		id         string
		dataLines  []string
		sawAnyLine bool
	)

	for {
		line, err := p.br.ReadString('\n')
		p.offset += int64(len(line))
		line = strings.TrimRight(line, "\r\n")

		if line != "" {
			sawAnyLine = true
			switch {
			case strings.HasPrefix(line, ":"):
				// comment, ignored
			case strings.HasPrefix(line, "data:"):
				dataLines = append(dataLines, trimOneLeadingSpace(line[len("data:"):]))
			case strings.HasPrefix(line, "event:"):
				event = trimOneLeadingSpace(line[len("event:"):])
			case strings.HasPrefix(line, "id:"):
				id = trimOneLeadingSpace(line[len("id:"):])
			default:
				// unrecognized field name (e.g. "retry:"); ignored
			}
		}

		if line == "" && sawAnyLine {
			// blank line terminates the event
			if len(dataLines) == 0 {
				// no data lines after the separator: skip, keep reading
				event, id, dataLines, sawAnyLine = "", "", nil, false
				continue
			}
			data := strings.Join(dataLines, "\n")
			if data == "[DONE]" {
				return nil, Done
			}
			return &bridge.SSEEvent{Event: event, Data: data, ID: id}, nil
		}

		if err != nil {
			if err == io.EOF {
				return nil, io.EOF
			}
			be := bridge.Wrap(bridge.KindStreaming, fmt.Sprintf("sse: read error at offset %d", p.offset), err)
			return nil, be
		}
	}
}

func trimOneLeadingSpace(s string) string {
	if strings.HasPrefix(s, " ") {
		return s[1:]
	}
	return s
}
