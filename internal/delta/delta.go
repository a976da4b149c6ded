// Package delta implements the Streaming Delta Parser (C6): a stateful
// mapper from provider SSE events onto the uniform bridge.StreamDelta shape.
package delta

import (
	"context"
	"errors"
	"io"

	"github.com/tidwall/gjson"

	"github.com/llmbridge/transport/internal/bridge"
	"github.com/llmbridge/transport/internal/normalize"
	"github.com/llmbridge/transport/internal/sse"
)

// block tracks per-index content-block accumulation state.
type block struct {
	blockType string
	id        string
	name      string
	input     []byte
}

// state is the streaming-state struct carried across events for one message:
// message id (first seen), a sparse blocks array, and cumulative usage.
type state struct {
	messageID string
	blocks    []*block
	usage     *bridge.Usage
}

// Parser is a stateful, pull-based mapper: it owns an sse.EventSource and
// exposes Next() the same way the framer does, per the
// coroutine-shaped-iteration design note -- a state machine plus a next()
// operation, not a generator. It is framing-agnostic: frames may come from
// the textual sse.Parser or the binary sse.EventStreamDecoder.
type Parser struct {
	frames          sse.EventSource
	st              state
	provider        string
	providerVersion string
}

// NewParser wraps r, a textual SSE byte stream for a single streaming
// response.
func NewParser(r io.Reader, provider, providerVersion string) *Parser {
	return NewParserFromSource(sse.NewParser(r), provider, providerVersion)
}

// NewParserFromSource wraps any sse.EventSource -- the textual sse.Parser,
// the binary sse.EventStreamDecoder (Bedrock and other cloud-hosted
// providers), or a test double -- so the delta state machine is exercised
// identically regardless of wire framing.
func NewParserFromSource(src sse.EventSource, provider, providerVersion string) *Parser {
	return &Parser{
		frames:          src,
		provider:        provider,
		providerVersion: providerVersion,
	}
}

// Next returns the next Stream Delta. It returns io.EOF when the stream ends
// cleanly (including on the [DONE] sentinel, which stops without emitting),
// or a normalized *bridge.BridgeError on a typed provider error event or
// upstream I/O fault.
func (p *Parser) Next(ctx context.Context) (*bridge.StreamDelta, error) {
	for {
		event, err := p.frames.Next()
		if err != nil {
			if errors.Is(err, sse.Done) {
				return nil, io.EOF
			}
			if err == io.EOF {
				return nil, io.EOF
			}
			return nil, err // already a Streaming bridge.BridgeError
		}

		d, handled, herr := p.handleEvent(ctx, event)
		if herr != nil {
			return nil, herr
		}
		if !handled {
			continue
		}
		return d, nil
	}
}

func (p *Parser) handleEvent(ctx context.Context, event *bridge.SSEEvent) (*bridge.StreamDelta, bool, error) {
	if !gjson.Valid(event.Data) {
		return nil, false, nil // malformed JSON: skip, keep streaming
	}
	root := gjson.Parse(event.Data)
	switch root.Get("type").String() {
	case "message_start":
		id := root.Get("message.id").String()
		if id == "" {
			id = root.Get("id").String()
		}
		p.st.messageID = id
		if u := root.Get("message.usage"); u.Exists() {
			p.mergeUsage(u)
		}
		return &bridge.StreamDelta{
			ID:   id,
			Role: "assistant",
			Metadata: map[string]any{
				"event": "message_start",
				"model": root.Get("message.model").String(),
			},
		}, true, nil

	case "content_block_start":
		idx := int(root.Get("index").Int())
		p.ensureBlock(idx)
		b := p.st.blocks[idx]
		b.blockType = root.Get("content_block.type").String()
		b.id = root.Get("content_block.id").String()
		b.name = root.Get("content_block.name").String()
		return &bridge.StreamDelta{
			ID:       p.st.messageID,
			Metadata: map[string]any{"event": "content_block_start", "index": idx},
		}, true, nil

	case "content_block_delta":
		return p.handleContentBlockDelta(root)

	case "content_block_stop":
		idx := int(root.Get("index").Int())
		return &bridge.StreamDelta{
			ID:       p.st.messageID,
			Metadata: map[string]any{"event": "content_block_stop", "index": idx},
		}, true, nil

	case "message_delta":
		if u := root.Get("usage"); u.Exists() {
			p.mergeUsage(u)
		}
		return &bridge.StreamDelta{
			ID: p.st.messageID,
			Metadata: map[string]any{
				"event":       "message_delta",
				"stop_reason": root.Get("delta.stop_reason").String(),
			},
		}, true, nil

	case "message_stop":
		return &bridge.StreamDelta{
			ID:       p.st.messageID,
			Finished: true,
			Usage:    p.st.usage,
		}, true, nil

	case "error":
		resp := &bridge.Response{StatusCode: 400, Body: []byte(event.Data)}
		err := normalize.Normalize(ctx, normalize.Input{
			Response:        resp,
			Provider:        p.provider,
			ProviderVersion: p.providerVersion,
		})
		return nil, false, err

	default:
		return nil, false, nil // unknown event type: skip, keep streaming
	}
}

func (p *Parser) handleContentBlockDelta(root gjson.Result) (*bridge.StreamDelta, bool, error) {
	idx := int(root.Get("index").Int())
	p.ensureBlock(idx)
	b := p.st.blocks[idx]

	switch root.Get("delta.type").String() {
	case "text_delta":
		text := root.Get("delta.text").String()
		return &bridge.StreamDelta{
			ID:      p.st.messageID,
			Content: []bridge.ContentPart{{Type: "text", Text: text}},
		}, true, nil

	case "input_json_delta":
		partial := root.Get("delta.partial_json")
		if partial.Exists() && partial.Type == gjson.String {
			b.input = append(b.input, partial.String()...)
		} else if obj := root.Get("delta.input"); obj.Exists() {
			// Provider sent the input as a JSON object rather than a raw
			// partial string; accumulate its serialized form (lossy if a
			// later frame sends a string continuation -- see open question).
			b.input = append(b.input, obj.Raw...)
		}
		if b.blockType == "tool_use" && b.id != "" && b.name != "" {
			return &bridge.StreamDelta{
				ID: p.st.messageID,
				ToolCalls: []bridge.ToolCallDelta{
					{ID: b.id, Name: b.name, Arguments: string(b.input)},
				},
			}, true, nil
		}
		return nil, false, nil

	default:
		return nil, false, nil
	}
}

func (p *Parser) ensureBlock(idx int) {
	for len(p.st.blocks) <= idx {
		p.st.blocks = append(p.st.blocks, &block{})
	}
}

func (p *Parser) mergeUsage(u gjson.Result) {
	if p.st.usage == nil {
		p.st.usage = &bridge.Usage{}
	}
	if v := u.Get("input_tokens"); v.Exists() {
		p.st.usage.PromptTokens = int(v.Int())
	}
	if v := u.Get("output_tokens"); v.Exists() {
		p.st.usage.CompletionTokens = int(v.Int())
	}
	p.st.usage.TotalTokens = p.st.usage.PromptTokens + p.st.usage.CompletionTokens
}
