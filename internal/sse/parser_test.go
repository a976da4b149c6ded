package sse

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/llmbridge/transport/internal/bridge"
)

func readAll(t *testing.T, r io.Reader) ([]*bridge.SSEEvent, error) {
	t.Helper()
	p := NewParser(r)
	var events []*bridge.SSEEvent
	for {
		ev, err := p.Next()
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

const referenceTranscript = "event: message_start\n" +
	"data: {\"type\":\"message_start\"}\n" +
	"\n" +
	": keep-alive comment\n" +
	"data: line one\n" +
	"data: line two\n" +
	"id: evt-1\n" +
	"\n" +
	"event: message_stop\n" +
	"data: {\"type\":\"message_stop\"}\n" +
	"\n" +
	"data: [DONE]\n" +
	"\n"

// chunkedReader splits a fixed byte string into reads of size n, to exercise
// the parser across arbitrary chunk boundaries regardless of where a line or
// multi-byte rune happens to split.
type chunkedReader struct {
	data []byte
	n    int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	n := c.n
	if n > len(p) {
		n = len(p)
	}
	if n > len(c.data) {
		n = len(c.data)
	}
	copy(p, c.data[:n])
	c.data = c.data[n:]
	return n, nil
}

func TestParser_FramingStableAcrossByteSplittings(t *testing.T) {
	t.Parallel()
	var reference []*bridge.SSEEvent
	for _, chunkSize := range []int{1, 2, 3, 5, 7, 11, 17, 64, 4096} {
		events, err := readAll(t, &chunkedReader{data: []byte(referenceTranscript), n: chunkSize})
		if !errors.Is(err, Done) {
			t.Fatalf("chunk size %d: expected sse.Done, got %v", chunkSize, err)
		}
		if reference == nil {
			reference = events
			continue
		}
		if len(events) != len(reference) {
			t.Fatalf("chunk size %d: got %d events, want %d", chunkSize, len(events), len(reference))
		}
		for i := range events {
			if *events[i] != *reference[i] {
				t.Fatalf("chunk size %d: event %d = %+v, want %+v", chunkSize, i, events[i], reference[i])
			}
		}
	}
}

func TestParser_CommentLinesIgnored(t *testing.T) {
	t.Parallel()
	p := NewParser(strings.NewReader(": this is a comment\ndata: hello\n\n"))
	ev, err := p.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Data != "hello" {
		t.Errorf("data = %q, want %q", ev.Data, "hello")
	}
}

func TestParser_MultiLineDataJoinedWithNewline(t *testing.T) {
	t.Parallel()
	p := NewParser(strings.NewReader("data: line one\ndata: line two\n\n"))
	ev, err := p.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Data != "line one\nline two" {
		t.Errorf("data = %q", ev.Data)
	}
}

func TestParser_LastValueWinsForEventAndID(t *testing.T) {
	t.Parallel()
	p := NewParser(strings.NewReader("event: first\nevent: second\nid: a\nid: b\ndata: x\n\n"))
	ev, err := p.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Event != "second" {
		t.Errorf("event = %q, want second", ev.Event)
	}
	if ev.ID != "b" {
		t.Errorf("id = %q, want b", ev.ID)
	}
}

func TestParser_EventWithNoDataIsSkipped(t *testing.T) {
	t.Parallel()
	p := NewParser(strings.NewReader("event: ping\n\ndata: real\n\n"))
	ev, err := p.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Data != "real" {
		t.Errorf("expected the no-data event to be skipped, got %+v", ev)
	}
}

func TestParser_DoneSentinel(t *testing.T) {
	t.Parallel()
	p := NewParser(strings.NewReader("data: [DONE]\n\n"))
	_, err := p.Next()
	if !errors.Is(err, Done) {
		t.Errorf("err = %v, want Done", err)
	}
}

func TestParser_CleanEOF(t *testing.T) {
	t.Parallel()
	p := NewParser(strings.NewReader("data: only\n\n"))
	if _, err := p.Next(); err != nil {
		t.Fatalf("unexpected error on first event: %v", err)
	}
	if _, err := p.Next(); err != io.EOF {
		t.Errorf("err = %v, want io.EOF", err)
	}
}

type failingReader struct {
	afterBytes int
	sent       int
	failErr    error
}

func (f *failingReader) Read(p []byte) (int, error) {
	if f.sent >= f.afterBytes {
		return 0, f.failErr
	}
	chunk := []byte("data: partial")
	n := copy(p, chunk)
	f.sent += n
	return n, nil
}

func TestParser_IOErrorWrappedAsStreamingKind(t *testing.T) {
	t.Parallel()
	underlying := errors.New("connection reset by peer")
	p := NewParser(&failingReader{afterBytes: 4, failErr: underlying})

	_, err := p.Next()
	var be *bridge.BridgeError
	if !errors.As(err, &be) {
		t.Fatalf("expected a BridgeError, got %v (%T)", err, err)
	}
	if be.Kind != bridge.KindStreaming {
		t.Errorf("kind = %v, want Streaming", be.Kind)
	}
	if !errors.Is(err, underlying) && !strings.Contains(err.Error(), "read error") {
		t.Errorf("expected wrapped error to mention the read failure, got %v", err)
	}
}
