package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/llmbridge/transport/internal/bridge"
)

// Fake is a scriptable bridge.RuntimeAdapter for deterministic tests: a
// virtual clock plus func-field overrides for Fetch/Stream/RandomUniform,
// in the func-field-fake style used elsewhere in this codebase's test
// doubles. The zero value is usable; Sleep advances the virtual clock
// without any real wall-clock wait unless SleepFunc is set.
type Fake struct {
	mu  sync.Mutex
	now time.Time

	// FetchFunc and StreamFunc, when set, are called in place of the
	// default behavior (which panics, since a fake with no script is a
	// test bug).
	FetchFunc         func(ctx context.Context, req *bridge.Request) (*bridge.Response, error)
	StreamFunc        func(ctx context.Context, req *bridge.Request) (*bridge.StreamResponse, error)
	RandomUniformFunc func() float64

	// SleepFunc, when set, replaces the default virtual-time Sleep. Tests
	// needing Scenario G's "cancel mid-sleep" behavior set this to cancel
	// a context and then delegate to a short real sleep, or simply cancel
	// inline and return ctx.Err().
	SleepFunc func(ctx context.Context, d time.Duration) error

	sleeps      []time.Duration
	fetchCalls  int
	streamCalls int
}

// NewFake returns a Fake whose virtual clock starts at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the virtual clock forward without invoking Sleep.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

// Sleeps returns the durations recorded by every Sleep call so far.
func (f *Fake) Sleeps() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.sleeps...)
}

func (f *Fake) FetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func (f *Fake) StreamCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.streamCalls
}

func (f *Fake) Sleep(ctx context.Context, d time.Duration) error {
	f.mu.Lock()
	f.sleeps = append(f.sleeps, d)
	f.mu.Unlock()

	if f.SleepFunc != nil {
		return f.SleepFunc(ctx, d)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f.Advance(d)
	return nil
}

func (f *Fake) RandomUniform() float64 {
	if f.RandomUniformFunc != nil {
		return f.RandomUniformFunc()
	}
	return 0
}

func (f *Fake) Fetch(ctx context.Context, req *bridge.Request) (*bridge.Response, error) {
	f.mu.Lock()
	f.fetchCalls++
	f.mu.Unlock()
	if f.FetchFunc == nil {
		panic("runtime.Fake: FetchFunc not set")
	}
	return f.FetchFunc(ctx, req)
}

func (f *Fake) Stream(ctx context.Context, req *bridge.Request) (*bridge.StreamResponse, error) {
	f.mu.Lock()
	f.streamCalls++
	f.mu.Unlock()
	if f.StreamFunc == nil {
		panic("runtime.Fake: StreamFunc not set")
	}
	return f.StreamFunc(ctx, req)
}

var _ bridge.RuntimeAdapter = (*Fake)(nil)
var _ bridge.RuntimeAdapter = (*Real)(nil)
