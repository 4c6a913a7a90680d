// Package chat owns the conversation session and the single in-flight
// generation turn: consuming a provider's chunk stream, throttling
// UI-visible updates, cooperative cancellation, and reconciling token
// usage when a turn completes.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/clipchat-ai/clipchat/internal/provider"
)

// DefaultFlushInterval coalesces visible updates to roughly one frame.
const DefaultFlushInterval = 16 * time.Millisecond

var (
	// ErrBusy is returned by Send while a turn is already streaming or
	// still settling. The caller treats it as a silent no-op.
	ErrBusy = errors.New("a turn is already in flight")

	// ErrNoProvider is returned by Send when the controller has no
	// underlying generation capability.
	ErrNoProvider = errors.New("no active session")
)

// Sink receives the controller's visible-state updates. Flushes are
// throttled; the final flush on completion, cancellation, or error is
// forced so the last bytes are never lost.
type Sink interface {
	// StreamDelta appends newly flushed text to the visible output.
	StreamDelta(delta string)

	// StreamReplace replaces the entire visible output. Only emitted for
	// cumulative providers whose chunk is not an extension of the
	// previous one.
	StreamReplace(text string)

	// StreamDone signals the end of a turn with the full accumulated
	// text. cancelled is true when the turn was cut short by Cancel;
	// that is not an error.
	StreamDone(fullText string, cancelled bool)

	// StreamError reports a generation failure. The partial text already
	// flushed remains visible.
	StreamError(err error)
}

// streamState is the controller's lifecycle. At most one turn is live; a
// Send during streaming or settling is rejected, never queued.
type streamState int

const (
	stateIdle streamState = iota
	stateStreaming
	stateSettling // stream finished, final flush and callbacks running
)

// Controller drives one generation turn at a time against a provider.
//
// The chunk contract is negotiated from the provider's StreamKind:
// incremental deltas are the primary contract; cumulative streams go
// through a compatibility shim that prefix-matches consecutive chunks and
// falls back to full replacement for non-conforming sequences.
type Controller struct {
	mu sync.Mutex

	// sinkMu serializes sink deliveries. Deltas are computed while it is
	// held, so the trailing-timer goroutine and the consumer goroutine
	// can never hand text to the sink out of order.
	sinkMu sync.Mutex

	prov  provider.Provider
	sink  Sink
	state streamState

	interval  time.Duration
	lastFlush time.Time
	trailing  *time.Timer

	buf        strings.Builder // accumulated text for this turn
	flushedLen int             // bytes of buf already delivered to the sink
	prevChunk  string          // cumulative shim: previous raw chunk

	cancel context.CancelFunc

	// onDone, if set, runs after a successful turn with the provider's
	// authoritative usage. It is not called for cancelled or failed turns.
	onDone func(usage *provider.Usage, fullText string)
}

// NewController creates an idle controller writing to sink.
func NewController(prov provider.Provider, sink Sink) *Controller {
	return &Controller{
		prov:     prov,
		sink:     sink,
		interval: DefaultFlushInterval,
	}
}

// SetFlushInterval overrides the throttle interval. Zero disables
// throttling (every delta flushes immediately).
func (c *Controller) SetFlushInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interval = d
}

// SetOnDone registers the completion hook invoked with authoritative
// usage after a successful turn.
func (c *Controller) SetOnDone(fn func(usage *provider.Usage, fullText string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDone = fn
}

// Active reports whether a turn is currently live.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != stateIdle
}

// Text returns the text accumulated so far for the current or most
// recent turn.
func (c *Controller) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// Send begins a new turn. It is rejected with ErrBusy while a previous
// turn is streaming or has not yet fully settled, and with ErrNoProvider
// when no generation capability is attached. On success the stream is
// consumed on a background goroutine until completion, cancellation, or
// error; all three settle the controller back to idle.
func (c *Controller) Send(ctx context.Context, req *provider.ChatRequest) error {
	c.mu.Lock()
	if c.prov == nil {
		c.mu.Unlock()
		return ErrNoProvider
	}
	if c.state != stateIdle {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = stateStreaming
	c.buf.Reset()
	c.flushedLen = 0
	c.prevChunk = ""
	c.lastFlush = time.Time{}

	turnCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	kind := c.prov.StreamKind()
	c.mu.Unlock()

	events, err := c.prov.Chat(turnCtx, req)
	if err != nil {
		c.settle(nil, err, false)
		cancel()
		return nil
	}

	go c.consume(turnCtx, events, kind, cancel)
	return nil
}

// Cancel signals the in-flight turn. The consuming loop observes the
// signal within one chunk and finalizes the partial buffer without
// raising an error. No-op when idle.
func (c *Controller) Cancel() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// consume drains the event channel, applying the chunk contract and the
// flush throttle, then settles the turn.
func (c *Controller) consume(ctx context.Context, events <-chan provider.Event, kind provider.StreamKind, cancel context.CancelFunc) {
	defer cancel()

	var usage *provider.Usage
	var streamErr error
	cancelled := false

loop:
	for ev := range events {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		switch ev.Type {
		case provider.EventTextDelta:
			c.applyChunk(ev.TextDelta, kind)
		case provider.EventDone:
			usage = ev.Usage
			break loop
		case provider.EventError:
			if errors.Is(ev.Error, context.Canceled) {
				cancelled = true
			} else {
				streamErr = ev.Error
			}
			break loop
		}
	}
	// Drain any remaining events so the producer goroutine can exit.
	for range events {
	}

	if ctx.Err() != nil && streamErr == nil {
		cancelled = true
	}
	c.settle(usage, streamErr, cancelled)
}

// applyChunk folds one raw chunk into the buffer according to the
// negotiated contract and flushes per the throttle policy.
func (c *Controller) applyChunk(chunk string, kind provider.StreamKind) {
	c.mu.Lock()
	flushNow := false
	replace := false

	switch kind {
	case provider.StreamIncremental:
		c.buf.WriteString(chunk)
		flushNow = c.throttleDecideLocked()

	case provider.StreamCumulative:
		prev := c.prevChunk
		c.prevChunk = chunk
		if strings.HasPrefix(chunk, prev) {
			c.buf.WriteString(chunk[len(prev):])
			flushNow = c.throttleDecideLocked()
		} else {
			// Non-conforming sequence: the whole chunk replaces the
			// visible text.
			c.buf.Reset()
			c.buf.WriteString(chunk)
			c.flushedLen = len(chunk)
			c.lastFlush = time.Now()
			c.stopTrailingLocked()
			replace = true
		}
	}
	c.mu.Unlock()

	if replace {
		c.sinkMu.Lock()
		c.sink.StreamReplace(chunk)
		c.sinkMu.Unlock()
	} else if flushNow {
		c.deliverPending()
	}
}

// throttleDecideLocked reports whether enough time has passed for an
// immediate flush. Otherwise it arms exactly one trailing timer so the
// pending text still goes out after the interval.
func (c *Controller) throttleDecideLocked() bool {
	now := time.Now()
	elapsed := now.Sub(c.lastFlush)
	if elapsed >= c.interval {
		c.lastFlush = now
		return true
	}
	if c.trailing == nil {
		c.trailing = time.AfterFunc(c.interval-elapsed, c.trailingFlush)
	}
	return false
}

// trailingFlush runs on the timer goroutine.
func (c *Controller) trailingFlush() {
	c.mu.Lock()
	c.trailing = nil
	c.lastFlush = time.Now()
	c.mu.Unlock()
	c.deliverPending()
}

// deliverPending hands any unflushed suffix to the sink. The delta is
// computed under sinkMu, which guarantees in-order, exactly-once
// delivery even when the timer and consumer goroutines race.
func (c *Controller) deliverPending() {
	c.sinkMu.Lock()
	defer c.sinkMu.Unlock()

	c.mu.Lock()
	full := c.buf.String()
	delta := full[c.flushedLen:]
	c.flushedLen = len(full)
	c.mu.Unlock()

	if delta != "" {
		c.sink.StreamDelta(delta)
	}
}

// stopTrailingLocked cancels any pending trailing timer.
func (c *Controller) stopTrailingLocked() {
	if c.trailing != nil {
		c.trailing.Stop()
		c.trailing = nil
	}
}

// settle forces the final flush (bypassing the throttle), reports the
// outcome, runs the completion hook, and returns the controller to idle.
// Only after settle returns is a subsequent Send accepted.
func (c *Controller) settle(usage *provider.Usage, streamErr error, cancelled bool) {
	c.mu.Lock()
	c.state = stateSettling
	c.stopTrailingLocked()
	full := c.buf.String()
	onDone := c.onDone
	c.mu.Unlock()

	c.sinkMu.Lock()
	c.mu.Lock()
	delta := full[c.flushedLen:]
	c.flushedLen = len(full)
	c.mu.Unlock()
	if delta != "" {
		c.sink.StreamDelta(delta)
	}

	switch {
	case streamErr != nil:
		// Partial text is preserved as-is; the failure is surfaced as a
		// distinct signal.
		c.sink.StreamError(streamErr)
	case cancelled:
		c.sink.StreamDone(full, true)
	default:
		c.sink.StreamDone(full, false)
	}
	c.sinkMu.Unlock()

	if streamErr == nil && !cancelled && onDone != nil && usage != nil {
		onDone(usage, full)
	}

	c.mu.Lock()
	c.cancel = nil
	c.state = stateIdle
	c.mu.Unlock()
}
