package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/clipchat-ai/clipchat/internal/budget"
	"github.com/clipchat-ai/clipchat/internal/provider"
	"github.com/clipchat-ai/clipchat/internal/selection"
	"github.com/clipchat-ai/clipchat/internal/transcript"
)

// ErrClosed is returned by operations on a session after Close.
var ErrClosed = errors.New("session is closed")

// Recorder persists completed turns. The history store implements it;
// a nil Recorder disables persistence.
type Recorder interface {
	RecordMessage(role, text string) error
}

// SessionOptions configures NewSession.
type SessionOptions struct {
	Provider          provider.Provider
	Sink              Sink
	Transcript        *transcript.Transcript
	Quota             int
	MarginFactor      float64
	MaxResponseTokens int
	Model             string

	// PromptPreamble precedes the transcript text in the system prompt.
	PromptPreamble string

	// Recorder, when non-nil, receives every completed user and
	// assistant message.
	Recorder Recorder

	// Warnf receives non-fatal diagnostics, for example a failed precise
	// token measurement. May be nil.
	Warnf func(format string, args ...any)
}

// Session ties a transcript, a chapter selection, a token budget, and a
// provider into one conversation. All methods are safe for concurrent
// use; at most one generation turn is in flight at a time.
type Session struct {
	mu sync.Mutex

	// sendMu serializes SendTurn so the user message always precedes the
	// assistant reply in the history.
	sendMu sync.Mutex

	prov       provider.Provider
	model      string
	maxTokens  int
	tr         *transcript.Transcript
	planner    *budget.Planner
	controller *Controller
	recorder   Recorder
	warnf      func(format string, args ...any)

	preamble     string
	selected     []int
	systemPrompt string
	truncated    bool
	messages     []provider.Message

	closed bool
}

// NewSession constructs a session with no chapters selected yet. Call
// Select before the first SendTurn, or SendTurn uses the bare preamble
// as the system prompt.
func NewSession(opts SessionOptions) *Session {
	warnf := opts.Warnf
	if warnf == nil {
		warnf = func(string, ...any) {}
	}
	s := &Session{
		prov:      opts.Provider,
		model:     opts.Model,
		maxTokens: opts.MaxResponseTokens,
		tr:        opts.Transcript,
		planner:   budget.NewPlanner(opts.Quota, opts.MarginFactor),
		recorder:  opts.Recorder,
		warnf:     warnf,
		preamble:  opts.PromptPreamble,
	}
	s.controller = NewController(opts.Provider, opts.Sink)
	s.controller.SetOnDone(s.turnCompleted)
	s.systemPrompt = s.preamble
	s.planner.SetSystemTokens(budget.Estimate(s.systemPrompt))
	return s
}

// Controller exposes the stream controller, mainly so callers can tune
// the flush interval.
func (s *Session) Controller() *Controller { return s.controller }

// Selected returns the currently included chapter indices.
func (s *Session) Selected() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.selected))
	copy(out, s.selected)
	return out
}

// Select validates the requested chapter indices against the token
// budget, evicting from the end until the assembled transcript fits, and
// installs the surviving selection as the session's system prompt.
// The budget snapshot is recomputed from the new system prompt.
//
// Two shapes bypass eviction and fall back to boundary-safe truncation:
// a transcript with no chapter markers uses as much of the full segment
// list as fits, and a request whose every chapter overflows keeps a
// truncated prefix of the requested text instead of dropping all context.
func (s *Session) Select(ctx context.Context, requested []int) (selection.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return selection.Result{}, ErrClosed
	}
	if s.controller.Active() {
		return selection.Result{}, ErrBusy
	}

	threshold := s.planner.Threshold() - budget.Estimate(s.preamble)

	if len(s.tr.Chapters) == 0 {
		return s.installTruncatedLocked(s.tr.Segments, nil, threshold), nil
	}

	v := selection.Validator{
		Segments:  s.tr.Segments,
		Chapters:  s.tr.Chapters,
		Threshold: threshold,
		Warnf:     s.warnf,
	}
	if m, ok := s.prov.(provider.Measurer); ok {
		v.Measurer = m
	}
	res := v.Validate(ctx, requested)

	if len(res.Valid) == 0 && len(requested) > 0 {
		sorted := append([]int(nil), requested...)
		sort.Ints(sorted)
		segs := transcript.SegmentsForChapters(s.tr.Segments, s.tr.Chapters, sorted)
		return s.installTruncatedLocked(segs, sorted, threshold), nil
	}

	s.selected = res.Valid
	segs := transcript.SegmentsForChapters(s.tr.Segments, s.tr.Chapters, res.Valid)
	s.truncated = res.WasTruncated
	s.installPromptLocked(transcript.Assemble(segs))
	return res, nil
}

// installTruncatedLocked cuts segments at a segment boundary to the
// character budget implied by threshold and installs the result as the
// system prompt body. requested limits which chapters count as included;
// nil means the transcript has no chapter markers.
func (s *Session) installTruncatedLocked(segments []transcript.Segment, requested []int, threshold int) selection.Result {
	trunc := transcript.TruncateAtBoundary(segments, threshold*budget.CharsPerToken)

	covered := transcript.ChaptersCoveredBy(s.tr.Chapters, trunc.EndTimeSeconds)
	removed := []int{}
	if requested != nil {
		want := make(map[int]bool, len(requested))
		for _, i := range requested {
			want[i] = true
		}
		kept := covered[:0]
		for _, i := range covered {
			if want[i] {
				kept = append(kept, i)
			}
		}
		covered = kept
		in := make(map[int]bool, len(covered))
		for _, i := range covered {
			in[i] = true
		}
		for _, i := range requested {
			if !in[i] {
				removed = append(removed, i)
			}
		}
	}
	if covered == nil {
		covered = []int{}
	}

	s.selected = covered
	s.truncated = trunc.WasTruncated
	s.installPromptLocked(trunc.Text)
	return selection.Result{
		Valid:        covered,
		Removed:      removed,
		TokenCount:   budget.Estimate(trunc.Text),
		WasTruncated: trunc.WasTruncated,
		Estimated:    true,
	}
}

func (s *Session) installPromptLocked(body string) {
	if body == "" {
		s.systemPrompt = s.preamble
	} else {
		s.systemPrompt = s.preamble + "\n\n" + body
	}
	s.planner.SetSystemTokens(budget.Estimate(s.systemPrompt))
}

// Budget returns the current token budget snapshot.
func (s *Session) Budget() budget.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planner.Snapshot()
}

// Messages returns a copy of the conversation so far.
func (s *Session) Messages() []provider.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]provider.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// SendTurn submits the user's text as a new turn. While a turn is
// already streaming the call is a no-op returning ErrBusy; the in-flight
// turn is unaffected. Empty input is rejected.
func (s *Session) SendTurn(ctx context.Context, text string) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if text == "" {
		s.mu.Unlock()
		return errors.New("empty message")
	}
	if s.controller.Active() {
		s.mu.Unlock()
		return ErrBusy
	}
	s.messages = append(s.messages, provider.Message{Role: provider.RoleUser, Text: text})
	msgs := make([]provider.Message, len(s.messages))
	copy(msgs, s.messages)
	req := &provider.ChatRequest{
		Model:        s.model,
		Messages:     msgs,
		SystemPrompt: s.systemPrompt,
		MaxTokens:    s.maxTokens,
	}
	s.mu.Unlock()

	if err := s.controller.Send(ctx, req); err != nil {
		s.mu.Lock()
		s.messages = s.messages[:len(s.messages)-1]
		s.mu.Unlock()
		return err
	}
	if s.recorder != nil {
		if err := s.recorder.RecordMessage(string(provider.RoleUser), text); err != nil {
			s.warnf("history: %v", err)
		}
	}
	return nil
}

// CancelTurn stops the in-flight generation, keeping whatever partial
// text has streamed so far. No-op when idle.
func (s *Session) CancelTurn() {
	s.controller.Cancel()
}

// Reset clears the conversation while keeping the transcript selection
// and system prompt. Conversation token usage drops to zero.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.controller.Active() {
		return ErrBusy
	}
	s.messages = nil
	s.planner.Recompute(s.planner.Snapshot().SystemTokens, 0)
	return nil
}

// Close releases the session. Any in-flight turn is cancelled. Close is
// idempotent; operations after Close return ErrClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	s.controller.Cancel()
}

// RestoreMessages seeds the conversation from a persisted chat, for
// resuming. It does not replay them through the provider; the budget is
// seeded from a character estimate until the next completed turn
// replaces it with authoritative usage.
func (s *Session) RestoreMessages(msgs []provider.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append([]provider.Message(nil), msgs...)
	conv := 0
	for _, m := range msgs {
		conv += budget.Estimate(m.Text)
	}
	s.planner.Recompute(s.planner.Snapshot().SystemTokens, conv)
}

// turnCompleted runs after a successful turn with the provider's
// authoritative usage. The assistant reply joins the history and the
// budget snapshot is replaced, not accumulated: the reported input usage
// already covers the system prompt and every prior message.
func (s *Session) turnCompleted(usage *provider.Usage, fullText string) {
	s.mu.Lock()
	s.messages = append(s.messages, provider.Message{Role: provider.RoleAssistant, Text: fullText})
	snap := s.planner.Snapshot()
	conv := usage.Total() - snap.SystemTokens
	if conv < 0 {
		conv = 0
	}
	s.planner.Recompute(snap.SystemTokens, conv)
	snap = s.planner.Snapshot()
	rec := s.recorder
	warnf := s.warnf
	s.mu.Unlock()

	if snap.TotalTokens > snap.Threshold {
		warnf("context %s of budget used", fmt.Sprintf("%.0f%%", snap.PercentageUsed))
	}
	if rec != nil {
		if err := rec.RecordMessage(string(provider.RoleAssistant), fullText); err != nil {
			warnf("history: %v", err)
		}
	}
}
