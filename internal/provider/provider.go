// Package provider defines the unified interface and shared types for all
// LLM providers. Each adapter (openai.go, anthropic.go) normalizes its
// vendor-specific streaming response into a unified Event sequence.
package provider

import "context"

// ── Message types ────────────────────────────────────────────────────────────

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single text message in the conversation history.
type Message struct {
	Role Role
	Text string
}

// ── Request types ────────────────────────────────────────────────────────────

// ChatRequest is the unified request format sent to a provider.
type ChatRequest struct {
	Model        string
	Messages     []Message
	SystemPrompt string
	MaxTokens    int
}

// ── Event types (streaming output) ───────────────────────────────────────────

type EventType int

const (
	// EventTextDelta: incremental text output from the LLM, rendered in real time.
	EventTextDelta EventType = iota

	// EventDone: end of this message turn, includes token usage.
	EventDone

	// EventError: an error occurred.
	EventError
)

// Event is the unified streaming event emitted by a provider.
type Event struct {
	Type EventType

	// EventTextDelta
	TextDelta string

	// EventDone
	Usage *Usage

	// EventError
	Error error
}

// Usage records token consumption for an API call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Total returns the combined input and output token count.
func (u *Usage) Total() int { return u.InputTokens + u.OutputTokens }

// ── Stream contract ──────────────────────────────────────────────────────────

// StreamKind declares how a provider's text chunks compose. The primary
// contract is incremental deltas; cumulative streams (each chunk carries
// the whole text so far) are supported through a compatibility shim in the
// stream controller, selected by this capability rather than guessed at
// runtime.
type StreamKind int

const (
	StreamIncremental StreamKind = iota
	StreamCumulative
)

// ── Provider interface ───────────────────────────────────────────────────────

// Provider is the unified interface for all LLM providers.
// Implementors are responsible for:
// 1. Converting the unified ChatRequest into the provider's API request format
// 2. Converting the provider's streaming response into a unified Event sequence
// 3. Handling provider-specific error codes
type Provider interface {
	// Chat initiates a streaming conversation.
	// The returned channel emits Events until EventDone or EventError, then closes.
	// The caller must fully consume the channel to avoid goroutine leaks.
	Chat(ctx context.Context, req *ChatRequest) (<-chan Event, error)

	// Name returns the provider identifier, e.g. "anthropic", "openai", "deepseek".
	Name() string

	// DefaultModel returns the default model.
	DefaultModel() string

	// ContextWindow returns the default context window size for the current model.
	ContextWindow() int

	// StreamKind reports how this provider's chunks compose.
	StreamKind() StreamKind
}

// Measurer is the optional authoritative token-counting capability.
// Implementations call the provider's counting endpoint; results are exact
// for that provider's tokenizer. Callers treat failures as non-fatal and
// fall back to character-based estimation.
type Measurer interface {
	CountTokens(ctx context.Context, text string) (int, error)
}
