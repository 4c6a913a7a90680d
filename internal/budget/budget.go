// Package budget tracks token consumption against a model's context window.
// It provides a cheap character-based token estimate (used as a pre-filter
// before authoritative API-side measurement) and a planner that derives the
// admissible transcript threshold from the model quota and a safety margin.
package budget

import "math"

// CharsPerToken is the rough chars-to-tokens ratio used for estimation.
// Good enough for threshold checks, never for billing. Exported so callers
// can convert a token threshold back into a character budget when
// truncating text to fit.
const CharsPerToken = 4

// DefaultMarginFactor reserves 80% of the context window for transcript and
// system content, leaving the rest as headroom for the conversation.
const DefaultMarginFactor = 0.8

// Estimate returns a rough token count for text (ceil of chars/4).
// Pure and synchronous; callers needing an authoritative count use a
// provider.Measurer instead.
func Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text) + CharsPerToken - 1) / CharsPerToken
}

// Snapshot is a point-in-time view of context window usage.
type Snapshot struct {
	Quota              int     // model's max input tokens
	Threshold          int     // floor(quota * marginFactor)
	SystemTokens       int     // system prompt + transcript
	ConversationTokens int     // authoritative, from the last completed turn
	TotalTokens        int
	PercentageUsed     float64
}

// Planner derives the admissible token threshold from the model quota and
// accumulates usage across turns.
type Planner struct {
	quota        int
	marginFactor float64

	systemTokens       int
	conversationTokens int
}

// NewPlanner creates a planner for the given quota. A marginFactor outside
// (0, 1] falls back to the default.
func NewPlanner(quota int, marginFactor float64) *Planner {
	if marginFactor <= 0 || marginFactor > 1 {
		marginFactor = DefaultMarginFactor
	}
	if quota < 0 {
		quota = 0
	}
	return &Planner{quota: quota, marginFactor: marginFactor}
}

// Quota returns the model's max input tokens.
func (p *Planner) Quota() int { return p.quota }

// Threshold returns the token budget admissible for transcript/system
// content: floor(quota * marginFactor).
func (p *Planner) Threshold() int {
	return int(math.Floor(float64(p.quota) * p.marginFactor))
}

// Recompute replaces the tracked usage and returns a fresh snapshot.
// conversationTokens must be the authoritative value reported by the
// generation API after a completed turn, not an estimate.
func (p *Planner) Recompute(systemTokens, conversationTokens int) Snapshot {
	p.systemTokens = systemTokens
	p.conversationTokens = conversationTokens
	return p.Snapshot()
}

// SetSystemTokens updates the system/transcript portion without touching
// the conversation count (used when the chapter selection changes).
func (p *Planner) SetSystemTokens(n int) {
	p.systemTokens = n
}

// Snapshot returns the current usage view without mutating anything.
func (p *Planner) Snapshot() Snapshot {
	total := p.systemTokens + p.conversationTokens
	var pct float64
	if p.quota > 0 {
		pct = float64(total) / float64(p.quota) * 100
	}
	return Snapshot{
		Quota:              p.quota,
		Threshold:          p.Threshold(),
		SystemTokens:       p.systemTokens,
		ConversationTokens: p.conversationTokens,
		TotalTokens:        total,
		PercentageUsed:     pct,
	}
}
