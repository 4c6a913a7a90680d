package selection

import (
	"context"
	"sort"

	"github.com/clipchat-ai/clipchat/internal/budget"
	"github.com/clipchat-ai/clipchat/internal/transcript"
)

// Measurer is the authoritative token counter backing the validator's
// accept decision. It is async and fallible; when nil, or after a single
// failure, the validator falls back to the cheap estimate.
type Measurer interface {
	CountTokens(ctx context.Context, text string) (int, error)
}

// Result describes how a requested selection was mapped to an admissible
// one. Removed is exactly requested minus Valid; each eviction prepends, so
// the most recently removed chapter comes first and the slice ends up in
// ascending index order (eviction always drops the chronologically-last
// surviving chapter).
type Result struct {
	Valid        []int
	Removed      []int
	TokenCount   int
	WasTruncated bool
	// Estimated is true when TokenCount came from the character estimate
	// rather than an authoritative measurement.
	Estimated bool
}

// Validator maps a requested chapter selection to the largest admissible
// subset under the token threshold.
//
// Validator calls are idempotent and re-runnable; they are not serialized
// here. Callers that fire overlapping validations (rapid UI toggling)
// should apply last-write-wins and discard stale results on arrival.
type Validator struct {
	Segments  []transcript.Segment
	Chapters  []transcript.Chapter
	Threshold int

	// Measurer is optional. Nil means estimation-only.
	Measurer Measurer

	// Warnf receives diagnostics such as measurement failures. Optional.
	Warnf func(format string, args ...any)
}

// Validate returns the largest prefix (by drop order) of requested that
// fits the threshold. Eviction always removes the highest surviving
// chapter index first. An empty request returns an empty result without
// performing any measurement.
func (v *Validator) Validate(ctx context.Context, requested []int) Result {
	if len(requested) == 0 {
		return Result{Valid: []int{}, Removed: []int{}}
	}

	candidate := append([]int(nil), requested...)
	sort.Ints(candidate)

	var removed []int
	measure := v.Measurer // a failed call accepts the estimate and returns

	for {
		if len(candidate) == 0 {
			// Everything evicted and still nothing fits.
			return Result{
				Valid:        []int{},
				Removed:      removed,
				TokenCount:   0,
				WasTruncated: true,
			}
		}

		segs := transcript.SegmentsForChapters(v.Segments, v.Chapters, candidate)
		text := transcript.Assemble(segs)
		estimate := budget.Estimate(text)

		if estimate <= v.Threshold {
			if measure == nil {
				return Result{
					Valid:        candidate,
					Removed:      removed,
					TokenCount:   estimate,
					WasTruncated: len(removed) > 0,
					Estimated:    true,
				}
			}
			precise, err := measure.CountTokens(ctx, text)
			if err != nil {
				// Accept the current candidate on the estimate; a failed
				// measurement is terminal for this call.
				v.warnf("token measurement failed, using estimate: %v", err)
				return Result{
					Valid:        candidate,
					Removed:      removed,
					TokenCount:   estimate,
					WasTruncated: len(removed) > 0,
					Estimated:    true,
				}
			}
			if precise <= v.Threshold {
				return Result{
					Valid:        candidate,
					Removed:      removed,
					TokenCount:   precise,
					WasTruncated: len(removed) > 0,
				}
			}
			// Precise count overflowed despite the estimate; evict.
		}

		// Drop the chronologically-last surviving chapter, prepending it
		// so the most recent eviction is first.
		last := candidate[len(candidate)-1]
		candidate = candidate[:len(candidate)-1]
		removed = append([]int{last}, removed...)
	}
}

func (v *Validator) warnf(format string, args ...any) {
	if v.Warnf != nil {
		v.Warnf(format, args...)
	}
}
