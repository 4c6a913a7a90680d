package selection

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/clipchat-ai/clipchat/internal/transcript"
)

// fakeMeasurer returns canned token counts per call, in order.
type fakeMeasurer struct {
	counts []int
	err    error
	calls  int
}

func (f *fakeMeasurer) CountTokens(_ context.Context, text string) (int, error) {
	f.calls++
	if f.err != nil {
		return 0, f.err
	}
	if len(f.counts) > 0 {
		n := f.counts[0]
		f.counts = f.counts[1:]
		return n, nil
	}
	// Default: agree with the character heuristic.
	return (len(text) + 3) / 4, nil
}

// threeChapterFixture builds three chapters of 10s each, with one segment
// per chapter whose text is charsPerChapter long.
func threeChapterFixture(charsPerChapter int) ([]transcript.Segment, []transcript.Chapter) {
	text := strings.Repeat("x", charsPerChapter)
	segments := []transcript.Segment{
		{Text: text, Start: 0, Duration: 10},
		{Text: text, Start: 10, Duration: 10},
		{Text: text, Start: 20, Duration: 10},
	}
	chapters := []transcript.Chapter{
		{Title: "One", StartSeconds: 0},
		{Title: "Two", StartSeconds: 10},
		{Title: "Three", StartSeconds: 20},
	}
	return segments, chapters
}

func TestValidate_EmptyRequest(t *testing.T) {
	m := &fakeMeasurer{}
	segs, chs := threeChapterFixture(40)
	v := &Validator{Segments: segs, Chapters: chs, Threshold: 1, Measurer: m}

	res := v.Validate(context.Background(), nil)
	if len(res.Valid) != 0 || len(res.Removed) != 0 || res.TokenCount != 0 || res.WasTruncated {
		t.Errorf("empty request should short-circuit, got %+v", res)
	}
	if m.calls != 0 {
		t.Errorf("empty request must not measure, got %d calls", m.calls)
	}
}

func TestValidate_FitsWithoutMeasurer(t *testing.T) {
	segs, chs := threeChapterFixture(40) // 3 chapters ≈ 31 tokens joined
	v := &Validator{Segments: segs, Chapters: chs, Threshold: 100}

	res := v.Validate(context.Background(), []int{0, 1, 2})
	if !reflect.DeepEqual(res.Valid, []int{0, 1, 2}) {
		t.Errorf("Valid = %v", res.Valid)
	}
	if len(res.Removed) != 0 || res.WasTruncated {
		t.Errorf("nothing should be removed: %+v", res)
	}
	if !res.Estimated {
		t.Error("estimation-only result should be marked Estimated")
	}
}

func TestValidate_PreciseConfirms(t *testing.T) {
	segs, chs := threeChapterFixture(40)
	m := &fakeMeasurer{counts: []int{42}}
	v := &Validator{Segments: segs, Chapters: chs, Threshold: 100, Measurer: m}

	res := v.Validate(context.Background(), []int{0, 1})
	if res.TokenCount != 42 {
		t.Errorf("TokenCount = %d, want authoritative 42", res.TokenCount)
	}
	if res.Estimated {
		t.Error("measured result should not be marked Estimated")
	}
	if m.calls != 1 {
		t.Errorf("expected one measurement, got %d", m.calls)
	}
}

func TestValidate_PreciseOverflowEvicts(t *testing.T) {
	segs, chs := threeChapterFixture(40)
	// Estimate fits every time; the precise count overflows for the full
	// selection and then confirms the reduced one.
	m := &fakeMeasurer{counts: []int{200, 50}}
	v := &Validator{Segments: segs, Chapters: chs, Threshold: 100, Measurer: m}

	res := v.Validate(context.Background(), []int{0, 1, 2})
	if !reflect.DeepEqual(res.Valid, []int{0, 1}) {
		t.Errorf("Valid = %v, want [0 1]", res.Valid)
	}
	if !reflect.DeepEqual(res.Removed, []int{2}) {
		t.Errorf("Removed = %v, want [2]", res.Removed)
	}
	if !res.WasTruncated || res.TokenCount != 50 {
		t.Errorf("got %+v", res)
	}
}

func TestValidate_MeasurementFailureIsTerminal(t *testing.T) {
	segs, chs := threeChapterFixture(40)
	m := &fakeMeasurer{err: errors.New("api down")}
	var warned bool
	v := &Validator{
		Segments: segs, Chapters: chs, Threshold: 100, Measurer: m,
		Warnf: func(string, ...any) { warned = true },
	}

	res := v.Validate(context.Background(), []int{0, 1, 2})
	if !reflect.DeepEqual(res.Valid, []int{0, 1, 2}) {
		t.Errorf("failure should accept the candidate on the estimate, got %v", res.Valid)
	}
	if !res.Estimated {
		t.Error("fallback result should be marked Estimated")
	}
	if m.calls != 1 {
		t.Errorf("no retry after failure, got %d calls", m.calls)
	}
	if !warned {
		t.Error("failure should be logged")
	}
}

func TestValidate_EvictsHighestIndexFirst(t *testing.T) {
	segs, chs := threeChapterFixture(400) // each chapter ≈ 100 tokens
	v := &Validator{Segments: segs, Chapters: chs, Threshold: 120}

	res := v.Validate(context.Background(), []int{0, 1, 2})
	if !reflect.DeepEqual(res.Valid, []int{0}) {
		t.Errorf("Valid = %v, want [0]", res.Valid)
	}
	// Chapter 2 was evicted first, then 1; prepending keeps the slice in
	// ascending order.
	if !reflect.DeepEqual(res.Removed, []int{1, 2}) {
		t.Errorf("Removed = %v, want [1 2]", res.Removed)
	}
	if !res.WasTruncated {
		t.Error("expected WasTruncated")
	}
}

func TestValidate_Exhausted(t *testing.T) {
	segs, chs := threeChapterFixture(400)
	v := &Validator{Segments: segs, Chapters: chs, Threshold: 10}

	res := v.Validate(context.Background(), []int{0, 1, 2})
	if len(res.Valid) != 0 {
		t.Errorf("Valid = %v, want empty", res.Valid)
	}
	if !reflect.DeepEqual(res.Removed, []int{0, 1, 2}) {
		t.Errorf("Removed = %v, want all requested", res.Removed)
	}
	if !res.WasTruncated || res.TokenCount != 0 {
		t.Errorf("got %+v", res)
	}
}

func TestValidate_SubsetInvariant(t *testing.T) {
	segs, chs := threeChapterFixture(200)
	v := &Validator{Segments: segs, Chapters: chs, Threshold: 60}

	requested := []int{0, 1, 2}
	res := v.Validate(context.Background(), requested)

	// valid ∪ removed == requested, disjoint.
	union := append(append([]int{}, res.Valid...), res.Removed...)
	if len(union) != len(requested) {
		t.Fatalf("valid+removed should partition requested: %v / %v", res.Valid, res.Removed)
	}
	seen := make(map[int]bool)
	for _, v := range union {
		if seen[v] {
			t.Fatalf("duplicate index %d across valid/removed", v)
		}
		seen[v] = true
	}
	for _, r := range requested {
		if !seen[r] {
			t.Fatalf("index %d lost", r)
		}
	}
}
