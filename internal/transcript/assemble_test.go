package transcript

import (
	"reflect"
	"testing"
)

func seg(text string, start, dur float64) Segment {
	return Segment{Text: text, Start: start, Duration: dur}
}

func TestAssemble(t *testing.T) {
	tests := []struct {
		name     string
		segments []Segment
		expected string
	}{
		{"empty", nil, ""},
		{"single", []Segment{seg("hello", 0, 2)}, "hello"},
		{"joined with single space", []Segment{seg("hello", 0, 2), seg("world", 2, 2)}, "hello world"},
	}
	for _, tt := range tests {
		if got := Assemble(tt.segments); got != tt.expected {
			t.Errorf("%s: Assemble = %q, want %q", tt.name, got, tt.expected)
		}
	}
}

func TestTruncateAtBoundary(t *testing.T) {
	segments := []Segment{
		seg("aaaa", 0, 5),  // 4 chars
		seg("bbbb", 5, 5),  // +5 with space = 9
		seg("cccc", 10, 5), // +5 with space = 14
	}

	tr := TruncateAtBoundary(segments, 9)
	if len(tr.Included) != 2 {
		t.Fatalf("expected 2 included segments, got %d", len(tr.Included))
	}
	if tr.Text != "aaaa bbbb" {
		t.Errorf("Text = %q, want %q", tr.Text, "aaaa bbbb")
	}
	if !tr.WasTruncated {
		t.Error("expected WasTruncated")
	}
	if tr.EndTimeSeconds != 10 {
		t.Errorf("EndTimeSeconds = %v, want 10", tr.EndTimeSeconds)
	}
}

func TestTruncateAtBoundary_AllFit(t *testing.T) {
	segments := []Segment{seg("aa", 0, 1), seg("bb", 1, 1)}
	tr := TruncateAtBoundary(segments, 100)
	if tr.WasTruncated {
		t.Error("nothing should be truncated")
	}
	if len(tr.Included) != 2 || tr.Text != "aa bb" {
		t.Errorf("got %d segments, text %q", len(tr.Included), tr.Text)
	}
}

func TestTruncateAtBoundary_FirstSegmentOverBudget(t *testing.T) {
	// The first segment is always included even when it alone exceeds the
	// budget: non-empty input never produces empty output.
	segments := []Segment{seg("a very long first segment", 0, 10), seg("next", 10, 2)}
	tr := TruncateAtBoundary(segments, 3)
	if len(tr.Included) != 1 {
		t.Fatalf("expected exactly the first segment, got %d", len(tr.Included))
	}
	if !tr.WasTruncated {
		t.Error("expected WasTruncated")
	}
	if tr.EndTimeSeconds != 10 {
		t.Errorf("EndTimeSeconds = %v, want 10", tr.EndTimeSeconds)
	}
}

func TestTruncateAtBoundary_Empty(t *testing.T) {
	tr := TruncateAtBoundary(nil, 10)
	if tr.Included != nil || tr.Text != "" || tr.WasTruncated {
		t.Errorf("empty input should yield zero Truncation, got %+v", tr)
	}
}

func TestChaptersCoveredBy(t *testing.T) {
	chapters := []Chapter{
		{Title: "Intro", StartSeconds: 0},
		{Title: "Middle", StartSeconds: 60},
		{Title: "End", StartSeconds: 120},
	}
	tests := []struct {
		end      float64
		expected []int
	}{
		{0, nil},
		{1, []int{0}},
		{60, []int{0}}, // chapter covered iff start < end
		{61, []int{0, 1}},
		{500, []int{0, 1, 2}},
	}
	for _, tt := range tests {
		if got := ChaptersCoveredBy(chapters, tt.end); !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("ChaptersCoveredBy(end=%v) = %v, want %v", tt.end, got, tt.expected)
		}
	}
}
