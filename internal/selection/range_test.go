package selection

import (
	"reflect"
	"testing"
	"time"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		input    string
		total    int
		expected []int
	}{
		{"1-3,5-8", 10, []int{0, 1, 2, 4, 5, 6, 7}},
		{"0,11,abc,2", 10, []int{1}},
		{"8-5", 10, []int{4, 5, 6, 7}}, // pair order-insensitive
		{"3,3,3", 10, []int{2}},
		{"1, 2 , 4", 10, []int{0, 1, 3}},
		{"", 10, []int{}},
		{"2-20", 5, []int{1, 2, 3, 4}}, // overflow clamped by dropping
		{"-3", 10, []int{}},            // malformed pair dropped
		{"1-", 10, []int{}},
	}
	for _, tt := range tests {
		if got := ParseRange(tt.input, tt.total); !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("ParseRange(%q, %d) = %v, want %v", tt.input, tt.total, got, tt.expected)
		}
	}
}

func TestParseRange_HugeSpan(t *testing.T) {
	// A pair spanning far past the chapter count must cost totalCount
	// iterations, not the numeric width of the token.
	tests := []struct {
		input    string
		total    int
		expected []int
	}{
		{"1-9000000000000000000", 3, []int{0, 1, 2}},
		{"2-9000000000000000000", 4, []int{1, 2, 3}},
		{"9000000000000000000-9000000000000000001", 3, []int{}},
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, tt := range tests {
			if got := ParseRange(tt.input, tt.total); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ParseRange(%q, %d) = %v, want %v", tt.input, tt.total, got, tt.expected)
			}
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("ParseRange did not return promptly for a huge range token")
	}
}

func TestFormatRange(t *testing.T) {
	tests := []struct {
		indices  []int
		expected string
	}{
		{[]int{0, 1, 2, 4, 5, 6, 7}, "1-3,5-8"},
		{[]int{0}, "1"},
		{[]int{2, 0, 1}, "1-3"}, // unsorted input
		{[]int{0, 2, 4}, "1,3,5"},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := FormatRange(tt.indices); got != tt.expected {
			t.Errorf("FormatRange(%v) = %q, want %q", tt.indices, got, tt.expected)
		}
	}
}

func TestRangeRoundTrip(t *testing.T) {
	inputs := [][]int{
		{0, 1, 2, 4, 5, 6, 7},
		{0},
		{3, 4, 5},
		{0, 2, 4, 6, 8},
	}
	for _, in := range inputs {
		s := FormatRange(in)
		if got := ParseRange(s, 100); !reflect.DeepEqual(got, in) {
			t.Errorf("round trip %v -> %q -> %v", in, s, got)
		}
	}
}
