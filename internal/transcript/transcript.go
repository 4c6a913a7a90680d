// Package transcript holds the timed-segment data model for a video
// transcript and the boundary-safe text assembly used to build prompts.
package transcript

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
)

// Segment is a timed fragment of transcript text. Segments are ordered
// ascending by Start and immutable once loaded.
type Segment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`    // seconds
	Duration float64 `json:"duration"` // seconds
}

// End returns the segment's exclusive end time in seconds.
func (s Segment) End() float64 { return s.Start + s.Duration }

// Chapter is a named, timestamped subdivision of the transcript.
// Chapter i covers [StartSeconds_i, StartSeconds_{i+1}); the last chapter
// is open-ended.
type Chapter struct {
	Title        string  `json:"title"`
	StartSeconds float64 `json:"start_seconds"`
}

// Transcript is a video's segments plus optional chapter markers.
type Transcript struct {
	VideoID  string    `json:"video_id,omitempty"`
	Title    string    `json:"title,omitempty"`
	Segments []Segment `json:"segments"`
	Chapters []Chapter `json:"chapters,omitempty"`
}

// Load reads a transcript JSON file and normalizes ordering.
func Load(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript: %w", err)
	}
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("parse transcript %s: %w", path, err)
	}
	t.normalize()
	return &t, nil
}

// normalize sorts segments and chapters ascending. Producers are expected
// to emit sorted data already; this guards against hand-edited files.
func (t *Transcript) normalize() {
	sort.SliceStable(t.Segments, func(i, j int) bool {
		return t.Segments[i].Start < t.Segments[j].Start
	})
	sort.SliceStable(t.Chapters, func(i, j int) bool {
		return t.Chapters[i].StartSeconds < t.Chapters[j].StartSeconds
	})
}

// ChapterRange returns the time interval [start, end) covered by the
// chapter at index i. The last chapter extends to +Inf.
func ChapterRange(chapters []Chapter, i int) (start, end float64) {
	start = chapters[i].StartSeconds
	if i+1 < len(chapters) {
		return start, chapters[i+1].StartSeconds
	}
	return start, math.Inf(1)
}

// SegmentsForChapters returns the segments whose interval [start, end)
// overlaps the time range of any chapter index in indices. Segment order
// is preserved.
func SegmentsForChapters(segments []Segment, chapters []Chapter, indices []int) []Segment {
	if len(indices) == 0 || len(chapters) == 0 {
		return nil
	}
	var out []Segment
	for _, seg := range segments {
		for _, idx := range indices {
			if idx < 0 || idx >= len(chapters) {
				continue
			}
			start, end := ChapterRange(chapters, idx)
			if seg.End() > start && seg.Start < end {
				out = append(out, seg)
				break
			}
		}
	}
	return out
}
