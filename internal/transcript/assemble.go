package transcript

import "strings"

// Assemble concatenates segment text with a single separating space,
// preserving order. Empty input yields an empty string.
func Assemble(segments []Segment) string {
	if len(segments) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, seg := range segments {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(seg.Text)
	}
	return sb.String()
}

// Truncation is the result of a boundary-safe cut at a character budget.
type Truncation struct {
	Included       []Segment
	Text           string
	WasTruncated   bool
	EndTimeSeconds float64 // end of the last included segment
}

// TruncateAtBoundary accumulates segments in order, stopping before a
// segment would push the running length past maxChars. If segments is
// non-empty, at least one segment is always included, even when its text
// alone exceeds the budget; non-empty input never produces empty output.
func TruncateAtBoundary(segments []Segment, maxChars int) Truncation {
	if len(segments) == 0 {
		return Truncation{}
	}

	var sb strings.Builder
	var included []Segment
	for i, seg := range segments {
		add := len(seg.Text)
		if i > 0 {
			add++ // joining space
		}
		if i > 0 && sb.Len()+add > maxChars {
			break
		}
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(seg.Text)
		included = append(included, seg)
	}

	last := included[len(included)-1]
	return Truncation{
		Included:       included,
		Text:           sb.String(),
		WasTruncated:   len(included) < len(segments),
		EndTimeSeconds: last.End(),
	}
}

// ChaptersCoveredBy returns the indices of chapters whose start falls
// before endTimeSeconds. Chapters are assumed sorted ascending, so the
// scan stops at the first uncovered chapter.
func ChaptersCoveredBy(chapters []Chapter, endTimeSeconds float64) []int {
	var covered []int
	for i, ch := range chapters {
		if ch.StartSeconds >= endTimeSeconds {
			break
		}
		covered = append(covered, i)
	}
	return covered
}
