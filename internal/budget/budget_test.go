package budget

import "testing"

func TestEstimate(t *testing.T) {
	tests := []struct {
		text     string
		expected int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"12345678", 2},
	}
	for _, tt := range tests {
		if got := Estimate(tt.text); got != tt.expected {
			t.Errorf("Estimate(%q) = %d, want %d", tt.text, got, tt.expected)
		}
	}
}

func TestPlanner_Threshold(t *testing.T) {
	tests := []struct {
		quota    int
		margin   float64
		expected int
	}{
		{6144, 0.8, 4915}, // floor(6144*0.8)
		{1000, 0.5, 500},
		{1000, 0, 800},  // invalid margin falls back to default
		{1000, 1.5, 800},
		{0, 0.8, 0},
	}
	for _, tt := range tests {
		p := NewPlanner(tt.quota, tt.margin)
		if got := p.Threshold(); got != tt.expected {
			t.Errorf("NewPlanner(%d, %v).Threshold() = %d, want %d", tt.quota, tt.margin, got, tt.expected)
		}
	}
}

func TestPlanner_Recompute(t *testing.T) {
	p := NewPlanner(10000, 0.8)
	snap := p.Recompute(4000, 1000)

	if snap.TotalTokens != 5000 {
		t.Errorf("TotalTokens = %d, want 5000", snap.TotalTokens)
	}
	if snap.PercentageUsed != 50 {
		t.Errorf("PercentageUsed = %v, want 50", snap.PercentageUsed)
	}
	if snap.Threshold != 8000 {
		t.Errorf("Threshold = %d, want 8000", snap.Threshold)
	}

	// Conversation tokens replaced, not accumulated.
	snap = p.Recompute(4000, 2500)
	if snap.ConversationTokens != 2500 || snap.TotalTokens != 6500 {
		t.Errorf("after second recompute: conversation=%d total=%d, want 2500/6500",
			snap.ConversationTokens, snap.TotalTokens)
	}
}

func TestPlanner_ZeroQuota(t *testing.T) {
	p := NewPlanner(0, 0.8)
	snap := p.Recompute(100, 100)
	if snap.PercentageUsed != 0 {
		t.Errorf("zero quota should report 0%% used, got %v", snap.PercentageUsed)
	}
}

func TestPlanner_SetSystemTokens(t *testing.T) {
	p := NewPlanner(1000, 0.8)
	p.Recompute(200, 50)
	p.SetSystemTokens(300)
	snap := p.Snapshot()
	if snap.SystemTokens != 300 || snap.ConversationTokens != 50 {
		t.Errorf("SetSystemTokens should not touch conversation count: got %d/%d",
			snap.SystemTokens, snap.ConversationTokens)
	}
}
