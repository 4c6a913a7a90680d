package provider

import "testing"

// --- ContextWindow tests ---

func TestOpenAIProvider_ContextWindow(t *testing.T) {
	tests := []struct {
		model    string
		expected int
	}{
		{"gpt-4o-mini", 128000},
		{"gpt-4o", 128000},
		{"gpt-4-turbo", 128000},
		{"o1-preview", 200000},
		{"o3-mini", 200000},
		{"deepseek-chat", 64000},
		{"some-unknown-model", 128000},
	}
	for _, tt := range tests {
		p := &OpenAIProvider{model: tt.model}
		if got := p.ContextWindow(); got != tt.expected {
			t.Errorf("OpenAI ContextWindow(%q) = %d, want %d", tt.model, got, tt.expected)
		}
	}
}

func TestAnthropicProvider_ContextWindow(t *testing.T) {
	tests := []struct {
		model    string
		expected int
	}{
		{"claude-sonnet-4-20250514", 200000},
		{"claude-opus-4-20250514", 200000},
		{"claude-unknown-future", 200000},
	}
	for _, tt := range tests {
		p := &AnthropicProvider{model: tt.model}
		if got := p.ContextWindow(); got != tt.expected {
			t.Errorf("Anthropic ContextWindow(%q) = %d, want %d", tt.model, got, tt.expected)
		}
	}
}

// --- Provider metadata tests ---

func TestOpenAIProvider_Metadata(t *testing.T) {
	p := &OpenAIProvider{model: "gpt-4o", name: "openai"}
	if p.Name() != "openai" {
		t.Errorf("expected name 'openai', got %q", p.Name())
	}
	if p.DefaultModel() != "gpt-4o" {
		t.Errorf("expected model 'gpt-4o', got %q", p.DefaultModel())
	}
	if p.StreamKind() != StreamIncremental {
		t.Error("openai streams incremental deltas")
	}
}

func TestAnthropicProvider_Metadata(t *testing.T) {
	p := &AnthropicProvider{model: "claude-sonnet-4-20250514"}
	if p.Name() != "anthropic" {
		t.Errorf("expected name 'anthropic', got %q", p.Name())
	}
	if p.DefaultModel() != "claude-sonnet-4-20250514" {
		t.Errorf("expected model 'claude-sonnet-4-20250514', got %q", p.DefaultModel())
	}
	if p.StreamKind() != StreamIncremental {
		t.Error("anthropic streams incremental deltas")
	}
}

// --- OpenAI provider name detection ---

func TestOpenAIProvider_NameDetection(t *testing.T) {
	tests := []struct {
		baseURL  string
		expected string
	}{
		{"", "openai"},
		{"https://api.deepseek.com/v1", "deepseek"},
		{"https://generativelanguage.googleapis.com/v1beta/openai/", "gemini"},
		{"https://api.moonshot.cn/v1", "kimi"},
		{"https://dashscope.aliyuncs.com/v1", "qwen"},
		{"https://custom.api.com/v1", "openai"},
	}
	for _, tt := range tests {
		p := NewOpenAIProvider("test-key", tt.baseURL, "test-model")
		if p.Name() != tt.expected {
			t.Errorf("baseURL=%q: expected name %q, got %q", tt.baseURL, tt.expected, p.Name())
		}
	}
}

// --- Anthropic implements the Measurer capability ---

func TestAnthropicProvider_IsMeasurer(t *testing.T) {
	var p any = &AnthropicProvider{model: "claude-sonnet-4-20250514"}
	if _, ok := p.(Measurer); !ok {
		t.Error("AnthropicProvider should implement Measurer")
	}
}

// --- Event types ---

func TestEventTypes(t *testing.T) {
	if EventTextDelta != 0 {
		t.Error("EventTextDelta should be 0")
	}
	if EventDone != 1 {
		t.Error("EventDone should be 1")
	}
	if EventError != 2 {
		t.Error("EventError should be 2")
	}
}

func TestUsage_Total(t *testing.T) {
	u := &Usage{InputTokens: 1000, OutputTokens: 500}
	if u.Total() != 1500 {
		t.Errorf("Total = %d, want 1500", u.Total())
	}
}
