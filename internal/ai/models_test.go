package ai_test

import (
	"testing"

	"github.com/edgard/murailochat/internal/ai"
)

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want ai.Family
	}{
		{"Gemini 2.5 Flash", ai.FamilyGemini},
		{"Gemini Ultra 9000", ai.FamilyGemini},
		{"  Gemini 1.5 Pro  ", ai.FamilyGemini},
		{"Mistral Large", ai.FamilyMistral},
		{"Mixtral 8x7B", ai.FamilyMistral},
		{"OpenRouter GPT-4o", ai.FamilyOpenRouter},
		{"OpenRouter Something New", ai.FamilyOpenRouter},
		{"gemini 2.5 flash", ai.FamilyUnknown},
		{"Unknown-Model-XYZ", ai.FamilyUnknown},
		{"", ai.FamilyUnknown},
	}
	for _, tt := range tests {
		if got := ai.Classify(tt.name); got != tt.want {
			t.Errorf("Classify(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestModelID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		family ai.Family
		name   string
		want   string
	}{
		{ai.FamilyGemini, "Gemini 2.5 Flash", "gemini-2.5-flash"},
		{ai.FamilyGemini, "Gemini 2.5 Pro", "gemini-2.5-pro"},
		{ai.FamilyGemini, "Gemini 1.5 Flash", "gemini-1.5-flash"},
		{ai.FamilyGemini, "Gemini Nano", ai.DefaultGeminiModel},
		{ai.FamilyMistral, "Mistral Small", "mistral-small-latest"},
		{ai.FamilyMistral, "Mixtral 8x7B", "open-mixtral-8x7b"},
		{ai.FamilyMistral, "Mixtral 8x22B", "open-mixtral-8x22b"},
		{ai.FamilyMistral, "Mistral Tiny", ai.DefaultMistralModel},
		{ai.FamilyOpenRouter, "OpenRouter GPT-4o", "openai/gpt-4o"},
		{ai.FamilyOpenRouter, "OpenRouter Claude 3.5 Sonnet", "anthropic/claude-3.5-sonnet"},
		{ai.FamilyOpenRouter, "OpenRouter Whatever", ai.DefaultOpenRouterModel},
		{ai.FamilyUnknown, "Unknown-Model-XYZ", ai.DefaultGeminiModel},
	}
	for _, tt := range tests {
		if got := ai.ModelID(tt.family, tt.name); got != tt.want {
			t.Errorf("ModelID(%v, %q) = %q, want %q", tt.family, tt.name, got, tt.want)
		}
	}
}

func TestCatalog(t *testing.T) {
	t.Parallel()

	counts := map[string]int{}
	seen := map[string]bool{}
	for _, m := range ai.Catalog() {
		counts[m.Family]++
		if seen[m.DisplayName] {
			t.Errorf("duplicate display name %q", m.DisplayName)
		}
		seen[m.DisplayName] = true

		if got := ai.Classify(m.DisplayName).String(); got != m.Family {
			t.Errorf("Classify(%q) = %s, catalog says %s", m.DisplayName, got, m.Family)
		}
		if got := ai.ModelID(ai.Classify(m.DisplayName), m.DisplayName); got != m.ModelID {
			t.Errorf("ModelID(%q) = %q, catalog says %q", m.DisplayName, got, m.ModelID)
		}
	}

	want := map[string]int{"gemini": 5, "mistral": 5, "openrouter": 8}
	for family, n := range want {
		if counts[family] != n {
			t.Errorf("catalog has %d %s models, want %d", counts[family], family, n)
		}
	}
}
