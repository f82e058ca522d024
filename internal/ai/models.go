// Package ai routes chat prompts to the upstream model providers and turns
// provider failures into a reply the chat can always show.
package ai

import "strings"

// Family identifies one upstream provider.
type Family int

const (
	FamilyUnknown Family = iota
	FamilyGemini
	FamilyMistral
	FamilyOpenRouter
)

func (f Family) String() string {
	switch f {
	case FamilyGemini:
		return "gemini"
	case FamilyMistral:
		return "mistral"
	case FamilyOpenRouter:
		return "openrouter"
	default:
		return "unknown"
	}
}

// Default provider model ids per family.
const (
	DefaultGeminiModel     = "gemini-2.5-flash"
	DefaultMistralModel    = "mistral-large-latest"
	DefaultOpenRouterModel = "openai/gpt-4o-mini"
)

// ModelInfo is one entry of the display-name catalog.
type ModelInfo struct {
	DisplayName string `json:"displayName"`
	Family      string `json:"provider"`
	ModelID     string `json:"modelId"`
}

type modelEntry struct {
	displayName string
	modelID     string
}

type modelTable struct {
	defaultID string
	entries   []modelEntry
}

// Prefixes are checked in slice order; the first match wins.
var familyPrefixes = []struct {
	prefix string
	family Family
}{
	{"Gemini", FamilyGemini},
	{"Mistral", FamilyMistral},
	{"Mixtral", FamilyMistral},
	{"OpenRouter", FamilyOpenRouter},
}

var modelTables = map[Family]modelTable{
	FamilyGemini: {
		defaultID: DefaultGeminiModel,
		entries: []modelEntry{
			{"Gemini 2.5 Flash", "gemini-2.5-flash"},
			{"Gemini 2.5 Pro", "gemini-2.5-pro"},
			{"Gemini 2.0 Flash", "gemini-2.0-flash"},
			{"Gemini 1.5 Pro", "gemini-1.5-pro"},
			{"Gemini 1.5 Flash", "gemini-1.5-flash"},
		},
	},
	FamilyMistral: {
		defaultID: DefaultMistralModel,
		entries: []modelEntry{
			{"Mistral Large", "mistral-large-latest"},
			{"Mistral Medium", "mistral-medium-latest"},
			{"Mistral Small", "mistral-small-latest"},
			{"Mixtral 8x7B", "open-mixtral-8x7b"},
			{"Mixtral 8x22B", "open-mixtral-8x22b"},
		},
	},
	FamilyOpenRouter: {
		defaultID: DefaultOpenRouterModel,
		entries: []modelEntry{
			{"OpenRouter GPT-4o", "openai/gpt-4o"},
			{"OpenRouter GPT-4o Mini", "openai/gpt-4o-mini"},
			{"OpenRouter Claude 3.5 Sonnet", "anthropic/claude-3.5-sonnet"},
			{"OpenRouter Claude 3 Haiku", "anthropic/claude-3-haiku"},
			{"OpenRouter Llama 3.1 70B", "meta-llama/llama-3.1-70b-instruct"},
			{"OpenRouter Llama 3.1 8B", "meta-llama/llama-3.1-8b-instruct"},
			{"OpenRouter DeepSeek Chat", "deepseek/deepseek-chat"},
			{"OpenRouter Qwen 2.5 72B", "qwen/qwen-2.5-72b-instruct"},
		},
	},
}

// Classify returns the provider family a display model name belongs to.
func Classify(displayName string) Family {
	name := strings.TrimSpace(displayName)
	for _, p := range familyPrefixes {
		if strings.HasPrefix(name, p.prefix) {
			return p.family
		}
	}
	return FamilyUnknown
}

// ModelID maps a display name to the provider model id for family. Names the
// table does not know resolve to the family default; FamilyUnknown resolves
// to the primary default.
func ModelID(family Family, displayName string) string {
	table, ok := modelTables[family]
	if !ok {
		return DefaultGeminiModel
	}
	name := strings.TrimSpace(displayName)
	for _, e := range table.entries {
		if e.displayName == name {
			return e.modelID
		}
	}
	return table.defaultID
}

// Catalog lists every known display name in a stable order.
func Catalog() []ModelInfo {
	var out []ModelInfo
	for _, family := range []Family{FamilyGemini, FamilyMistral, FamilyOpenRouter} {
		for _, e := range modelTables[family].entries {
			out = append(out, ModelInfo{DisplayName: e.displayName, Family: family.String(), ModelID: e.modelID})
		}
	}
	return out
}
