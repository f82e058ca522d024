package ai

import (
	"context"
	"log/slog"
)

// Provider is one upstream chat-completion client.
type Provider interface {
	Generate(ctx context.Context, modelID, prompt string) (string, error)
}

// Turn is one message of a multi-turn exchange.
type Turn struct {
	Role    string // "user" | "assistant"
	Content string
}

// Route is the resolved destination of a display model name.
type Route struct {
	Family  Family
	ModelID string
}

// Resolve classifies displayName and maps it to a provider model id.
// Unknown names go to the primary provider with its default model.
func Resolve(displayName string) Route {
	switch family := Classify(displayName); family {
	case FamilyGemini, FamilyMistral, FamilyOpenRouter:
		return Route{Family: family, ModelID: ModelID(family, displayName)}
	case FamilyUnknown:
		return Route{Family: FamilyGemini, ModelID: DefaultGeminiModel}
	default:
		return Route{Family: FamilyGemini, ModelID: DefaultGeminiModel}
	}
}

// Router dispatches prompts to the provider client for their display model.
// It does not recover from provider errors.
type Router struct {
	gemini     Provider
	mistral    Provider
	openRouter Provider
	log        *slog.Logger
}

// NewRouter creates a Router over the three provider clients. A nil client
// makes every request routed to it fail with a ConfigurationError.
func NewRouter(gemini, mistral, openRouter Provider, log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		gemini:     gemini,
		mistral:    mistral,
		openRouter: openRouter,
		log:        log.With("component", "ai_router"),
	}
}

// Query sends prompt to the provider selected by displayName and returns its text.
func (r *Router) Query(ctx context.Context, displayName, prompt string) (string, error) {
	route := Resolve(displayName)
	r.log.DebugContext(ctx, "Routing AI query",
		"display_model", displayName,
		"provider", route.Family.String(),
		"model_id", route.ModelID)

	provider := r.providerFor(route.Family)
	if provider == nil {
		return "", &ConfigurationError{Provider: route.Family.String()}
	}
	return provider.Generate(ctx, route.ModelID, prompt)
}

func (r *Router) providerFor(family Family) Provider {
	switch family {
	case FamilyGemini:
		return r.gemini
	case FamilyMistral:
		return r.mistral
	case FamilyOpenRouter:
		return r.openRouter
	case FamilyUnknown:
		return r.gemini
	default:
		return r.gemini
	}
}
