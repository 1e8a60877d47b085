package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexiqai/inquiry-analyzer/internal/observability"
)

// Analyzer runs the intent and resolution stages against a chat model
type Analyzer struct {
	chat ChatCompletion
}

// NewAnalyzer creates an analyzer backed by chat
func NewAnalyzer(chat ChatCompletion) *Analyzer {
	return &Analyzer{chat: chat}
}

// RecognizeIntent asks the model to classify text. The reply is returned
// trimmed, label first; use ParseIntent to get the label.
func (a *Analyzer) RecognizeIntent(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("intent recognition: %w", ErrEmptyInput)
	}

	timer := observability.StartRequest("recognize_intent")
	reply, err := a.chat.Generate(ctx, []Message{
		{Role: RoleSystem, Content: intentSystemPrompt()},
		{Role: RoleUser, Content: intentUserPrompt(text)},
	}, IntentParameters)
	timer.Done(err)
	if err != nil {
		return "", fmt.Errorf("intent recognition: %w", err)
	}

	reply = strings.TrimSpace(reply)
	observability.LoggerFromContext(ctx).Info().
		Str("intent", ParseIntent(reply).String()).
		Msg("Intent recognized")
	return reply, nil
}

// GenerateResolution produces actionable guidance for content given the
// intent reply from RecognizeIntent
func (a *Analyzer) GenerateResolution(ctx context.Context, content, intent string) (string, error) {
	if strings.TrimSpace(content) == "" || strings.TrimSpace(intent) == "" {
		return "", fmt.Errorf("resolution generation: %w", ErrEmptyInput)
	}

	timer := observability.StartRequest("generate_resolution")
	reply, err := a.chat.Generate(ctx, []Message{
		{Role: RoleSystem, Content: resolutionSystemPrompt(ParseIntent(intent))},
		{Role: RoleUser, Content: resolutionUserPrompt(intent, content)},
	}, ResolutionParameters)
	timer.Done(err)
	if err != nil {
		return "", fmt.Errorf("resolution generation: %w", err)
	}

	return strings.TrimSpace(reply), nil
}
