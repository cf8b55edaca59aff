package llm

import (
	"context"

	"github.com/rotisserie/eris"
)

const summarySystemPrompt = `You are a medical documentation expert.
Summarize the following medical note concisely, highlighting:
- Patient's main complaint
- Key findings
- Diagnosis/Assessment
- Treatment plan

Keep the summary clear and professional.`

// Summarizer produces short clinical summaries of notes
type Summarizer struct {
	provider Provider
}

// NewSummarizer creates a summarizer. A nil provider disables it
func NewSummarizer(provider Provider) *Summarizer {
	return &Summarizer{provider: provider}
}

// IsEnabled reports whether a provider is configured
func (s *Summarizer) IsEnabled() bool {
	return s != nil && s.provider != nil
}

// ProviderName returns the provider name, or "none"
func (s *Summarizer) ProviderName() string {
	if !s.IsEnabled() {
		return "none"
	}
	return s.provider.Name()
}

// Summarize returns a summary of one note
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	if !s.IsEnabled() {
		return "", eris.New("summaries require an LLM provider")
	}
	resp, err := s.provider.Complete(ctx, CompletionRequest{
		System: summarySystemPrompt,
		Prompt: text,
	})
	if err != nil {
		return "", eris.Wrap(err, "summary completion")
	}
	return resp.Text, nil
}
