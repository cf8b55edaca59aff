package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ppiankov/chartcode/internal/model"
)

func TestSummarizer_Disabled(t *testing.T) {
	s := NewSummarizer(nil)
	if s.IsEnabled() {
		t.Error("Expected summarizer to be disabled")
	}
	if s.ProviderName() != "none" {
		t.Errorf("Expected provider name none, got %s", s.ProviderName())
	}
	if _, err := s.Summarize(context.Background(), "note"); err == nil {
		t.Error("Expected error when disabled")
	}
}

func TestSummarizer_Success(t *testing.T) {
	mock := &MockProvider{name: "mock", text: "Stable diabetic follow-up."}
	s := NewSummarizer(mock)

	if s.ProviderName() != "mock" {
		t.Errorf("Expected provider name mock, got %s", s.ProviderName())
	}

	got, err := s.Summarize(context.Background(), "note")
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if got != "Stable diabetic follow-up." {
		t.Errorf("Unexpected summary: %q", got)
	}
	if mock.lastReq.System == "" {
		t.Error("Expected system prompt")
	}
}

func TestSummarizer_ProviderError(t *testing.T) {
	s := NewSummarizer(&MockProvider{name: "mock", err: errors.New("boom")})
	if _, err := s.Summarize(context.Background(), "note"); err == nil {
		t.Fatal("Expected error")
	}
}

func TestAnswerer(t *testing.T) {
	mock := &MockProvider{name: "mock", text: "Metformin 500 mg."}
	a := NewAnswerer(mock)

	got, err := a.Answer(context.Background(), "What dose?", []Passage{
		{DocumentID: 2, Title: "Follow-up", Text: "Metformin 500 mg BID"},
	})
	if err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if got != "Metformin 500 mg." {
		t.Errorf("Unexpected answer: %q", got)
	}
	if !strings.Contains(mock.lastReq.Prompt, "[Document 2: Follow-up]") {
		t.Errorf("Prompt missing passage header: %q", mock.lastReq.Prompt)
	}

	// No passages short-circuits
	calls := mock.calls.Load()
	if _, err := a.Answer(context.Background(), "What dose?", nil); err != nil {
		t.Fatalf("Answer failed: %v", err)
	}
	if mock.calls.Load() != calls {
		t.Error("Expected no provider call without passages")
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		wantNil  bool
		wantErr  bool
		wantName string
	}{
		{name: "disabled", config: Config{}, wantNil: true},
		{name: "openai", config: Config{Provider: "openai", APIKey: "k"}, wantName: "openai"},
		{name: "claude alias", config: Config{Provider: "Claude", APIKey: "k"}, wantName: "anthropic"},
		{name: "ollama", config: Config{Provider: "ollama"}, wantName: "ollama"},
		{name: "unknown", config: Config{Provider: "bard"}, wantErr: true},
		{name: "openai without key", config: Config{Provider: "openai"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProvider(tt.config)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil {
				if p != nil {
					t.Errorf("Expected nil provider, got %T", p)
				}
				return
			}
			if p.Name() != tt.wantName {
				t.Errorf("Expected %s, got %s", tt.wantName, p.Name())
			}
		})
	}
}

func TestConfigFromModel(t *testing.T) {
	cfg := ConfigFromModel(model.LLMConfig{Provider: "ollama", Model: "llama3.1"})
	if cfg.Timeout != 60 || cfg.MaxTokens != 2000 {
		t.Errorf("Expected defaults to survive zero values, got %+v", cfg)
	}
	if cfg.Model != "llama3.1" {
		t.Errorf("Unexpected model: %s", cfg.Model)
	}
}
