package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

const answerSystemPrompt = `You are a helpful medical information assistant.
Answer the question based ONLY on the provided context from medical documents.
If the context doesn't contain enough information to answer, say so clearly.
Be precise and cite specific information from the context.`

// Passage is a piece of retrieved context with its source document
type Passage struct {
	DocumentID int
	Title      string
	Text       string
}

// Answerer answers open questions from retrieved passages
type Answerer struct {
	provider Provider
}

// NewAnswerer creates an answerer over the given provider
func NewAnswerer(provider Provider) *Answerer {
	return &Answerer{provider: provider}
}

// Answer asks the model to answer question from passages only
func (a *Answerer) Answer(ctx context.Context, question string, passages []Passage) (string, error) {
	if a == nil || a.provider == nil {
		return "", eris.New("questions require an LLM provider")
	}
	if len(passages) == 0 {
		return "I couldn't find any relevant information in the stored documents.", nil
	}

	resp, err := a.provider.Complete(ctx, CompletionRequest{
		System: answerSystemPrompt,
		Prompt: BuildAnswerPrompt(question, passages),
	})
	if err != nil {
		return "", eris.Wrap(err, "answer completion")
	}
	return resp.Text, nil
}

// BuildAnswerPrompt lays out the passages followed by the question
func BuildAnswerPrompt(question string, passages []Passage) string {
	var b strings.Builder
	b.WriteString("Context from medical documents:\n")
	for _, p := range passages {
		fmt.Fprintf(&b, "\n[Document %d: %s]\n%s\n", p.DocumentID, p.Title, strings.TrimSpace(p.Text))
	}
	fmt.Fprintf(&b, "\nQuestion: %s\n\nAnswer:", strings.TrimSpace(question))
	return b.String()
}
