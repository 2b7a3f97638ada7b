// Package generator answers questions over retrieved passages using an Eino
// chat model. It owns the prompt layout and nothing else: retries, timeouts
// and budget trimming are applied by the caller.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/54b3r/pdfqa-go/internal/budget"
	"github.com/54b3r/pdfqa-go/internal/logging"
	"github.com/54b3r/pdfqa-go/internal/rag"
)

// systemPrompt instructs the model to stay inside the supplied passages.
const systemPrompt = `You answer questions about documents the user has uploaded.
Use only the numbered context passages provided with the question. If the
passages do not contain the answer, say that you don't know instead of
making one up. Keep answers concise and cite passage numbers like [1] when
they support a statement.`

// Generator implements rag.Generator over an Eino BaseChatModel.
type Generator struct {
	chat model.BaseChatModel
}

// New returns a Generator that calls chat for every answer.
func New(chat model.BaseChatModel) (*Generator, error) {
	if chat == nil {
		return nil, rag.Errorf(rag.ErrInvalidConfiguration, "generator: chat model must not be nil")
	}
	return &Generator{chat: chat}, nil
}

// Generate returns the model's answer to question given passages, which are
// numbered in the order received.
func (g *Generator) Generate(ctx context.Context, question string, passages []string) (string, error) {
	log := logging.FromContext(ctx)

	msgs := BuildMessages(question, passages)
	log.Debug("generator: calling model",
		"passages", len(passages),
		"prompt_tokens", budget.EstimateMessages(msgs),
	)

	resp, err := g.chat.Generate(ctx, msgs)
	if err != nil {
		if ctx.Err() != nil {
			return "", rag.Wrap(rag.ErrGenerationUnavailable, "generator: model call cancelled", ctx.Err())
		}
		return "", rag.Wrap(rag.ErrGenerationUnavailable, "generator: model call failed", err)
	}
	if resp == nil {
		return "", rag.Errorf(rag.ErrGenerationUnavailable, "generator: model returned no message")
	}
	answer := strings.TrimSpace(resp.Content)
	if answer == "" {
		return "", rag.Errorf(rag.ErrGenerationUnavailable, "generator: model returned an empty answer")
	}
	return answer, nil
}

// PromptTokens estimates the prompt cost of question without any passages.
// The session uses it as the fixed cost when fitting passages to the budget.
func PromptTokens(question string) int {
	return budget.EstimateMessages(BuildMessages(question, nil))
}

// BuildMessages lays out the system prompt, the numbered passages and the
// question as chat messages.
func BuildMessages(question string, passages []string) []*schema.Message {
	var sb strings.Builder
	if len(passages) > 0 {
		sb.WriteString("Context passages:\n\n")
		for i, p := range passages {
			fmt.Fprintf(&sb, "[%d] %s\n\n", i+1, p)
		}
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)

	return []*schema.Message{
		schema.SystemMessage(systemPrompt),
		schema.UserMessage(sb.String()),
	}
}
