package generation

import (
	"context"
	"fmt"
	"time"

	"github.com/pkoukk/tiktoken-go"
	"github.com/tmc/langchaingo/llms"
)

// backoff schedule for transient model errors, matching the retry behavior
// of the generation pipeline this harness replaced.
var backoffDelays = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}

// Usage accumulates token counts across Generate calls.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Total returns the combined token count.
func (u Usage) Total() int { return u.PromptTokens + u.CompletionTokens }

// Default drives a chat model with a fixed system prompt and a user prompt
// template holding two verbs: the table rendering and the query.
type Default struct {
	model        llms.Model
	systemPrompt string
	userTemplate string
	tokenizer    *tiktoken.Tiktoken
	usage        Usage
}

var _ Generator = (*Default)(nil)

// NewDefault creates a generator with the question-answering prompts.
func NewDefault(model llms.Model) *Default {
	return NewDefaultWithPrompts(model, QASystemPrompt, QAUserTemplate)
}

// NewDefaultWithPrompts creates a generator with custom prompts. The user
// template must contain two %s verbs: table string, then query.
func NewDefaultWithPrompts(model llms.Model, systemPrompt, userTemplate string) *Default {
	// cl100k_base fits GPT-3.5/4 class models and the common
	// OpenAI-compatible endpoints; without it token accounting is skipped.
	tokenizer, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		tokenizer = nil
	}
	return &Default{
		model:        model,
		systemPrompt: systemPrompt,
		userTemplate: userTemplate,
		tokenizer:    tokenizer,
	}
}

// Generate renders the prompts and calls the model, retrying transient
// failures with backoff.
func (g *Default) Generate(ctx context.Context, tableStr, query string) (string, error) {
	userPrompt := fmt.Sprintf(g.userTemplate, tableStr, query)
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, g.systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	var resp *llms.ContentResponse
	var err error
	for attempt := 0; ; attempt++ {
		resp, err = g.model.GenerateContent(ctx, messages)
		if err == nil {
			break
		}
		if attempt >= len(backoffDelays) || ctx.Err() != nil {
			return "", fmt.Errorf("generate after %d attempts: %w", attempt+1, err)
		}
		select {
		case <-time.After(backoffDelays[attempt]):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	content := resp.Choices[0].Content

	g.recordUsage(g.systemPrompt+userPrompt, content)
	return content, nil
}

// TokenUsage returns the tokens consumed so far.
func (g *Default) TokenUsage() Usage { return g.usage }

func (g *Default) recordUsage(prompt, completion string) {
	if g.tokenizer == nil {
		return
	}
	g.usage.PromptTokens += len(g.tokenizer.Encode(prompt, nil, nil))
	g.usage.CompletionTokens += len(g.tokenizer.Encode(completion, nil, nil))
}
