package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
)

// Ensure Summariser implements the interface.
var _ driven.Summariser = (*Summariser)(nil)

// Summariser writes paper summaries with a chat model.
type Summariser struct {
	client  *openai.Client
	model   string
	prompts driven.PromptStore
}

// NewSummariser creates a summariser.
func NewSummariser(cfg ChatConfig, prompts driven.PromptStore) *Summariser {
	cfg.applyDefaults()
	return &Summariser{
		client:  newClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout),
		model:   cfg.Model,
		prompts: prompts,
	}
}

// Summarise returns a summary of the paper in the given language.
func (s *Summariser) Summarise(ctx context.Context, paper *domain.Paper, language string) (string, error) {
	if paper == nil {
		return "", domain.ErrInvalidInput
	}
	prompt, err := loadPrompt(s.prompts, driven.PromptSummarise)
	if err != nil {
		return "", err
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(prompt, language, paper.Title, paper.Abstract)},
		},
	})
	if err != nil {
		return "", wrapAPIError("summarise", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", domain.ErrMalformedResponse)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// ModelName returns the chat model used for summaries.
func (s *Summariser) ModelName() string {
	return s.model
}

// Ping validates the chat endpoint is reachable by listing models.
func (s *Summariser) Ping(ctx context.Context) error {
	if _, err := s.client.ListModels(ctx); err != nil {
		return wrapAPIError("ping", err)
	}
	return nil
}
