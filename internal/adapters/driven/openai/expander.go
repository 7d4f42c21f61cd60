package openai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/custodia-labs/papercache/internal/core/domain"
	"github.com/custodia-labs/papercache/internal/core/ports/driven"
	"github.com/custodia-labs/papercache/internal/logger"
)

// Ensure Expander implements the interface.
var _ driven.QueryExpander = (*Expander)(nil)

// Chat defaults.
const (
	DefaultChatModel   = "gpt-4o-mini"
	DefaultChatTimeout = 120 * time.Second
	DefaultCacheSize   = 256

	// maxSynonyms bounds the expansion terms folded into the query text.
	maxSynonyms = 5
)

// ChatConfig holds configuration for the chat-completion adapters.
type ChatConfig struct {
	// APIKey is the API key (required for OpenAI, ignored by Ollama).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string

	// Model is the chat model (default: gpt-4o-mini).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration

	// CacheSize is the number of expansions kept in memory (default: 256).
	CacheSize int
}

func (c *ChatConfig) applyDefaults() {
	if c.Model == "" {
		c.Model = DefaultChatModel
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultChatTimeout
	}
	if c.CacheSize <= 0 {
		c.CacheSize = DefaultCacheSize
	}
}

// Expander translates a query, adds synonyms and embeds the result.
// Expansions are cached by normalised query text.
type Expander struct {
	client   *openai.Client
	model    string
	embedder driven.EmbeddingService
	prompts  driven.PromptStore
	cache    *lru.Cache[string, domain.QueryExpansion]
	logger   *zap.Logger
}

// NewExpander creates a query expander. The embedder is required.
func NewExpander(cfg ChatConfig, embedder driven.EmbeddingService, prompts driven.PromptStore) (*Expander, error) {
	if embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	cfg.applyDefaults()

	cache, err := lru.New[string, domain.QueryExpansion](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create expansion cache: %w", err)
	}

	return &Expander{
		client:   newClient(cfg.APIKey, cfg.BaseURL, cfg.Timeout),
		model:    cfg.Model,
		embedder: embedder,
		prompts:  prompts,
		cache:    cache,
		logger:   logger.Zap().Named("expansion"),
	}, nil
}

// expansionReply is the JSON object the chat model is asked to return.
type expansionReply struct {
	Translated string   `json:"translated"`
	Synonyms   []string `json:"synonyms"`
}

// Expand returns the translated query, its synonyms and the query vector.
// When the chat model fails the query is embedded as typed and the
// result is not cached.
func (e *Expander) Expand(ctx context.Context, text string) (domain.QueryExpansion, error) {
	normalised := strings.Join(strings.Fields(text), " ")
	if normalised == "" {
		return domain.QueryExpansion{}, fmt.Errorf("%w: empty query", domain.ErrInvalidInput)
	}

	key := cacheKey(normalised)
	if cached, ok := e.cache.Get(key); ok {
		cached.Original = text
		return cached, nil
	}

	reply, chatErr := e.chat(ctx, normalised)
	if chatErr != nil {
		if ctx.Err() != nil {
			return domain.QueryExpansion{}, ctx.Err()
		}
		e.logger.Warn("query expansion failed, embedding query as typed", zap.Error(chatErr))
		reply = expansionReply{Translated: normalised}
	}

	vector, err := e.embedder.Embed(ctx, embeddingInput(reply))
	if err != nil {
		return domain.QueryExpansion{}, fmt.Errorf("embed query: %w", err)
	}

	expansion := domain.QueryExpansion{
		Original:   text,
		Translated: reply.Translated,
		Synonyms:   reply.Synonyms,
		Vector:     vector,
	}
	if chatErr == nil {
		e.cache.Add(key, expansion)
	}
	return expansion, nil
}

func (e *Expander) chat(ctx context.Context, query string) (expansionReply, error) {
	prompt, err := loadPrompt(e.prompts, driven.PromptQueryExpansion)
	if err != nil {
		return expansionReply{}, err
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(prompt, query)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return expansionReply{}, wrapAPIError("query expansion", err)
	}
	if len(resp.Choices) == 0 {
		return expansionReply{}, fmt.Errorf("%w: no choices returned", domain.ErrMalformedResponse)
	}

	return parseExpansion(resp.Choices[0].Message.Content, query)
}

// parseExpansion decodes the model reply, tolerating code fences.
func parseExpansion(content, query string) (expansionReply, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var reply expansionReply
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &reply); err != nil {
		return expansionReply{}, fmt.Errorf("%w: %w", domain.ErrMalformedResponse, err)
	}

	reply.Translated = strings.TrimSpace(reply.Translated)
	if reply.Translated == "" {
		reply.Translated = query
	}

	synonyms := make([]string, 0, len(reply.Synonyms))
	seen := map[string]struct{}{strings.ToLower(reply.Translated): {}}
	for _, s := range reply.Synonyms {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[strings.ToLower(s)]; ok {
			continue
		}
		seen[strings.ToLower(s)] = struct{}{}
		synonyms = append(synonyms, s)
		if len(synonyms) == maxSynonyms {
			break
		}
	}
	reply.Synonyms = synonyms
	return reply, nil
}

// embeddingInput is the text embedded for a query.
func embeddingInput(reply expansionReply) string {
	if len(reply.Synonyms) == 0 {
		return reply.Translated
	}
	return reply.Translated + "\n" + strings.Join(reply.Synonyms, ", ")
}

func cacheKey(normalised string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(normalised)))
	return hex.EncodeToString(sum[:])
}

// loadPrompt returns the named template, falling back to the built-in one.
func loadPrompt(prompts driven.PromptStore, name string) (string, error) {
	if prompts != nil {
		if prompt, err := prompts.Load(name); err == nil {
			return prompt, nil
		}
	}
	if prompt, ok := fallbackPrompts[name]; ok {
		return prompt, nil
	}
	return "", fmt.Errorf("%w: unknown prompt %q", domain.ErrNotFound, name)
}

// fallbackPrompts are used when no prompt store is configured.
var fallbackPrompts = map[string]string{
	driven.PromptQueryExpansion: `Translate this search query for scientific papers to English and list up to five synonyms.
Respond only with JSON: {"translated": "...", "synonyms": ["..."]}

Query: %s`,
	driven.PromptSummarise: `Summarise this paper in the language with code "%s" in at most five sentences.

Title: %s

Abstract:
%s`,
}
