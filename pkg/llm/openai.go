package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/llmsentinel/pkg/config"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/sirupsen/logrus"
)

// ErrEmptyResponse is returned when a model reply carries no text.
var ErrEmptyResponse = errors.New("model returned no content")

// ollamaPlaceholderKey is sent when no key is configured. Ollama ignores it
// but the SDK refuses to build a request without one.
const ollamaPlaceholderKey = "ollama"

type openAIClient struct {
	log         logrus.FieldLogger
	client      openai.Client
	model       string
	temperature float64
	maxTokens   int
}

// NewOpenAI creates a client for an OpenAI-compatible chat completions API,
// such as a local Ollama daemon.
func NewOpenAI(log logrus.FieldLogger, cfg *config.LLMConfig, opts ...option.RequestOption) Client {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = ollamaPlaceholderKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultOllamaBaseURL
	}

	clientOpts := []option.RequestOption{
		option.WithBaseURL(withTrailingSlash(baseURL)),
		option.WithAPIKey(apiKey),
	}

	if timeout := config.MustDuration(cfg.Timeout, 0); timeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(timeout))
	}

	clientOpts = append(clientOpts, opts...)

	return &openAIClient{
		log: log.WithFields(logrus.Fields{
			"component": "llm",
			"provider":  config.ProviderOpenAI,
			"model":     cfg.Model,
		}),
		client:      openai.NewClient(clientOpts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (c *openAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Temperature: openai.Float(c.temperature),
	}

	if c.maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(c.maxTokens))
	}

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	start := time.Now()

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}

	c.log.WithField("duration", time.Since(start)).Debug("Chat completion finished")

	return resp.Choices[0].Message.Content, nil
}
