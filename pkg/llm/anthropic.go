package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/ethpandaops/llmsentinel/pkg/config"
	"github.com/sirupsen/logrus"
)

const defaultAnthropicMaxTokens = 1024

type anthropicClient struct {
	log         logrus.FieldLogger
	client      anthropic.Client
	model       string
	temperature float64
	maxTokens   int64
}

// NewAnthropic creates a client for the Anthropic messages API.
func NewAnthropic(log logrus.FieldLogger, cfg *config.LLMConfig, opts ...option.RequestOption) Client {
	var clientOpts []option.RequestOption

	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	}

	if cfg.BaseURL != "" && cfg.BaseURL != config.DefaultOllamaBaseURL {
		clientOpts = append(clientOpts, option.WithBaseURL(withTrailingSlash(cfg.BaseURL)))
	}

	if timeout := config.MustDuration(cfg.Timeout, 0); timeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(timeout))
	}

	clientOpts = append(clientOpts, opts...)

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	return &anthropicClient{
		log: log.WithFields(logrus.Fields{
			"component": "llm",
			"provider":  config.ProviderAnthropic,
			"model":     cfg.Model,
		}),
		client:      anthropic.NewClient(clientOpts...),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   maxTokens,
	}
}

func (c *anthropicClient) Complete(ctx context.Context, messages []Message) (string, error) {
	system, rest := splitSystem(messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages:  make([]anthropic.MessageParam, 0, len(rest)),
	}

	params.Temperature = anthropic.Float(c.temperature)

	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	for _, m := range rest {
		params.Messages = append(params.Messages, anthropic.MessageParam{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(m.Content),
			},
		})
	}

	start := time.Now()

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("creating message: %w", err)
	}

	var text strings.Builder

	for _, content := range message.Content {
		if content.Type == "text" {
			text.WriteString(content.Text)
		}
	}

	if text.Len() == 0 {
		return "", ErrEmptyResponse
	}

	c.log.WithFields(logrus.Fields{
		"duration":      time.Since(start),
		"input_tokens":  message.Usage.InputTokens,
		"output_tokens": message.Usage.OutputTokens,
	}).Debug("Message finished")

	return text.String(), nil
}
