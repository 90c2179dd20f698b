package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIConfig defines configuration options for the OpenAI generator.
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  zerolog.Logger
}

// OpenAIGenerator implements Generator against the OpenAI chat completion API.
type OpenAIGenerator struct {
	client *openai.Client
	cfg    OpenAIConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGenerator builds a new generator using the provided configuration.
func NewOpenAIGenerator(cfg OpenAIConfig) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-weekly-report/pkg/ai/openai"),
		logger: cfg.Logger.With().Str("component", "openai_generator").Logger(),
	}, nil
}

// Model returns the chat model used for generation.
func (g *OpenAIGenerator) Model() string {
	return g.cfg.Model
}

// Generate sends the prompt as a single user message.
func (g *OpenAIGenerator) Generate(parent context.Context, prompt string, params GenerationParams) (text string, err error) {
	start := time.Now()
	defer func() { observeGeneration("openai", g.cfg.Model, start, err) }()

	ctx, span := g.tracer.Start(parent, "openai.generate", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	request := openai.ChatCompletionRequest{
		Model:       g.cfg.Model,
		Temperature: params.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if params.MaxOutputTokens > 0 {
		// Reasoning models only accept max_completion_tokens.
		if isReasoningModel(g.cfg.Model) {
			request.MaxCompletionTokens = params.MaxOutputTokens
		} else {
			request.MaxTokens = params.MaxOutputTokens
		}
	}

	resp, err := g.client.CreateChatCompletion(ctx, request)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			err = classifyStatus(apiErr.HTTPStatusCode, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("openai generate: %w", err)
	}

	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, "no choices")
		return "", ErrEmptyResponse
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	if content == "" {
		span.SetStatus(codes.Error, "empty content")
		return "", ErrEmptyResponse
	}

	g.logger.Debug().Int("total_tokens", resp.Usage.TotalTokens).Msg("openai generation completed")
	return content, nil
}

func isReasoningModel(model string) bool {
	for _, prefix := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, prefix) {
			return true
		}
	}
	return false
}
