package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultAnthropicMaxTokens = 1024

// AnthropicConfig defines configuration options for the Claude generator.
type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  zerolog.Logger
}

// AnthropicGenerator implements Generator against the Messages API.
type AnthropicGenerator struct {
	client anthropic.Client
	cfg    AnthropicConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewAnthropicGenerator constructs a Claude backed generator.
func NewAnthropicGenerator(cfg AnthropicConfig) (*AnthropicGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "claude-3-5-haiku-latest"
	}

	// One attempt per student; the SDK retries by default.
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicGenerator{
		client: anthropic.NewClient(opts...),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-weekly-report/pkg/ai/anthropic"),
		logger: cfg.Logger.With().Str("component", "anthropic_generator").Logger(),
	}, nil
}

// Model returns the Claude model name.
func (g *AnthropicGenerator) Model() string {
	return g.cfg.Model
}

// Generate sends the prompt as a single user turn.
func (g *AnthropicGenerator) Generate(parent context.Context, prompt string, params GenerationParams) (text string, err error) {
	start := time.Now()
	defer func() { observeGeneration("anthropic", g.cfg.Model, start, err) }()

	ctx, span := g.tracer.Start(parent, "anthropic.generate", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	maxTokens := params.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	resp, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(g.cfg.Model),
		MaxTokens:   int64(maxTokens),
		Temperature: anthropic.Float(float64(params.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			err = classifyStatus(apiErr.StatusCode, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("anthropic generate: %w", err)
	}

	var builder strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			builder.WriteString(block.Text)
		}
	}

	content := strings.TrimSpace(builder.String())
	if content == "" {
		span.SetStatus(codes.Error, "empty content")
		return "", ErrEmptyResponse
	}

	return content, nil
}
