package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

// GeminiConfig defines configuration options for the Gemini generator.
type GeminiConfig struct {
	APIKey  string
	Model   string
	BaseURL string
	Logger  zerolog.Logger
}

// GeminiGenerator implements Generator on the Gemini generateContent API.
type GeminiGenerator struct {
	client *genai.Client
	cfg    GeminiConfig
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGeminiGenerator initialises the genai client for the Gemini API backend.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	return &GeminiGenerator{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/gema-weekly-report/pkg/ai/gemini"),
		logger: cfg.Logger.With().Str("component", "gemini_generator").Logger(),
	}, nil
}

// Model returns the Gemini model name.
func (g *GeminiGenerator) Model() string {
	return g.cfg.Model
}

// Generate runs one generateContent call.
func (g *GeminiGenerator) Generate(parent context.Context, prompt string, params GenerationParams) (text string, err error) {
	start := time.Now()
	defer func() { observeGeneration("gemini", g.cfg.Model, start, err) }()

	ctx, span := g.tracer.Start(parent, "gemini.generate", trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(params.Temperature),
	}
	if params.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(params.MaxOutputTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			err = classifyStatus(apiErr.Code, err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	content := ""
	if resp != nil {
		content = strings.TrimSpace(resp.Text())
	}
	if content == "" {
		span.SetStatus(codes.Error, "empty content")
		return "", ErrEmptyResponse
	}

	return content, nil
}
