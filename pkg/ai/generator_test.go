package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestOpenAIGeneratorReturnsContent(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  Great job!  "},"finish_reason":"stop"}],"usage":{"total_tokens":12}}`))
	}))
	defer server.Close()

	gen, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1", Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.Equal(t, "gpt-4o-mini", gen.Model())

	text, err := gen.Generate(context.Background(), "write a report", GenerationParams{Temperature: 0.5, MaxOutputTokens: 500})
	require.NoError(t, err)
	require.Equal(t, "Great job!", text)
	require.EqualValues(t, 500, captured["max_tokens"])
	require.InDelta(t, 0.5, captured["temperature"], 0.0001)
}

func TestOpenAIGeneratorClassifiesQuotaErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"You exceeded your current quota","type":"insufficient_quota","code":"insufficient_quota"}}`))
	}))
	defer server.Close()

	gen, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1", Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "prompt", GenerationParams{})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrQuotaExceeded))
}

func TestOpenAIGeneratorRejectsEmptyContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","object":"chat.completion","choices":[]}`))
	}))
	defer server.Close()

	gen, err := NewOpenAIGenerator(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1", Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "prompt", GenerationParams{})
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestAnthropicGeneratorJoinsTextBlocks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest","content":[{"type":"text","text":"Great "},{"type":"text","text":"job!"}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":3}}`))
	}))
	defer server.Close()

	gen, err := NewAnthropicGenerator(AnthropicConfig{APIKey: "key", BaseURL: server.URL, Logger: zerolog.Nop()})
	require.NoError(t, err)

	text, err := gen.Generate(context.Background(), "prompt", GenerationParams{Temperature: 0.5})
	require.NoError(t, err)
	require.Equal(t, "Great job!", text)
}

func TestAnthropicGeneratorClassifiesAuthErrors(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`))
	}))
	defer server.Close()

	gen, err := NewAnthropicGenerator(AnthropicConfig{APIKey: "bad", BaseURL: server.URL, Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "prompt", GenerationParams{})
	require.ErrorIs(t, err, ErrUnauthorized)
	require.Equal(t, 1, calls)
}

func TestGeminiGeneratorReturnsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Great job!\n"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	gen, err := NewGeminiGenerator(context.Background(), GeminiConfig{APIKey: "key", BaseURL: server.URL, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.Equal(t, "gemini-2.5-flash", gen.Model())

	text, err := gen.Generate(context.Background(), "prompt", GenerationParams{Temperature: 0.5, MaxOutputTokens: 500})
	require.NoError(t, err)
	require.Equal(t, "Great job!", text)
}

func TestGeminiGeneratorClassifiesStatusErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{name: "quota", status: http.StatusTooManyRequests, body: `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`, want: ErrQuotaExceeded},
		{name: "forbidden", status: http.StatusForbidden, body: `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`, want: ErrUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			gen, err := NewGeminiGenerator(context.Background(), GeminiConfig{APIKey: "key", BaseURL: server.URL, Logger: zerolog.Nop()})
			require.NoError(t, err)

			_, err = gen.Generate(context.Background(), "prompt", GenerationParams{Temperature: 0.5})
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.want))
			require.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestGeminiGeneratorRejectsEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	gen, err := NewGeminiGenerator(context.Background(), GeminiConfig{APIKey: "key", BaseURL: server.URL, Logger: zerolog.Nop()})
	require.NoError(t, err)

	_, err = gen.Generate(context.Background(), "prompt", GenerationParams{})
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestNewGeneratorRejectsUnknownProvider(t *testing.T) {
	_, err := NewGenerator(context.Background(), ProviderConfig{Provider: "cohere", APIKey: "x"})
	require.Error(t, err)

	_, err = NewGenerator(context.Background(), ProviderConfig{Provider: "openai"})
	require.Error(t, err, "missing api key must fail")
}
