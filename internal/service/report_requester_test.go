package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-weekly-report/pkg/ai"
)

type stubGenerator struct {
	calls   int
	prompts []string
	params  ai.GenerationParams
	reply   func(prompt string) (string, error)
}

func (g *stubGenerator) Generate(ctx context.Context, prompt string, params ai.GenerationParams) (string, error) {
	g.calls++
	g.prompts = append(g.prompts, prompt)
	g.params = params
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if g.reply == nil {
		return "Great job!", nil
	}
	return g.reply(prompt)
}

func (g *stubGenerator) Model() string {
	return "stub-model"
}

func sampleDigest() CompressedDigest {
	return CompressDigest(recentSubmissions(2), 3, false)
}

func TestReportRequesterSuccess(t *testing.T) {
	generator := &stubGenerator{reply: func(string) (string, error) { return "  Great job!\n", nil }}
	requester := NewReportRequester(generator, ai.GenerationParams{Temperature: 0.5, MaxOutputTokens: 500}, time.Second, zerolog.Nop())

	text, err := requester.Request(context.Background(), "alice", sampleDigest())
	require.NoError(t, err)
	require.Equal(t, "Great job!", text)
	require.Equal(t, 1, generator.calls)
	require.InDelta(t, 0.5, generator.params.Temperature, 0.0001)
	require.Equal(t, 500, generator.params.MaxOutputTokens)
	require.Contains(t, generator.prompts[0], "'alice'")
	require.Contains(t, generator.prompts[0], `"homework_id": "HW-1"`)
}

func TestReportRequesterSkipsEmptyDigest(t *testing.T) {
	generator := &stubGenerator{}
	requester := NewReportRequester(generator, ai.GenerationParams{}, 0, zerolog.Nop())

	_, err := requester.Request(context.Background(), "alice", CompressedDigest{})
	require.ErrorIs(t, err, ErrEmptyDigest)
	require.Zero(t, generator.calls)
}

func TestReportRequesterClassifiesFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		text string
		kind ReportFailureKind
	}{
		{name: "quota", err: fmt.Errorf("status 429: %w", ai.ErrQuotaExceeded), kind: ReportFailureQuota},
		{name: "auth", err: errors.Join(errors.New("bad key"), ai.ErrUnauthorized), kind: ReportFailureAuth},
		{name: "empty error", err: ai.ErrEmptyResponse, kind: ReportFailureEmpty},
		{name: "blank text", text: "   ", kind: ReportFailureEmpty},
		{name: "transport", err: errors.New("connection reset by peer"), kind: ReportFailureService},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			generator := &stubGenerator{reply: func(string) (string, error) { return tc.text, tc.err }}
			requester := NewReportRequester(generator, ai.GenerationParams{}, 0, zerolog.Nop())

			_, err := requester.Request(context.Background(), "alice", sampleDigest())
			require.Error(t, err)

			var failure *ReportFailure
			require.ErrorAs(t, err, &failure)
			require.Equal(t, tc.kind, failure.Kind)
			require.NotEmpty(t, failure.Error())
			require.Equal(t, 1, generator.calls)
		})
	}
}

func TestReportRequesterAppliesTimeout(t *testing.T) {
	generator := &stubGenerator{}
	generator.reply = func(string) (string, error) {
		time.Sleep(30 * time.Millisecond)
		return "", context.DeadlineExceeded
	}
	requester := NewReportRequester(generator, ai.GenerationParams{}, 10*time.Millisecond, zerolog.Nop())

	_, err := requester.Request(context.Background(), "alice", sampleDigest())

	var failure *ReportFailure
	require.ErrorAs(t, err, &failure)
	require.Equal(t, ReportFailureService, failure.Kind)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuildReportPromptSections(t *testing.T) {
	prompt, err := BuildReportPrompt("bob", sampleDigest())
	require.NoError(t, err)

	for _, fragment := range []string{
		"SmartLearners.ai",
		"'bob'",
		"Overall average score",
		"Correct / Partially-Correct / Unattempted",
		"Strong and weak concepts",
		"2 motivational sentences",
		"1 short note for parents",
		"friendly, encouraging, and concise",
	} {
		require.True(t, strings.Contains(prompt, fragment), "prompt should contain %q", fragment)
	}
	require.Less(t, strings.Index(prompt, "HW-1"), strings.Index(prompt, "HW-2"))
}
