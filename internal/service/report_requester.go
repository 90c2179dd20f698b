package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-weekly-report/pkg/ai"
)

// ErrEmptyDigest indicates a report was requested for a student without data.
var ErrEmptyDigest = errors.New("digest is empty")

// ReportFailureKind classifies why a report could not be generated.
type ReportFailureKind string

const (
	ReportFailureService ReportFailureKind = "service"
	ReportFailureQuota   ReportFailureKind = "quota"
	ReportFailureAuth    ReportFailureKind = "auth"
	ReportFailureEmpty   ReportFailureKind = "empty"
)

// ReportFailure is the single error type returned by the requester.
type ReportFailure struct {
	Kind    ReportFailureKind
	Message string
	Err     error
}

func (f *ReportFailure) Error() string {
	return f.Message
}

func (f *ReportFailure) Unwrap() error {
	return f.Err
}

// ReportRequester produces the prose report for one student.
type ReportRequester interface {
	Request(ctx context.Context, studentName string, digest CompressedDigest) (string, error)
}

type reportRequester struct {
	generator ai.Generator
	params    ai.GenerationParams
	timeout   time.Duration
	logger    zerolog.Logger
}

// NewReportRequester wraps a generator with the weekly report prompt. A zero
// timeout leaves deadlines to the caller's context.
func NewReportRequester(generator ai.Generator, params ai.GenerationParams, timeout time.Duration, logger zerolog.Logger) ReportRequester {
	return &reportRequester{
		generator: generator,
		params:    params,
		timeout:   timeout,
		logger:    logger.With().Str("component", "report_requester").Logger(),
	}
}

// Request makes exactly one generation attempt.
func (r *reportRequester) Request(ctx context.Context, studentName string, digest CompressedDigest) (string, error) {
	if digest.IsEmpty() {
		return "", ErrEmptyDigest
	}

	prompt, err := BuildReportPrompt(studentName, digest)
	if err != nil {
		return "", fmt.Errorf("build report prompt: %w", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	text, err := r.generator.Generate(ctx, prompt, r.params)
	if err != nil {
		failure := classifyReportFailure(err)
		r.logger.Warn().Err(err).
			Str("student", studentName).
			Str("failure_kind", string(failure.Kind)).
			Str("model", r.generator.Model()).
			Msg("report generation failed")
		return "", failure
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &ReportFailure{Kind: ReportFailureEmpty, Message: "the report service returned an empty response", Err: ai.ErrEmptyResponse}
	}

	return text, nil
}

func classifyReportFailure(err error) *ReportFailure {
	switch {
	case errors.Is(err, ai.ErrQuotaExceeded):
		return &ReportFailure{Kind: ReportFailureQuota, Message: "the report service quota is exhausted, try again later", Err: err}
	case errors.Is(err, ai.ErrUnauthorized):
		return &ReportFailure{Kind: ReportFailureAuth, Message: "the report service rejected its credentials", Err: err}
	case errors.Is(err, ai.ErrEmptyResponse):
		return &ReportFailure{Kind: ReportFailureEmpty, Message: "the report service returned an empty response", Err: err}
	case errors.Is(err, context.DeadlineExceeded):
		return &ReportFailure{Kind: ReportFailureService, Message: "the report service timed out", Err: err}
	default:
		return &ReportFailure{Kind: ReportFailureService, Message: err.Error(), Err: err}
	}
}

// BuildReportPrompt renders the instruction for one student's weekly report.
func BuildReportPrompt(studentName string, digest CompressedDigest) (string, error) {
	payload, err := json.MarshalIndent(digest, "", "  ")
	if err != nil {
		return "", err
	}

	builder := strings.Builder{}
	builder.WriteString("You are an educational AI assistant for SmartLearners.ai.\n")
	builder.WriteString("Generate a short weekly performance report for the student '")
	builder.WriteString(studentName)
	builder.WriteString("' based on these recent homework summaries.\n\n")
	builder.WriteString("Include:\n")
	builder.WriteString("- Overall average score percentage and completion\n")
	builder.WriteString("- Number of Correct / Partially-Correct / Unattempted answers\n")
	builder.WriteString("- Strong and weak concepts\n")
	builder.WriteString("- 2 motivational sentences for the student\n")
	builder.WriteString("- 1 short note for parents\n\n")
	builder.WriteString("Keep it friendly, encouraging, and concise.\n\n")
	builder.WriteString("Summarized data (keep analysis high-level, do not restate JSON):\n")
	builder.Write(payload)
	builder.WriteString("\n")
	return builder.String(), nil
}
