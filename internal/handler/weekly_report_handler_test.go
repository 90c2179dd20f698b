package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-weekly-report/internal/dto"
	"github.com/noah-isme/gema-weekly-report/internal/handler"
	"github.com/noah-isme/gema-weekly-report/internal/middleware"
	"github.com/noah-isme/gema-weekly-report/internal/service"
)

type stubReportService struct {
	lastRequest   dto.WeeklyReportRequest
	correlationID string
	result        dto.WeeklyReportResult
	err           error
	students      []dto.StudentSummary
	latest        dto.ArtifactRecord
	preview       dto.StudentPreview
	artifactPath  string
}

func (s *stubReportService) Generate(ctx context.Context, req dto.WeeklyReportRequest) (dto.WeeklyReportResult, error) {
	s.lastRequest = req
	s.correlationID = middleware.CorrelationIDFromContext(ctx)
	if s.err != nil {
		return dto.WeeklyReportResult{}, s.err
	}
	return s.result, nil
}

func (s *stubReportService) ListStudents(_ context.Context, mobileNumber string) ([]dto.StudentSummary, error) {
	if s.err != nil {
		return nil, s.err
	}
	if mobileNumber == "" {
		return nil, service.ErrInvalidPhone
	}
	return s.students, nil
}

func (s *stubReportService) Latest(_ context.Context, _ string) (dto.ArtifactRecord, error) {
	if s.err != nil {
		return dto.ArtifactRecord{}, s.err
	}
	return s.latest, nil
}

func (s *stubReportService) Preview(_ context.Context, _ uint) (dto.StudentPreview, error) {
	if s.err != nil {
		return dto.StudentPreview{}, s.err
	}
	return s.preview, nil
}

func (s *stubReportService) ArtifactPath(name string) (string, error) {
	if s.artifactPath == "" || filepath.Base(s.artifactPath) != name {
		return "", service.ErrArtifactNotFound
	}
	return s.artifactPath, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newReportApp(svc service.WeeklyReportService) *fiber.App {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	h := handler.NewWeeklyReportHandler(svc, zerolog.New(io.Discard))
	h.Register(app.Group("/api/v1"), nil)
	app.Post("/generate_weekly_report", h.GenerateLegacy)
	return app
}

func postJSON(t *testing.T, app *fiber.App, path string, payload interface{}) (*http.Response, envelope) {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-ID", "corr-7")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp, decodeEnvelope(t, resp)
}

func decodeEnvelope(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var decoded envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return decoded
}

func sampleResult() dto.WeeklyReportResult {
	return dto.WeeklyReportResult{
		Status:            dto.ResultStatusSuccess,
		Message:           "Weekly reports generated for 1 student(s).",
		StudentsProcessed: []string{"alice"},
		ProcessedCount:    1,
		OutputFile:        "reports/weekly_reports_20250314_093000_abc123.txt",
		Format:            "text",
		GeneratedAt:       time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Reports: []dto.StudentReport{
			{StudentID: 1, Username: "alice", Status: dto.ReportStatusGenerated, Body: "Great job!"},
		},
	}
}

func TestWeeklyReportHandler_GenerateSuccess(t *testing.T) {
	svc := &stubReportService{result: sampleResult()}
	app := newReportApp(svc)

	homework := true
	resp, body := postJSON(t, app, "/api/v1/weekly-reports", dto.WeeklyReportRequest{MobileNumber: "9000961240", Homework: &homework})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.True(t, body.Success)
	require.Equal(t, "9000961240", svc.lastRequest.MobileNumber)
	require.Equal(t, "corr-7", svc.correlationID)

	var result dto.WeeklyReportResult
	require.NoError(t, json.Unmarshal(body.Data, &result))
	require.Equal(t, []string{"alice"}, result.StudentsProcessed)
	require.Equal(t, 1, result.ProcessedCount)
	require.Equal(t, "alice", result.Reports[0].Username)
}

func TestWeeklyReportHandler_LegacyRouteReturnsFlatBody(t *testing.T) {
	svc := &stubReportService{result: sampleResult()}
	app := newReportApp(svc)

	resp, body := postJSON(t, app, "/generate_weekly_report/", map[string]interface{}{"mobile_number": "9000961240", "homework": true})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var legacy dto.LegacyWeeklyReportResponse
	require.NoError(t, json.Unmarshal(body.Data, &legacy))
	require.Equal(t, "success", legacy.Status)
	require.Equal(t, []string{"alice"}, legacy.StudentsProcessed)
	require.Equal(t, "reports/weekly_reports_20250314_093000_abc123.txt", legacy.OutputFile)
}

func TestWeeklyReportHandler_NoDataIsSuccessful(t *testing.T) {
	svc := &stubReportService{result: dto.WeeklyReportResult{Status: dto.ResultStatusNoData, Message: "No homework data found for any student."}}
	app := newReportApp(svc)

	resp, body := postJSON(t, app, "/api/v1/weekly-reports", map[string]string{"mobile_number": "9000961240"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var result dto.WeeklyReportResult
	require.NoError(t, json.Unmarshal(body.Data, &result))
	require.Equal(t, "no_data", result.Status)
	require.Empty(t, result.OutputFile)
}

func TestWeeklyReportHandler_GenerateErrors(t *testing.T) {
	validationErr := validator.New().Struct(dto.WeeklyReportRequest{})
	require.Error(t, validationErr)

	cases := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{name: "validation", err: validationErr, status: fiber.StatusBadRequest, message: "mobile_number is required"},
		{name: "no students", err: service.ErrNoStudentsFound, status: fiber.StatusNotFound, message: "No students found for this mobile number."},
		{name: "internal", err: errors.New("database is down"), status: fiber.StatusInternalServerError, message: "failed to generate weekly reports"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newReportApp(&stubReportService{err: tc.err})

			resp, body := postJSON(t, app, "/api/v1/weekly-reports", map[string]string{"mobile_number": "9000961240"})
			require.Equal(t, tc.status, resp.StatusCode)
			require.False(t, body.Success)
			require.Equal(t, tc.message, body.Message)
		})
	}
}

func TestWeeklyReportHandler_InvalidJSON(t *testing.T) {
	app := newReportApp(&stubReportService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/weekly-reports", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWeeklyReportHandler_ListStudents(t *testing.T) {
	svc := &stubReportService{students: []dto.StudentSummary{{ID: 1, Username: "alice", Submitted: 2}}}
	app := newReportApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/students?mobile_number=9000961240", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decodeEnvelope(t, resp)
	var students []dto.StudentSummary
	require.NoError(t, json.Unmarshal(body.Data, &students))
	require.Len(t, students, 1)
	require.Equal(t, 2, students[0].Submitted)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/students", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestWeeklyReportHandler_LatestNotFound(t *testing.T) {
	app := newReportApp(&stubReportService{err: service.ErrArtifactNotFound})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weekly-reports/latest?mobile_number=9000961240", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestWeeklyReportHandler_Preview(t *testing.T) {
	app := newReportApp(&stubReportService{preview: dto.StudentPreview{StudentID: 1, Username: "alice", Prompt: "prompt"}})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/students/1/preview", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/students/abc/preview", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	app = newReportApp(&stubReportService{err: service.ErrStudentNotFound})
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/students/9/preview", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestWeeklyReportHandler_Download(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "weekly_reports_20250314_093000_abc123.txt")
	require.NoError(t, os.WriteFile(path, []byte("===== alice =====\nGreat job!\n"), 0o644))

	app := newReportApp(&stubReportService{artifactPath: path})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weekly-reports/files/weekly_reports_20250314_093000_abc123.txt", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(content), "Great job!")
	require.Contains(t, resp.Header.Get("Content-Disposition"), "weekly_reports_20250314_093000_abc123.txt")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/weekly-reports/files/other.txt", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
