package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-weekly-report/internal/dto"
	"github.com/noah-isme/gema-weekly-report/internal/middleware"
	"github.com/noah-isme/gema-weekly-report/internal/models"
	"github.com/noah-isme/gema-weekly-report/internal/observability"
	"github.com/noah-isme/gema-weekly-report/internal/repository"
	"github.com/noah-isme/gema-weekly-report/pkg/artifact"
	"github.com/noah-isme/gema-weekly-report/pkg/storage"
)

var (
	// ErrNoStudentsFound indicates no student is registered under the phone number.
	ErrNoStudentsFound = errors.New("no students found for this mobile number")
	// ErrInvalidPhone indicates a blank phone number on a lookup.
	ErrInvalidPhone = errors.New("mobile number is required")
	// ErrStudentNotFound indicates the requested student id does not exist.
	ErrStudentNotFound = errors.New("student not found")
)

// NoDataPlaceholder is the section body for a student without submissions.
const NoDataPlaceholder = "No recent homework data."

// WeeklyReportService builds weekly report batches for every student behind a phone number.
type WeeklyReportService interface {
	Generate(ctx context.Context, req dto.WeeklyReportRequest) (dto.WeeklyReportResult, error)
	ListStudents(ctx context.Context, mobileNumber string) ([]dto.StudentSummary, error)
	Latest(ctx context.Context, mobileNumber string) (dto.ArtifactRecord, error)
	Preview(ctx context.Context, studentID uint) (dto.StudentPreview, error)
	ArtifactPath(name string) (string, error)
}

// WeeklyReportOptions tunes a report service.
type WeeklyReportOptions struct {
	Title           string
	OutputDir       string
	Format          artifact.Format
	SubmissionLimit int
	DigestSize      int
	IncludeConcepts bool
	Parallelism     int
}

// WeeklyReportDeps are the collaborators of a report service. Uploader,
// Registry and Events are optional.
type WeeklyReportDeps struct {
	Students    repository.StudentRepository
	Submissions repository.HomeworkSubmissionRepository
	Requester   ReportRequester
	Uploader    storage.Uploader
	Registry    ArtifactRegistry
	Events      ReportEventPublisher
}

type weeklyReportService struct {
	deps      WeeklyReportDeps
	options   WeeklyReportOptions
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewWeeklyReportService constructs the report aggregator.
func NewWeeklyReportService(deps WeeklyReportDeps, options WeeklyReportOptions, validate *validator.Validate, logger zerolog.Logger) WeeklyReportService {
	if validate == nil {
		validate = validator.New()
	}
	if options.Title == "" {
		options.Title = "SmartLearners.ai"
	}
	if options.OutputDir == "" {
		options.OutputDir = "reports"
	}
	if options.Format == "" {
		options.Format = artifact.FormatText
	}
	if options.SubmissionLimit <= 0 {
		options.SubmissionLimit = repository.DefaultSubmissionLimit
	}
	if options.DigestSize <= 0 {
		options.DigestSize = DefaultDigestSize
	}
	if options.Parallelism <= 0 {
		options.Parallelism = 1
	}

	return &weeklyReportService{
		deps:      deps,
		options:   options,
		validator: validate,
		logger:    logger.With().Str("component", "weekly_report_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/gema-weekly-report/internal/service/weekly_report"),
		now:       time.Now,
	}
}

func (s *weeklyReportService) Generate(ctx context.Context, req dto.WeeklyReportRequest) (dto.WeeklyReportResult, error) {
	// The mobile number is matched exactly as sent; only the format is normalised.
	req.Format = strings.ToLower(strings.TrimSpace(req.Format))
	if err := s.validator.Struct(req); err != nil {
		return dto.WeeklyReportResult{}, err
	}

	format := s.options.Format
	if req.Format != "" {
		parsed, err := artifact.ParseFormat(req.Format)
		if err != nil {
			return dto.WeeklyReportResult{}, err
		}
		format = parsed
	}

	start := time.Now()
	logger := s.requestLogger(ctx)

	spanCtx, span := s.tracer.Start(ctx, "weekly_reports.generate", trace.WithAttributes(
		attribute.String("report.format", string(format)),
		attribute.Int("report.parallelism", s.options.Parallelism),
	))
	defer span.End()

	students, err := s.deps.Students.ListByPhone(spanCtx, req.MobileNumber)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve students")
		return dto.WeeklyReportResult{}, fmt.Errorf("resolve students: %w", err)
	}
	if len(students) == 0 {
		observability.ReportBatches().WithLabelValues("no_students", string(format)).Inc()
		logger.Info().Msg("no students registered for mobile number")
		return dto.WeeklyReportResult{}, ErrNoStudentsFound
	}
	span.SetAttributes(attribute.Int("report.students", len(students)))

	slots := s.buildSlots(spanCtx, students)

	result := dto.WeeklyReportResult{
		Status:            dto.ResultStatusSuccess,
		StudentsProcessed: make([]string, 0, len(slots)),
		Format:            string(format),
		GeneratedAt:       s.now(),
		Reports:           slots,
	}
	for _, slot := range slots {
		observability.StudentReports().WithLabelValues(slot.Status).Inc()
		if slot.Status != dto.ReportStatusNoData {
			result.StudentsProcessed = append(result.StudentsProcessed, slot.Username)
		}
	}
	result.ProcessedCount = len(result.StudentsProcessed)

	if result.ProcessedCount == 0 {
		result.Status = dto.ResultStatusNoData
		result.Message = "No homework data found for any student."
		observability.ReportBatches().WithLabelValues(dto.ResultStatusNoData, string(format)).Inc()
		logger.Info().Int("students", len(students)).Msg("no homework data for any student")
		return result, nil
	}

	path, err := s.writeArtifact(spanCtx, format, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "write artifact")
		observability.ReportBatches().WithLabelValues("error", string(format)).Inc()
		return dto.WeeklyReportResult{}, err
	}
	result.OutputFile = path
	result.Message = fmt.Sprintf("Weekly reports generated for %d student(s).", result.ProcessedCount)

	if s.deps.Uploader != nil {
		url, uploadErr := storage.UploadFile(spanCtx, s.deps.Uploader, path)
		if uploadErr != nil {
			logger.Warn().Err(uploadErr).Str("output_file", path).Msg("failed to upload artifact")
		} else {
			result.ArtifactURL = url
		}
	}

	record := dto.ArtifactRecord{
		MobileNumber:      req.MobileNumber,
		OutputFile:        filepath.Base(path),
		ArtifactURL:       result.ArtifactURL,
		Format:            string(format),
		StudentsProcessed: result.StudentsProcessed,
		GeneratedAt:       result.GeneratedAt,
	}
	s.announce(spanCtx, record, slots)

	duration := time.Since(start)
	observability.ReportBatches().WithLabelValues(dto.ResultStatusSuccess, string(format)).Inc()
	observability.ReportBatchDuration().WithLabelValues(string(format)).Observe(duration.Seconds())
	logger.Info().
		Int("students", len(students)).
		Strs("students_processed", result.StudentsProcessed).
		Str("output_file", path).
		Dur("duration", duration).
		Msg("weekly reports generated")

	return result, nil
}

// buildSlots fills one slot per student in resolver order. Students are
// independent: a failure is recorded in its own slot and siblings continue.
func (s *weeklyReportService) buildSlots(ctx context.Context, students []models.Student) []dto.StudentReport {
	slots := make([]dto.StudentReport, len(students))

	var group errgroup.Group
	group.SetLimit(s.options.Parallelism)
	for i := range students {
		i := i
		group.Go(func() error {
			slots[i] = s.buildSlot(ctx, students[i])
			return nil
		})
	}
	_ = group.Wait()

	return slots
}

func (s *weeklyReportService) buildSlot(ctx context.Context, student models.Student) dto.StudentReport {
	name := student.DisplayName()
	slot := dto.StudentReport{
		StudentID: student.ID,
		Username:  name,
		FullName:  student.FullName,
	}
	logger := s.requestLogger(ctx).With().Uint("student_id", student.ID).Logger()

	digest, count, err := s.digestFor(ctx, student)
	if err != nil {
		logger.Error().Err(err).Msg("failed to load submissions")
		slot.Status = dto.ReportStatusFailed
		slot.Error = err.Error()
		slot.Body = fmt.Sprintf("Error generating report for %s: %s", name, err.Error())
		return slot
	}
	slot.Submissions = count

	if digest.IsEmpty() {
		slot.Status = dto.ReportStatusNoData
		slot.Body = NoDataPlaceholder
		return slot
	}

	text, err := s.deps.Requester.Request(ctx, name, digest)
	if err != nil {
		slot.Status = dto.ReportStatusFailed
		slot.Error = err.Error()
		slot.Body = fmt.Sprintf("Error generating report for %s: %s", name, err.Error())
		return slot
	}

	slot.Status = dto.ReportStatusGenerated
	slot.Body = text
	return slot
}

func (s *weeklyReportService) digestFor(ctx context.Context, student models.Student) (CompressedDigest, int, error) {
	rows, err := s.deps.Submissions.ListRecentForStudent(ctx, student, s.options.SubmissionLimit)
	if err != nil {
		return nil, 0, fmt.Errorf("load submissions: %w", err)
	}

	normalized := NormalizeSubmissions(rows)
	return CompressDigest(normalized, s.options.DigestSize, s.options.IncludeConcepts), len(rows), nil
}

func (s *weeklyReportService) writeArtifact(ctx context.Context, format artifact.Format, result dto.WeeklyReportResult) (string, error) {
	writer, err := artifact.NewWriter(format, s.options.OutputDir, s.logger)
	if err != nil {
		return "", fmt.Errorf("prepare artifact writer: %w", err)
	}

	batch := artifact.Batch{
		Title:       s.options.Title,
		GeneratedAt: result.GeneratedAt,
		Sections:    make([]artifact.Section, 0, len(result.Reports)),
	}
	for _, report := range result.Reports {
		batch.Sections = append(batch.Sections, artifact.Section{Heading: report.Username, Body: report.Body})
	}

	path, err := writer.Write(ctx, batch)
	if err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

// announce records the artifact and publishes an event. Both are best effort:
// the artifact already exists on disk.
func (s *weeklyReportService) announce(ctx context.Context, record dto.ArtifactRecord, slots []dto.StudentReport) {
	logger := s.requestLogger(ctx)

	if s.deps.Registry != nil {
		if err := s.deps.Registry.Record(ctx, record); err != nil {
			logger.Warn().Err(err).Msg("failed to record latest artifact")
		}
	}

	if s.deps.Events == nil {
		return
	}

	event := dto.WeeklyReportEvent{
		EventID:       uuid.NewString(),
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
		Artifact:      record,
		Students:      make([]dto.StudentEventEntry, 0, len(slots)),
		PublishedAt:   s.now().UTC(),
	}
	for _, slot := range slots {
		event.Students = append(event.Students, dto.StudentEventEntry{
			StudentID: slot.StudentID,
			Username:  slot.Username,
			Status:    slot.Status,
		})
	}
	if err := s.deps.Events.PublishGenerated(ctx, event); err != nil {
		logger.Warn().Err(err).Msg("failed to publish report event")
	}
}

func (s *weeklyReportService) ListStudents(ctx context.Context, mobileNumber string) ([]dto.StudentSummary, error) {
	if mobileNumber == "" {
		return nil, ErrInvalidPhone
	}

	students, err := s.deps.Students.ListByPhone(ctx, mobileNumber)
	if err != nil {
		return nil, fmt.Errorf("resolve students: %w", err)
	}
	if len(students) == 0 {
		return nil, ErrNoStudentsFound
	}

	summaries := make([]dto.StudentSummary, 0, len(students))
	for _, student := range students {
		rows, err := s.deps.Submissions.ListRecentForStudent(ctx, student, s.options.SubmissionLimit)
		if err != nil {
			return nil, fmt.Errorf("load submissions: %w", err)
		}
		summaries = append(summaries, dto.StudentSummary{
			ID:        student.ID,
			Username:  student.DisplayName(),
			FullName:  student.FullName,
			ClassID:   student.ClassNameID,
			Section:   student.Section,
			Submitted: len(rows),
		})
	}
	return summaries, nil
}

func (s *weeklyReportService) Latest(ctx context.Context, mobileNumber string) (dto.ArtifactRecord, error) {
	if mobileNumber == "" {
		return dto.ArtifactRecord{}, ErrInvalidPhone
	}
	if s.deps.Registry == nil {
		return dto.ArtifactRecord{}, ErrArtifactNotFound
	}
	return s.deps.Registry.Latest(ctx, mobileNumber)
}

// Preview shows the digest and prompt a student's report would be built from,
// without calling the report service.
func (s *weeklyReportService) Preview(ctx context.Context, studentID uint) (dto.StudentPreview, error) {
	student, err := s.deps.Students.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.StudentPreview{}, ErrStudentNotFound
		}
		return dto.StudentPreview{}, fmt.Errorf("load student: %w", err)
	}

	digest, count, err := s.digestFor(ctx, student)
	if err != nil {
		return dto.StudentPreview{}, err
	}

	preview := dto.StudentPreview{
		StudentID:   student.ID,
		Username:    student.DisplayName(),
		Submissions: count,
		Digest:      digest,
	}
	if !digest.IsEmpty() {
		prompt, err := BuildReportPrompt(student.DisplayName(), digest)
		if err != nil {
			return dto.StudentPreview{}, fmt.Errorf("build report prompt: %w", err)
		}
		preview.Prompt = prompt
	}
	return preview, nil
}

// ArtifactPath resolves a file name from the output directory. Only names
// produced by this service are served.
func (s *weeklyReportService) ArtifactPath(name string) (string, error) {
	if !artifact.IsArtifactName(name) {
		return "", ErrArtifactNotFound
	}

	path := filepath.Join(s.options.OutputDir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", ErrArtifactNotFound
	}
	return path, nil
}

func (s *weeklyReportService) requestLogger(ctx context.Context) zerolog.Logger {
	if id := middleware.CorrelationIDFromContext(ctx); id != "" {
		return s.logger.With().Str("correlation_id", id).Logger()
	}
	return s.logger
}
