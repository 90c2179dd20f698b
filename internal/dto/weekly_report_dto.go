package dto

import "time"

// Section statuses.
const (
	ReportStatusGenerated = "generated"
	ReportStatusFailed    = "failed"
	ReportStatusNoData    = "no_data"
)

// Invocation statuses.
const (
	ResultStatusSuccess = "success"
	ResultStatusNoData  = "no_data"
)

// WeeklyReportRequest is the body accepted by the generation endpoints.
type WeeklyReportRequest struct {
	MobileNumber string `json:"mobile_number" validate:"required,max=32"`
	// Homework is accepted for compatibility and has no effect.
	Homework *bool  `json:"homework,omitempty"`
	Format   string `json:"format,omitempty" validate:"omitempty,oneof=text pdf txt"`
}

// WeeklyReportResult summarises one invocation.
type WeeklyReportResult struct {
	Status            string          `json:"status"`
	Message           string          `json:"message"`
	StudentsProcessed []string        `json:"students_processed"`
	ProcessedCount    int             `json:"processed_count"`
	OutputFile        string          `json:"output_file,omitempty"`
	ArtifactURL       string          `json:"artifact_url,omitempty"`
	Format            string          `json:"format,omitempty"`
	GeneratedAt       time.Time       `json:"generated_at"`
	Reports           []StudentReport `json:"reports"`
}

// StudentReport is one student's slot in the batch, in resolver order.
type StudentReport struct {
	StudentID   uint   `json:"student_id"`
	Username    string `json:"username"`
	FullName    string `json:"full_name,omitempty"`
	Status      string `json:"status"`
	Submissions int    `json:"submissions"`
	Body        string `json:"body"`
	Error       string `json:"error,omitempty"`
}

// LegacyWeeklyReportResponse mirrors the flat body of the original endpoint.
type LegacyWeeklyReportResponse struct {
	Status            string `json:"status"`
	Message           string `json:"message"`
	StudentsProcessed []string `json:"students_processed"`
	OutputFile        string   `json:"output_file,omitempty"`
}

// NewLegacyWeeklyReportResponse flattens a result into the legacy body.
// students_processed is always a list, empty when nobody had data.
func NewLegacyWeeklyReportResponse(result WeeklyReportResult) LegacyWeeklyReportResponse {
	processed := result.StudentsProcessed
	if processed == nil {
		processed = []string{}
	}
	return LegacyWeeklyReportResponse{
		Status:            result.Status,
		Message:           result.Message,
		StudentsProcessed: processed,
		OutputFile:        result.OutputFile,
	}
}

// StudentSummary lists a student registered under a phone number.
type StudentSummary struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	FullName  string `json:"full_name,omitempty"`
	ClassID   *uint  `json:"class_id,omitempty"`
	Section   string `json:"section,omitempty"`
	Submitted int    `json:"recent_submissions"`
}

// ArtifactRecord describes the latest artifact produced for a phone number.
type ArtifactRecord struct {
	MobileNumber      string    `json:"mobile_number"`
	OutputFile        string    `json:"output_file"`
	ArtifactURL       string    `json:"artifact_url,omitempty"`
	Format            string    `json:"format"`
	StudentsProcessed []string  `json:"students_processed"`
	GeneratedAt       time.Time `json:"generated_at"`
}

// WeeklyReportEvent is published after an artifact is written.
type WeeklyReportEvent struct {
	EventID       string              `json:"event_id"`
	CorrelationID string              `json:"correlation_id,omitempty"`
	Artifact      ArtifactRecord      `json:"artifact"`
	Students      []StudentEventEntry `json:"students"`
	PublishedAt   time.Time           `json:"published_at"`
}

// StudentEventEntry is the per student part of a report event.
type StudentEventEntry struct {
	StudentID uint   `json:"student_id"`
	Username  string `json:"username"`
	Status    string `json:"status"`
}

// StudentPreview shows what a student's report would be built from.
type StudentPreview struct {
	StudentID   uint        `json:"student_id"`
	Username    string      `json:"username"`
	Submissions int         `json:"submissions"`
	Digest      interface{} `json:"digest"`
	Prompt      string      `json:"prompt,omitempty"`
}
