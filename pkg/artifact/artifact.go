package artifact

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
)

// Format is the on-disk representation of a report batch.
type Format string

const (
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
)

// FilePrefix starts every artifact file name.
const FilePrefix = "weekly_reports_"

// ErrUnsupportedFormat indicates the requested format has no writer.
var ErrUnsupportedFormat = errors.New("unsupported artifact format")

// Section is one student's part of a batch.
type Section struct {
	Heading string
	Body    string
}

// Batch is everything written for one invocation.
type Batch struct {
	Title       string
	GeneratedAt time.Time
	Sections    []Section
}

// Writer persists a batch and returns the path of the file it created.
type Writer interface {
	Write(ctx context.Context, batch Batch) (string, error)
	Format() Format
}

// ParseFormat validates a user supplied format, defaulting to text.
func ParseFormat(value string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormatText, "txt":
		return FormatText, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, value)
	}
}

// Extension returns the file extension including the dot.
func (f Format) Extension() string {
	if f == FormatPDF {
		return ".pdf"
	}
	return ".txt"
}

// NewWriter returns the writer for format, creating dir when needed.
func NewWriter(format Format, dir string, logger zerolog.Logger) (Writer, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	switch format {
	case FormatText:
		return &textWriter{dir: dir, logger: logger.With().Str("component", "text_artifact_writer").Logger()}, nil
	case FormatPDF:
		return &pdfWriter{dir: dir, logger: logger.With().Str("component", "pdf_artifact_writer").Logger()}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

// FileName builds weekly_reports_<YYYYmmdd_HHMMSS>_<suffix><ext>. The random
// suffix keeps names unique for invocations within the same second.
func FileName(format Format, generatedAt time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("%s%s_%s%s", FilePrefix, generatedAt.Format("20060102_150405"), suffix, format.Extension())
}

// IsArtifactName reports whether name looks like a file produced by FileName.
func IsArtifactName(name string) bool {
	if name == "" || filepath.Base(name) != name {
		return false
	}
	if !strings.HasPrefix(name, FilePrefix) {
		return false
	}
	ext := filepath.Ext(name)
	return ext == ".txt" || ext == ".pdf"
}

var textPolicy = bluemonday.StrictPolicy()

// CleanReportText strips any HTML the model produced and normalises newlines.
func CleanReportText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	cleaned := html.UnescapeString(textPolicy.Sanitize(text))
	return strings.TrimSpace(cleaned)
}

// createExclusive opens a new file and fails if it already exists; artifacts
// are write once.
func createExclusive(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

// writeFile creates path and fills it. When filling or closing fails the file
// is removed so a partial artifact is never served.
func writeFile(path string, fill func(io.Writer) error) (err error) {
	file, err := createExclusive(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil && closeErr != nil {
			err = closeErr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	return fill(file)
}
