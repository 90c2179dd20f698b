package artifact

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func sampleBatch() Batch {
	return Batch{
		Title:       "SmartLearners.ai",
		GeneratedAt: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Sections: []Section{
			{Heading: "alice", Body: "Great job!\r\n\r\nKeep **practising** fractions."},
			{Heading: "bob", Body: "No recent homework data."},
		},
	}
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatText, format)

	format, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	require.Equal(t, FormatPDF, format)

	_, err = ParseFormat("docx")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestFileNameIsUniqueWithinSecond(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	first := FileName(FormatText, at)
	second := FileName(FormatText, at)

	require.NotEqual(t, first, second)
	require.True(t, strings.HasPrefix(first, "weekly_reports_20250314_093000_"))
	require.Equal(t, ".txt", filepath.Ext(first))
	require.True(t, IsArtifactName(first))
	require.Equal(t, ".pdf", filepath.Ext(FileName(FormatPDF, at)))
}

func TestIsArtifactNameRejectsTraversal(t *testing.T) {
	require.False(t, IsArtifactName(""))
	require.False(t, IsArtifactName("../weekly_reports_1.txt"))
	require.False(t, IsArtifactName("reports/weekly_reports_1.txt"))
	require.False(t, IsArtifactName("notes.txt"))
	require.False(t, IsArtifactName("weekly_reports_1.exe"))
}

func TestCleanReportText(t *testing.T) {
	require.Equal(t, "Hello\n\nWorld", CleanReportText("  <p>Hello</p>\r\n\r\nWorld "))
	require.Equal(t, "Tom & Jerry scored < 5", CleanReportText("Tom & Jerry scored < 5"))
}

func TestTextWriterWritesSectionsInOrder(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(FormatText, dir, zerolog.Nop())
	require.NoError(t, err)
	require.Equal(t, FormatText, writer.Format())

	path, err := writer.Write(context.Background(), sampleBatch())
	require.NoError(t, err)
	require.Equal(t, dir, filepath.Dir(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(content)
	alice := strings.Index(text, "===== alice =====")
	bob := strings.Index(text, "===== bob =====")
	require.GreaterOrEqual(t, alice, 0)
	require.Greater(t, bob, alice)
	require.Contains(t, text, "Great job!\n\nKeep **practising** fractions.")
	require.Contains(t, text, "No recent homework data.")
	require.NotContains(t, text, "\r")
}

func TestPDFWriterProducesDocument(t *testing.T) {
	dir := t.TempDir()
	writer, err := NewWriter(FormatPDF, dir, zerolog.Nop())
	require.NoError(t, err)

	batch := sampleBatch()
	batch.Sections = append(batch.Sections, Section{
		Heading: "chandra",
		Body:    "## Summary\n\n- strong in *algebra*\n- needs work on `geometry`\n\nWell done 🎉\nSee you next week.",
	})

	path, err := writer.Write(context.Background(), batch)
	require.NoError(t, err)
	require.Equal(t, ".pdf", filepath.Ext(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(content), "%PDF"))
}

func TestWriterHonoursCancelledContext(t *testing.T) {
	writer, err := NewWriter(FormatText, t.TempDir(), zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = writer.Write(ctx, sampleBatch())
	require.ErrorIs(t, err, context.Canceled)
}

func TestWriteFileRemovesPartialArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weekly_reports_20250314_093000_0badf00d.txt")
	diskFull := errors.New("no space left on device")

	err := writeFile(path, func(out io.Writer) error {
		if _, err := io.WriteString(out, "===== alice =====\nGreat"); err != nil {
			return err
		}
		return diskFull
	})
	require.ErrorIs(t, err, diskFull)
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestWriteFileKeepsExistingArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weekly_reports_20250314_093000_0badf00d.txt")
	require.NoError(t, writeFile(path, func(out io.Writer) error {
		_, err := io.WriteString(out, "first")
		return err
	}))

	err := writeFile(path, func(out io.Writer) error {
		t.Fatal("fill must not run when the file already exists")
		return nil
	})
	require.Error(t, err)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "first", string(content))
}

func TestLatinOnlyDropsUnencodableRunes(t *testing.T) {
	require.Equal(t, "Well done !", latinOnly("Well done 🎉!"))
	require.Equal(t, "café – “ok”", latinOnly("café – “ok”"))
}

func TestNewWriterRejectsUnknownFormat(t *testing.T) {
	_, err := NewWriter(Format("docx"), t.TempDir(), zerolog.Nop())
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}
