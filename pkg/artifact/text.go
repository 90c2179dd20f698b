package artifact

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/rs/zerolog"
)

type textWriter struct {
	dir    string
	logger zerolog.Logger
}

func (w *textWriter) Format() Format {
	return FormatText
}

func (w *textWriter) Write(ctx context.Context, batch Batch) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := filepath.Join(w.dir, FileName(FormatText, batch.GeneratedAt))
	err := writeFile(path, func(out io.Writer) error {
		buf := bufio.NewWriter(out)
		for _, section := range batch.Sections {
			fmt.Fprintf(buf, "\n===== %s =====\n", section.Heading)
			fmt.Fprintf(buf, "%s\n", CleanReportText(section.Body))
		}
		return buf.Flush()
	})
	if err != nil {
		return "", fmt.Errorf("write text artifact: %w", err)
	}

	w.logger.Info().Str("path", path).Int("sections", len(batch.Sections)).Msg("text artifact written")
	return path, nil
}
