package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// Uploader publishes a finished artifact and returns where it can be fetched.
type Uploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// UploadFile reads a local artifact and hands it to uploader under its base name.
func UploadFile(ctx context.Context, uploader Uploader, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read artifact: %w", err)
	}

	return uploader.Upload(ctx, filepath.Base(path), bytes.NewReader(data))
}

// detectContentType sniffs the buffered payload. Report text has no magic
// bytes, so the extension wins when detection falls back to octet-stream.
func detectContentType(name string, data []byte) string {
	mime := mimetype.Detect(data)
	if mime.Is("application/octet-stream") {
		switch filepath.Ext(name) {
		case ".pdf":
			return "application/pdf"
		case ".txt":
			return "text/plain; charset=utf-8"
		}
	}
	return mime.String()
}
