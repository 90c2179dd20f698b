package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// CloudinaryConfig contains credentials required to talk to Cloudinary.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// CloudinaryUploader stores artifacts as raw Cloudinary assets.
type CloudinaryUploader struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// NewCloudinary constructs a Cloudinary uploader.
func NewCloudinary(cfg CloudinaryConfig, logger zerolog.Logger) (*CloudinaryUploader, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &CloudinaryUploader{
		client: cld,
		folder: cfg.Folder,
		logger: logger.With().Str("component", "cloudinary_uploader").Logger(),
	}, nil
}

// Upload sends the artifact to Cloudinary and returns a secure URL.
func (u *CloudinaryUploader) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	params := uploader.UploadParams{
		Folder:       strings.Trim(u.folder, "/"),
		PublicID:     buildPublicID(name),
		ResourceType: "raw",
	}

	result, err := u.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected artifact: %s", result.Error.Message)
	}

	u.logger.Info().Str("public_id", result.PublicID).Msg("artifact uploaded to cloudinary")

	return result.SecureURL, nil
}

// buildPublicID keeps the extension: raw assets are served under their public id.
func buildPublicID(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = fmt.Sprintf("report-%d", time.Now().Unix())
	}

	return base + ext
}
