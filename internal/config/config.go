package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the weekly report service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	DatabaseURL string
	RedisURL    string
	NATSURL     string
	NATSSubject string

	AIProvider        string
	AIModel           string
	AITemperature     float32
	AIMaxOutputTokens int
	AITimeout         time.Duration
	GeminiAPIKey      string
	OpenAIAPIKey      string
	AnthropicAPIKey   string

	ReportOutputDir       string
	ReportFormat          string
	ReportSubmissionLimit int
	ReportDigestSize      int
	ReportIncludeConcepts bool
	ReportParallelism     int
	ReportRegistryTTL     time.Duration

	StorageDriver          string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	MinioEndpoint          string
	MinioAccessKey         string
	MinioSecretKey         string
	MinioBucket            string
	MinioRegion            string
	MinioUseSSL            bool

	RateLimitMax    int
	RateLimitWindow time.Duration
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "SmartLearners Weekly Reports")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("nats.subject", "reports.weekly.generated")
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.temperature", 0.5)
	v.SetDefault("ai.max_output_tokens", 500)
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("reports.output_dir", "reports")
	v.SetDefault("reports.format", "text")
	v.SetDefault("reports.submission_limit", 5)
	v.SetDefault("reports.digest_size", 3)
	v.SetDefault("reports.include_concepts", false)
	v.SetDefault("reports.parallelism", 1)
	v.SetDefault("reports.registry_ttl", "168h")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("cloudinary.folder", "smartlearners/weekly-reports")
	v.SetDefault("minio.bucket", "weekly-reports")
	v.SetDefault("rate_limit.max", 10)
	v.SetDefault("rate_limit.window", "1m")

	aiTimeout, err := parseDuration(v, "ai.timeout", "60s")
	if err != nil {
		return Config{}, fmt.Errorf("invalid ai timeout: %w", err)
	}

	registryTTL, err := parseDuration(v, "reports.registry_ttl", "168h")
	if err != nil {
		return Config{}, fmt.Errorf("invalid report registry ttl: %w", err)
	}

	rateWindow, err := parseDuration(v, "rate_limit.window", "1m")
	if err != nil {
		return Config{}, fmt.Errorf("invalid rate limit window: %w", err)
	}

	cfg := Config{
		AppName:     v.GetString("app.name"),
		AppEnv:      v.GetString("app.env"),
		AppPort:     v.GetString("app.port"),
		DatabaseURL: v.GetString("database.url"),
		RedisURL:    v.GetString("redis.url"),
		NATSURL:     v.GetString("nats.url"),
		NATSSubject: v.GetString("nats.subject"),

		AIProvider:        strings.ToLower(v.GetString("ai.provider")),
		AIModel:           v.GetString("ai.model"),
		AITemperature:     float32(v.GetFloat64("ai.temperature")),
		AIMaxOutputTokens: v.GetInt("ai.max_output_tokens"),
		AITimeout:         aiTimeout,
		GeminiAPIKey:      v.GetString("gemini_api_key"),
		OpenAIAPIKey:      v.GetString("openai_api_key"),
		AnthropicAPIKey:   v.GetString("anthropic_api_key"),

		ReportOutputDir:       v.GetString("reports.output_dir"),
		ReportFormat:          strings.ToLower(v.GetString("reports.format")),
		ReportSubmissionLimit: v.GetInt("reports.submission_limit"),
		ReportDigestSize:      v.GetInt("reports.digest_size"),
		ReportIncludeConcepts: v.GetBool("reports.include_concepts"),
		ReportParallelism:     v.GetInt("reports.parallelism"),
		ReportRegistryTTL:     registryTTL,

		StorageDriver:          strings.ToLower(v.GetString("storage.driver")),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		MinioEndpoint:          v.GetString("minio.endpoint"),
		MinioAccessKey:         v.GetString("minio.access_key"),
		MinioSecretKey:         v.GetString("minio.secret_key"),
		MinioBucket:            v.GetString("minio.bucket"),
		MinioRegion:            v.GetString("minio.region"),
		MinioUseSSL:            v.GetBool("minio.use_ssl"),

		RateLimitMax:    v.GetInt("rate_limit.max"),
		RateLimitWindow: rateWindow,
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}

	switch cfg.ReportFormat {
	case "text", "pdf":
	default:
		return Config{}, fmt.Errorf("unsupported report format %q", cfg.ReportFormat)
	}

	if cfg.ReportSubmissionLimit <= 0 {
		cfg.ReportSubmissionLimit = 5
	}

	if cfg.ReportDigestSize <= 0 {
		cfg.ReportDigestSize = 3
	}

	if cfg.ReportParallelism <= 0 {
		cfg.ReportParallelism = 1
	}

	if cfg.AIMaxOutputTokens < 0 {
		cfg.AIMaxOutputTokens = 0
	}

	return cfg, nil
}

// AIAPIKey returns the credential for the configured text generation provider.
func (c Config) AIAPIKey() string {
	switch c.AIProvider {
	case "openai":
		return c.OpenAIAPIKey
	case "anthropic", "claude":
		return c.AnthropicAPIKey
	default:
		return c.GeminiAPIKey
	}
}

func parseDuration(v *viper.Viper, key, fallback string) (time.Duration, error) {
	raw := v.GetString(key)
	if raw == "" {
		raw = fallback
	}
	return time.ParseDuration(raw)
}
