package infra

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	StorageDriverFS = "fs"
	StorageDriverS3 = "s3"

	ModelTransportREST = "rest"
	ModelTransportSDK  = "sdk"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string
	JWTSecret   string

	StorageDriver     string
	StoragePath       string
	StorageBaseURL    string
	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3PublicURL       string

	ModelTransport     string
	GeminiAPIKey       string
	GeminiModel        string
	GeminiBaseURL      string
	ModelTimeout       time.Duration
	SourceFetchTimeout time.Duration
	SourceMaxBytes     int64

	ImageSourceAllowlist []string
	CORSAllowedOrigins   []string
	SubmitRatePerMinute  int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("STORAGE_DRIVER", StorageDriverFS)
	v.SetDefault("STORAGE_PATH", "./storage")
	v.SetDefault("S3_REGION", "auto")
	v.SetDefault("MODEL_TRANSPORT", ModelTransportREST)
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("SOURCE_MAX_BYTES", 20<<20)

	cfg := &Config{
		AppEnv:      getString(v, "APP_ENV"),
		Port:        getString(v, "PORT"),
		DatabaseURL: getString(v, "DATABASE_URL"),
		JWTSecret:   getString(v, "JWT_SECRET"),

		StorageDriver:     strings.ToLower(getString(v, "STORAGE_DRIVER")),
		StoragePath:       getString(v, "STORAGE_PATH"),
		StorageBaseURL:    strings.TrimRight(getString(v, "STORAGE_BASE_URL"), "/"),
		S3Bucket:          getString(v, "S3_BUCKET"),
		S3Region:          getString(v, "S3_REGION"),
		S3Endpoint:        getString(v, "S3_ENDPOINT"),
		S3AccessKeyID:     getString(v, "S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: getString(v, "S3_SECRET_ACCESS_KEY"),
		S3PublicURL:       getString(v, "S3_PUBLIC_URL"),

		ModelTransport:     strings.ToLower(getString(v, "MODEL_TRANSPORT")),
		GeminiAPIKey:       getString(v, "GEMINI_API_KEY"),
		GeminiModel:        getString(v, "GEMINI_MODEL"),
		GeminiBaseURL:      getString(v, "GEMINI_BASE_URL"),
		ModelTimeout:       seconds(v, "MODEL_TIMEOUT_SECONDS", 120),
		SourceFetchTimeout: seconds(v, "SOURCE_FETCH_TIMEOUT_SECONDS", 30),
		SourceMaxBytes:     v.GetInt64("SOURCE_MAX_BYTES"),

		ImageSourceAllowlist: splitList(getString(v, "IMAGE_SOURCE_HOST_ALLOWLIST"), true),
		CORSAllowedOrigins:   splitList(getString(v, "CORS_ALLOWED_ORIGINS"), false),
		SubmitRatePerMinute:  v.GetInt("SUBMIT_RATE_PER_MINUTE"),

		HTTPReadTimeout:  seconds(v, "HTTP_READ_TIMEOUT_SECONDS", 15),
		HTTPWriteTimeout: seconds(v, "HTTP_WRITE_TIMEOUT_SECONDS", 180),
		HTTPIdleTimeout:  seconds(v, "HTTP_IDLE_TIMEOUT_SECONDS", 60),
	}

	if cfg.StorageBaseURL == "" {
		cfg.StorageBaseURL = fmt.Sprintf("http://localhost:%s/static", cfg.Port)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.StorageDriver {
	case StorageDriverFS:
	case StorageDriverS3:
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
		}
	default:
		return nil, fmt.Errorf("unsupported STORAGE_DRIVER %q", cfg.StorageDriver)
	}

	switch cfg.ModelTransport {
	case ModelTransportREST, ModelTransportSDK:
	default:
		return nil, fmt.Errorf("unsupported MODEL_TRANSPORT %q", cfg.ModelTransport)
	}

	return cfg, nil
}

// UsesDatabase reports whether job records are persisted in PostgreSQL.
func (c *Config) UsesDatabase() bool {
	return c.DatabaseURL != ""
}

func getString(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

func seconds(v *viper.Viper, key string, fallback int) time.Duration {
	n, err := strconv.Atoi(getString(v, key))
	if err != nil || n < 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

func splitList(raw string, lower bool) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if lower {
			item = strings.ToLower(item)
		}
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
