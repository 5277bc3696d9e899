// Package config loads process configuration from .env files and the
// environment.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	CacheDir       string
	CheckpointDirs []string
	LoRADirs       []string
	CivitaiBaseURL string
	Archive        ArchiveConfig
}

type ArchiveConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Load reads .env (when present) and the environment. Every value has a
// local default so a bare invocation works out of the box.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cacheDir := strings.TrimSpace(os.Getenv("PROMPTSTATS_CACHE_DIR"))
	if cacheDir == "" {
		cacheDir = filepath.Join("data")
	}

	return &Config{
		CacheDir:       cacheDir,
		CheckpointDirs: splitDirs(os.Getenv("PROMPTSTATS_CHECKPOINT_DIRS"), filepath.Join("models", "checkpoints")),
		LoRADirs:       splitDirs(os.Getenv("PROMPTSTATS_LORA_DIRS"), filepath.Join("models", "loras")),
		CivitaiBaseURL: strings.TrimSpace(os.Getenv("CIVITAI_BASE_URL")),
		Archive:        loadArchiveConfig(),
	}, nil
}

func loadArchiveConfig() ArchiveConfig {
	endpoint := strings.TrimSpace(os.Getenv("REPORT_S3_ENDPOINT"))
	return ArchiveConfig{
		Enabled:   endpoint != "",
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("REPORT_S3_BUCKET")), "promptstats-reports"),
		UseSSL:    parseBool(os.Getenv("REPORT_S3_USE_SSL"), false),
	}
}

// splitDirs splits a PATH-style list, falling back to def when empty.
func splitDirs(raw, def string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{def}
	}
	var dirs []string
	for _, d := range strings.Split(raw, string(os.PathListSeparator)) {
		if d = strings.TrimSpace(d); d != "" {
			dirs = append(dirs, d)
		}
	}
	if len(dirs) == 0 {
		return []string{def}
	}
	return dirs
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseBool(raw string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
