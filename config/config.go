package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIKeyPath = "/run/secrets/api_keys/imgbb"
	APIKeyPathEnvVar  = "IMGBB_API_KEY_FILE"
	EnvFileEnvVar     = "CIRCLE_TO_SEARCH_ENV"
)

// Config is process-level configuration resolved from the environment.
// User-facing preferences (hotkey, theme, search template) live in the
// settings store instead.
type Config struct {
	ImgbbAPIKey       string
	ImgbbAPIKeyPath   string
	EnableFileLogging bool
	OCRLanguages      []string
	SettingsPath      string
}

// Load resolves configuration from sources in priority order:
// 1) .env in the application (executable) directory
// 2) if not found, CIRCLE_TO_SEARCH_ENV as a path to an env file
func Load() (*Config, error) {
	envPath := resolveEnvPath()
	if envPath != "" {
		_ = godotenv.Load(envPath)
	}

	var languages []string
	if langStr := os.Getenv("OCR_LANGUAGES"); langStr != "" {
		for _, lang := range strings.Split(langStr, ",") {
			if trimmed := strings.TrimSpace(lang); trimmed != "" {
				languages = append(languages, trimmed)
			}
		}
	}

	keyPath := resolveAPIKeyPath()

	cfg := &Config{
		ImgbbAPIKey:       resolveAPIKey(keyPath),
		ImgbbAPIKeyPath:   keyPath,
		EnableFileLogging: strings.ToLower(os.Getenv("ENABLE_FILE_LOGGING")) == "true",
		OCRLanguages:      languages,
		SettingsPath:      os.Getenv("SETTINGS_PATH"),
	}
	return cfg, nil
}

func resolveEnvPath() string {
	execPath, err := os.Executable()
	if err == nil {
		exeEnv := filepath.Join(filepath.Dir(execPath), ".env")
		if _, err := os.Stat(exeEnv); err == nil {
			return exeEnv
		}
	}

	if alt := os.Getenv(EnvFileEnvVar); alt != "" {
		if _, err := os.Stat(alt); err == nil {
			return alt
		}
	}
	return ""
}

func resolveAPIKeyPath() string {
	if envPath := strings.TrimSpace(os.Getenv(APIKeyPathEnvVar)); envPath != "" {
		return envPath
	}
	return DefaultAPIKeyPath
}

func resolveAPIKey(keyPath string) string {
	if data, err := os.ReadFile(keyPath); err == nil {
		if fileKey := strings.TrimSpace(string(data)); fileKey != "" {
			return fileKey
		}
	}
	return os.Getenv("IMGBB_API_KEY")
}
