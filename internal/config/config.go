// Package config loads whisper-flow settings from a YAML file, environment
// variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. WHISPERFLOW_DATA_DIR.
const EnvPrefix = "WHISPERFLOW"

type Config struct {
	DataDir          string `mapstructure:"data_dir" validate:"required"`
	FFmpegPath       string `mapstructure:"ffmpeg_path" validate:"required"`
	WhisperPath      string `mapstructure:"whisper_path" validate:"required"`
	CaptureFormat    string `mapstructure:"capture_format" validate:"required,oneof=avfoundation pulse alsa dshow"`
	Threads          int    `mapstructure:"threads" validate:"min=1,max=64"`
	StopTimeoutMS    int    `mapstructure:"stop_timeout_ms" validate:"min=1"`
	MinArtifactBytes int64  `mapstructure:"min_artifact_bytes" validate:"min=0"`
	DefaultModel     string `mapstructure:"default_model" validate:"required"`
	Language         string `mapstructure:"language" validate:"required"`
	Prompt           string `mapstructure:"prompt"`
	AutoPaste        bool   `mapstructure:"auto_paste"`
	Sounds           bool   `mapstructure:"sounds"`
	Notifications    bool   `mapstructure:"notifications"`
	SocketPath       string `mapstructure:"socket_path" validate:"required"`
	LogLevel         string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogDir           string `mapstructure:"log_dir"`
}

// RecordingsDir is the parent of every session directory.
func (c *Config) RecordingsDir() string {
	return filepath.Join(c.DataDir, "recordings")
}

// ModelsDir holds downloaded ggml model files.
func (c *Config) ModelsDir() string {
	return filepath.Join(c.DataDir, "models")
}

// JournalPath is the SQLite session journal.
func (c *Config) JournalPath() string {
	return filepath.Join(c.DataDir, "journal.sqlite")
}

// StopTimeout is the graceful-termination budget for the capture process.
func (c *Config) StopTimeout() time.Duration {
	return time.Duration(c.StopTimeoutMS) * time.Millisecond
}

// Load reads configuration. When path is empty the default config file
// location is used and a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(expandTilde(path))
	} else {
		v.SetConfigName("config")
		if dir := configDir(); dir != "" {
			v.AddConfigPath(dir)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.DataDir = expandTilde(cfg.DataDir)
	cfg.SocketPath = expandTilde(cfg.SocketPath)
	cfg.LogDir = expandTilde(cfg.LogDir)
	if cfg.SocketPath == "" {
		cfg.SocketPath = filepath.Join(cfg.DataDir, "whisperflow.sock")
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("ffmpeg_path", "ffmpeg")
	v.SetDefault("whisper_path", "whisper-cli")
	v.SetDefault("capture_format", defaultCaptureFormat())
	v.SetDefault("threads", 8)
	v.SetDefault("stop_timeout_ms", 3000)
	v.SetDefault("min_artifact_bytes", 1000)
	v.SetDefault("default_model", "large-v3-turbo")
	v.SetDefault("language", "auto")
	v.SetDefault("prompt", "")
	v.SetDefault("auto_paste", runtime.GOOS == "darwin")
	v.SetDefault("sounds", true)
	v.SetDefault("notifications", true)
	v.SetDefault("socket_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_dir", "")
}

func defaultCaptureFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	default:
		return "pulse"
	}
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "whisper-flow")
	}
	return filepath.Join(".", "whisper-flow")
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "whisper-flow")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "whisper-flow")
	}
	return ""
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
