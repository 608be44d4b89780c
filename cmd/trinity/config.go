package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/samcharles93/trinity/internal/inference"
)

const envTrinityConfig = "TRINITY_CONFIG"

// Config represents the trinity configuration file
// (~/.config/trinity/config.yaml). Scalars left empty and nil pointers do not
// override flag defaults.
type Config struct {
	Server  string         `yaml:"server"`
	Timeout *time.Duration `yaml:"timeout"`

	// Session defaults
	Name         string `yaml:"name"`
	SystemPrompt string `yaml:"system_prompt"`
	Format       string `yaml:"format"`
	StripThink   *bool  `yaml:"strip_think"`

	// Generation defaults
	Sampling    inference.SamplingOptions `yaml:"sampling"`
	Stop        []string                  `yaml:"stop"`
	GrammarFile string                    `yaml:"grammar_file"`
	Stream      *bool                     `yaml:"stream"`

	// Output
	StreamMode string `yaml:"stream_mode"`
	LogLevel   string `yaml:"log_level"`
	LogFormat  string `yaml:"log_format"`

	// Server
	ServerAddress string         `yaml:"server_address"`
	SessionTTL    *time.Duration `yaml:"session_ttl"`
}

func configPath() string {
	if p := strings.TrimSpace(os.Getenv(envTrinityConfig)); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "trinity", "config.yaml")
}

// LoadConfig reads the config file at path. A missing file yields a zero
// Config; a malformed one is an error.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return Config{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Config{}, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyConfig applies config file defaults to the flag variables when the
// corresponding CLI flag was not explicitly set.
func applyConfig(c flagSetter, cfg Config) {
	if cfg.Server != "" && !c.IsSet("server") {
		serverURL = cfg.Server
	}
	if cfg.Timeout != nil && !c.IsSet("timeout") {
		requestTimeout = *cfg.Timeout
	}
	if cfg.Name != "" && !c.IsSet("name") {
		sessionName = cfg.Name
	}
	if cfg.SystemPrompt != "" && !c.IsSet("system") {
		systemPrompt = cfg.SystemPrompt
	}
	if cfg.Format != "" && !c.IsSet("format") {
		formatName = cfg.Format
	}
	if cfg.StripThink != nil && !c.IsSet("strip-think") {
		stripThink = *cfg.StripThink
	}
	if len(cfg.Stop) > 0 && !c.IsSet("stop") {
		stopSequences = cfg.Stop
	}
	if cfg.GrammarFile != "" && !c.IsSet("grammar-file") {
		grammarFile = cfg.GrammarFile
	}
	if cfg.Stream != nil && !c.IsSet("no-stream") {
		noStream = !*cfg.Stream
	}
}

// resolveSampling layers flags over the config file over built-in defaults.
func resolveSampling(c flagSetter, cfg Config) inference.Sampling {
	base := cfg.Sampling.Resolve(inference.DefaultSampling())
	return samplingOverrides(c).Resolve(base)
}

// applyLoggingConfig runs before any subcommand so the logger honours the
// file as well.
func applyLoggingConfig(c flagSetter, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}
