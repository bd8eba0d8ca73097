package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Zuo-Peng/opencontext/internal/parse"
)

const DefaultModel = "anthropic/claude-haiku-4-5-20251001"

type Config struct {
	ClaudeRoot string `toml:"claude_root"`
	DBPath     string `toml:"db_path"`
	BriefsDir  string `toml:"briefs_dir"`

	LLM     LLMConfig     `toml:"llm"`
	Parse   ParseConfig   `toml:"parse"`
	Summary SummaryConfig `toml:"summary"`
	Log     LogConfig     `toml:"log"`
}

type LLMConfig struct {
	Model          string `toml:"model"`
	APIKey         string `toml:"api_key,omitempty"`
	BaseURL        string `toml:"base_url,omitempty"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxTokens      int    `toml:"max_tokens"`
}

type ParseConfig struct {
	MergeWindowSeconds int `toml:"merge_window_seconds"`
	UserMessageMax     int `toml:"user_message_max"`
}

// SummaryConfig bounds what is sent to the model and how much work one run
// does.
type SummaryConfig struct {
	MaxChars       int `toml:"max_chars"`        // assistant text per turn
	UserMessageMax int `toml:"user_message_max"` // user text per turn
	Workers        int `toml:"workers"`
	MaxJobs        int `toml:"max_jobs"`
	TopSessions    int `toml:"top_sessions"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"` // console or json
	File       string `toml:"file,omitempty"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Default returns the configuration used when no file is present.
func Default(home string) *Config {
	return &Config{
		ClaudeRoot: filepath.Join(home, ".claude", "projects"),
		DBPath:     filepath.Join(home, ".opencontext", "db", "opencontext.db"),
		BriefsDir:  filepath.Join(home, ".opencontext", "briefs"),
		LLM: LLMConfig{
			Model:          DefaultModel,
			TimeoutSeconds: 60,
			MaxTokens:      1024,
		},
		Parse: ParseConfig{
			MergeWindowSeconds: int(parse.DefaultMergeWindow / time.Second),
			UserMessageMax:     parse.DefaultMaxUserMessage,
		},
		Summary: SummaryConfig{
			MaxChars:       500,
			UserMessageMax: 300,
			Workers:        4,
			MaxJobs:        200,
			TopSessions:    15,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Path is the config file location: $OPENCONTEXT_CONFIG or
// ~/.opencontext/config.toml.
func Path() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if p := os.Getenv("OPENCONTEXT_CONFIG"); p != "" {
		return expandHome(p, home), nil
	}
	return filepath.Join(home, ".opencontext", "config.toml"), nil
}

func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFile(path)
}

// LoadFile overlays the file at path (if it exists) on the defaults, then
// applies environment overrides.
func LoadFile(path string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	cfg := Default(home)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if v := os.Getenv("OPENCONTEXT_LLM_MODEL"); v != "" {
		cfg.LLM.Model = v
	}
	if v := os.Getenv("OPENCONTEXT_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("OPENCONTEXT_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
	}

	// expand ~ in paths
	cfg.ClaudeRoot = expandHome(cfg.ClaudeRoot, home)
	cfg.DBPath = expandHome(cfg.DBPath, home)
	cfg.BriefsDir = expandHome(cfg.BriefsDir, home)
	cfg.Log.File = expandHome(cfg.Log.File, home)

	return cfg, nil
}

// Save writes cfg as TOML, creating the parent directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Options converts the parse section into parser options.
func (p ParseConfig) Options(sinceTurn int) parse.Options {
	return parse.Options{
		SinceTurn:      sinceTurn,
		MergeWindow:    time.Duration(p.MergeWindowSeconds) * time.Second,
		MaxUserMessage: p.UserMessageMax,
	}
}

func (l LLMConfig) Timeout() time.Duration {
	if l.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(l.TimeoutSeconds) * time.Second
}

func expandHome(path, home string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		return filepath.Join(home, path[2:])
	}
	return path
}

