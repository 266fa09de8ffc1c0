// Package config loads CLI settings from defaults, an optional TOML settings
// file and LIME_* environment variables, in increasing precedence.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"

	"github.com/flexigpt/lime-go/internal/logger"
	"github.com/flexigpt/lime-go/spec"
)

const (
	EnvPrefix     = "LIME"
	EnvConfigPath = "LIME_CONFIG"
	FileName      = "settings.toml"

	DefaultMaxIncludeDepth = 64
)

type Settings struct {
	ShowContext     bool           `mapstructure:"show_context" toml:"show_context"`
	AllowUnverified bool           `mapstructure:"allow_unverified" toml:"allow_unverified"`
	MaxIncludeDepth int            `mapstructure:"max_include_depth" toml:"max_include_depth"`
	Log             LogSettings    `mapstructure:"log" toml:"log"`
	Prompts         PromptSettings `mapstructure:"prompts" toml:"prompts"`
}

type LogSettings struct {
	JSON  bool   `mapstructure:"json" toml:"json"`
	Level string `mapstructure:"level" toml:"level"`
}

type PromptSettings struct {
	Manifest string `mapstructure:"manifest" toml:"manifest"`
	Lock     string `mapstructure:"lock" toml:"lock"`
}

func Default() Settings {
	return Settings{
		ShowContext:     true,
		MaxIncludeDepth: DefaultMaxIncludeDepth,
		Log:             LogSettings{Level: "info"},
		Prompts: PromptSettings{
			Manifest: spec.PromptManifestFileName,
			Lock:     spec.PromptLockFileName,
		},
	}
}

// SetDefaults registers every key so environment overrides apply on Unmarshal.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("show_context", d.ShowContext)
	v.SetDefault("allow_unverified", d.AllowUnverified)
	v.SetDefault("max_include_depth", d.MaxIncludeDepth)
	v.SetDefault("log.json", d.Log.JSON)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("prompts.manifest", d.Prompts.Manifest)
	v.SetDefault("prompts.lock", d.Prompts.Lock)
}

// DefaultPath is $LIME_CONFIG, else %APPDATA%/lime/settings.toml, else ~/.lime/settings.toml.
func DefaultPath() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	if appdata := os.Getenv("APPDATA"); appdata != "" {
		return filepath.Join(appdata, "lime", FileName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".lime", FileName)
}

// Load reads settings from path (DefaultPath when empty). A missing file is not an error.
func Load(path string) (*Settings, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("toml")
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrapf(err, "failed to read settings file %s", path)
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal settings")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) Validate() error {
	if s.MaxIncludeDepth < 0 {
		return errors.Wrapf(spec.ErrInvalidArgument, "max_include_depth must be >= 0, got %d", s.MaxIncludeDepth)
	}
	if _, err := logger.ParseLevel(s.Log.Level); err != nil {
		return errors.Mark(err, spec.ErrInvalidArgument)
	}
	if strings.TrimSpace(s.Prompts.Manifest) == "" || strings.TrimSpace(s.Prompts.Lock) == "" {
		return errors.Wrap(spec.ErrInvalidArgument, "prompts.manifest and prompts.lock must be set")
	}
	return nil
}

// WriteDefault creates a settings file with default values unless one exists.
// It reports whether a file was written.
func WriteDefault(path string) (bool, error) {
	if path == "" {
		return false, errors.Wrap(spec.ErrInvalidArgument, "settings path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return false, errors.Wrapf(err, "stat %s", path)
	}

	data, err := toml.Marshal(Default())
	if err != nil {
		return false, errors.Wrap(err, "encode default settings")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return false, errors.Wrap(err, "create settings directory")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return false, errors.Wrapf(err, "write %s", path)
	}
	return true, nil
}
