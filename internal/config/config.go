// Package config loads nextrelease settings from flags, the environment, .env files and
// an optional config file.
// Priority (highest to lowest): flags > environment (.env included) > config file > defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"nextrelease/internal/bump"
	"nextrelease/internal/logger"
)

// EnvPrefix is prepended to every environment variable, e.g. NEXTRELEASE_LOG_LEVEL.
const EnvPrefix = "NEXTRELEASE"

// ConfigName is the base name of the config file searched in the working directory.
const ConfigName = ".nextrelease"

// DefaultTagPattern matches version tags such as v1.2.3 or 1.2.3-rc.1.
const DefaultTagPattern = `^v?[0-9]+\.[0-9]+\.[0-9]+`

// Config holds all settings of a run.
type Config struct {
	Log      LogConfig  `mapstructure:"log"`
	TestMode bool       `mapstructure:"test_mode"`
	Bump     BumpConfig `mapstructure:"bump"`
	Git      GitConfig  `mapstructure:"git"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// BumpConfig mirrors bump.Policy.
type BumpConfig struct {
	BreakingAlwaysBumpMajor bool     `mapstructure:"breaking_always_bump_major"`
	FeaturesAlwaysBumpMinor bool     `mapstructure:"features_always_bump_minor"`
	MinorTypes              []string `mapstructure:"minor_types"`
	PatchTypes              []string `mapstructure:"patch_types"`
}

// GitConfig configures how tags are read from a repository.
type GitConfig struct {
	TagPattern string `mapstructure:"tag_pattern"`
}

// Options controls where configuration is looked up.
type Options struct {
	// Dir is searched for .env and the config file. Defaults to the working directory.
	Dir string
	// ConfigFile is an explicit config file; it must exist when set.
	ConfigFile string
	// Flags are bound on top of every other source.
	Flags *pflag.FlagSet
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"log-level": "log.level",
	"log-file":  "log.file",
	"test-mode": "test_mode",
}

// Load builds a Config from all sources.
func Load(opts Options) (*Config, error) {
	dir := opts.Dir
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to determine working directory: %w", err)
		}
		dir = wd
	}

	if err := loadDotEnv(filepath.Join(dir, ".env")); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.Flags != nil {
		for flag, key := range flagKeys {
			f := opts.Flags.Lookup(flag)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
			}
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(dir)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "")
	v.SetDefault("log.file", "")
	v.SetDefault("test_mode", false)
	v.SetDefault("bump.breaking_always_bump_major", true)
	v.SetDefault("bump.features_always_bump_minor", true)
	v.SetDefault("bump.minor_types", []string{"feat"})
	v.SetDefault("bump.patch_types", []string{"fix"})
	v.SetDefault("git.tag_pattern", DefaultTagPattern)
}

// loadDotEnv reads a .env file into the process environment without overriding
// variables that are already set. A missing file is not an error.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to parse .env file %s: %w", path, err)
	}
	return nil
}

// Validate checks values that cannot be expressed as defaults.
func (c *Config) Validate() error {
	if _, err := regexp.Compile(c.Git.TagPattern); err != nil {
		return fmt.Errorf("invalid git.tag_pattern '%s': %w", c.Git.TagPattern, err)
	}
	if len(c.Bump.MinorTypes) == 0 && len(c.Bump.PatchTypes) == 0 {
		logger.Warn("No minor or patch types configured, only breaking changes will bump the version")
	}
	return nil
}

// BumpPolicy converts the bump section into a bump.Policy.
func (c *Config) BumpPolicy() bump.Policy {
	return bump.Policy{
		BreakingAlwaysBumpMajor: c.Bump.BreakingAlwaysBumpMajor,
		FeaturesAlwaysBumpMinor: c.Bump.FeaturesAlwaysBumpMinor,
		MinorTypes:              trimAll(c.Bump.MinorTypes),
		PatchTypes:              trimAll(c.Bump.PatchTypes),
	}
}

// TagPattern returns the compiled tag pattern. Validate has already checked it.
func (c *Config) TagPattern() *regexp.Regexp {
	return regexp.MustCompile(c.Git.TagPattern)
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
