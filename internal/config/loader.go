package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB

	// EnvPrefix prefixes every environment variable read by Load.
	EnvPrefix = "CHROMA_"
)

// sections are the nested config groups addressable from the environment,
// e.g. CHROMA_EMBEDDING_PROVIDER -> embedding.provider.
var sections = map[string]bool{
	"embedding": true,
	"server":    true,
	"log":       true,
	"telemetry": true,
}

// LoadOptions carries the inputs that take precedence over the environment.
type LoadOptions struct {
	// ConfigFile is an optional YAML file. Missing files are an error only when set.
	ConfigFile string

	// Flags holds values from command-line flags the user explicitly set,
	// keyed by koanf path (e.g. "client_type", "embedding.provider").
	Flags map[string]any

	// Overrides are call-site values. They win over flags.
	Overrides map[string]any
}

// Load resolves configuration.
//
// Precedence (highest to lowest):
//  1. Overrides
//  2. Flags
//  3. Environment variables (CHROMA_*)
//  4. Dotenv file (default .chroma_env); never overrides variables already set
//  5. YAML config file
//  6. Defaults
//
// The returned error is a *ValidationError when a required parameter is missing.
func Load(opts LoadOptions) (*Config, error) {
	k := koanf.New(".")

	if opts.ConfigFile != "" {
		content, err := readConfigFile(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", opts.ConfigFile, err)
		}
	}

	if err := LoadDotEnv(dotenvPath(opts)); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	for _, layer := range []map[string]any{opts.Flags, opts.Overrides} {
		for key, val := range layer {
			if err := k.Set(key, val); err != nil {
				return nil, fmt.Errorf("failed to set %s: %w", key, err)
			}
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, &ValidationError{Message: fmt.Sprintf("Invalid configuration: %v", err)}
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps CHROMA_CLIENT_TYPE to client_type and CHROMA_EMBEDDING_PROVIDER
// to embedding.provider.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, field, ok := strings.Cut(lower, "_")
	if ok && sections[section] {
		return section + "." + field
	}
	return lower
}

// dotenvPath picks the dotenv file before the environment is read,
// so only overrides, flags and the real environment can move it.
func dotenvPath(opts LoadOptions) string {
	for _, layer := range []map[string]any{opts.Overrides, opts.Flags} {
		if v, ok := layer["dotenv_path"]; ok {
			if s := fmt.Sprint(v); s != "" {
				return s
			}
		}
	}
	if v := os.Getenv(EnvPrefix + "DOTENV_PATH"); v != "" {
		return v
	}
	return DefaultDotenvPath
}

// readConfigFile reads a YAML file after checking it is a small regular file.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("config file %s is not a regular file", path)
	}
	if info.Mode().Perm()&0o002 != 0 {
		return nil, fmt.Errorf("insecure config file permissions: %v (world-writable)", info.Mode().Perm())
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}
