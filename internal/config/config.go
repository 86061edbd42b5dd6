package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"parallel-ytdl/internal/cache"
)

const (
	DefaultListPath  = "list.txt"
	DefaultCachePath = "parallel-ytdl.cache"
	DefaultFileName  = "parallel-ytdl.yaml"
	DefaultLogFormat = "json"

	EnvConfig    = "PARALLEL_YTDL_CONFIG"
	EnvExec      = "PARALLEL_YTDL_EXEC"
	EnvList      = "PARALLEL_YTDL_LIST"
	EnvCache     = "PARALLEL_YTDL_CACHE"
	EnvCacheMode = "PARALLEL_YTDL_CACHE_MODE"
	EnvNoCache   = "PARALLEL_YTDL_NO_CACHE"
	EnvWorkers   = "PARALLEL_YTDL_WORKERS"
)

type Config struct {
	Executable     string        `yaml:"executable,omitempty" json:"executable,omitempty"`
	DownloadPreset string        `yaml:"download_preset,omitempty" json:"download_preset,omitempty"`
	OutputPreset   string        `yaml:"output_preset,omitempty" json:"output_preset,omitempty"`
	List           string        `yaml:"list,omitempty" json:"list,omitempty"`
	ExtraArgs      []string      `yaml:"extra_args,omitempty" json:"extra_args,omitempty"`
	Workers        int           `yaml:"workers,omitempty" json:"workers,omitempty"`
	JobTimeout     time.Duration `yaml:"job_timeout,omitempty" json:"job_timeout,omitempty"`
	Dashboard      bool          `yaml:"dashboard,omitempty" json:"dashboard,omitempty"`
	Verbose        bool          `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	LogFormat      string        `yaml:"log_format,omitempty" json:"log_format,omitempty"`
	Cache          Cache         `yaml:"cache" json:"cache"`
}

type Cache struct {
	Enabled *bool  `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
	Mode    string `yaml:"mode,omitempty" json:"mode,omitempty"`
}

func (c Cache) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c Cache) ParsedMode() cache.Mode {
	m, err := cache.ParseMode(c.Mode)
	if err != nil {
		return cache.ModeAppend
	}
	return m
}

func Default() Config {
	enabled := true
	return Config{
		List:      DefaultListPath,
		LogFormat: DefaultLogFormat,
		Cache: Cache{
			Enabled: &enabled,
			Path:    DefaultCachePath,
			Mode:    string(cache.ModeAppend),
		},
	}
}

// Normalize fills defaults and validates values that would otherwise only
// fail once the run has started.
func Normalize(raw Config) (Config, error) {
	def := Default()
	norm := raw
	norm.Executable = strings.TrimSpace(norm.Executable)
	norm.DownloadPreset = strings.ToLower(strings.TrimSpace(norm.DownloadPreset))
	norm.OutputPreset = strings.ToLower(strings.TrimSpace(norm.OutputPreset))
	if strings.TrimSpace(norm.List) == "" {
		norm.List = def.List
	}
	if norm.Workers < 0 {
		return Config{}, fmt.Errorf("workers must be >= 0")
	}
	if norm.JobTimeout < 0 {
		return Config{}, fmt.Errorf("job timeout must be >= 0")
	}
	switch strings.ToLower(strings.TrimSpace(norm.LogFormat)) {
	case "":
		norm.LogFormat = def.LogFormat
	case "text", "json":
		norm.LogFormat = strings.ToLower(strings.TrimSpace(norm.LogFormat))
	default:
		return Config{}, fmt.Errorf("invalid log format %q (expected text or json)", norm.LogFormat)
	}
	if norm.Cache.Enabled == nil {
		norm.Cache.Enabled = def.Cache.Enabled
	}
	if strings.TrimSpace(norm.Cache.Path) == "" {
		norm.Cache.Path = def.Cache.Path
	}
	mode, err := cache.ParseMode(norm.Cache.Mode)
	if err != nil {
		return Config{}, err
	}
	norm.Cache.Mode = string(mode)
	return norm, nil
}

// Decode reads YAML on top of the defaults. Unknown keys are rejected.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, err
	}
	return Normalize(cfg)
}

func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	cfg, err := Decode(f)
	if err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func Encode(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return buf.Bytes(), nil
}

// Locate picks the config file: explicit path, then $PARALLEL_YTDL_CONFIG,
// then the working directory, then userDir. It returns "" when nothing exists.
func Locate(explicit, userDir string) string {
	if p := strings.TrimSpace(explicit); p != "" {
		return p
	}
	if p, ok := os.LookupEnv(EnvConfig); ok && strings.TrimSpace(p) != "" {
		return strings.TrimSpace(p)
	}
	candidates := []string{DefaultFileName}
	if strings.TrimSpace(userDir) != "" {
		candidates = append(candidates, filepath.Join(userDir, DefaultFileName))
	}
	for _, c := range candidates {
		if info, err := os.Stat(c); err == nil && info.Mode().IsRegular() {
			return c
		}
	}
	return ""
}

// Resolve loads the located config file, or defaults when there is none.
func Resolve(explicit, userDir string) (Config, string, error) {
	path := Locate(explicit, userDir)
	if path == "" {
		cfg, err := Normalize(Default())
		return cfg, "", err
	}
	cfg, err := Load(path)
	if err != nil {
		return Config{}, path, err
	}
	return cfg, path, nil
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is fine.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays PARALLEL_YTDL_* variables onto cfg.
func ApplyEnv(cfg Config, lookup func(string) (string, bool)) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup(EnvExec); ok && strings.TrimSpace(v) != "" {
		cfg.Executable = v
	}
	if v, ok := lookup(EnvList); ok && strings.TrimSpace(v) != "" {
		cfg.List = v
	}
	if v, ok := lookup(EnvCache); ok && strings.TrimSpace(v) != "" {
		cfg.Cache.Path = v
	}
	if v, ok := lookup(EnvCacheMode); ok && strings.TrimSpace(v) != "" {
		cfg.Cache.Mode = v
	}
	if v, ok := lookup(EnvNoCache); ok && strings.TrimSpace(v) != "" {
		noCache, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvNoCache, err)
		}
		enabled := !noCache
		cfg.Cache.Enabled = &enabled
	}
	if v, ok := lookup(EnvWorkers); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		cfg.Workers = n
	}
	return Normalize(cfg)
}
