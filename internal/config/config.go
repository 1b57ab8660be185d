package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	DataDir            string `json:"data_dir"`
	LogLevel           string `json:"log_level"`
	LogFormat          string `json:"log_format"`
	Timezone           string `json:"timezone"`
	LockTimeoutSeconds int    `json:"lock_timeout_seconds"`
	Store              struct {
		DSN string `json:"dsn"`
	} `json:"store"`
	Ledger struct {
		DSN      string `json:"dsn"`
		TTLHours int    `json:"ttl_hours"`
	} `json:"ledger"`
	Scheduler struct {
		Tick        string `json:"tick"`
		Digest      string `json:"digest"`
		MorningHour int    `json:"morning_hour"`
	} `json:"scheduler"`
	Telegram struct {
		Token         string `json:"token"`
		ChatID        string `json:"chat_id"`
		APIEndpoint   string `json:"api_endpoint"`
		WebhookURL    string `json:"webhook_url"`
		WebhookSecret string `json:"webhook_secret"`
	} `json:"telegram"`
	HTTP struct {
		Enabled   bool   `json:"enabled"`
		Listen    string `json:"listen"`
		PublicURL string `json:"public_url"`
	} `json:"http"`
	Blob struct {
		Backend     string `json:"backend"`
		Dir         string `json:"dir"`
		BaseURL     string `json:"base_url"`
		Bucket      string `json:"bucket"`
		Prefix      string `json:"prefix"`
		Concurrency int    `json:"concurrency"`
	} `json:"blob"`
	AWS struct {
		Region   string `json:"region"`
		Endpoint string `json:"endpoint"`
	} `json:"aws"`
}

// Defaults returns a config populated with default values only.
func Defaults() *Config {
	cfg := &Config{
		DataDir:            filepath.Join(os.Getenv("HOME"), ".casewatch"),
		LogLevel:           "info",
		LogFormat:          "text",
		Timezone:           "Asia/Taipei",
		LockTimeoutSeconds: 30,
	}
	cfg.Ledger.TTLHours = 72
	cfg.Scheduler.Tick = "*/5 * * * *"
	cfg.Scheduler.Digest = "0 9 * * MON"
	cfg.Scheduler.MorningHour = 8
	cfg.HTTP.Enabled = true
	cfg.HTTP.Listen = ":8080"
	cfg.Blob.Backend = "fs"
	cfg.Blob.Concurrency = 4
	return cfg
}

// Load reads the config at path, writing defaults there when the file
// does not exist yet.
func Load(path string) (*Config, error) {
	return load(path, true)
}

// LoadReadOnly is Load for read-only deployments: a missing file leaves
// the defaults and environment in effect and nothing is written.
func LoadReadOnly(path string) (*Config, error) {
	return load(path, false)
}

func load(path string, writeDefaults bool) (*Config, error) {
	cfg := Defaults()

	loadDotEnv(filepath.Dir(path))

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		raw, err := readRaw(path)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(raw)
		if err != nil {
			return nil, fmt.Errorf("normalize config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	} else if os.IsNotExist(err) && writeDefaults {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// loadDotEnv loads .env from the config directory and the working
// directory. Variables already set in the environment win.
func loadDotEnv(dir string) {
	for _, p := range []string{filepath.Join(dir, ".env"), ".env"} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

// applyEnv overrides file values from the environment (highest precedence).
func applyEnv(cfg *Config) {
	str := map[string]*string{
		"CASEWATCH_DATA_DIR":      &cfg.DataDir,
		"CASEWATCH_LOG_LEVEL":     &cfg.LogLevel,
		"CASEWATCH_LOG_FORMAT":    &cfg.LogFormat,
		"CASEWATCH_TIMEZONE":      &cfg.Timezone,
		"CASEWATCH_STORE_DSN":     &cfg.Store.DSN,
		"CASEWATCH_LEDGER_DSN":    &cfg.Ledger.DSN,
		"CASEWATCH_LISTEN":        &cfg.HTTP.Listen,
		"CASEWATCH_PUBLIC_URL":    &cfg.HTTP.PublicURL,
		"CASEWATCH_BLOB_BACKEND":  &cfg.Blob.Backend,
		"CASEWATCH_BLOB_BUCKET":   &cfg.Blob.Bucket,
		"TELEGRAM_BOT_TOKEN":      &cfg.Telegram.Token,
		"TELEGRAM_CHAT_ID":        &cfg.Telegram.ChatID,
		"TELEGRAM_WEBHOOK_SECRET": &cfg.Telegram.WebhookSecret,
		"TELEGRAM_API_ENDPOINT":   &cfg.Telegram.APIEndpoint,
		"AWS_REGION":              &cfg.AWS.Region,
		"AWS_ENDPOINT_URL":        &cfg.AWS.Endpoint,
	}
	for env, dst := range str {
		if v := os.Getenv(env); v != "" {
			*dst = v
		}
	}
	if v := os.Getenv("CASEWATCH_LOCK_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LockTimeoutSeconds = n
		}
	}
}

// Save writes cfg to path atomically. Paths ending in .yaml or .yml are
// written as YAML, everything else as JSON.
func Save(path string, cfg *Config) error {
	m, err := ToMap(cfg)
	if err != nil {
		return err
	}
	return writeRaw(path, m)
}

// ToMap converts the config into a generic nested map using its JSON names.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return m, nil
}

// ListValues returns every config key flattened to dot notation,
// optionally with secrets masked.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue reads a single dot-separated key from the file at path.
func GetValue(path, key string) (any, error) {
	raw, err := readRaw(path)
	if err != nil {
		return nil, err
	}
	flat := Flatten(raw)
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unknown config key: %s", key)
	}
	return v, nil
}

// SetValue sets a dot-separated key in the file at path. The value is
// parsed as JSON when possible so numbers and booleans keep their type.
func SetValue(path, key, value string) error {
	raw, err := readRaw(path)
	if err != nil {
		return err
	}
	var parsed any
	if err := json.Unmarshal([]byte(value), &parsed); err != nil {
		parsed = value
	}
	flat := Flatten(raw)
	flat[key] = parsed
	return writeRaw(path, Unflatten(flat))
}

// Location resolves the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) LockTimeout() time.Duration {
	if c.LockTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.LockTimeoutSeconds) * time.Second
}

func (c *Config) LedgerTTL() time.Duration {
	if c.Ledger.TTLHours <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(c.Ledger.TTLHours) * time.Hour
}

// BlobDir is where the filesystem blob store keeps its objects.
func (c *Config) BlobDir() string {
	if c.Blob.Dir != "" {
		return c.Blob.Dir
	}
	return filepath.Join(c.DataDir, "blobs")
}

// BlobBaseURL is the public prefix of filesystem blob URLs.
func (c *Config) BlobBaseURL() string {
	if c.Blob.BaseURL != "" {
		return strings.TrimRight(c.Blob.BaseURL, "/")
	}
	return strings.TrimRight(c.HTTP.PublicURL, "/") + "/files"
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// readRaw decodes the config file into a generic map with JSON number
// semantics regardless of the file format.
func readRaw(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if isYAML(path) {
		var y map[string]any
		if err := yaml.Unmarshal(data, &y); err != nil {
			return nil, fmt.Errorf("parse yaml config: %w", err)
		}
		if data, err = json.Marshal(y); err != nil {
			return nil, fmt.Errorf("normalize yaml config: %w", err)
		}
	}
	m := make(map[string]any)
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return m, nil
}

func writeRaw(path string, m map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(m)
	} else {
		data, err = json.MarshalIndent(m, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}
