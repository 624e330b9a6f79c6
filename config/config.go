// config/config.go
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port string `yaml:"port"`
}

type LogConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"` // text|json
	AddSource bool   `yaml:"add_source"`
	Env       string `yaml:"env"`
}

// DatabaseConfig selects the run-history store. An empty Driver disables it.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql|postgres
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	MaxConns int    `yaml:"max_conns"`
}

type HTTPConfig struct {
	TimeoutStr   string `yaml:"timeout"`
	Retries      int    `yaml:"retries"`
	Concurrency  int    `yaml:"concurrency"`
	BaseDelayStr string `yaml:"base_delay"`
	MaxDelayStr  string `yaml:"max_delay"`
	UserAgent    string `yaml:"user_agent"`

	Timeout   time.Duration `yaml:"-"`
	BaseDelay time.Duration `yaml:"-"`
	MaxDelay  time.Duration `yaml:"-"`
}

type OrchestratorConfig struct {
	BatchSize         int    `yaml:"batch_size"`
	BatchPauseStr     string `yaml:"batch_pause"`
	ItemTimeoutStr    string `yaml:"item_timeout"`
	SourceConcurrency int    `yaml:"source_concurrency"`

	BatchPause  time.Duration `yaml:"-"`
	ItemTimeout time.Duration `yaml:"-"`
}

type ExportConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Dir          string `yaml:"dir"`
	CombinedName string `yaml:"combined_name"`
}

// FieldMap names where each record field lives in a source's payload:
// a dotted JSON path for json sources, a column header for csv sources.
type FieldMap struct {
	ID        string `yaml:"id"`
	Name      string `yaml:"name"`
	Address   string `yaml:"address"`
	Street    string `yaml:"street"`
	Suburb    string `yaml:"suburb"`
	State     string `yaml:"state"`
	Postcode  string `yaml:"postcode"`
	Phone     string `yaml:"phone"`
	Fax       string `yaml:"fax"`
	Email     string `yaml:"email"`
	Website   string `yaml:"website"`
	Latitude  string `yaml:"latitude"`
	Longitude string `yaml:"longitude"`
	Hours     string `yaml:"hours"`
}

// SelectorMap holds CSS selectors for html sources. A selector may end in
// "@attr" to read an attribute instead of the text.
type SelectorMap struct {
	Item       string `yaml:"item"`
	Link       string `yaml:"link"`
	Name       string `yaml:"name"`
	Address    string `yaml:"address"`
	Street     string `yaml:"street"`
	Suburb     string `yaml:"suburb"`
	State      string `yaml:"state"`
	Postcode   string `yaml:"postcode"`
	Phone      string `yaml:"phone"`
	Fax        string `yaml:"fax"`
	Email      string `yaml:"email"`
	Website    string `yaml:"website"`
	Latitude   string `yaml:"latitude"`
	Longitude  string `yaml:"longitude"`
	HoursTable string `yaml:"hours_table"`
	HoursText  string `yaml:"hours_text"`
}

// SourceConfig wires one brand to a generic adapter.
type SourceConfig struct {
	Name      string            `yaml:"name"`
	Type      string            `yaml:"type"` // json|html|csv
	Enabled   *bool             `yaml:"enabled"`
	ListURL   string            `yaml:"list_url"`
	DetailURL string            `yaml:"detail_url"` // may contain {id}
	ItemsPath string            `yaml:"items_path"`
	Headers   map[string]string `yaml:"headers"`
	Fields    FieldMap          `yaml:"fields"`
	Selectors SelectorMap       `yaml:"selectors"`
	Dedupe    bool              `yaml:"dedupe"`
}

func (s SourceConfig) IsEnabled() bool { return s.Enabled == nil || *s.Enabled }

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Log          LogConfig          `yaml:"log"`
	HTTP         HTTPConfig         `yaml:"http"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Export       ExportConfig       `yaml:"export"`
	Database     DatabaseConfig     `yaml:"database"`
	Sources      []SourceConfig     `yaml:"sources"`
}

var potentialPaths = []string{
	"config.yaml",
	"config/config.yaml",
	"../config/config.yaml",
}

// LoadConfig reads the YAML config at configPath (or the first of the
// standard locations when empty), applies .env and environment overrides,
// parses durations and fills defaults.
func LoadConfig(configPath string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	if configPath == "" {
		configPath = os.Getenv("PHARMA_CONFIG")
	}
	if configPath == "" {
		for _, p := range potentialPaths {
			if _, err := os.Stat(p); err == nil {
				configPath = p
				break
			}
		}
		if configPath == "" {
			return nil, fmt.Errorf("config.yaml not found in standard locations")
		}
	}
	slog.Info("loading configuration", "path", configPath)

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(file)
}

// Parse decodes YAML config bytes and finishes the result like LoadConfig.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	applyEnv(&cfg)
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PHARMA_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("PHARMA_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("PHARMA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PHARMA_OUTPUT_DIR"); v != "" {
		cfg.Export.Dir = v
	}
	if v := os.Getenv("PHARMA_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v, err := strconv.Atoi(os.Getenv("PHARMA_BATCH_SIZE")); err == nil && v > 0 {
		cfg.Orchestrator.BatchSize = v
	}
}

func parseDuration(name, s string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return d, nil
}

func (c *Config) finish() error {
	var err error
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.HTTP.Timeout, err = parseDuration("http.timeout", c.HTTP.TimeoutStr, 30*time.Second); err != nil {
		return err
	}
	if c.HTTP.BaseDelay, err = parseDuration("http.base_delay", c.HTTP.BaseDelayStr, 300*time.Millisecond); err != nil {
		return err
	}
	if c.HTTP.MaxDelay, err = parseDuration("http.max_delay", c.HTTP.MaxDelayStr, 8*time.Second); err != nil {
		return err
	}
	if c.HTTP.Retries < 0 || c.HTTP.Concurrency < 0 {
		return fmt.Errorf("http.retries and http.concurrency must be >= 0")
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "pharmascrape/1.0"
	}

	if c.Orchestrator.BatchSize <= 0 {
		c.Orchestrator.BatchSize = 5
	}
	if c.Orchestrator.BatchPause, err = parseDuration("orchestrator.batch_pause", c.Orchestrator.BatchPauseStr, time.Second); err != nil {
		return err
	}
	if c.Orchestrator.ItemTimeout, err = parseDuration("orchestrator.item_timeout", c.Orchestrator.ItemTimeoutStr, 30*time.Second); err != nil {
		return err
	}

	if c.Export.Dir == "" {
		c.Export.Dir = "output"
	}
	if c.Export.CombinedName == "" {
		c.Export.CombinedName = "all_pharmacies"
	}
	if c.Export.Enabled {
		if err := os.MkdirAll(filepath.Clean(c.Export.Dir), 0755); err != nil {
			return fmt.Errorf("failed to create export directory: %w", err)
		}
	}

	switch strings.ToLower(c.Database.Driver) {
	case "", "mysql", "postgres":
		c.Database.Driver = strings.ToLower(c.Database.Driver)
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.MaxConns <= 0 {
		c.Database.MaxConns = 4
	}

	seen := make(map[string]bool, len(c.Sources))
	for i := range c.Sources {
		s := &c.Sources[i]
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			return fmt.Errorf("sources[%d]: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("sources[%d]: duplicate source name %q", i, s.Name)
		}
		seen[s.Name] = true
		s.Type = strings.ToLower(strings.TrimSpace(s.Type))
	}
	return nil
}

// EnabledSources returns the sources not switched off in config.
func (c *Config) EnabledSources() []SourceConfig {
	var out []SourceConfig
	for _, s := range c.Sources {
		if s.IsEnabled() {
			out = append(out, s)
		}
	}
	return out
}
