// Package config loads the margin TOML configuration.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DefaultListenAddr       = "localhost:8765"
	DefaultSearchLimit      = 20
	DefaultImportInterval   = 30 * time.Minute
	DefaultOptimizeInterval = 6 * time.Hour
	databaseFile            = "margin.db"
)

// Importer types understood by the import command and the warehouse.
const (
	ImporterChromium = "chromium"
	ImporterFirefox  = "firefox"
)

type Config struct {
	StorageDir       string                  `toml:"storage_dir"`
	ListenAddr       string                  `toml:"listen_addr"`
	OptimizeInterval Duration                `toml:"optimize_interval"`
	Search           SearchConfig            `toml:"search"`
	Importers        map[string]ImporterInfo `toml:"importers"`
}

type SearchConfig struct {
	DefaultLimit int  `toml:"default_limit"`
	FuzzyTerms   bool `toml:"fuzzy_terms"`
}

// ImporterInfo configures one browser history source.
type ImporterInfo struct {
	Type string `toml:"type"`
	Path string `toml:"path"`
	// Interval is how often the importer runs while serving. Defaults to
	// 30 minutes.
	Interval *Duration `toml:"interval,omitempty"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	c := &Config{StorageDir: storageDir}
	c.applyDefaults()
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.OptimizeInterval.Duration <= 0 {
		c.OptimizeInterval = Duration{DefaultOptimizeInterval}
	}
	if c.Search.DefaultLimit <= 0 {
		c.Search.DefaultLimit = DefaultSearchLimit
	}
	if c.Importers == nil {
		c.Importers = make(map[string]ImporterInfo)
	}
}

// LoadConfig reads configPath. A missing file yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if os.IsNotExist(err) {
		return GetDefaultConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if config.StorageDir == "" {
		if config.StorageDir, err = GetDefaultStorageDir(); err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks importer definitions.
func (c *Config) Validate() error {
	for _, name := range c.ImporterNames() {
		info := c.Importers[name]
		switch info.Type {
		case ImporterChromium, ImporterFirefox:
		default:
			return fmt.Errorf("importer %s: unknown type %q", name, info.Type)
		}
		if info.Path == "" {
			return fmt.Errorf("importer %s: path is required", name)
		}
		if info.Interval != nil && info.Interval.Duration <= 0 {
			return fmt.Errorf("importer %s: interval must be positive", name)
		}
	}
	return nil
}

// DatabasePath returns the path of the margin database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.StorageDir, databaseFile)
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(configPath, data, 0644)
}

// SaveTemplateConfig writes the commented sample configuration with the
// storage directory of c.
func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		if storageDir, err = GetDefaultStorageDir(); err != nil {
			return fmt.Errorf("getting default storage directory: %w", err)
		}
	}
	template := strings.Replace(configTemplate, "/home/user/.local/share/margin", storageDir, 1)
	return os.WriteFile(configPath, []byte(template), 0644)
}

func (c *Config) AddImporter(name, importerType, path string, interval *Duration) {
	if c.Importers == nil {
		c.Importers = make(map[string]ImporterInfo)
	}
	c.Importers[name] = ImporterInfo{Type: importerType, Path: path, Interval: interval}
}

func (c *Config) RemoveImporter(name string) {
	delete(c.Importers, name)
}

// ImporterInterval returns how often importer name runs.
func (c *Config) ImporterInterval(name string) time.Duration {
	info, ok := c.Importers[name]
	if !ok || info.Interval == nil {
		return DefaultImportInterval
	}
	return info.Interval.Duration
}

// ImporterNames returns configured importer names, sorted.
func (c *Config) ImporterNames() []string {
	names := make([]string, 0, len(c.Importers))
	for name := range c.Importers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetDefaultStorageDir returns $XDG_DATA_HOME/margin, creating it.
func GetDefaultStorageDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "margin")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}
	return dir, nil
}

// GetConfigDir returns $XDG_CONFIG_HOME/margin, creating it.
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "margin")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}
	return dir, nil
}

func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
