// Package config resolves engine settings from defaults, a YAML file and the environment
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thereceipt/label-engine/internal/paginator"
	"github.com/thereceipt/label-engine/internal/pdfdoc"
)

// DefaultPort is the API port when nothing else is set
const DefaultPort = "12212"

// Config holds every tunable of the engine
type Config struct {
	Port    string `yaml:"port"`
	DataDir string `yaml:"data_dir"`

	Grid       paginator.Grid `yaml:"grid"`
	Paper      string         `yaml:"paper"`
	Resolution float64        `yaml:"resolution"`
	BlockSize  int            `yaml:"block_size"`
	Workers    int            `yaml:"workers"`
	PagePause  time.Duration  `yaml:"page_pause"`
	BlockPause time.Duration  `yaml:"block_pause"`

	QRField      string   `yaml:"qr_field"`
	CenterFields []string `yaml:"center_fields"`

	Font  string            `yaml:"font"`
	Fonts map[string]string `yaml:"fonts"`

	PreviewDelay time.Duration `yaml:"preview_delay"`
	Printer      string        `yaml:"printer"`
}

// Default returns the built-in settings
func Default() *Config {
	return &Config{
		Port:         DefaultPort,
		Grid:         paginator.DefaultGrid(),
		Paper:        "a4",
		Resolution:   2,
		BlockSize:    40,
		Workers:      1,
		PagePause:    80 * time.Millisecond,
		QRField:      "url",
		PreviewDelay: 300 * time.Millisecond,
	}
}

// Load applies the YAML file at path (if any) and then the environment to the defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyEnv overrides settings from SERVER_PORT and the LABEL_* variables
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("SERVER_PORT"); v != "" {
		c.Port = v
	}
	if v := os.Getenv("LABEL_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv("LABEL_BLOCK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LABEL_BLOCK_SIZE %q: %w", v, err)
		}
		c.BlockSize = n
	}
	if v := os.Getenv("LABEL_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid LABEL_WORKERS %q: %w", v, err)
		}
		c.Workers = n
	}
	if v := os.Getenv("LABEL_QR_FIELD"); v != "" {
		c.QRField = v
	}
	if v := os.Getenv("LABEL_PAPER"); v != "" {
		c.Paper = v
	}
	if v := os.Getenv("LABEL_FONT"); v != "" {
		c.Font = v
	}
	if v := os.Getenv("LABEL_PRINTER"); v != "" {
		c.Printer = v
	}
	return nil
}

// Validate checks the settings for values the engine cannot run with
func (c *Config) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return err
	}
	if c.BlockSize < 1 {
		return fmt.Errorf("block_size must be at least 1, got %d", c.BlockSize)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Resolution <= 0 {
		return fmt.Errorf("resolution must be positive, got %v", c.Resolution)
	}
	if _, err := pdfdoc.ParsePaperSize(c.Paper); err != nil {
		return err
	}
	if strings.TrimSpace(c.QRField) == "" {
		return fmt.Errorf("qr_field must not be empty")
	}
	return nil
}

// PaperSize returns the parsed paper
func (c *Config) PaperSize() pdfdoc.PaperSize {
	p, err := pdfdoc.ParsePaperSize(c.Paper)
	if err != nil {
		return pdfdoc.A4Size
	}
	return p
}

// TemplatesDir is where the template registry lives
func (c *Config) TemplatesDir() string {
	return filepath.Join(c.DataDir, "templates")
}

// AutosavePath is the editor session autosave file
func (c *Config) AutosavePath() string {
	return filepath.Join(c.DataDir, "autosave.json")
}

// DefaultDataDir places data next to the executable when that directory is
// writable, then in the working directory, then in the user config dir
func DefaultDataDir() string {
	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		testFile := filepath.Join(exeDir, ".label-engine-write-test")
		if f, err := os.Create(testFile); err == nil {
			f.Close()
			os.Remove(testFile)
			return filepath.Join(exeDir, "label-data")
		}
	}

	if wd, err := os.Getwd(); err == nil {
		return filepath.Join(wd, "label-data")
	}

	var configDir string
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			configDir = filepath.Join(appData, "label-engine")
		}
	} else if home := os.Getenv("HOME"); home != "" {
		configDir = filepath.Join(home, ".config", "label-engine")
	}
	if configDir != "" {
		return configDir
	}

	return "label-data"
}
