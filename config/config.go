package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ListenAddress  string `toml:"ListenAddress"`
	MetricsAddress string `toml:"MetricsAddress"`
	DataDir        string `toml:"DataDir"`
	Environment    string `toml:"Environment"`
	LogFile        string `toml:"LogFile"`
	LogMaxSizeMB   int    `toml:"LogMaxSizeMB"`
	LogMaxBackups  int    `toml:"LogMaxBackups"`
	DevFaucet      bool   `toml:"DevFaucet"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s contains unknown key %q", path, undecoded[0].String())
	}

	cfg.applyDefaults()
	return cfg, cfg.validate(path)
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8080"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./swapescrow-data"
	}
	if cfg.LogMaxSizeMB <= 0 {
		cfg.LogMaxSizeMB = 100
	}
	if cfg.LogMaxBackups < 0 {
		cfg.LogMaxBackups = 0
	}
}

func (cfg *Config) validate(path string) error {
	if cfg.MetricsAddress != "" && cfg.MetricsAddress == cfg.ListenAddress {
		return fmt.Errorf("config file %s: MetricsAddress must differ from ListenAddress", path)
	}
	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		ListenAddress:  ":8080",
		MetricsAddress: ":9090",
		DataDir:        "./swapescrow-data",
		Environment:    "local",
		LogMaxSizeMB:   100,
		LogMaxBackups:  3,
	}

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
