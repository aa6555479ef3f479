package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// StaticContent describes a locally hosted content manager registered at
// startup. Production collaborators are registered over RPC instead.
type StaticContent struct {
	Ref    string `toml:"Ref"`
	Author string `toml:"Author"`
	Title  string `toml:"Title"`
	Genre  uint64 `toml:"Genre"`
	Body   string `toml:"Body"`
}

// Config carries the catalogd node configuration.
type Config struct {
	RPCAddress   string `toml:"RPCAddress"`
	DataDir      string `toml:"DataDir"`
	OwnerAddress string `toml:"OwnerAddress"`

	// Genesis catalog parameters, applied only when the state carries none.
	ContentFee              uint64 `toml:"ContentFee"`
	ContentPeriod           int64  `toml:"ContentPeriod"`
	PremiumFee              uint64 `toml:"PremiumFee"`
	PremiumPeriod           int64  `toml:"PremiumPeriod"`
	PremiumWithdrawalPeriod int64  `toml:"PremiumWithdrawalPeriod"`
	PayableViews            uint64 `toml:"PayableViews"`

	StaticContent []StaticContent `toml:"StaticContent,omitempty"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if strings.TrimSpace(cfg.OwnerAddress) == "" {
		return nil, fmt.Errorf("config file %s is missing OwnerAddress", path)
	}
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./catalog-data"
	}
	if cfg.ContentPeriod <= 0 {
		cfg.ContentPeriod = 3 * 24 * 60 * 60
	}
	if cfg.PremiumPeriod <= 0 {
		cfg.PremiumPeriod = 30 * 24 * 60 * 60
	}
	if cfg.PremiumWithdrawalPeriod <= 0 {
		cfg.PremiumWithdrawalPeriod = 7 * 24 * 60 * 60
	}
	if cfg.PayableViews == 0 {
		cfg.PayableViews = 10
	}
}

// createDefault creates and saves a default configuration file. The owner
// address is intentionally left empty so the operator has to fill it in.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress: ":8545",
		DataDir:    "./catalog-data",
		ContentFee: 100,
		PremiumFee: 1000,
	}
	cfg.applyDefaults()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
