// Package config loads the venue daemon configuration from a TOML file,
// creating a commented default on first run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"otcmarket/crypto"
	"otcmarket/native/common"

	"github.com/BurntSushi/toml"
)

// Config is the top-level daemon configuration.
type Config struct {
	RPCAddress string `toml:"RPCAddress"`
	DataDir    string `toml:"DataDir"`

	// Authority receives the platform's share of referral-adjusted fees.
	// Bech32, otc prefix. Empty disables the authority cut.
	Authority string `toml:"Authority"`

	Fees    FeeConfig   `toml:"fees"`
	Trading TradeConfig `toml:"trading"`
}

// FeeConfig holds the platform fee and referral split defaults, in basis
// points of notional.
type FeeConfig struct {
	BaseFeeBps       uint32 `toml:"BaseFeeBps"`
	BaseReferralBps  uint32 `toml:"BaseReferralBps"`
	ExtraReferralBps uint32 `toml:"ExtraReferralBps"`
}

// TradeConfig holds premarket engine risk knobs.
type TradeConfig struct {
	// ProtectedBufferBps sizes the extra collateral a Protected ask maker
	// prefunds at creation, as a share of notional.
	ProtectedBufferBps uint32 `toml:"ProtectedBufferBps"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = ":8546"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./otc-data"
	}
	if c.Fees.BaseFeeBps == 0 {
		c.Fees.BaseFeeBps = 100
	}
	if c.Trading.ProtectedBufferBps == 0 {
		c.Trading.ProtectedBufferBps = common.RatioScale
	}
}

// Validate rejects configurations the engines would refuse at runtime.
func (c *Config) Validate() error {
	if c.Fees.BaseFeeBps > common.RatioScale {
		return fmt.Errorf("config: BaseFeeBps %d exceeds %d", c.Fees.BaseFeeBps, common.RatioScale)
	}
	if c.Fees.BaseReferralBps+c.Fees.ExtraReferralBps > common.RatioScale {
		return fmt.Errorf("config: referral split exceeds %d bps", common.RatioScale)
	}
	if c.Authority != "" {
		if _, err := crypto.DecodeAddress(c.Authority); err != nil {
			return fmt.Errorf("config: invalid Authority address: %w", err)
		}
	}
	return nil
}

// AuthorityBytes decodes the configured authority address. Returns the zero
// address when unset.
func (c *Config) AuthorityBytes() [20]byte {
	var out [20]byte
	if c.Authority == "" {
		return out
	}
	addr, err := crypto.DecodeAddress(c.Authority)
	if err != nil {
		return out
	}
	copy(out[:], addr.Bytes())
	return out
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.Fees.BaseReferralBps = 3000
	cfg.Fees.ExtraReferralBps = 500

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
