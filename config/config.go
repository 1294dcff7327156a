package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"dataforge-hub/wallet"

	"github.com/caarlos0/env/v11"
)

// Page identifies a screen of the terminal UI
type Page int

const (
	PageHome Page = iota
	PageWallet
	PageBrowse
	PageRails
	PageSettings
)

func (p Page) String() string {
	switch p {
	case PageHome:
		return "Home"
	case PageWallet:
		return "Wallet"
	case PageBrowse:
		return "Datasets"
	case PageRails:
		return "Rails"
	case PageSettings:
		return "Settings"
	}
	return fmt.Sprintf("Page(%d)", int(p))
}

// Contract addresses on Filecoin Calibration
const (
	DefaultRegistryAddress    = "0x569C43c4Cb8e332037Bc02ae997177F35cd8a017"
	DefaultUSDFCAddress       = "0xb3042734b608a1B16e9e86B374A3f3e389B4cDf0"
	DefaultFilPayAddress      = "0x0E690D3e60B0576D01352AB03b258115eb84A047"
	DefaultWarmStorageAddress = "0xf49ba5eaCdFD5EE3744efEdf413791935FE4D4c5"
)

// FileName is the config file created in the user's home directory
const FileName = ".dataforge-hub.json"

// Duration is a time.Duration that reads and writes as "5s" in JSON and env.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config represents the application configuration
type Config struct {
	Network            wallet.Network `json:"network"`
	RPCURLs            []RPCUrl       `json:"rpc_urls"`
	WalletURL          string         `json:"wallet_url"`
	RegistryAddress    string         `json:"registry_address"`
	USDFCAddress       string         `json:"usdfc_address"`
	FilPayAddress      string         `json:"filpay_address"`
	WarmStorageAddress string         `json:"warm_storage_address"`
	ValidatorAddress   string         `json:"validator_address,omitempty"`
	CallTimeout        Duration       `json:"call_timeout"`
	DBPath             string         `json:"db_path"`
	Logger             bool           `json:"logger"`
}

// RPCUrl represents an RPC endpoint
type RPCUrl struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

// ActiveRPC returns the active endpoint, falling back to the network's own.
func (c Config) ActiveRPC() string {
	for _, r := range c.RPCURLs {
		if r.Active && r.URL != "" {
			return r.URL
		}
	}
	return c.Network.RPCURL
}

// Overrides are read from the environment and win over the file.
type Overrides struct {
	WalletURL          string   `env:"DATAFORGE_WALLET_URL"`
	RPCURL             string   `env:"DATAFORGE_RPC_URL"`
	ChainID            uint64   `env:"DATAFORGE_CHAIN_ID"`
	CallTimeout        Duration `env:"DATAFORGE_CALL_TIMEOUT"`
	DBPath             string   `env:"DATAFORGE_DB_PATH"`
	RegistryAddress    string   `env:"DATAFORGE_REGISTRY_ADDRESS"`
	USDFCAddress       string   `env:"DATAFORGE_USDFC_ADDRESS"`
	FilPayAddress      string   `env:"DATAFORGE_FILPAY_ADDRESS"`
	WarmStorageAddress string   `env:"DATAFORGE_WARM_STORAGE_ADDRESS"`
	ValidatorAddress   string   `env:"DATAFORGE_VALIDATOR_ADDRESS"`
}

// ApplyEnv overlays environment variables on cfg. A nil environ reads the
// process environment.
func ApplyEnv(cfg *Config, environ map[string]string) error {
	var o Overrides
	var err error
	if environ == nil {
		err = env.Parse(&o)
	} else {
		err = env.ParseWithOptions(&o, env.Options{Environment: environ})
	}
	if err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.WalletURL, o.WalletURL)
	set(&cfg.DBPath, o.DBPath)
	set(&cfg.RegistryAddress, o.RegistryAddress)
	set(&cfg.USDFCAddress, o.USDFCAddress)
	set(&cfg.FilPayAddress, o.FilPayAddress)
	set(&cfg.WarmStorageAddress, o.WarmStorageAddress)
	set(&cfg.ValidatorAddress, o.ValidatorAddress)
	if o.RPCURL != "" {
		cfg.Network.RPCURL = o.RPCURL
		for i := range cfg.RPCURLs {
			cfg.RPCURLs[i].Active = false
		}
	}
	if o.ChainID != 0 {
		cfg.Network.ChainID = o.ChainID
	}
	if o.CallTimeout != 0 {
		cfg.CallTimeout = o.CallTimeout
	}
	return nil
}

var addrRe = regexp.MustCompile("^0x[0-9a-fA-F]{40}$")

// Validate reports every missing or malformed required setting.
func (c Config) Validate() []error {
	var errs []error
	if c.ActiveRPC() == "" {
		errs = append(errs, errors.New("RPC_URL is required"))
	}
	if c.Network.ChainID == 0 {
		errs = append(errs, errors.New("CHAIN_ID is required"))
	}
	required := []struct{ name, value string }{
		{"REGISTRY_ADDRESS", c.RegistryAddress},
		{"USDFC_ADDRESS", c.USDFCAddress},
		{"WARM_STORAGE_ADDRESS", c.WarmStorageAddress},
		{"FILPAY_ADDRESS", c.FilPayAddress},
	}
	for _, r := range required {
		switch {
		case r.value == "":
			errs = append(errs, fmt.Errorf("%s is required", r.name))
		case !addrRe.MatchString(r.value):
			errs = append(errs, fmt.Errorf("%s is not an address: %q", r.name, r.value))
		}
	}
	if c.ValidatorAddress != "" && !addrRe.MatchString(c.ValidatorAddress) {
		errs = append(errs, fmt.Errorf("VALIDATOR_ADDRESS is not an address: %q", c.ValidatorAddress))
	}
	return errs
}

// DefaultPath returns $HOME/.dataforge-hub.json
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, FileName)
}

// Load reads the config from the specified path
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the config to the specified path
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DefaultConfig returns a new configuration with sensible defaults
func DefaultConfig() Config {
	homeDir, _ := os.UserHomeDir()
	return Config{
		Network: wallet.Calibration,
		RPCURLs: []RPCUrl{
			{
				Name:   "Filfox Calibration",
				URL:    wallet.Calibration.RPCURL,
				Active: true,
			},
			{
				Name:   "Glif Calibration",
				URL:    "https://api.calibration.node.glif.io/rpc/v1",
				Active: false,
			},
		},
		RegistryAddress:    DefaultRegistryAddress,
		USDFCAddress:       DefaultUSDFCAddress,
		FilPayAddress:      DefaultFilPayAddress,
		WarmStorageAddress: DefaultWarmStorageAddress,
		DBPath:             filepath.Join(homeDir, ".dataforge-hub.db"),
		Logger:             false,
	}
}

// LoadOrCreate loads config from path, or creates a default one if not found
func LoadOrCreate(path string) (Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		// Invalid config, keep the file for the user to fix
		return DefaultConfig(), err
	}

	cfg = DefaultConfig()
	if err := Save(path, cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
