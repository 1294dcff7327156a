package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadOrCreate(t *testing.T) {
	t.Run("creates default file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		cfg, err := LoadOrCreate(path)
		if err != nil {
			t.Fatalf("LoadOrCreate: %v", err)
		}
		if cfg.Network.ChainID != 314159 {
			t.Errorf("Expected Calibration chain, got %d", cfg.Network.ChainID)
		}
		if _, err := os.Stat(path); err != nil {
			t.Errorf("config file not written: %v", err)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		cfg := DefaultConfig()
		cfg.WalletURL = "ws://127.0.0.1:1248"
		cfg.CallTimeout = Duration(15 * time.Second)
		cfg.Logger = true
		if err := Save(path, cfg); err != nil {
			t.Fatalf("Save: %v", err)
		}

		data, _ := os.ReadFile(path)
		if !strings.Contains(string(data), `"call_timeout": "15s"`) {
			t.Errorf("call_timeout not written as a duration string:\n%s", data)
		}

		got, err := LoadOrCreate(path)
		if err != nil {
			t.Fatalf("LoadOrCreate: %v", err)
		}
		if got.WalletURL != cfg.WalletURL || got.CallTimeout != cfg.CallTimeout || !got.Logger {
			t.Errorf("round trip mismatch: %+v", got)
		}
	})

	t.Run("invalid file is reported", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := LoadOrCreate(path)
		if err == nil {
			t.Fatal("expected parse error")
		}
		if cfg.RegistryAddress != DefaultRegistryAddress {
			t.Errorf("expected defaults alongside the error")
		}
	})

	t.Run("missing fields keep defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), FileName)
		if err := os.WriteFile(path, []byte(`{"logger": true}`), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, err := Load(path)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if cfg.FilPayAddress != DefaultFilPayAddress || !cfg.Logger {
			t.Errorf("unexpected config: %+v", cfg)
		}
	})
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := ApplyEnv(&cfg, map[string]string{
		"DATAFORGE_WALLET_URL":   "ws://localhost:1248",
		"DATAFORGE_RPC_URL":      "http://localhost:1234/rpc/v1",
		"DATAFORGE_CHAIN_ID":     "31415926",
		"DATAFORGE_CALL_TIMEOUT": "3s",
		"DATAFORGE_DB_PATH":      "/tmp/df.db",
	})
	if err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}

	if cfg.WalletURL != "ws://localhost:1248" {
		t.Errorf("WalletURL = %q", cfg.WalletURL)
	}
	if cfg.ActiveRPC() != "http://localhost:1234/rpc/v1" {
		t.Errorf("ActiveRPC = %q, env should win over the endpoint list", cfg.ActiveRPC())
	}
	if cfg.Network.ChainID != 31415926 {
		t.Errorf("ChainID = %d", cfg.Network.ChainID)
	}
	if time.Duration(cfg.CallTimeout) != 3*time.Second {
		t.Errorf("CallTimeout = %v", time.Duration(cfg.CallTimeout))
	}
	if cfg.DBPath != "/tmp/df.db" {
		t.Errorf("DBPath = %q", cfg.DBPath)
	}
	if cfg.RegistryAddress != DefaultRegistryAddress {
		t.Errorf("unset variables must keep file values")
	}

	if err := ApplyEnv(&cfg, map[string]string{"DATAFORGE_CHAIN_ID": "calibration"}); err == nil {
		t.Error("expected error for a non-numeric chain id")
	}
}

func TestValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		if errs := DefaultConfig().Validate(); len(errs) != 0 {
			t.Errorf("unexpected errors: %v", errs)
		}
	})

	t.Run("reports every problem", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.RPCURLs = nil
		cfg.Network.RPCURL = ""
		cfg.USDFCAddress = ""
		cfg.FilPayAddress = "0x123"
		cfg.ValidatorAddress = "nope"

		errs := cfg.Validate()
		var msgs []string
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		joined := strings.Join(msgs, "\n")
		for _, want := range []string{
			"RPC_URL is required",
			"USDFC_ADDRESS is required",
			"FILPAY_ADDRESS is not an address",
			"VALIDATOR_ADDRESS is not an address",
		} {
			if !strings.Contains(joined, want) {
				t.Errorf("missing %q in:\n%s", want, joined)
			}
		}
		if len(errs) != 4 {
			t.Errorf("expected 4 errors, got %d", len(errs))
		}
	})
}

func TestPageString(t *testing.T) {
	if PageRails.String() != "Rails" {
		t.Errorf("PageRails = %q", PageRails.String())
	}
	if Page(42).String() != "Page(42)" {
		t.Errorf("unknown page = %q", Page(42).String())
	}
}
