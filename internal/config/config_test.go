package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ChainID != 42161 {
		t.Fatalf("chain id mismatch: %d", cfg.ChainID)
	}
	if cfg.Pool.Hex() != "0xC31E54c7a869B9FcBEcc14363CF510d1c41fa443" {
		t.Fatalf("pool mismatch: %s", cfg.Pool.Hex())
	}
	if cfg.MaxRatioDeviation.String() != "0.3" || cfg.MaxSlippage.String() != "0.01" {
		t.Fatalf("decimal defaults mismatch: %s %s", cfg.MaxRatioDeviation, cfg.MaxSlippage)
	}
	if cfg.TickInterval != time.Minute || cfg.OpenDeadline != time.Minute || cfg.WithdrawDeadline != 30*time.Minute {
		t.Fatalf("duration defaults mismatch: %+v", cfg)
	}
	if cfg.HalfWidth != 2 || cfg.PositionStore != StoreMemory || cfg.Wallet != nil {
		t.Fatalf("defaults mismatch: %+v", cfg)
	}
}

func TestLoadEnvAndFlags(t *testing.T) {
	t.Setenv("RANGER_MAX_SLIPPAGE", "0.005")
	t.Setenv("RANGER_HALF_WIDTH", "4")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Duration("tick-interval", time.Minute, "")
	flags.String("wallet", "", "")
	if err := flags.Parse([]string{"--tick-interval=15s", "--wallet=0x3333333333333333333333333333333333333333"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxSlippage.String() != "0.005" {
		t.Fatalf("env override failed: %s", cfg.MaxSlippage)
	}
	if cfg.HalfWidth != 4 {
		t.Fatalf("half width mismatch: %d", cfg.HalfWidth)
	}
	if cfg.TickInterval != 15*time.Second {
		t.Fatalf("flag override failed: %s", cfg.TickInterval)
	}
	if cfg.Wallet == nil || cfg.Wallet.Hex() != "0x3333333333333333333333333333333333333333" {
		t.Fatalf("wallet mismatch: %v", cfg.Wallet)
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranger.yaml")
	content := []byte("max-ratio-deviation: 0.25\nposition-store: file\nposition-file: /tmp/pos.json\njournal: ./data/actions.jsonl\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxRatioDeviation.String() != "0.25" {
		t.Fatalf("ratio mismatch: %s", cfg.MaxRatioDeviation)
	}
	if cfg.PositionStore != StoreFile || cfg.PositionFile != "/tmp/pos.json" || cfg.Journal != "./data/actions.jsonl" {
		t.Fatalf("store settings mismatch: %+v", cfg)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"RANGER_POOL":                "not-an-address",
		"RANGER_MAX_RATIO_DEVIATION": "abc",
		"RANGER_POSITION_STORE":      "redis",
		"RANGER_TICK_INTERVAL":       "10ms",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load("", nil); err == nil {
				t.Fatalf("expected error for %s=%s", key, value)
			}
		})
	}

	t.Run("postgres without dsn", func(t *testing.T) {
		t.Setenv("RANGER_POSITION_STORE", "postgres")
		if _, err := Load("", nil); err == nil {
			t.Fatalf("expected error without pg-dsn")
		}
	})
}
