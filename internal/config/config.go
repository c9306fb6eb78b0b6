package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Position store backends.
const (
	StoreMemory   = "memory"
	StoreFile     = "file"
	StorePostgres = "postgres"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL            string
	ChainID           uint64
	PositionManager   common.Address
	Pool              common.Address
	Router            common.Address
	MaxRatioDeviation decimal.Decimal
	MaxSlippage       decimal.Decimal
	TickInterval      time.Duration
	OpenDeadline      time.Duration
	WithdrawDeadline  time.Duration
	ConfirmTimeout    time.Duration
	HalfWidth         int32
	PositionStore     string
	PositionFile      string
	PGDSN             string
	Journal           string
	Wallet            *common.Address
	LogLevel          string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RANGER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("rpc", "https://arb1.arbitrum.io/rpc")
	v.SetDefault("chain-id", uint64(42161))
	v.SetDefault("position-manager", "0xC36442b4a4522E871399CD717aBDD847Ab11FE88")
	v.SetDefault("pool", "0xC31E54c7a869B9FcBEcc14363CF510d1c41fa443")
	v.SetDefault("router", "0x68b3465833fb72A70ecDF485E0e4C7bD8665Fc45")
	v.SetDefault("max-ratio-deviation", "0.3")
	v.SetDefault("max-slippage", "0.01")
	v.SetDefault("tick-interval", 60*time.Second)
	v.SetDefault("open-deadline", 60*time.Second)
	v.SetDefault("withdraw-deadline", 30*time.Minute)
	v.SetDefault("confirm-timeout", 10*time.Minute)
	v.SetDefault("half-width", 2)
	v.SetDefault("position-store", StoreMemory)
	v.SetDefault("position-file", "./data/position.json")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCURL:           strings.TrimSpace(v.GetString("rpc")),
		ChainID:          v.GetUint64("chain-id"),
		TickInterval:     v.GetDuration("tick-interval"),
		OpenDeadline:     v.GetDuration("open-deadline"),
		WithdrawDeadline: v.GetDuration("withdraw-deadline"),
		ConfirmTimeout:   v.GetDuration("confirm-timeout"),
		HalfWidth:        v.GetInt32("half-width"),
		PositionStore:    strings.ToLower(strings.TrimSpace(v.GetString("position-store"))),
		PositionFile:     v.GetString("position-file"),
		PGDSN:            v.GetString("pg-dsn"),
		Journal:          v.GetString("journal"),
		LogLevel:         v.GetString("log-level"),
	}

	var err error
	if cfg.PositionManager, err = parseAddress("position-manager", v.GetString("position-manager")); err != nil {
		return Config{}, err
	}
	if cfg.Pool, err = parseAddress("pool", v.GetString("pool")); err != nil {
		return Config{}, err
	}
	if cfg.Router, err = parseAddress("router", v.GetString("router")); err != nil {
		return Config{}, err
	}
	if wallet := strings.TrimSpace(v.GetString("wallet")); wallet != "" {
		addr, err := parseAddress("wallet", wallet)
		if err != nil {
			return Config{}, err
		}
		cfg.Wallet = &addr
	}
	if cfg.MaxRatioDeviation, err = parseDecimal("max-ratio-deviation", v.GetString("max-ratio-deviation")); err != nil {
		return Config{}, err
	}
	if cfg.MaxSlippage, err = parseDecimal("max-slippage", v.GetString("max-slippage")); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc is required")
	}
	if c.ChainID == 0 {
		return fmt.Errorf("chain-id is required")
	}
	if c.TickInterval < time.Second {
		return fmt.Errorf("tick-interval must be at least 1s")
	}
	if c.OpenDeadline <= 0 || c.WithdrawDeadline <= 0 {
		return fmt.Errorf("open-deadline and withdraw-deadline must be positive")
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm-timeout must be positive")
	}
	if c.HalfWidth <= 0 {
		return fmt.Errorf("half-width must be positive")
	}
	switch c.PositionStore {
	case StoreMemory, StoreFile:
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for the postgres position store")
		}
	default:
		return fmt.Errorf("unknown position-store %q", c.PositionStore)
	}
	return nil
}

func parseAddress(key, input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid %s address: %q", key, input)
	}
	return common.HexToAddress(input), nil
}

func parseDecimal(key, input string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(input))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
