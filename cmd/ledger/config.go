package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nspcc-dev/neo-go/pkg/encoding/address"
	"github.com/nspcc-dev/neo-go/pkg/util"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const defaultDialTimeout = 15 * time.Second

// Config is a configuration of the ledger CLI. Command line flags take
// precedence over the file values.
type Config struct {
	// Neo RPC server endpoint.
	RPC string `yaml:"rpc"`
	// Storage Ledger contract address or LE hash.
	Contract string `yaml:"contract"`

	// Path to NEP-6 wallet, needed by sending commands only.
	Wallet string `yaml:"wallet"`
	// Wallet account address, default wallet account if empty.
	Account string `yaml:"account"`
	// Wallet account password.
	Password string `yaml:"password"`
	// Password of the committee wallet account, used by update.
	CommitteePassword string `yaml:"committee_password"`

	LogLevel    string        `yaml:"log_level"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// loadConfig reads YAML configuration file. Empty path gives default
// configuration.
func loadConfig(path string) (Config, error) {
	cfg := Config{
		LogLevel:    "info",
		DialTimeout: defaultDialTimeout,
	}

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	err = yaml.Unmarshal(data, &cfg)
	if err != nil {
		return cfg, fmt.Errorf("decode config file: %w", err)
	}

	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.RPC == "":
		return errors.New("missing Neo RPC endpoint")
	case c.Contract == "":
		return errors.New("missing contract address")
	case c.DialTimeout <= 0:
		return fmt.Errorf("invalid dial timeout %s", c.DialTimeout)
	}

	return nil
}

// contractHash parses contract address given either as Neo address or as
// LE hash string.
func (c Config) contractHash() (util.Uint160, error) {
	return parseAccount(c.Contract)
}

func parseAccount(s string) (util.Uint160, error) {
	h, err := address.StringToUint160(s)
	if err == nil {
		return h, nil
	}

	h, err = util.Uint160DecodeStringLE(s)
	if err != nil {
		return util.Uint160{}, fmt.Errorf("'%s' is neither address nor LE hash", s)
	}

	return h, nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}

	c := zap.NewProductionConfig()
	c.Level = zap.NewAtomicLevelAt(lvl)
	c.Encoding = "console"
	c.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return c.Build()
}
