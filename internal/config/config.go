// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/viper"

	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/curve"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/exchange"
	"github.com/rovshanmuradov/curve-launchpad/internal/launchpad/fee"
	"github.com/rovshanmuradov/curve-launchpad/internal/logger"
)

type Config struct {
	Amm         AmmConfig    `mapstructure:"amm"`
	Fees        FeesConfig   `mapstructure:"fees"`
	Policy      PolicyConfig `mapstructure:"policy"`
	Log         LogConfig    `mapstructure:"log"`
	PostgresURL string       `mapstructure:"postgres_url"`
	Workers     int          `mapstructure:"workers"`
	EventBuffer int          `mapstructure:"event_buffer"`
	Retries     int          `mapstructure:"retries"`
}

type AmmConfig struct {
	InitialVirtualTokenReserves uint64 `mapstructure:"initial_virtual_token_reserves"`
	InitialVirtualSolReserves   uint64 `mapstructure:"initial_virtual_sol_reserves"`
	InitialRealTokenReserves    uint64 `mapstructure:"initial_real_token_reserves"`
	InitialTokenSupply          uint64 `mapstructure:"initial_token_supply"`
}

type FeesConfig struct {
	ProtocolBps              uint64 `mapstructure:"protocol_bps"`
	CreatorBps               uint64 `mapstructure:"creator_bps"`
	InviteBps                uint64 `mapstructure:"invite_bps"`
	ProtocolTokenAllocPoints uint64 `mapstructure:"protocol_token_alloc_points"`
}

type PolicyConfig struct {
	SellAfterComplete bool `mapstructure:"sell_after_complete"`
}

type LogConfig struct {
	File        string `mapstructure:"file"`
	MaxSize     int    `mapstructure:"max_size"`
	MaxAge      int    `mapstructure:"max_age"`
	MaxBackups  int    `mapstructure:"max_backups"`
	Compress    bool   `mapstructure:"compress"`
	Development bool   `mapstructure:"development"`
}

const (
	DefaultWorkers     = 5
	DefaultEventBuffer = 256
	DefaultRetries     = 3
)

func defaults() map[string]interface{} {
	p := exchange.DefaultParams()
	l := logger.DefaultConfig()
	return map[string]interface{}{
		"amm.initial_virtual_token_reserves": p.InitialVirtualTokenReserves,
		"amm.initial_virtual_sol_reserves":   p.InitialVirtualSolReserves,
		"amm.initial_real_token_reserves":    p.InitialRealTokenReserves,
		"amm.initial_token_supply":           p.InitialTokenSupply,
		"fees.protocol_bps":                  p.Fees.Protocol,
		"fees.creator_bps":                   p.Fees.Creator,
		"fees.invite_bps":                    p.Fees.Invite,
		"fees.protocol_token_alloc_points":   p.ProtocolTokenAllocPoints,
		"policy.sell_after_complete":         false,
		"log.file":                           l.LogFile,
		"log.max_size":                       l.MaxSize,
		"log.max_age":                        l.MaxAge,
		"log.max_backups":                    l.MaxBackups,
		"log.compress":                       l.Compress,
		"log.development":                    l.Development,
		"postgres_url":                       "",
		"workers":                            DefaultWorkers,
		"event_buffer":                       DefaultEventBuffer,
		"retries":                            DefaultRetries,
	}
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	return v
}

// LoadConfig reads path over the defaults, applies LAUNCHPAD_* environment
// overrides and validates the result. An empty path skips the file.
func LoadConfig(path string) (*Config, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	loadEnvironmentVariables(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if err := validateNumericParams(cfg); err != nil {
		return err
	}
	if err := cfg.Params().Validate(); err != nil {
		return fmt.Errorf("invalid launchpad parameters: %w", err)
	}
	if cfg.PostgresURL != "" {
		if err := validateURL(cfg.PostgresURL, "postgres"); err != nil {
			return errors.New("postgres_url must use the postgres scheme")
		}
	}
	return nil
}

func validateNumericParams(cfg *Config) error {
	if cfg.Workers <= 0 {
		return errors.New("invalid workers count")
	}
	if cfg.EventBuffer <= 0 {
		return errors.New("invalid event_buffer")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.Fees.ProtocolBps+cfg.Fees.CreatorBps+cfg.Fees.InviteBps > fee.Denominator {
		return fmt.Errorf("fee basis points sum above %d", fee.Denominator)
	}
	if cfg.Log.MaxSize < 0 || cfg.Log.MaxAge < 0 || cfg.Log.MaxBackups < 0 {
		return errors.New("invalid log rotation settings")
	}
	return nil
}

func validateURL(rawURL string, protocol string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return errors.New("invalid URL format")
	}
	if !strings.HasPrefix(parsed.Scheme, protocol) {
		return errors.New("invalid URL protocol")
	}
	return nil
}

// loadEnvironmentVariables maps keys to LAUNCHPAD_POSTGRES_URL, LAUNCHPAD_FEES_INVITE_BPS and so on.
func loadEnvironmentVariables(v *viper.Viper) {
	v.SetEnvPrefix("LAUNCHPAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Params maps the amm and fees sections onto the exchange bootstrap values.
func (c *Config) Params() exchange.Params {
	return exchange.Params{
		AmmParams: exchange.AmmParams{
			InitialVirtualTokenReserves: c.Amm.InitialVirtualTokenReserves,
			InitialVirtualSolReserves:   c.Amm.InitialVirtualSolReserves,
			InitialRealTokenReserves:    c.Amm.InitialRealTokenReserves,
			InitialTokenSupply:          c.Amm.InitialTokenSupply,
		},
		Fees: fee.Schedule{
			Protocol: c.Fees.ProtocolBps,
			Creator:  c.Fees.CreatorBps,
			Invite:   c.Fees.InviteBps,
		},
		ProtocolTokenAllocPoints: c.Fees.ProtocolTokenAllocPoints,
	}
}

func (c *Config) CurvePolicy() curve.Policy {
	return curve.Policy{SellAfterComplete: c.Policy.SellAfterComplete}
}

func (c *Config) Logger() *logger.Config {
	return &logger.Config{
		LogFile:     c.Log.File,
		MaxSize:     c.Log.MaxSize,
		MaxAge:      c.Log.MaxAge,
		MaxBackups:  c.Log.MaxBackups,
		Compress:    c.Log.Compress,
		Development: c.Log.Development,
	}
}
