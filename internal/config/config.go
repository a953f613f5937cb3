// Package config loads dtchain settings from a YAML file, environment
// variables and built-in defaults through viper.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/designtech/dtchain/internal/digest"
	"github.com/designtech/dtchain/internal/ledger"
	"github.com/spf13/viper"
)

// Config holds every setting used by the CLI and the daemon.
type Config struct {
	Ledger LedgerConfig
	Server ServerConfig
	Log    LogConfig
}

// LedgerConfig controls how records are produced.
type LedgerConfig struct {
	Algorithm      string `mapstructure:"algorithm"`
	GenesisPayload string `mapstructure:"genesis_payload"`
	PayloadFormat  string `mapstructure:"payload_format"` // must contain exactly one %d
}

// ServerConfig controls the HTTP and gRPC listeners of dtchaind.
type ServerConfig struct {
	Port         int      `mapstructure:"port"`
	GRPCPort     int      `mapstructure:"grpc_port"` // 0 disables the gRPC health server
	CORSOrigins  []string `mapstructure:"cors_origins"`
	RateLimitRPS int      `mapstructure:"rate_limit_rps"`
	MaxCount     int      `mapstructure:"max_count"`
}

// LogConfig selects the zap logger preset.
type LogConfig struct {
	Development bool `mapstructure:"development"`
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("ledger.algorithm", digest.SHA256)
	v.SetDefault("ledger.genesis_payload", ledger.DefaultGenesisPayload)
	v.SetDefault("ledger.payload_format", "block%ddata")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.grpc_port", 9090)
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.rate_limit_rps", 20)
	v.SetDefault("server.max_count", 10000)
	v.SetDefault("log.development", false)
}

// Load reads <name>.yaml from ./configs or the working directory (unless v
// already has an explicit config file set), overlays DTCHAIN_* environment
// variables, and validates the result. A missing config file is not an
// error.
func Load(v *viper.Viper, name string) (*Config, error) {
	SetDefaults(v)

	if v.ConfigFileUsed() == "" {
		v.SetConfigName(name)
		v.SetConfigType("yaml")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("dtchain")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgNotFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail later at request time.
func (c *Config) Validate() error {
	if _, err := digest.New(c.Ledger.Algorithm); err != nil {
		return fmt.Errorf("ledger.algorithm: %w", err)
	}
	if n := strings.Count(c.Ledger.PayloadFormat, "%"); n != 1 || !strings.Contains(c.Ledger.PayloadFormat, "%d") {
		return fmt.Errorf("ledger.payload_format %q must contain exactly one %%d verb", c.Ledger.PayloadFormat)
	}
	if c.Server.MaxCount <= 0 {
		return fmt.Errorf("server.max_count must be positive, got %d", c.Server.MaxCount)
	}
	if c.Server.RateLimitRPS < 0 {
		return fmt.Errorf("server.rate_limit_rps must not be negative, got %d", c.Server.RateLimitRPS)
	}
	return nil
}

// Engine returns the digest engine named by ledger.algorithm.
func (c *Config) Engine() (*digest.Engine, error) {
	return digest.New(c.Ledger.Algorithm)
}

// Factory builds the record factory described by the ledger settings.
func (c *Config) Factory(opts ...ledger.FactoryOption) (*ledger.Factory, error) {
	engine, err := c.Engine()
	if err != nil {
		return nil, err
	}
	format := c.Ledger.PayloadFormat
	base := []ledger.FactoryOption{
		ledger.WithGenesisPayload(c.Ledger.GenesisPayload),
		ledger.WithPayloadFunc(func(index int) string {
			return fmt.Sprintf(format, index)
		}),
	}
	return ledger.NewFactory(engine, append(base, opts...)...), nil
}
