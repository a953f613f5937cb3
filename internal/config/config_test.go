package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/designtech/dtchain/internal/config"
	"github.com/designtech/dtchain/internal/ledger"
	"github.com/spf13/viper"
)

func TestLoad_defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := config.Load(viper.New(), "dtchain")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ledger.Algorithm != "sha256" {
		t.Errorf("algorithm: got %q", cfg.Ledger.Algorithm)
	}
	if cfg.Ledger.GenesisPayload != "Genesis Block" {
		t.Errorf("genesis payload: got %q", cfg.Ledger.GenesisPayload)
	}
	if cfg.Server.Port != 8080 || cfg.Server.GRPCPort != 9090 {
		t.Errorf("ports: got %d/%d", cfg.Server.Port, cfg.Server.GRPCPort)
	}
	if cfg.Server.MaxCount != 10000 || cfg.Server.RateLimitRPS != 20 {
		t.Errorf("limits: got max_count=%d rps=%d", cfg.Server.MaxCount, cfg.Server.RateLimitRPS)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "http://localhost:3000" {
		t.Errorf("cors origins: got %v", cfg.Server.CORSOrigins)
	}
}

func TestLoad_fileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	body := `
ledger:
  algorithm: blake2b-256
  genesis_payload: "origin"
  payload_format: "entry-%d"
server:
  port: 9999
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("DTCHAIN_SERVER_MAX_COUNT", "42")

	v := viper.New()
	v.SetConfigFile(path)
	cfg, err := config.Load(v, "ignored")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Ledger.Algorithm != "blake2b-256" || cfg.Ledger.GenesisPayload != "origin" {
		t.Errorf("ledger settings not read from file: %+v", cfg.Ledger)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port: got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxCount != 42 {
		t.Errorf("env override: max_count=%d, want 42", cfg.Server.MaxCount)
	}
}

func TestLoad_invalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	if err := os.WriteFile(path, []byte("ledger: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	v := viper.New()
	v.SetConfigFile(path)
	if _, err := config.Load(v, "broken"); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *config.Config {
		return &config.Config{
			Ledger: config.LedgerConfig{Algorithm: "sha256", PayloadFormat: "block%ddata"},
			Server: config.ServerConfig{MaxCount: 10},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown algorithm", func(c *config.Config) { c.Ledger.Algorithm = "crc32" }, "ledger.algorithm"},
		{"no verb", func(c *config.Config) { c.Ledger.PayloadFormat = "block" }, "payload_format"},
		{"two verbs", func(c *config.Config) { c.Ledger.PayloadFormat = "%d-%d" }, "payload_format"},
		{"wrong verb", func(c *config.Config) { c.Ledger.PayloadFormat = "block%s" }, "payload_format"},
		{"zero max count", func(c *config.Config) { c.Server.MaxCount = 0 }, "max_count"},
		{"negative rps", func(c *config.Config) { c.Server.RateLimitRPS = -1 }, "rate_limit_rps"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := valid()
			tc.mutate(c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestFactory_usesLedgerSettings(t *testing.T) {
	cfg := &config.Config{
		Ledger: config.LedgerConfig{Algorithm: "sha512", GenesisPayload: "start", PayloadFormat: "rec-%d"},
		Server: config.ServerConfig{MaxCount: 10},
	}
	f, err := cfg.Factory(ledger.WithClock(func() time.Time { return time.Unix(0, 0) }))
	if err != nil {
		t.Fatal(err)
	}
	c, err := ledger.NewBuilder(f, nil).Build(3)
	if err != nil {
		t.Fatal(err)
	}
	if c.At(0).Payload() != "start" || c.At(2).Payload() != "rec-2" {
		t.Errorf("unexpected payloads %q, %q", c.At(0).Payload(), c.At(2).Payload())
	}
	if len(c.At(0).Digest()) != 64 {
		t.Errorf("expected sha512 digests, got %d bytes", len(c.At(0).Digest()))
	}
}

// chdir changes the working directory for the duration of the test, like
// testing.T.Chdir (Go 1.24+), and restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
