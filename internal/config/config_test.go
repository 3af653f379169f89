package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

const pool = "58oQChx4yWmvKdwLLZzBi4ChoCc2fqCUWBkwMihLYQo2"

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "database:\n  dsn: postgres://localhost/oracle\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, "local", cfg.Profile)
	require.Equal(t, 30*time.Minute, cfg.Database.Retention)
	require.Equal(t, 30*time.Minute, cfg.Database.RetentionInterval)
	require.True(t, cfg.Database.ClearOldRecords)
	require.Equal(t, 32, cfg.ChannelCapacity)
	require.Equal(t, 5*time.Minute, cfg.AverageWindow)
	require.Equal(t, DefaultAmmProgramID, cfg.AmmProgramID)
	require.Equal(t, "processed", cfg.Stream.Commitment)
	require.True(t, cfg.Stream.Reconnect)
	require.NoError(t, cfg.ValidateStore())
}

func TestLoadProfileOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `profile: prod
database:
  dsn: postgres://localhost/oracle
  retention: 10m
pools:
  - `+pool+`
stream:
  endpoint: ws://localhost:8900
rpc:
  endpoint: http://localhost:8899
`)
	writeFile(t, filepath.Join(dir, "config.prod.yaml"), `database:
  dsn: postgres://prod/oracle
pipeline:
  channel-capacity: 64
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	require.Equal(t, "prod", cfg.Profile)
	require.Equal(t, "postgres://prod/oracle", cfg.Database.DSN)
	require.Equal(t, 10*time.Minute, cfg.Database.Retention)
	require.Equal(t, 64, cfg.ChannelCapacity)
	require.Equal(t, []string{pool}, cfg.Pools)
	require.NoError(t, cfg.Validate())
}

func TestLoadEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "database:\n  dsn: postgres://file/oracle\n")

	t.Setenv("ORACLE_DATABASE_DSN", "postgres://env/oracle")
	t.Setenv("ORACLE_POOLS", pool+", ,"+pool)
	t.Setenv("ORACLE_QUERY_AVERAGE_WINDOW", "2m")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("log-level", "info", "")
	require.NoError(t, flags.Parse([]string{"--log-level=debug"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	require.Equal(t, "postgres://env/oracle", cfg.Database.DSN)
	require.Equal(t, []string{pool, pool}, cfg.Pools)
	require.Equal(t, 2*time.Minute, cfg.AverageWindow)
	require.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func validConfig() Config {
	return Config{
		Profile: "dev",
		Database: DatabaseConfig{
			DSN:               "postgres://localhost/oracle",
			MinConns:          1,
			MaxConns:          4,
			ClearOldRecords:   true,
			Retention:         time.Minute,
			RetentionInterval: time.Minute,
		},
		Pools:           []string{pool},
		Stream:          StreamConfig{Endpoint: "ws://localhost:8900", Commitment: "confirmed"},
		RPC:             RPCConfig{Endpoint: "http://localhost:8899", RPS: 1, Burst: 1},
		AmmProgramID:    DefaultAmmProgramID,
		ChannelCapacity: 8,
		AverageWindow:   time.Minute,
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cases := map[string]func(*Config){
		"profile":    func(c *Config) { c.Profile = "staging" },
		"dsn":        func(c *Config) { c.Database.DSN = "" },
		"conns":      func(c *Config) { c.Database.MinConns = 8 },
		"pools":      func(c *Config) { c.Pools = nil },
		"stream":     func(c *Config) { c.Stream.Endpoint = "" },
		"commitment": func(c *Config) { c.Stream.Commitment = "recent" },
		"rpc":        func(c *Config) { c.RPC.Endpoint = "" },
		"program":    func(c *Config) { c.AmmProgramID = "" },
		"capacity":   func(c *Config) { c.ChannelCapacity = 0 },
		"window":     func(c *Config) { c.AverageWindow = 0 },
		"retention":  func(c *Config) { c.Database.Retention = 0 },
		"maxconns":   func(c *Config) { c.Database.MaxConns = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestValidateRetentionDisabled(t *testing.T) {
	cfg := validConfig()
	cfg.Database.ClearOldRecords = false
	cfg.Database.Retention = 0
	require.NoError(t, cfg.Validate())
}
