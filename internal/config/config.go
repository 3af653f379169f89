package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultAmmProgramID is the AMM v4 program on mainnet.
const DefaultAmmProgramID = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"

var profiles = map[string]bool{"local": true, "dev": true, "prod": true}

var commitments = map[string]bool{"processed": true, "confirmed": true, "finalized": true}

// Config holds configuration values loaded from flags, env, or config files.
type Config struct {
	Profile         string
	Database        DatabaseConfig
	Pools           []string
	Stream          StreamConfig
	RPC             RPCConfig
	AmmProgramID    string
	ChannelCapacity int
	AverageWindow   time.Duration
	HTTPListen      string
	Redis           RedisConfig
	JournalPath     string
	LogLevel        string
	LogFile         string
}

type DatabaseConfig struct {
	DSN               string
	MinConns          int32
	MaxConns          int32
	ConnRetries       int
	RetryBackoff      time.Duration
	ClearOldRecords   bool
	Retention         time.Duration
	RetentionInterval time.Duration
}

type StreamConfig struct {
	Endpoint   string
	Commitment string
	Reconnect  bool
	BackoffMax time.Duration
}

type RPCConfig struct {
	Endpoint string
	RPS      float64
	Burst    int
}

type RedisConfig struct {
	Addr    string
	Channel string
}

// flagKeys maps command line flags to their config keys.
var flagKeys = map[string]string{
	"profile":           "profile",
	"pg-dsn":            "database.dsn",
	"pool":              "pools",
	"stream-endpoint":   "stream.endpoint",
	"rpc-endpoint":      "rpc.endpoint",
	"http-listen":       "http.listen",
	"log-level":         "log.level",
	"log-file":          "log.file",
	"average-window":    "query.average-window",
	"channel-capacity":  "pipeline.channel-capacity",
	"clear-old-records": "database.clear-old-records",
}

// Load reads .env, then the base config file merged with its profile
// overlay, then ORACLE_* environment variables and flags.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("ORACLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := readConfig(v, cfgFile); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Profile: strings.ToLower(v.GetString("profile")),
		Database: DatabaseConfig{
			DSN:               v.GetString("database.dsn"),
			MinConns:          v.GetInt32("database.min-conns"),
			MaxConns:          v.GetInt32("database.max-conns"),
			ConnRetries:       v.GetInt("database.conn-retries"),
			RetryBackoff:      v.GetDuration("database.retry-backoff"),
			ClearOldRecords:   v.GetBool("database.clear-old-records"),
			Retention:         v.GetDuration("database.retention"),
			RetentionInterval: v.GetDuration("database.retention-interval"),
		},
		Pools: getStringSlice(v, "pools"),
		Stream: StreamConfig{
			Endpoint:   v.GetString("stream.endpoint"),
			Commitment: strings.ToLower(v.GetString("stream.commitment")),
			Reconnect:  v.GetBool("stream.reconnect"),
			BackoffMax: v.GetDuration("stream.backoff-max"),
		},
		RPC: RPCConfig{
			Endpoint: v.GetString("rpc.endpoint"),
			RPS:      v.GetFloat64("rpc.rps"),
			Burst:    v.GetInt("rpc.burst"),
		},
		AmmProgramID:    v.GetString("amm.program-id"),
		ChannelCapacity: v.GetInt("pipeline.channel-capacity"),
		AverageWindow:   v.GetDuration("query.average-window"),
		HTTPListen:      v.GetString("http.listen"),
		Redis: RedisConfig{
			Addr:    v.GetString("redis.addr"),
			Channel: v.GetString("redis.channel"),
		},
		JournalPath: v.GetString("journal.path"),
		LogLevel:    v.GetString("log.level"),
		LogFile:     v.GetString("log.file"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("profile", "local")
	v.SetDefault("database.min-conns", 1)
	v.SetDefault("database.max-conns", 10)
	v.SetDefault("database.conn-retries", 5)
	v.SetDefault("database.retry-backoff", 500*time.Millisecond)
	v.SetDefault("database.clear-old-records", true)
	v.SetDefault("database.retention", 30*time.Minute)
	v.SetDefault("database.retention-interval", 30*time.Minute)
	v.SetDefault("stream.commitment", "processed")
	v.SetDefault("stream.reconnect", true)
	v.SetDefault("stream.backoff-max", 30*time.Second)
	v.SetDefault("rpc.rps", 10.0)
	v.SetDefault("rpc.burst", 5)
	v.SetDefault("amm.program-id", DefaultAmmProgramID)
	v.SetDefault("pipeline.channel-capacity", 32)
	v.SetDefault("query.average-window", 5*time.Minute)
	v.SetDefault("http.listen", ":8080")
	v.SetDefault("redis.channel", "pool_prices")
	v.SetDefault("log.level", "info")
}

// readConfig reads the base file and merges config.<profile>.<ext> from the
// same directory when it exists.
func readConfig(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config: %w", err)
		}
		ext := filepath.Ext(cfgFile)
		base := strings.TrimSuffix(cfgFile, ext)
		overlay := fmt.Sprintf("%s.%s%s", base, strings.ToLower(v.GetString("profile")), ext)
		if _, err := os.Stat(overlay); err != nil {
			return nil
		}
		v.SetConfigFile(overlay)
		if err := v.MergeInConfig(); err != nil {
			return fmt.Errorf("merge profile config: %w", err)
		}
		return nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}
	v.SetConfigName("config." + strings.ToLower(v.GetString("profile")))
	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("merge profile config: %w", err)
		}
	}
	return nil
}

// ValidateStore checks the settings every command needs.
func (c Config) ValidateStore() error {
	if !profiles[c.Profile] {
		return fmt.Errorf("unknown profile %q", c.Profile)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Database.MinConns < 0 || c.Database.MaxConns <= 0 {
		return fmt.Errorf("database connection limits must be positive")
	}
	if c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("database min conns %d exceeds max conns %d", c.Database.MinConns, c.Database.MaxConns)
	}
	if c.AverageWindow <= 0 {
		return fmt.Errorf("average window must be greater than zero")
	}
	return nil
}

// Validate checks everything the price fetcher needs to run.
func (c Config) Validate() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if len(c.Pools) == 0 {
		return fmt.Errorf("at least one pool is required")
	}
	if c.Stream.Endpoint == "" {
		return fmt.Errorf("stream endpoint is required")
	}
	if !commitments[c.Stream.Commitment] {
		return fmt.Errorf("unknown stream commitment %q", c.Stream.Commitment)
	}
	if c.RPC.Endpoint == "" {
		return fmt.Errorf("rpc endpoint is required")
	}
	if c.AmmProgramID == "" {
		return fmt.Errorf("amm program id is required")
	}
	if c.ChannelCapacity <= 0 {
		return fmt.Errorf("channel capacity must be greater than zero")
	}
	if c.Database.ClearOldRecords && (c.Database.Retention <= 0 || c.Database.RetentionInterval <= 0) {
		return fmt.Errorf("retention and retention interval must be greater than zero")
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
