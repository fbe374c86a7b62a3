// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"stepchess/internal/archive"
	"stepchess/internal/cost"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// AntiCheat bounds step submissions.
type AntiCheat struct {
	MaxStepsPerCall int64 `env:"STEPCHESS_MAX_STEPS_PER_CALL" envDefault:"10000"`
	// 0 disables the hourly cap.
	MaxStepsPerHour int64 `env:"STEPCHESS_MAX_STEPS_PER_HOUR" envDefault:"50000"`
}

// Matchmaking controls the queue pairer.
type Matchmaking struct {
	DefaultPreset string        `env:"STEPCHESS_MATCH_PRESET"         envDefault:"balanced"`
	DefaultMode   string        `env:"STEPCHESS_MATCH_COST_MODE"      envDefault:"baseDistance"`
	SweepInterval time.Duration `env:"STEPCHESS_MATCH_SWEEP_INTERVAL" envDefault:"15s"`
}

// Archive locates the bucket finished games are exported to. An empty bucket
// disables the export.
type Archive struct {
	Bucket          string `env:"STEPCHESS_ARCHIVE_BUCKET"`
	Prefix          string `env:"STEPCHESS_ARCHIVE_PREFIX"`
	Region          string `env:"STEPCHESS_ARCHIVE_REGION"            envDefault:"auto"`
	Endpoint        string `env:"STEPCHESS_ARCHIVE_ENDPOINT"`
	AccessKeyID     string `env:"STEPCHESS_ARCHIVE_ACCESS_KEY_ID"`
	SecretAccessKey string `env:"STEPCHESS_ARCHIVE_SECRET_ACCESS_KEY"`
}

// Enabled reports whether a bucket is configured.
func (a Archive) Enabled() bool { return a.Bucket != "" }

// Settings converts to archive settings.
func (a Archive) Settings() archive.Settings {
	return archive.Settings{
		Bucket:          a.Bucket,
		Prefix:          a.Prefix,
		Region:          a.Region,
		Endpoint:        a.Endpoint,
		AccessKeyID:     a.AccessKeyID,
		SecretAccessKey: a.SecretAccessKey,
	}
}

// Config is read once at start and passed to every component that needs it.
type Config struct {
	Addr           string        `env:"STEPCHESS_ADDR"            envDefault:":8080"`
	Debug          bool          `env:"STEPCHESS_DEBUG"`
	StoreDriver    string        `env:"STEPCHESS_STORE"           envDefault:"memory"`
	DatabaseURL    string        `env:"STEPCHESS_DATABASE_URL"`
	RedisURL       string        `env:"STEPCHESS_REDIS_URL"`
	LiveCacheTTL   time.Duration `env:"STEPCHESS_LIVE_CACHE_TTL"  envDefault:"24h"`
	RequestTimeout time.Duration `env:"STEPCHESS_REQUEST_TIMEOUT" envDefault:"5s"`
	AllowSelfPlay  bool          `env:"STEPCHESS_ALLOW_SELF_PLAY"`
	GatewayToken   string        `env:"STEPCHESS_GATEWAY_TOKEN"`

	LeaderboardSweep time.Duration `env:"STEPCHESS_LEADERBOARD_SWEEP_INTERVAL" envDefault:"1m"`

	AntiCheat   AntiCheat
	Matchmaking Matchmaking
	Archive     Archive
}

// Load reads .env files when present, then the process environment.
func Load(files ...string) (Config, error) {
	// a missing .env is fine
	_ = godotenv.Load(files...)
	return parse(env.Options{})
}

// FromMap parses cfg from vars instead of the process environment.
func FromMap(vars map[string]string) (Config, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.StoreDriver) {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("STEPCHESS_DATABASE_URL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.StoreDriver))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.AntiCheat.MaxStepsPerCall <= 0 {
		errs = append(errs, errors.New("max steps per call must be positive"))
	}
	if c.AntiCheat.MaxStepsPerHour < 0 {
		errs = append(errs, errors.New("max steps per hour cannot be negative"))
	}
	if _, ok := cost.NewRegistry(cost.DefaultPresets()...).Lookup(c.Matchmaking.DefaultPreset); !ok {
		errs = append(errs, fmt.Errorf("unknown match preset %q", c.Matchmaking.DefaultPreset))
	}
	if _, ok := cost.ParseMode(c.Matchmaking.DefaultMode); !ok {
		errs = append(errs, fmt.Errorf("unknown match cost mode %q", c.Matchmaking.DefaultMode))
	}
	if c.Matchmaking.SweepInterval <= 0 || c.LeaderboardSweep <= 0 {
		errs = append(errs, errors.New("sweep intervals must be positive"))
	}
	return errors.Join(errs...)
}
