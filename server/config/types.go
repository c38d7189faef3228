package config

import "time"

// Configuration object extracted from YAML configuration file.
type Configuration struct {
	Server   Server              `mapstructure:"server"`
	Auth     Auth                `mapstructure:"auth"`
	Database Database            `mapstructure:"database"`
	Redis    *RedisConfiguration `mapstructure:"redis"`
	Game     Game                `mapstructure:"game"`
	Metrics  Metrics             `mapstructure:"metrics"`
}

type Server struct {
	Port           int           `mapstructure:"port"`
	Debug          bool          `mapstructure:"debug"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	SendQueueSize  int           `mapstructure:"send_queue_size"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout"`
	ReadLimit      int64         `mapstructure:"read_limit"`
}

// Auth holds the token verification settings. Tokens are issued elsewhere.
type Auth struct {
	JwtSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

type Database struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	Dsn    string `mapstructure:"dsn"`
}

// RedisConfiguration represents the redis holding the game counter and
// the on-chain ended flags.
type RedisConfiguration struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	Password      string `mapstructure:"password"`
	DatabaseIndex int    `mapstructure:"database_index"`
}

type Game struct {
	PlatformFeePercent int           `mapstructure:"platform_fee_percent"`
	SafetyThreshold    int           `mapstructure:"safety_threshold"`
	Counter            string        `mapstructure:"counter"` // database or redis
	LedgerPollInterval time.Duration `mapstructure:"ledger_poll_interval"`
}

type Metrics struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}
