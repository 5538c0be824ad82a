package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/screa/duco-miner/internal/crypto"
)

// DefaultFile is read when no --config flag is given
const DefaultFile = "config.yml"

// Transports
const (
	TransportTCP       = "tcp"
	TransportWebSocket = "ws"
)

// Errors
var (
	ErrNoUsername         = errors.New("username must be set")
	ErrInvalidThreadCount = errors.New("thread_count must be at least 1")
	ErrUnknownTransport   = errors.New("transport must be tcp or ws")
	ErrUnknownAlgorithm   = errors.New("algorithm must be DUCO-S1 or XXHASH")
	ErrInvalidMultiplier  = errors.New("search_multiplier must be at least 1")
)

// Backoff holds the fixed retry delays per failure category
type Backoff struct {
	Discovery time.Duration `mapstructure:"discovery"`
	Connect   time.Duration `mapstructure:"connect"`
	Session   time.Duration `mapstructure:"session"`
}

// Config holds the application configuration. It is loaded once and
// handed to every worker by value.
type Config struct {
	Username      string `mapstructure:"username"`
	MiningKey     string `mapstructure:"mining_key"`
	Difficulty    string `mapstructure:"difficulty"`
	RigIdentifier string `mapstructure:"rig_identifier"`
	ThreadCount   int    `mapstructure:"thread_count"`

	PoolURL          string        `mapstructure:"pool_url"`
	PoolAddress      string        `mapstructure:"pool_address"` // static host:port, skips discovery
	Transport        string        `mapstructure:"transport"`
	Algorithm        string        `mapstructure:"algorithm"`
	SearchMultiplier uint64        `mapstructure:"search_multiplier"`
	DiscoveryTimeout time.Duration `mapstructure:"discovery_timeout"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout"`
	IOTimeout        time.Duration `mapstructure:"io_timeout"` // 0 disables
	Backoff          Backoff       `mapstructure:"backoff"`

	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		Difficulty:       "LOW",
		RigIdentifier:    "None",
		ThreadCount:      1,
		PoolURL:          "https://server.duinocoin.com/getPool",
		Transport:        TransportTCP,
		Algorithm:        string(crypto.DUCOS1),
		SearchMultiplier: 100,
		DiscoveryTimeout: 10 * time.Second,
		DialTimeout:      10 * time.Second,
		Backoff: Backoff{
			Discovery: 5 * time.Second,
			Connect:   3 * time.Second,
			Session:   2 * time.Second,
		},
		LogLevel: "info",
	}
}

// Load reads path as YAML on top of the defaults. DUCO_* environment
// variables override file values (DUCO_THREAD_COUNT, DUCO_BACKOFF_CONNECT...).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, NewConfig())

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("duco")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("username", d.Username)
	v.SetDefault("mining_key", d.MiningKey)
	v.SetDefault("difficulty", d.Difficulty)
	v.SetDefault("rig_identifier", d.RigIdentifier)
	v.SetDefault("thread_count", d.ThreadCount)
	v.SetDefault("pool_url", d.PoolURL)
	v.SetDefault("pool_address", d.PoolAddress)
	v.SetDefault("transport", d.Transport)
	v.SetDefault("algorithm", d.Algorithm)
	v.SetDefault("search_multiplier", d.SearchMultiplier)
	v.SetDefault("discovery_timeout", d.DiscoveryTimeout)
	v.SetDefault("dial_timeout", d.DialTimeout)
	v.SetDefault("io_timeout", d.IOTimeout)
	v.SetDefault("backoff.discovery", d.Backoff.Discovery)
	v.SetDefault("backoff.connect", d.Backoff.Connect)
	v.SetDefault("backoff.session", d.Backoff.Session)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return ErrNoUsername
	}
	if c.ThreadCount < 1 {
		return ErrInvalidThreadCount
	}
	if c.Transport != TransportTCP && c.Transport != TransportWebSocket {
		return ErrUnknownTransport
	}
	if _, err := crypto.ParseAlgorithm(c.Algorithm); err != nil {
		return ErrUnknownAlgorithm
	}
	if c.SearchMultiplier < 1 {
		return ErrInvalidMultiplier
	}
	return nil
}

// HashAlgorithm returns the parsed job algorithm, DUCO-S1 when unset
func (c *Config) HashAlgorithm() crypto.Algorithm {
	alg, err := crypto.ParseAlgorithm(c.Algorithm)
	if err != nil {
		return crypto.DUCOS1
	}
	return alg
}

// PoolDescription returns a human-readable description of where the pool comes from
func (c *Config) PoolDescription() string {
	if c.PoolAddress != "" {
		return "static " + c.Transport + "://" + c.PoolAddress
	}
	return "discovered via " + c.PoolURL
}
