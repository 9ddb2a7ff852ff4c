package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

type AppConfig struct {
	Server        Server        `yaml:"server"`
	Backend       Backend       `yaml:"backend"`
	Cache         Cache         `yaml:"cache"`
	Join          Join          `yaml:"join"`
	Notifications Notifications `yaml:"notifications"`
	Log           Log           `yaml:"log"`
}

const (
	defaultApiPort         = 8080
	defaultMetricsPort     = 9080
	defaultBackendTimeout  = 15 * time.Second
	defaultNotificationTTL = 3 * time.Second
	defaultRedisChannel    = "admin:notifications"
	defaultFetchTimeout    = 30 * time.Second
	defaultFetchWorkers    = 64
)

// Default returns a config with every optional value filled in.
func Default() AppConfig {
	return AppConfig{
		Server: Server{ApiPort: defaultApiPort, MetricsPort: defaultMetricsPort},
		Backend: Backend{
			Timeout: defaultBackendTimeout,
		},
		Cache: Cache{
			FetchTimeout: defaultFetchTimeout,
			Concurrency:  defaultFetchWorkers,
		},
		Join: Join{
			NumCounters: 10000,
			BufferItems: 64,
			MaxCost:     "16MB",
			TTL:         10 * time.Minute,
		},
		Notifications: Notifications{
			Life: defaultNotificationTTL,
			Redis: Redis{
				Port:     6379,
				PoolSize: 10,
				Timeout:  time.Second,
				Channel:  defaultRedisChannel,
			},
		},
		Log: Log{Level: "info"},
	}
}

func (c *AppConfig) Validate() error {
	if err := c.Server.validate(); err != nil {
		return err
	}
	if err := c.Backend.validate(); err != nil {
		return err
	}
	if err := c.Cache.validate(); err != nil {
		return err
	}
	if err := c.Join.validate(); err != nil {
		return err
	}
	if err := c.Notifications.validate(); err != nil {
		return err
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level '%s'", c.Log.Level)
	}
	return nil
}

///////////////////////////////////////////////////////////
/// Server
///////////////////////////////////////////////////////////

type Server struct {
	ApiPort     int `yaml:"apiPort"`
	MetricsPort int `yaml:"metricsPort"`
}

func (s Server) validate() error {
	if s.ApiPort <= 0 || s.ApiPort > 65535 {
		return fmt.Errorf("server: apiPort must be 1..65535")
	}
	if s.MetricsPort <= 0 || s.MetricsPort > 65535 {
		return fmt.Errorf("server: metricsPort must be 1..65535")
	}
	if s.ApiPort == s.MetricsPort {
		return fmt.Errorf("server: apiPort and metricsPort must differ")
	}
	return nil
}

///////////////////////////////////////////////////////////
/// Backend
///////////////////////////////////////////////////////////

type Backend struct {
	BaseURL string            `yaml:"baseURL"`
	Timeout time.Duration     `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
}

func (b Backend) validate() error {
	if b.BaseURL == "" {
		return fmt.Errorf("backend: baseURL is required")
	}
	u, err := url.Parse(b.BaseURL)
	if err != nil {
		return fmt.Errorf("backend: invalid baseURL '%s': %v", b.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("backend: unsupported scheme '%s' in baseURL", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("backend: missing host in baseURL '%s'", b.BaseURL)
	}
	if b.Timeout <= 0 {
		return fmt.Errorf("backend: timeout must be > 0")
	}
	return nil
}

///////////////////////////////////////////////////////////
/// Cache
///////////////////////////////////////////////////////////

// Cache configures the query cache. MaxEntries of 0 keeps every entry.
// FetchTimeout bounds a shared fetch regardless of who waits on it; 0 leaves
// it to the backend timeout.
type Cache struct {
	MaxEntries   int           `yaml:"maxEntries"`
	FetchTimeout time.Duration `yaml:"fetchTimeout"`
	Concurrency  int           `yaml:"concurrency"`
}

func (c Cache) validate() error {
	if c.MaxEntries < 0 {
		return fmt.Errorf("cache: maxEntries must be >= 0")
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("cache: fetchTimeout must be >= 0")
	}
	if c.Concurrency <= 0 {
		return fmt.Errorf("cache: concurrency must be > 0")
	}
	return nil
}

///////////////////////////////////////////////////////////
/// Join memo (ristretto)
///////////////////////////////////////////////////////////

type Join struct {
	NumCounters int64         `yaml:"numCounters"`
	BufferItems int64         `yaml:"bufferItems"`
	MaxCost     string        `yaml:"maxCost"`
	TTL         time.Duration `yaml:"ttl"`
}

func (j Join) MaxCostBytes() (uint64, error) {
	return ParseBytesStr(j.MaxCost, "join -> maxCost")
}

func (j Join) validate() error {
	if j.NumCounters <= 0 {
		return fmt.Errorf("join: numCounters must be > 0")
	}
	if j.BufferItems <= 0 {
		return fmt.Errorf("join: bufferItems must be > 0")
	}
	if bytes, err := ParseByteSize(j.MaxCost); err != nil || bytes == 0 {
		return fmt.Errorf("join: invalid maxCost '%s'", j.MaxCost)
	}
	if j.TTL < 0 {
		return fmt.Errorf("join: ttl must be >= 0")
	}
	return nil
}

///////////////////////////////////////////////////////////
/// Notifications
///////////////////////////////////////////////////////////

type Notifications struct {
	Life  time.Duration `yaml:"life"`
	Redis Redis         `yaml:"redis"`
}

type Redis struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	Timeout  time.Duration `yaml:"timeout"`
	Channel  string        `yaml:"channel"`
}

func (n Notifications) validate() error {
	if n.Life <= 0 {
		return fmt.Errorf("notifications: life must be > 0")
	}
	r := n.Redis
	if !r.Enabled {
		return nil
	}
	if r.Host == "" {
		return fmt.Errorf("notifications.redis: host is required")
	}
	if r.Port <= 0 || r.Port > 65535 {
		return fmt.Errorf("notifications.redis: port must be 1..65535")
	}
	if r.PoolSize <= 0 {
		return fmt.Errorf("notifications.redis: poolSize must be > 0")
	}
	if r.Timeout <= 0 {
		return fmt.Errorf("notifications.redis: timeout must be > 0")
	}
	if r.Channel == "" {
		return fmt.Errorf("notifications.redis: channel is required")
	}
	return nil
}

///////////////////////////////////////////////////////////
/// Log
///////////////////////////////////////////////////////////

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

///////////////////////////////////////////////////////////
/// UTILS
///////////////////////////////////////////////////////////

func ParseByteSize(s string) (uint64, error) {
	return humanize.ParseBytes(strings.TrimSpace(s))
}

func ParseBytesStr(bytesString string, errorPath string) (uint64, error) {
	bytes, err := ParseByteSize(bytesString)
	if err != nil {
		return 0, fmt.Errorf("invalid config -> %v: %v has wrong value (%v)", errorPath, bytesString, err)
	}
	return bytes, nil
}
