package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	APIURL string `yaml:"api_url"` // base of the runner/record REST endpoints
	WSURL  string `yaml:"ws_url"`  // base of the live feed endpoint

	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	HTTPTimeout    time.Duration `yaml:"http_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"` // 0 disables the feed read deadline
	RequestsPerSec float64       `yaml:"requests_per_sec"`
	RequestBurst   int           `yaml:"request_burst"`
	JournalPath    string        `yaml:"journal_path"`
	JournalFormat  string        `yaml:"journal_format"` // "jsonl" or "sqlite"
	LogLevel       string        `yaml:"log_level"`

	// Dashboard
	DashboardHost string `yaml:"dashboard_host"`
	DashboardPort int    `yaml:"dashboard_port"`
}

func Default() *Config {
	return &Config{
		APIURL:         "http://localhost:8000",
		WSURL:          "ws://localhost:8000",
		ReconnectDelay: 2 * time.Second,
		HTTPTimeout:    10 * time.Second,
		RequestsPerSec: 5,
		RequestBurst:   2,
		JournalFormat:  "jsonl",
		LogLevel:       "info",
		DashboardHost:  "localhost",
		DashboardPort:  8080,
	}
}

// FeedURL returns the live feed endpoint for a simulation.
func (c *Config) FeedURL(id string) string {
	return strings.TrimRight(c.WSURL, "/") + "/ws/simulation/" + url.PathEscape(id)
}

func (c *Config) DashboardAddr() string {
	return fmt.Sprintf("%s:%d", c.DashboardHost, c.DashboardPort)
}

// Load reads .env, then the optional YAML file named by SIMWATCH_CONFIG, then
// environment overrides.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("SIMWATCH_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.APIURL = getEnvDefault("SIMWATCH_API_URL", cfg.APIURL)
	cfg.WSURL = getEnvDefault("SIMWATCH_WS_URL", cfg.WSURL)
	cfg.ReconnectDelay = getEnvDuration("SIMWATCH_RECONNECT_DELAY", cfg.ReconnectDelay)
	cfg.HTTPTimeout = getEnvDuration("SIMWATCH_HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.ReadTimeout = getEnvDuration("SIMWATCH_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.RequestsPerSec = getEnvFloat("SIMWATCH_REQUESTS_PER_SEC", cfg.RequestsPerSec)
	cfg.RequestBurst = getEnvInt("SIMWATCH_REQUEST_BURST", cfg.RequestBurst)
	cfg.JournalPath = getEnvDefault("SIMWATCH_JOURNAL_PATH", cfg.JournalPath)
	cfg.JournalFormat = getEnvDefault("SIMWATCH_JOURNAL_FORMAT", cfg.JournalFormat)
	cfg.LogLevel = getEnvDefault("LOG_LEVEL", cfg.LogLevel)
	cfg.DashboardHost = getEnvDefault("DASHBOARD_HOST", cfg.DashboardHost)
	cfg.DashboardPort = getEnvInt("DASHBOARD_PORT", cfg.DashboardPort)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) Validate() error {
	if err := checkURL(c.APIURL, "http", "https"); err != nil {
		return fmt.Errorf("SIMWATCH_API_URL: %w", err)
	}
	if err := checkURL(c.WSURL, "ws", "wss"); err != nil {
		return fmt.Errorf("SIMWATCH_WS_URL: %w", err)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("SIMWATCH_RECONNECT_DELAY must be positive, got %s", c.ReconnectDelay)
	}
	if c.RequestsPerSec <= 0 {
		return fmt.Errorf("SIMWATCH_REQUESTS_PER_SEC must be positive, got %v", c.RequestsPerSec)
	}
	if c.RequestBurst < 1 {
		c.RequestBurst = 1
	}
	if c.JournalFormat != "jsonl" && c.JournalFormat != "sqlite" {
		return fmt.Errorf("SIMWATCH_JOURNAL_FORMAT must be 'jsonl' or 'sqlite', got %q", c.JournalFormat)
	}
	return nil
}

func checkURL(raw string, schemes ...string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("want %s URL, got %q", strings.Join(schemes, "/"), raw)
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
