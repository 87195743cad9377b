package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

var ErrInvalid = errors.New("invalid configuration")

// Config is filled from defaults, then the YAML file, then the PORT
// environment variable, then explicitly set flags.
type Config struct {
	ListenAddr string `yaml:"listenAddr"`
	StaticDir  string `yaml:"staticDir"`
	LogLevel   string `yaml:"logLevel"`
	SendBuffer int    `yaml:"sendBuffer"`

	Sync    Sync    `yaml:"sync"`
	Cleanup Cleanup `yaml:"cleanup"`

	StatusInterval time.Duration `yaml:"statusInterval"`
}

type Sync struct {
	Tick  time.Duration `yaml:"tick"`
	Stale time.Duration `yaml:"stale"`
}

type Cleanup struct {
	Interval   time.Duration `yaml:"interval"`
	RoomMaxAge time.Duration `yaml:"roomMaxAge"`
}

func Default() Config {
	return Config{
		ListenAddr: ":3000",
		StaticDir:  ".",
		LogLevel:   "debug",
		SendBuffer: 64,
		Sync: Sync{
			Tick:  time.Second,
			Stale: 5 * time.Second,
		},
		Cleanup: Cleanup{
			Interval:   time.Hour,
			RoomMaxAge: time.Hour,
		},
		StatusInterval: 30 * time.Second,
	}
}

// Load parses args (without the program name) and builds the configuration.
func Load(args []string, getenv func(string) string) (Config, error) {
	var (
		cfg = Default()
		fs  = pflag.NewFlagSet("lysn", pflag.ContinueOnError)

		configPath     = fs.StringP("config", "c", "", "path to yaml config file")
		listenAddr     = fs.StringP("listen-addr", "a", cfg.ListenAddr, "http and websocket listen address")
		staticDir      = fs.StringP("static-dir", "s", cfg.StaticDir, "directory with index.html")
		logLevel       = fs.StringP("log-level", "l", cfg.LogLevel, "log level")
		sendBuffer     = fs.Int("send-buffer", cfg.SendBuffer, "per-connection outbound queue size")
		syncTick       = fs.Duration("sync-tick", cfg.Sync.Tick, "sync reconciliation tick")
		syncStale      = fs.Duration("sync-stale", cfg.Sync.Stale, "re-broadcast anchors older than this")
		cleanupEvery   = fs.Duration("cleanup-interval", cfg.Cleanup.Interval, "stale room cleanup interval")
		roomMaxAge     = fs.Duration("room-max-age", cfg.Cleanup.RoomMaxAge, "age after which empty rooms are cleaned up")
		statusInterval = fs.Duration("status-interval", cfg.StatusInterval, "status report interval")
	)
	if err := fs.Parse(args); err != nil {
		return cfg, errors.Join(ErrInvalid, err)
	}

	if *configPath != "" {
		if err := loadFile(*configPath, &cfg); err != nil {
			return cfg, err
		}
	}
	if port := getenv("PORT"); port != "" {
		cfg.ListenAddr = ":" + port
	}

	overrides := map[string]func(){
		"listen-addr":      func() { cfg.ListenAddr = *listenAddr },
		"static-dir":       func() { cfg.StaticDir = *staticDir },
		"log-level":        func() { cfg.LogLevel = *logLevel },
		"send-buffer":      func() { cfg.SendBuffer = *sendBuffer },
		"sync-tick":        func() { cfg.Sync.Tick = *syncTick },
		"sync-stale":       func() { cfg.Sync.Stale = *syncStale },
		"cleanup-interval": func() { cfg.Cleanup.Interval = *cleanupEvery },
		"room-max-age":     func() { cfg.Cleanup.RoomMaxAge = *roomMaxAge },
		"status-interval":  func() { cfg.StatusInterval = *statusInterval },
	}
	for name, apply := range overrides {
		if fs.Changed(name) {
			apply()
		}
	}
	return cfg, cfg.validate()
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err = yaml.Unmarshal(data, cfg); err != nil {
		return errors.Join(ErrInvalid, fmt.Errorf("parse config: %w", err))
	}
	return nil
}

func (c *Config) validate() error {
	if c.ListenAddr == "" {
		return errors.Join(ErrInvalid, errors.New("listen address is required"))
	}
	if c.SendBuffer <= 0 {
		return errors.Join(ErrInvalid, errors.New("send buffer must be positive"))
	}
	for name, d := range map[string]time.Duration{
		"sync tick":        c.Sync.Tick,
		"sync stale":       c.Sync.Stale,
		"cleanup interval": c.Cleanup.Interval,
		"room max age":     c.Cleanup.RoomMaxAge,
		"status interval":  c.StatusInterval,
	} {
		if d <= 0 {
			return errors.Join(ErrInvalid, fmt.Errorf("%s must be positive", name))
		}
	}
	return nil
}
