// Package config loads raidtrackd's TOML configuration over defaults, so a
// partial or missing file still yields a runnable setup.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server  ServerConfig  `toml:"server"`
	Paths   PathsConfig   `toml:"paths"`
	Capture CaptureConfig `toml:"capture"`
	Metrics MetricsConfig `toml:"metrics"`
	Stats   StatsConfig   `toml:"stats"`
	Logging LoggingConfig `toml:"logging"`
}

// ServerConfig holds the port printed in the startup banner; raidtrackd
// opens no listener on it.
type ServerConfig struct {
	Port      int   `toml:"port"`
	StartTime int64 // set at boot, not from config
}

// PathsConfig names the files and directories raidtrackd reads and writes.
// The metadata tables must exist; a missing region file or scripts
// directory is tolerated, and the local-player file and database are
// created when absent.
type PathsConfig struct {
	RegionPath      string `toml:"region_path"`
	LocalPlayerPath string `toml:"local_player_path"`
	DatabasePath    string `toml:"database_path"`
	MetadataDir     string `toml:"metadata_dir"`
	ScriptsDir      string `toml:"scripts_dir"`
}

// CaptureConfig holds the main loop's timing and behavior knobs.
type CaptureConfig struct {
	RaidEndCaptureTimeout time.Duration `toml:"raid_end_capture_timeout"`
	SnapshotPeriod        time.Duration `toml:"snapshot_period"`
	SnapshotPeriodLowPerf time.Duration `toml:"snapshot_period_low_perf"`
	PartySnapshotPeriod   time.Duration `toml:"party_snapshot_period"`
	BossOnlyDamage        bool          `toml:"boss_only_damage"`
	LowPerformanceMode    bool          `toml:"low_performance_mode"`
	HideNames             bool          `toml:"hide_names"`
}

// MetricsConfig points at the HeartbeatApi endpoint.
type MetricsConfig struct {
	Enabled        bool          `toml:"enabled"`
	Endpoint       string        `toml:"endpoint"`
	BeatInterval   time.Duration `toml:"beat_interval"`
	RequestTimeout time.Duration `toml:"request_timeout"`
}

// StatsConfig points at the StatsApi endpoint and bounds its local cache.
type StatsConfig struct {
	Endpoint       string        `toml:"endpoint"`
	RequestTimeout time.Duration `toml:"request_timeout"`
	CacheSize      int           `toml:"cache_size"`
	CacheTTL       time.Duration `toml:"cache_ttl"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "json" or "console"
}

// Load reads path, merging it over defaults() so a partial TOML file is
// valid.
func Load(path string) (*Config, error) {
	cfg := defaults()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg.Server.StartTime = time.Now().Unix()
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Server.StartTime = time.Now().Unix()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 31337,
		},
		Paths: PathsConfig{
			RegionPath:      "./data/region.yaml",
			LocalPlayerPath: "./data/local_player.yaml",
			DatabasePath:    "./data/raidtrack.db",
			MetadataDir:     "./data/metadata",
			ScriptsDir:      "./data/scripts",
		},
		Capture: CaptureConfig{
			RaidEndCaptureTimeout: 10 * time.Second,
			SnapshotPeriod:        500 * time.Millisecond,
			SnapshotPeriodLowPerf: 1500 * time.Millisecond,
			PartySnapshotPeriod:   2000 * time.Millisecond,
			BossOnlyDamage:        false,
			LowPerformanceMode:    false,
			HideNames:             false,
		},
		Metrics: MetricsConfig{
			Enabled:        true,
			Endpoint:       "https://stats.raidtrack.example/heartbeat",
			BeatInterval:   5 * time.Minute,
			RequestTimeout: 5 * time.Second,
		},
		Stats: StatsConfig{
			Endpoint:       "https://stats.raidtrack.example/api",
			RequestTimeout: 5 * time.Second,
			CacheSize:      64,
			CacheTTL:       10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}
