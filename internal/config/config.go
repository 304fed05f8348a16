package config

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	defaultListenAddr = ":8080"
	defaultDBPath     = "scanhub.db"

	envListenAddr = "SCANHUB_LISTEN_ADDR"
	envDBPath     = "SCANHUB_DB_PATH"
	envLogLevel   = "SCANHUB_LOG_LEVEL"
	envOutputDir  = "SCANHUB_OUTPUT_DIR"
	envPlatform   = "SCANHUB_PLATFORM"
)

// Simulation holds the timing and failure knobs for the scan simulation.
// They model unreliable hardware, not physical behavior.
type Simulation struct {
	ScanDurationMin  time.Duration
	ScanDurationMax  time.Duration
	ScanSteps        int
	FailureRate      float64       // probability a started scan fails mid-run
	DiscoveryDelay   time.Duration // initial protocol handshake delay
	DeviceDelay      time.Duration // per-device enumeration delay
	ConnectTestDelay time.Duration
}

// DefaultSimulation mirrors the timings of the hardware this simulates:
// 3-8s scans in 20 steps with a 5% hardware failure rate.
func DefaultSimulation() Simulation {
	return Simulation{
		ScanDurationMin:  3 * time.Second,
		ScanDurationMax:  8 * time.Second,
		ScanSteps:        20,
		FailureRate:      0.05,
		DiscoveryDelay:   time.Second,
		DeviceDelay:      300 * time.Millisecond,
		ConnectTestDelay: 500 * time.Millisecond,
	}
}

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	OutputDir  string // empty means resolve the user documents directory
	Platform   string // empty means detect from the host OS
	LogLevel   slog.Level
	Sim        Simulation
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	cfg := Config{
		ListenAddr: defaultListenAddr,
		DBPath:     defaultDBPath,
		LogLevel:   slog.LevelInfo,
		Sim:        DefaultSimulation(),
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envOutputDir); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv(envPlatform); v != "" {
		cfg.Platform = strings.ToLower(v)
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}

	if v := os.Getenv("SCANHUB_SCAN_DURATION_MIN"); v != "" {
		cfg.Sim.ScanDurationMin = parseDuration(v, cfg.Sim.ScanDurationMin)
	}
	if v := os.Getenv("SCANHUB_SCAN_DURATION_MAX"); v != "" {
		cfg.Sim.ScanDurationMax = parseDuration(v, cfg.Sim.ScanDurationMax)
	}
	if v := os.Getenv("SCANHUB_SCAN_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sim.ScanSteps = n
		}
	}
	if v := os.Getenv("SCANHUB_FAILURE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			cfg.Sim.FailureRate = f
		}
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
