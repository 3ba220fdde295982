// Copyright 2025 Matt Barlow
//
// Configuration package for the automation bridge

package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// TransportType represents the bridge transport type
type TransportType string

const (
	// TransportStdio uses stdin/stdout for communication
	TransportStdio TransportType = "stdio"
	// TransportHTTP uses HTTP/SSE for communication
	TransportHTTP TransportType = "sse"
)

// Config holds the configuration for the automation bridge.
// All values come from BRIDGE_* environment variables, with an optional
// .env file in the working directory.
type Config struct {
	Transport         TransportType
	HTTPAddress       string
	HTTPSocketPath    string
	CORSOrigin        string
	AuditLogPath      string
	HeartbeatInterval time.Duration
	HTTPReadTimeout   time.Duration
	HTTPWriteTimeout  time.Duration
	MonitorInterval   time.Duration
	RequestTimeout    int // seconds
	WindowSize        int
	RateLimit         float64 // requests per second, 0 disables
	CPUThreshold      float64 // percent
	MemoryThreshold   float64 // percent
	DiskThreshold     float64 // percent
	Debug             bool
	ShellEnabled      bool
	MonitorEnabled    bool
	NotifyOnAlert     bool
}

// newViper builds the viper instance backing Load. Environment variables
// take precedence over the optional .env file.
func newViper() *viper.Viper {
	v := viper.New()

	v.SetDefault("BRIDGE_TRANSPORT", string(TransportStdio))
	v.SetDefault("BRIDGE_HTTP_ADDRESS", ":8080")
	v.SetDefault("BRIDGE_CORS_ORIGIN", "*")
	v.SetDefault("BRIDGE_HEARTBEAT_INTERVAL", "30s")
	v.SetDefault("BRIDGE_HTTP_READ_TIMEOUT", "30s")
	v.SetDefault("BRIDGE_HTTP_WRITE_TIMEOUT", "0s")
	v.SetDefault("BRIDGE_REQUEST_TIMEOUT", 30)
	v.SetDefault("BRIDGE_RATE_LIMIT", 0.0)
	v.SetDefault("BRIDGE_DEBUG", false)
	v.SetDefault("BRIDGE_SHELL_ENABLED", false)
	v.SetDefault("BRIDGE_MONITOR_ENABLED", true)
	v.SetDefault("BRIDGE_MONITOR_INTERVAL", "5s")
	v.SetDefault("BRIDGE_WINDOW_SIZE", 120)
	v.SetDefault("BRIDGE_CPU_THRESHOLD", 90.0)
	v.SetDefault("BRIDGE_MEMORY_THRESHOLD", 85.0)
	v.SetDefault("BRIDGE_DISK_THRESHOLD", 90.0)
	v.SetDefault("BRIDGE_NOTIFY_ON_ALERT", false)

	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Missing .env is fine; env vars alone are a complete configuration.
	_ = v.ReadInConfig()

	return v
}

// Load loads the configuration from environment variables.
func Load() (*Config, error) {
	return load(newViper())
}

func load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Transport:         TransportType(v.GetString("BRIDGE_TRANSPORT")),
		HTTPAddress:       v.GetString("BRIDGE_HTTP_ADDRESS"),
		HTTPSocketPath:    v.GetString("BRIDGE_HTTP_SOCKET"),
		CORSOrigin:        v.GetString("BRIDGE_CORS_ORIGIN"),
		AuditLogPath:      v.GetString("BRIDGE_AUDIT_LOG"),
		HeartbeatInterval: v.GetDuration("BRIDGE_HEARTBEAT_INTERVAL"),
		HTTPReadTimeout:   v.GetDuration("BRIDGE_HTTP_READ_TIMEOUT"),
		HTTPWriteTimeout:  v.GetDuration("BRIDGE_HTTP_WRITE_TIMEOUT"),
		MonitorInterval:   v.GetDuration("BRIDGE_MONITOR_INTERVAL"),
		RequestTimeout:    v.GetInt("BRIDGE_REQUEST_TIMEOUT"),
		WindowSize:        v.GetInt("BRIDGE_WINDOW_SIZE"),
		RateLimit:         v.GetFloat64("BRIDGE_RATE_LIMIT"),
		CPUThreshold:      v.GetFloat64("BRIDGE_CPU_THRESHOLD"),
		MemoryThreshold:   v.GetFloat64("BRIDGE_MEMORY_THRESHOLD"),
		DiskThreshold:     v.GetFloat64("BRIDGE_DISK_THRESHOLD"),
		Debug:             v.GetBool("BRIDGE_DEBUG"),
		ShellEnabled:      v.GetBool("BRIDGE_SHELL_ENABLED"),
		MonitorEnabled:    v.GetBool("BRIDGE_MONITOR_ENABLED"),
		NotifyOnAlert:     v.GetBool("BRIDGE_NOTIFY_ON_ALERT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Transport != TransportStdio && c.Transport != TransportHTTP {
		return fmt.Errorf("invalid transport type: %s (must be 'stdio' or 'sse')", c.Transport)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive, got %d", c.RequestTimeout)
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("monitor window size must be positive, got %d", c.WindowSize)
	}
	if c.MonitorInterval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", c.MonitorInterval)
	}
	for name, pct := range map[string]float64{
		"BRIDGE_CPU_THRESHOLD":    c.CPUThreshold,
		"BRIDGE_MEMORY_THRESHOLD": c.MemoryThreshold,
		"BRIDGE_DISK_THRESHOLD":   c.DiskThreshold,
	} {
		if pct < 1 || pct > 100 {
			return fmt.Errorf("%s must be between 1 and 100, got %g", name, pct)
		}
	}
	return nil
}
