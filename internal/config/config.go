// Package config loads a node's runtime profile: its local NodeID, CAN
// transport selection, executor kind, logging, monitor, and telemetry
// settings. It generalizes the teacher's viper-based Config loader —
// same defaults/file/env layering, new schema — and adds the hot-reload
// the teacher's loader never needed.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/edgeflow/lccstack/internal/nodeid"
)

// NodeProfile holds all configuration for one running node.
type NodeProfile struct {
	Node      NodeConfig      `mapstructure:"node"`
	Transport TransportConfig `mapstructure:"transport"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// NodeConfig identifies this node on the bus and carries the static
// identification strings it reports in SimpleNodeIdentInfo replies.
type NodeConfig struct {
	NodeIDHex string `mapstructure:"node_id"`

	Manufacturer    string `mapstructure:"manufacturer"`
	Model           string `mapstructure:"model"`
	HardwareVersion string `mapstructure:"hardware_version"`
	SoftwareVersion string `mapstructure:"software_version"`
}

// ParsedNodeID parses NodeIDHex (dotted "xx.xx.xx.xx.xx.xx", colon-separated,
// or bare 12-hex-digit) into a nodeid.NodeID.
func (n NodeConfig) ParsedNodeID() (nodeid.NodeID, error) {
	return nodeid.Parse(strings.ReplaceAll(n.NodeIDHex, ":", "."))
}

// TransportConfig selects and configures the CAN transport.
type TransportConfig struct {
	Kind string `mapstructure:"kind"` // "gridconnect" or "spican"

	SerialPort string `mapstructure:"serial_port"`
	BaudRate   int    `mapstructure:"baud_rate"`

	SPIBus  string `mapstructure:"spi_bus"`
	IntPin  string `mapstructure:"int_pin"`
	Bitrate int    `mapstructure:"bitrate"`
	Crystal int    `mapstructure:"crystal"`
}

// ExecutorConfig selects the dispatch executor.
type ExecutorConfig struct {
	Kind string `mapstructure:"kind"` // "pool" or "inline"
}

// LoggerConfig contains logging settings.
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	FilePath   string `mapstructure:"file_path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// MonitorConfig contains the introspection server's settings.
type MonitorConfig struct {
	BindAddr  string `mapstructure:"bind_addr"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

// TelemetryConfig contains the optional InfluxDB push settings.
type TelemetryConfig struct {
	InfluxURL    string `mapstructure:"influx_url"`
	InfluxToken  string `mapstructure:"influx_token"`
	InfluxOrg    string `mapstructure:"influx_org"`
	InfluxBucket string `mapstructure:"influx_bucket"`
	FlushEvery   string `mapstructure:"flush_every"` // cron "@every" spec
}

// Loader wraps a viper instance so callers can register an OnChange
// hook before hot-reload begins watching the config file.
type Loader struct {
	v *viper.Viper

	mu       sync.Mutex
	onChange []func(NodeProfile)
}

// Load reads configuration from configPath (or the default search path
// if empty) and environment variables prefixed LCC_, with nested keys
// joined by '_' (executor.kind -> LCC_EXECUTOR_KIND). A missing config
// file is not an error: defaults and environment overrides still apply.
func Load(configPath string) (*Loader, NodeProfile, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, NodeProfile{}, fmt.Errorf("config: read: %w", err)
		}
	}

	v.SetEnvPrefix("LCC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg NodeProfile
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, NodeProfile{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &Loader{v: v}, cfg, nil
}

// OnChange registers fn to be called with the newly reloaded profile
// whenever the config file changes on disk. Must be called before
// WatchAndReload.
func (l *Loader) OnChange(fn func(NodeProfile)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// WatchAndReload starts watching the config file (via fsnotify, through
// viper's WatchConfig) and re-unmarshals on every write, invoking every
// registered OnChange hook. A reload whose unmarshal fails is dropped
// without being logged or reported, since there is no synchronous caller
// to return the error to; hooks simply don't fire for a broken edit.
func (l *Loader) WatchAndReload() {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		var cfg NodeProfile
		if err := l.v.Unmarshal(&cfg); err != nil {
			return
		}
		l.mu.Lock()
		hooks := append([]func(NodeProfile){}, l.onChange...)
		l.mu.Unlock()
		for _, h := range hooks {
			h(cfg)
		}
	})
	l.v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("node.node_id", "")
	v.SetDefault("node.manufacturer", "EdgeFlow")
	v.SetDefault("node.model", "lccnode")
	v.SetDefault("node.hardware_version", "rev-a")
	v.SetDefault("node.software_version", "0.1.0")

	v.SetDefault("transport.kind", "gridconnect")
	v.SetDefault("transport.serial_port", "/dev/ttyUSB0")
	v.SetDefault("transport.baud_rate", 115200)
	v.SetDefault("transport.bitrate", 125000)
	v.SetDefault("transport.crystal", 16000000)

	v.SetDefault("executor.kind", "pool")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.file_path", "")
	v.SetDefault("logger.max_size_mb", 100)
	v.SetDefault("logger.max_backups", 3)

	v.SetDefault("monitor.bind_addr", ":8787")
	v.SetDefault("monitor.jwt_secret", "")

	v.SetDefault("telemetry.flush_every", "@every 30s")
}
