package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Climate Sync Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Sync     SyncConfig     `yaml:"sync"`
}

// SiteConfig contains site-specific information.
type SiteConfig struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig contains SQLite database settings for the inventory catalog.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// InfluxDBConfig contains InfluxDB connection settings for sync history.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SyncConfig contains the synchronization coordinator settings.
//
// Tolerance and Interval are the two tunables that control write avoidance:
// a value-writer update is only issued when the sensor target differs from
// the actuator's current value by at least Tolerance, and the periodic sweep
// re-evaluates actuators whose last sync is older than Interval.
type SyncConfig struct {
	// Model is the device model tag that identifies supported actuators
	// in the inventory (e.g. "TRVZB").
	Model string `yaml:"model"`

	// ExternalOption is the mode-selector option that switches an actuator
	// to its external temperature input.
	ExternalOption string `yaml:"external_option"`

	// SelectorSuffix and WriterSuffix are the entity-naming conventions used
	// to locate the mode-selector and value-writer entities on a device.
	SelectorSuffix string `yaml:"selector_suffix"`
	WriterSuffix   string `yaml:"writer_suffix"`

	// Tolerance is the minimum absolute difference (degrees C) between the
	// actuator's current value and the sensor target that justifies a write.
	Tolerance float64 `yaml:"tolerance"`

	// Interval is the periodic reconciliation sweep interval.
	Interval time.Duration `yaml:"interval"`

	// ActionTimeout is how long an acknowledged action call waits for the
	// bridge to confirm before giving up.
	ActionTimeout time.Duration `yaml:"action_timeout"`
}

// UnmarshalYAML decodes the sync section, parsing duration fields from
// strings like "10m" or "5s". Fields absent from the document keep their
// previous (default) values.
func (s *SyncConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Model          string   `yaml:"model"`
		ExternalOption string   `yaml:"external_option"`
		SelectorSuffix string   `yaml:"selector_suffix"`
		WriterSuffix   string   `yaml:"writer_suffix"`
		Tolerance      *float64 `yaml:"tolerance"`
		Interval       string   `yaml:"interval"`
		ActionTimeout  string   `yaml:"action_timeout"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.Model != "" {
		s.Model = raw.Model
	}
	if raw.ExternalOption != "" {
		s.ExternalOption = raw.ExternalOption
	}
	if raw.SelectorSuffix != "" {
		s.SelectorSuffix = raw.SelectorSuffix
	}
	if raw.WriterSuffix != "" {
		s.WriterSuffix = raw.WriterSuffix
	}
	if raw.Tolerance != nil {
		s.Tolerance = *raw.Tolerance
	}
	if raw.Interval != "" {
		d, err := time.ParseDuration(raw.Interval)
		if err != nil {
			return fmt.Errorf("sync.interval: %w", err)
		}
		s.Interval = d
	}
	if raw.ActionTimeout != "" {
		d, err := time.ParseDuration(raw.ActionTimeout)
		if err != nil {
			return fmt.Errorf("sync.action_timeout: %w", err)
		}
		s.ActionTimeout = d
	}
	return nil
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: CLIMATESYNC_SECTION_KEY
// For example: CLIMATESYNC_DATABASE_PATH, CLIMATESYNC_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
// The defaults describe a local broker and the canonical TRVZB conventions.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Climate Sync",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "data/climatesync.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "climatesync-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8095,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Enabled:       false,
			URL:           "http://localhost:8086",
			Bucket:        "climatesync",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Sync: SyncConfig{
			Model:          "TRVZB",
			ExternalOption: "external",
			SelectorSuffix: "temperature_sensor_select",
			WriterSuffix:   "external_temperature_input",
			Tolerance:      0.5,
			Interval:       10 * time.Minute,
			ActionTimeout:  5 * time.Second,
		},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.MQTT.Broker.Host == "" {
		return fmt.Errorf("mqtt.broker.host is required")
	}
	if c.MQTT.Broker.ClientID == "" {
		return fmt.Errorf("mqtt.broker.client_id is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2 (got %d)", c.MQTT.QoS)
	}
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		return fmt.Errorf("api.port must be 1-65535 (got %d)", c.API.Port)
	}
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			return fmt.Errorf("influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			return fmt.Errorf("influxdb.bucket is required when influxdb is enabled")
		}
	}
	if c.Sync.Model == "" {
		return fmt.Errorf("sync.model is required")
	}
	if c.Sync.ExternalOption == "" {
		return fmt.Errorf("sync.external_option is required")
	}
	if c.Sync.SelectorSuffix == "" || c.Sync.WriterSuffix == "" {
		return fmt.Errorf("sync.selector_suffix and sync.writer_suffix are required")
	}
	if c.Sync.Tolerance < 0 {
		return fmt.Errorf("sync.tolerance must be non-negative (got %g)", c.Sync.Tolerance)
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive (got %v)", c.Sync.Interval)
	}
	if c.Sync.ActionTimeout <= 0 {
		return fmt.Errorf("sync.action_timeout must be positive (got %v)", c.Sync.ActionTimeout)
	}
	return nil
}

// applyEnvOverrides applies CLIMATESYNC_* environment variables on top of the
// loaded configuration. Only the operationally interesting knobs are exposed;
// structural settings (naming conventions) stay in the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CLIMATESYNC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("CLIMATESYNC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("CLIMATESYNC_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("CLIMATESYNC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("CLIMATESYNC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("CLIMATESYNC_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("CLIMATESYNC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("CLIMATESYNC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("CLIMATESYNC_SYNC_TOLERANCE"); v != "" {
		if tol, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Sync.Tolerance = tol
		}
	}
	if v := os.Getenv("CLIMATESYNC_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sync.Interval = d
		}
	}
}
