package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Gray Logic panel bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Device    DeviceConfig    `yaml:"device"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Hardware  HardwareConfig  `yaml:"hardware"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	Database  DatabaseConfig  `yaml:"database"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// DeviceConfig identifies the panel towards Home Assistant.
type DeviceConfig struct {
	// ID is the device identifier D. It prefixes every MQTT topic and must
	// not contain MQTT wildcard or level separator characters.
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// UniqueIDPrefix prefixes every component unique_id in the discovery document.
	UniqueIDPrefix string `yaml:"unique_id_prefix"`

	Origin       string `yaml:"origin"`
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`
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

// HardwareConfig locates the panel's sysfs nodes, GPIO line and display commands.
type HardwareConfig struct {
	// Simulated replaces every accessor with in-memory hardware. Useful on
	// development machines without the panel attached.
	Simulated bool `yaml:"simulated"`

	ThermalPath  string        `yaml:"thermal_path"`
	BacklightDir string        `yaml:"backlight_dir"`
	LEDDir       string        `yaml:"led_dir"`
	Motion       MotionConfig  `yaml:"motion"`
	Display      DisplayConfig `yaml:"display"`
}

// MotionConfig configures the PIR sensor GPIO line.
type MotionConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Chip      string `yaml:"chip"`
	Line      int    `yaml:"line"`
	ActiveLow bool   `yaml:"active_low"`
	PullUp    bool   `yaml:"pull_up"`

	// Debounce in milliseconds; 0 disables debouncing.
	Debounce int `yaml:"debounce"`
}

// DisplayConfig holds the external commands that switch the panel output.
type DisplayConfig struct {
	OnCommand  []string `yaml:"on_command"`
	OffCommand []string `yaml:"off_command"`

	// Env is appended to the process environment of both commands.
	Env map[string]string `yaml:"env"`
}

// ReconcileConfig tunes the reconciliation loop.
type ReconcileConfig struct {
	// TickInterval is the nominal period between hardware polls.
	TickInterval time.Duration `yaml:"tick_interval"`

	// SensorIntervalTicks is the number of ticks between periodic sensor publishes.
	SensorIntervalTicks int `yaml:"sensor_interval_ticks"`

	// AnnounceMinInterval throttles discovery re-announcements triggered by
	// Home Assistant birth messages and broker reconnects.
	AnnounceMinInterval time.Duration `yaml:"announce_min_interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetention is how long state history rows are kept.
	HistoryRetention time.Duration `yaml:"history_retention"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// APIConfig contains HTTP status API settings.
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Dotenv file (GRAYLOGIC_ENV_FILE, or .env beside the config file)
//  4. Environment variables (override file values)
//
// Variables already present in the process environment are never replaced
// by the dotenv file.
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadEnvFile(path); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// loadEnvFile loads a dotenv file into the process environment.
// An explicit GRAYLOGIC_ENV_FILE must exist; the implicit .env is optional.
func loadEnvFile(configPath string) error {
	if explicit := os.Getenv("GRAYLOGIC_ENV_FILE"); explicit != "" {
		if err := godotenv.Load(explicit); err != nil {
			return fmt.Errorf("loading env file %s: %w", explicit, err)
		}
		return nil
	}

	implicit := filepath.Join(filepath.Dir(configPath), ".env")
	if _, err := os.Stat(implicit); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("checking env file: %w", err)
	}
	if err := godotenv.Load(implicit); err != nil {
		return fmt.Errorf("loading env file %s: %w", implicit, err)
	}
	return nil
}

// defaultConfig returns a Config with sensible defaults for a Raspberry Pi
// panel running a Wayland compositor.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			ID:             "raspi-eg",
			Name:           "RaspberryPi-EG",
			UniqueIDPrefix: "rpi-eg",
			Origin:         "Gray Logic Panel",
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-panel",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Hardware: HardwareConfig{
			ThermalPath:  "/sys/class/thermal/thermal_zone0/temp",
			BacklightDir: "/sys/class/backlight/11-0045",
			LEDDir:       "/sys/class/leds/multicolor:status",
			Motion: MotionConfig{
				Chip:     "gpiochip0",
				Line:     17,
				Debounce: 50,
			},
			Display: DisplayConfig{
				OnCommand:  []string{"wlopm", "--on", "DSI-2"},
				OffCommand: []string{"wlopm", "--off", "DSI-2"},
				Env: map[string]string{
					"WAYLAND_DISPLAY": "wayland-0",
					"XDG_RUNTIME_DIR": "/run/user/1000",
				},
			},
		},
		Reconcile: ReconcileConfig{
			TickInterval:        time.Second,
			SensorIntervalTicks: 60,
			AnnounceMinInterval: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Path:             "./data/graylogic-panel.db",
			WALMode:          true,
			BusyTimeout:      5,
			HistoryRetention: 7 * 24 * time.Hour,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GRAYLOGIC_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Device
	if v := os.Getenv("GRAYLOGIC_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}

	// MQTT
	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing GRAYLOGIC_MQTT_PORT: %w", err)
		}
		cfg.MQTT.Broker.Port = port
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// Logging
	if v := os.Getenv("GRAYLOGIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device validation
	if c.Device.ID == "" {
		errs = append(errs, "device.id is required")
	} else if strings.ContainsAny(c.Device.ID, "+#/ ") {
		errs = append(errs, "device.id must not contain '+', '#', '/' or spaces")
	}
	if c.Device.UniqueIDPrefix == "" {
		errs = append(errs, "device.unique_id_prefix is required")
	}

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
		errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Hardware validation
	if !c.Hardware.Simulated {
		if c.Hardware.ThermalPath == "" {
			errs = append(errs, "hardware.thermal_path is required")
		}
		if c.Hardware.BacklightDir == "" {
			errs = append(errs, "hardware.backlight_dir is required")
		}
		if len(c.Hardware.Display.OnCommand) == 0 {
			errs = append(errs, "hardware.display.on_command is required")
		}
		if len(c.Hardware.Display.OffCommand) == 0 {
			errs = append(errs, "hardware.display.off_command is required")
		}
		if c.Hardware.Motion.Enabled {
			if c.Hardware.Motion.Chip == "" {
				errs = append(errs, "hardware.motion.chip is required when motion is enabled")
			}
			if c.Hardware.Motion.Line < 0 {
				errs = append(errs, "hardware.motion.line must not be negative")
			}
		}
	}
	if c.Hardware.Motion.Debounce < 0 {
		errs = append(errs, "hardware.motion.debounce must not be negative")
	}

	// Reconcile validation
	if c.Reconcile.TickInterval <= 0 {
		errs = append(errs, "reconcile.tick_interval must be positive")
	}
	if c.Reconcile.SensorIntervalTicks < 1 {
		errs = append(errs, "reconcile.sensor_interval_ticks must be at least 1")
	}
	if c.Reconcile.AnnounceMinInterval < 0 {
		errs = append(errs, "reconcile.announce_min_interval must not be negative")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when the database is enabled")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// MotionDebounce returns the motion debounce period as a Duration.
func (c *Config) MotionDebounce() time.Duration {
	return time.Duration(c.Hardware.Motion.Debounce) * time.Millisecond
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
