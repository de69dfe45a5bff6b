package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// FileName is the config file looked up in the config directory.
const FileName = "avs_host.cfg.json"

// SaveConfig holds IntegrityStore settings
type SaveConfig struct {
	Root            string `json:"root" mapstructure:"root" validate:"required"`
	Slot            string `json:"slot" mapstructure:"slot" validate:"required,excludesall=/\\"`
	FallbackSuffix  string `json:"fallbackSuffix" mapstructure:"fallbackSuffix" validate:"required"`
	MaxPayloadBytes int64  `json:"maxPayloadBytes" mapstructure:"maxPayloadBytes" validate:"gt=0"`
}

// LifecycleConfig holds vehicle lifecycle tunables
type LifecycleConfig struct {
	CollisionReenableDelay time.Duration `json:"collisionReenableDelay" mapstructure:"collisionReenableDelay" validate:"gte=0"`
	ExitDepthThreshold     float64       `json:"exitDepthThreshold" mapstructure:"exitDepthThreshold"`
	AllowSurfacing         bool          `json:"allowSurfacing" mapstructure:"allowSurfacing"`
	DesignatedHost         string        `json:"designatedHost" mapstructure:"designatedHost"`
	ScuttleCheckInterval   time.Duration `json:"scuttleCheckInterval" mapstructure:"scuttleCheckInterval" validate:"gt=0"`
	TickInterval           time.Duration `json:"tickInterval" mapstructure:"tickInterval" validate:"gt=0"`
}

// MemoryConfig holds in-memory/JSON journal backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir" validate:"required"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds SQLite journal backend settings
type SQLiteConfig struct {
	Path string `json:"path" mapstructure:"path" validate:"required"`
}

// DBConfig holds PostgreSQL connection settings
type DBConfig struct {
	Host     string `json:"host" mapstructure:"host" validate:"required"`
	Port     string `json:"port" mapstructure:"port" validate:"required"`
	Username string `json:"username" mapstructure:"username"`
	Password string `json:"password" mapstructure:"password"`
	Database string `json:"database" mapstructure:"database" validate:"required"`
}

// StorageConfig holds transition journal settings
type StorageConfig struct {
	Type          string        `json:"type" mapstructure:"type" validate:"required,oneof=memory sqlite postgres"`
	FlushInterval time.Duration `json:"flushInterval" mapstructure:"flushInterval" validate:"gt=0"`
	Memory        MemoryConfig  `json:"memory" mapstructure:"memory"`
	SQLite        SQLiteConfig  `json:"sqlite" mapstructure:"sqlite"`
	DB            DBConfig      `json:"db" mapstructure:"-"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName" validate:"required"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout" validate:"gt=0"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// MonitorConfig holds status monitor settings
type MonitorConfig struct {
	Enabled    bool          `json:"enabled" mapstructure:"enabled"`
	Interval   time.Duration `json:"interval" mapstructure:"interval" validate:"gt=0"`
	StatusFile string        `json:"statusFile" mapstructure:"statusFile"`
}

// APIConfig holds journal upload settings
type APIConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl" validate:"required_if=Enabled true"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
	Tag       string `json:"tag" mapstructure:"tag"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./avslogs")

	viper.SetDefault("save.root", "./saves")
	viper.SetDefault("save.slot", "slot0")
	viper.SetDefault("save.fallbackSuffix", "-fb")
	viper.SetDefault("save.maxPayloadBytes", 100*1024*1024)

	viper.SetDefault("lifecycle.collisionReenableDelay", "5s")
	viper.SetDefault("lifecycle.exitDepthThreshold", -3.0)
	viper.SetDefault("lifecycle.allowSurfacing", true)
	viper.SetDefault("lifecycle.designatedHost", "Cyclops")
	viper.SetDefault("lifecycle.scuttleCheckInterval", "1s")
	viper.SetDefault("lifecycle.tickInterval", "50ms")

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.flushInterval", "2s")
	viper.SetDefault("storage.memory.outputDir", "./journal")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./journal/avs.db")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "avs")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "avs-host")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "30s")
	viper.SetDefault("monitor.statusFile", "./avslogs/status.json")

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")
	viper.SetDefault("api.tag", "")
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a config struct against its validate tags.
func Validate(cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// GetSaveConfig returns the IntegrityStore settings.
func GetSaveConfig() (SaveConfig, error) {
	var c SaveConfig
	if err := viper.UnmarshalKey("save", &c); err != nil {
		return c, fmt.Errorf("decoding save config: %w", err)
	}
	return c, Validate(c)
}

// GetLifecycleConfig returns the lifecycle tunables.
func GetLifecycleConfig() (LifecycleConfig, error) {
	var c LifecycleConfig
	if err := viper.UnmarshalKey("lifecycle", &c); err != nil {
		return c, fmt.Errorf("decoding lifecycle config: %w", err)
	}
	return c, Validate(c)
}

// GetStorageConfig returns the journal settings, including the db section.
func GetStorageConfig() (StorageConfig, error) {
	var c StorageConfig
	if err := viper.UnmarshalKey("storage", &c); err != nil {
		return c, fmt.Errorf("decoding storage config: %w", err)
	}
	if err := viper.UnmarshalKey("db", &c.DB); err != nil {
		return c, fmt.Errorf("decoding db config: %w", err)
	}
	return c, Validate(c)
}

// GetOTelConfig returns the OpenTelemetry settings.
func GetOTelConfig() (OTelConfig, error) {
	var c OTelConfig
	if err := viper.UnmarshalKey("otel", &c); err != nil {
		return c, fmt.Errorf("decoding otel config: %w", err)
	}
	return c, Validate(c)
}

// GetMonitorConfig returns the status monitor settings.
func GetMonitorConfig() (MonitorConfig, error) {
	var c MonitorConfig
	if err := viper.UnmarshalKey("monitor", &c); err != nil {
		return c, fmt.Errorf("decoding monitor config: %w", err)
	}
	return c, Validate(c)
}

// GetAPIConfig returns the journal upload settings.
func GetAPIConfig() (APIConfig, error) {
	var c APIConfig
	if err := viper.UnmarshalKey("api", &c); err != nil {
		return c, fmt.Errorf("decoding api config: %w", err)
	}
	return c, Validate(c)
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}
