package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/racedraw/racedraw/internal/race"
)

// FileName is the config file looked up in the config directory.
const FileName = "racedraw.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds settings for the in-memory SQLite backend
type SQLiteConfig struct {
	Path         string        `json:"path" mapstructure:"path"`
	DumpInterval time.Duration `json:"dumpInterval" mapstructure:"dumpInterval"`
}

// StorageConfig selects and configures the storage backend
type StorageConfig struct {
	Type        string       `json:"type" mapstructure:"type"`
	FrameSample int          `json:"frameSample" mapstructure:"frameSample"`
	Memory      MemoryConfig `json:"memory" mapstructure:"memory"`
	SQLite      SQLiteConfig `json:"sqlite" mapstructure:"sqlite"`
}

// OTelConfig holds OpenTelemetry settings
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	// MetricInterval is how often metrics are exported.
	MetricInterval time.Duration `json:"metricInterval" mapstructure:"metricInterval"`
	Endpoint       string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `json:"insecure" mapstructure:"insecure"`
}

// HTTPConfig holds the status API settings
type HTTPConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

func setDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./racelogs")

	def := race.DefaultConfig()
	viper.SetDefault("race.trackLength", def.TrackLength)
	viper.SetDefault("race.minSegments", def.MinSegments)
	viper.SetDefault("race.maxSegments", def.MaxSegments)
	viper.SetDefault("race.minSpeed", def.MinSpeed)
	viper.SetDefault("race.maxSpeed", def.MaxSpeed)
	viper.SetDefault("race.speedChangeThreshold", def.SpeedChangeThreshold)
	viper.SetDefault("race.effectHold", def.EffectHold)
	viper.SetDefault("race.maxDuration", def.MaxDuration)
	viper.SetDefault("race.frameInterval", time.Second/60)
	viper.SetDefault("race.seed", 0)

	viper.SetDefault("race.drift.enabled", def.Drift.Enabled)
	viper.SetDefault("race.drift.chance", def.Drift.Chance)
	viper.SetDefault("race.drift.minDuration", def.Drift.MinDuration)
	viper.SetDefault("race.drift.maxDuration", def.Drift.MaxDuration)

	viper.SetDefault("race.collision.enabled", def.Collision.Enabled)
	viper.SetDefault("race.collision.forwardThreshold", def.Collision.ForwardThreshold)
	viper.SetDefault("race.collision.lateralThreshold", def.Collision.LateralThreshold)

	viper.SetDefault("race.hazard.enabled", def.Hazard.Enabled)
	viper.SetDefault("race.hazard.activation", def.Hazard.Activation)
	viper.SetDefault("race.hazard.spawnChance", def.Hazard.SpawnChance)
	viper.SetDefault("race.hazard.maxActive", def.Hazard.MaxActive)
	viper.SetDefault("race.hazard.minSpeed", def.Hazard.MinSpeed)
	viper.SetDefault("race.hazard.maxSpeed", def.Hazard.MaxSpeed)
	viper.SetDefault("race.hazard.minSize", def.Hazard.MinSize)
	viper.SetDefault("race.hazard.maxSize", def.Hazard.MaxSize)
	viper.SetDefault("race.hazard.forwardReach", def.Hazard.ForwardReach)
	viper.SetDefault("race.hazard.lateralReach", def.Hazard.LateralReach)

	viper.SetDefault("tournament.mode", "winner")
	viper.SetDefault("tournament.pause", "1500ms")
	viper.SetDefault("headless", false)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.frameSample", 6)
	viper.SetDefault("storage.memory.outputDir", "./tournaments")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./racedraw.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "racedraw")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "supersecrettoken")
	viper.SetDefault("influx.org", "racedraw")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "racedraw")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.metricInterval", "30s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("http.enabled", false)
	viper.SetDefault("http.address", "localhost:8080")

	viper.SetDefault("monitor.enabled", false)
	viper.SetDefault("monitor.interval", "1s")
	viper.SetDefault("monitor.statusFile", "")
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	return read(configDir, true)
}

// LoadOptional is Load for runs where a missing file only means defaults.
func LoadOptional(configDir string) error {
	return read(configDir, false)
}

func read(configDir string, required bool) error {
	setDefaults()

	viper.SetConfigName(FileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err == nil {
		return nil
	}
	var notFound viper.ConfigFileNotFoundError
	if !required && errors.As(err, &notFound) {
		return nil
	}
	return fmt.Errorf("error reading config file: %v", err)
}

// BindFlags makes changed command-line flags override the file. Flag names
// map to keys through bindings, e.g. "mode" -> "tournament.mode".
func BindFlags(flags *pflag.FlagSet, bindings map[string]string) error {
	for name, key := range bindings {
		f := flags.Lookup(name)
		if f == nil {
			return fmt.Errorf("unknown flag %q", name)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %q: %w", name, err)
		}
	}
	return nil
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

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}

// GetRaceConfig assembles the simulator model from race.* keys.
func GetRaceConfig() race.Config {
	return race.Config{
		TrackLength:          viper.GetFloat64("race.trackLength"),
		MinSegments:          viper.GetInt("race.minSegments"),
		MaxSegments:          viper.GetInt("race.maxSegments"),
		MinSpeed:             viper.GetFloat64("race.minSpeed"),
		MaxSpeed:             viper.GetFloat64("race.maxSpeed"),
		SpeedChangeThreshold: viper.GetFloat64("race.speedChangeThreshold"),
		EffectHold:           viper.GetDuration("race.effectHold"),
		MaxDuration:          viper.GetDuration("race.maxDuration"),
		Drift: race.DriftConfig{
			Enabled:     viper.GetBool("race.drift.enabled"),
			Chance:      viper.GetFloat64("race.drift.chance"),
			MinDuration: viper.GetDuration("race.drift.minDuration"),
			MaxDuration: viper.GetDuration("race.drift.maxDuration"),
		},
		Collision: race.CollisionConfig{
			Enabled:          viper.GetBool("race.collision.enabled"),
			ForwardThreshold: viper.GetFloat64("race.collision.forwardThreshold"),
			LateralThreshold: viper.GetFloat64("race.collision.lateralThreshold"),
		},
		Hazard: race.HazardConfig{
			Enabled:      viper.GetBool("race.hazard.enabled"),
			Activation:   viper.GetFloat64("race.hazard.activation"),
			SpawnChance:  viper.GetFloat64("race.hazard.spawnChance"),
			MaxActive:    viper.GetInt("race.hazard.maxActive"),
			MinSpeed:     viper.GetFloat64("race.hazard.minSpeed"),
			MaxSpeed:     viper.GetFloat64("race.hazard.maxSpeed"),
			MinSize:      viper.GetFloat64("race.hazard.minSize"),
			MaxSize:      viper.GetFloat64("race.hazard.maxSize"),
			ForwardReach: viper.GetFloat64("race.hazard.forwardReach"),
			LateralReach: viper.GetFloat64("race.hazard.lateralReach"),
		},
	}
}

// GetStorageConfig returns the storage.* section.
func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type:        viper.GetString("storage.type"),
		FrameSample: viper.GetInt("storage.frameSample"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

// GetOTelConfig returns the otel.* section.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:        viper.GetBool("otel.enabled"),
		ServiceName:    viper.GetString("otel.serviceName"),
		BatchTimeout:   viper.GetDuration("otel.batchTimeout"),
		MetricInterval: viper.GetDuration("otel.metricInterval"),
		Endpoint:       viper.GetString("otel.endpoint"),
		Insecure:       viper.GetBool("otel.insecure"),
	}
}

// GetHTTPConfig returns the http.* section.
func GetHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Enabled: viper.GetBool("http.enabled"),
		Address: viper.GetString("http.address"),
	}
}
