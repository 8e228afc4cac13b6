package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

type Config struct {
	Receiver ReceiverConfig        `toml:"receiver"`
	Engine   EngineConfig          `toml:"engine"`
	Storage  StorageConfig         `toml:"storage"`
	Log      LogConfig             `toml:"log"`
	Display  DisplayConfig         `toml:"display"`
	Pricing  map[string][2]float64 `toml:"pricing"`
}

type ReceiverConfig struct {
	GRPCPort int    `toml:"grpc_port"`
	HTTPPort int    `toml:"http_port"`
	Bind     string `toml:"bind"`
	Enabled  bool   `toml:"enabled"`
}

type EngineConfig struct {
	AuditBufferSize int `toml:"audit_buffer_size"`
	LedgerCapacity  int `toml:"ledger_capacity"`
	QueueSize       int `toml:"queue_size"`
}

type StorageConfig struct {
	Backend     string `toml:"backend"`
	Path        string `toml:"path"`
	Key         string `toml:"key"`
	RedisAddr   string `toml:"redis_addr"`
	RedisPrefix string `toml:"redis_prefix"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type DisplayConfig struct {
	RefreshRateMS        int     `toml:"refresh_rate_ms"`
	AuditLines           int     `toml:"audit_lines"`
	CostColorGreenBelow  float64 `toml:"cost_color_green_below"`
	CostColorYellowBelow float64 `toml:"cost_color_yellow_below"`
}

type LoadResult struct {
	Config   Config
	Warnings []string
}

var knownTopLevel = map[string]bool{
	"receiver": true,
	"engine":   true,
	"storage":  true,
	"log":      true,
	"display":  true,
	"pricing":  true,
}

var validBackends = map[string]bool{
	"sqlite": true,
	"file":   true,
	"redis":  true,
	"memory": true,
}

// DefaultPath returns ~/.config/po-stats/config.toml, or "" if the home
// directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "po-stats", "config.toml")
}

func Load() (*LoadResult, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom reads the config file at path. A missing file yields the
// defaults.
func LoadFrom(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &LoadResult{Config: DefaultConfig()}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	result, err := parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return result, nil
}

func LoadFromString(data string) (*LoadResult, error) {
	return parse(data)
}

func parse(data string) (*LoadResult, error) {
	result := &LoadResult{Config: DefaultConfig()}
	if data == "" {
		return result, nil
	}

	var raw map[string]any
	if _, err := toml.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	for key := range raw {
		if !knownTopLevel[key] {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unknown config key: %q", key))
		}
	}

	var tf tomlFile
	if _, err := toml.Decode(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	mergeFromRaw(&result.Config, &tf, raw)
	result.Warnings = append(result.Warnings, mergePricingFromRaw(&result.Config, raw)...)

	if err := validate(&result.Config); err != nil {
		return nil, err
	}

	return result, nil
}

type tomlFile struct {
	Receiver *ReceiverConfig `toml:"receiver"`
	Engine   *EngineConfig   `toml:"engine"`
	Storage  *StorageConfig  `toml:"storage"`
	Log      *LogConfig      `toml:"log"`
	Display  *DisplayConfig  `toml:"display"`
}

// mergeFromRaw copies only the keys present in the file so that omitted
// keys keep their defaults.
func mergeFromRaw(cfg *Config, tf *tomlFile, raw map[string]any) {
	if tf.Receiver != nil {
		if section, ok := rawSection(raw, "receiver"); ok {
			if _, exists := section["grpc_port"]; exists {
				cfg.Receiver.GRPCPort = tf.Receiver.GRPCPort
			}
			if _, exists := section["http_port"]; exists {
				cfg.Receiver.HTTPPort = tf.Receiver.HTTPPort
			}
			if _, exists := section["bind"]; exists {
				cfg.Receiver.Bind = tf.Receiver.Bind
			}
			if _, exists := section["enabled"]; exists {
				cfg.Receiver.Enabled = tf.Receiver.Enabled
			}
		}
	}
	if tf.Engine != nil {
		if section, ok := rawSection(raw, "engine"); ok {
			if _, exists := section["audit_buffer_size"]; exists {
				cfg.Engine.AuditBufferSize = tf.Engine.AuditBufferSize
			}
			if _, exists := section["ledger_capacity"]; exists {
				cfg.Engine.LedgerCapacity = tf.Engine.LedgerCapacity
			}
			if _, exists := section["queue_size"]; exists {
				cfg.Engine.QueueSize = tf.Engine.QueueSize
			}
		}
	}
	if tf.Storage != nil {
		if section, ok := rawSection(raw, "storage"); ok {
			if _, exists := section["backend"]; exists {
				cfg.Storage.Backend = strings.ToLower(tf.Storage.Backend)
			}
			if _, exists := section["path"]; exists {
				cfg.Storage.Path = tf.Storage.Path
			}
			if _, exists := section["key"]; exists {
				cfg.Storage.Key = tf.Storage.Key
			}
			if _, exists := section["redis_addr"]; exists {
				cfg.Storage.RedisAddr = tf.Storage.RedisAddr
			}
			if _, exists := section["redis_prefix"]; exists {
				cfg.Storage.RedisPrefix = tf.Storage.RedisPrefix
			}
		}
	}
	if tf.Log != nil {
		if section, ok := rawSection(raw, "log"); ok {
			if _, exists := section["level"]; exists {
				cfg.Log.Level = strings.ToLower(tf.Log.Level)
			}
			if _, exists := section["format"]; exists {
				cfg.Log.Format = strings.ToLower(tf.Log.Format)
			}
		}
	}
	if tf.Display != nil {
		if section, ok := rawSection(raw, "display"); ok {
			if _, exists := section["refresh_rate_ms"]; exists {
				cfg.Display.RefreshRateMS = tf.Display.RefreshRateMS
			}
			if _, exists := section["audit_lines"]; exists {
				cfg.Display.AuditLines = tf.Display.AuditLines
			}
			if _, exists := section["cost_color_green_below"]; exists {
				cfg.Display.CostColorGreenBelow = tf.Display.CostColorGreenBelow
			}
			if _, exists := section["cost_color_yellow_below"]; exists {
				cfg.Display.CostColorYellowBelow = tf.Display.CostColorYellowBelow
			}
		}
	}
}

func rawSection(raw map[string]any, key string) (map[string]any, bool) {
	v, ok := raw[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

// mergePricingFromRaw overlays [pricing] entries of the form
// model = [input_per_mtok, output_per_mtok] onto the defaults. Malformed
// entries are skipped with a warning.
func mergePricingFromRaw(cfg *Config, raw map[string]any) []string {
	section, ok := rawSection(raw, "pricing")
	if !ok {
		return nil
	}
	if cfg.Pricing == nil {
		cfg.Pricing = make(map[string][2]float64)
	}

	var warnings []string
	for model, val := range section {
		priceSlice, ok := val.([]any)
		if !ok || len(priceSlice) != 2 {
			warnings = append(warnings, fmt.Sprintf("pricing %q: want [input, output], ignoring", model))
			continue
		}
		var prices [2]float64
		valid := true
		for i, v := range priceSlice {
			switch n := v.(type) {
			case float64:
				prices[i] = n
			case int64:
				prices[i] = float64(n)
			default:
				valid = false
			}
		}
		if !valid {
			warnings = append(warnings, fmt.Sprintf("pricing %q: prices must be numbers, ignoring", model))
			continue
		}
		cfg.Pricing[model] = prices
	}
	return warnings
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Receiver.GRPCPort < 1 || cfg.Receiver.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("grpc_port must be 1-65535, got %d", cfg.Receiver.GRPCPort))
	}
	if cfg.Receiver.HTTPPort < 1 || cfg.Receiver.HTTPPort > 65535 {
		errs = append(errs, fmt.Sprintf("http_port must be 1-65535, got %d", cfg.Receiver.HTTPPort))
	}
	if cfg.Receiver.GRPCPort == cfg.Receiver.HTTPPort {
		errs = append(errs, fmt.Sprintf("grpc_port and http_port must differ, both are %d", cfg.Receiver.GRPCPort))
	}

	if cfg.Engine.AuditBufferSize < 1 {
		errs = append(errs, fmt.Sprintf("audit_buffer_size must be positive, got %d", cfg.Engine.AuditBufferSize))
	}
	if cfg.Engine.LedgerCapacity < 1 {
		errs = append(errs, fmt.Sprintf("ledger_capacity must be positive, got %d", cfg.Engine.LedgerCapacity))
	}
	if cfg.Engine.QueueSize < 1 {
		errs = append(errs, fmt.Sprintf("queue_size must be positive, got %d", cfg.Engine.QueueSize))
	}

	if !validBackends[cfg.Storage.Backend] {
		errs = append(errs, fmt.Sprintf("storage backend must be one of sqlite, file, redis, memory; got %q", cfg.Storage.Backend))
	}
	if (cfg.Storage.Backend == "sqlite" || cfg.Storage.Backend == "file") && cfg.Storage.Path == "" {
		errs = append(errs, fmt.Sprintf("storage path is required for the %s backend", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == "redis" && cfg.Storage.RedisAddr == "" {
		errs = append(errs, "storage redis_addr is required for the redis backend")
	}
	if cfg.Storage.Key == "" {
		errs = append(errs, "storage key must not be empty")
	}

	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil || cfg.Log.Level == "" {
		errs = append(errs, fmt.Sprintf("log level %q is not a valid level", cfg.Log.Level))
	}
	if cfg.Log.Format != "console" && cfg.Log.Format != "json" {
		errs = append(errs, fmt.Sprintf("log format must be console or json, got %q", cfg.Log.Format))
	}

	if cfg.Display.RefreshRateMS < 1 {
		errs = append(errs, fmt.Sprintf("refresh_rate_ms must be positive, got %d", cfg.Display.RefreshRateMS))
	}
	if cfg.Display.AuditLines < 0 {
		errs = append(errs, fmt.Sprintf("audit_lines must not be negative, got %d", cfg.Display.AuditLines))
	}
	if cfg.Display.CostColorGreenBelow <= 0 {
		errs = append(errs, fmt.Sprintf("cost_color_green_below must be positive, got %f", cfg.Display.CostColorGreenBelow))
	}
	if cfg.Display.CostColorYellowBelow <= cfg.Display.CostColorGreenBelow {
		errs = append(errs, fmt.Sprintf("cost_color_yellow_below must exceed cost_color_green_below, got %f", cfg.Display.CostColorYellowBelow))
	}

	for model, prices := range cfg.Pricing {
		if prices[0] < 0 || prices[1] < 0 {
			errs = append(errs, fmt.Sprintf("pricing %q must not be negative, got %v", model, prices))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation error: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Encode writes cfg as TOML.
func Encode(w io.Writer, cfg Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}
