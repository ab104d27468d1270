package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/aryankumar/sfs/internal/executor"
)

const (
	defaultConfigName = ".sfs"
	defaultConfigDir  = ".sfs"
	envPrefix         = "SFS"
)

// flagKeys maps command-line flag names to configuration keys
var flagKeys = map[string]string{
	"backend":         "backend",
	"workers":         "maxWorkers",
	"poll-interval":   "pollInterval",
	"retry-limit":     "retryLimit",
	"timeout":         "timeout",
	"output":          "output",
	"no-color":        "noColor",
	"function":        "remote.functionName",
	"region":          "remote.region",
	"ceiling":         "remote.ceiling",
	"horizon":         "forecast.horizon",
	"input-frequency": "forecast.inputFrequency",
	"frequency":       "forecast.frequency",
	"metric":          "forecast.objectiveMetric",
	"cv-stride":       "forecast.cvStride",
	"top":             "forecast.topN",
	"export":          "export.bucketURL",
	"export-format":   "export.formats",
	"store":           "store.path",
	"metrics-address": "metrics.address",
	"log-level":       "log.level",
	"log-file":        "log.file",
}

// Manager handles sfs configuration. Values resolve in viper's order:
// flags, SFS_ environment variables, the config file, then defaults.
type Manager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
}

// NewManager creates a new configuration manager
func NewManager(configPath string) *Manager {
	v := viper.New()
	setDefaults(v)

	return &Manager{
		configPath: configPath,
		viper:      v,
		config:     Default(),
	}
}

// Default returns the built-in configuration
func Default() *Config {
	remote := executor.DefaultRemoteConfig()
	return &Config{
		Backend:      BackendLocal,
		MaxWorkers:   runtime.NumCPU(),
		PollInterval: executor.DefaultPollInterval,
		RetryLimit:   remote.RetryLimit,
		Timeout:      30 * time.Minute,
		Output:       "table",
		Remote: RemoteConfig{
			FunctionName:   remote.FunctionName,
			Ceiling:        remote.Ceiling,
			InitialBackoff: remote.InitialBackoff,
			MaxBackoff:     remote.MaxBackoff,
		},
		Forecast: ForecastConfig{
			Horizon:         1,
			InputFrequency:  "Daily",
			Frequency:       "Daily",
			ObjectiveMetric: "smape_mean",
			CVStride:        2,
			TopN:            10,
		},
		Export: ExportConfig{
			Formats: []string{"csv"},
		},
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, defaultConfigDir, "runs.db")
}

// setDefaults registers every key so environment variables resolve during
// Unmarshal even when the file does not mention them
func setDefaults(v *viper.Viper) {
	for key, value := range flatten(toMap(Default()), "") {
		v.SetDefault(key, value)
	}
}

// BindFlags binds the flags of fs that have a configuration key. Flags that
// fs does not define are skipped.
func (m *Manager) BindFlags(fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := fs.Lookup(name)
		if flag == nil {
			continue
		}
		if err := m.viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag %q: %w", name, err)
		}
	}
	return nil
}

// Load loads the configuration from file, environment and bound flags
func (m *Manager) Load() (*Config, error) {
	m.viper.SetEnvPrefix(envPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()

	path := m.configPath
	if path == "" {
		var err error
		if path, err = findConfigFile(); err != nil {
			return nil, err
		}
	}

	if path != "" {
		m.viper.SetConfigFile(path)
		if err := m.viper.ReadInConfig(); err != nil {
			// A missing file leaves the defaults in place
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := m.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	m.config = cfg
	return cfg, nil
}

// findConfigFile returns ~/.sfs/config.yaml or ~/.sfs.yaml, whichever exists
// first, or "" when neither does
func findConfigFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	candidates := []string{
		filepath.Join(home, defaultConfigDir, "config.yaml"),
		filepath.Join(home, defaultConfigName+".yaml"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c, nil
		}
	}
	return "", nil
}

// Save writes the current configuration as YAML. Without an explicit path
// it writes ~/.sfs/config.yaml.
func (m *Manager) Save() error {
	if m.configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		m.configPath = filepath.Join(home, defaultConfigDir, "config.yaml")
	}

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(toMap(m.config))
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *Config {
	return m.config
}

// ConfigPath returns the file Load read or Save will write. It is empty when
// no file was found and no path was given.
func (m *Manager) ConfigPath() string {
	if m.configPath != "" {
		return m.configPath
	}
	return m.viper.ConfigFileUsed()
}

// Settings returns the configuration as dotted keys. Durations are rendered
// as strings so the result reads the same as a config file.
func (c *Config) Settings() map[string]interface{} {
	return flatten(toMap(c), "")
}

// toMap renders c with the key names used in config files
func toMap(c *Config) map[string]interface{} {
	formats := make([]interface{}, len(c.Export.Formats))
	for i, f := range c.Export.Formats {
		formats[i] = f
	}

	return map[string]interface{}{
		"backend":      c.Backend,
		"maxWorkers":   c.MaxWorkers,
		"pollInterval": c.PollInterval.String(),
		"retryLimit":   c.RetryLimit,
		"timeout":      c.Timeout.String(),
		"output":       c.Output,
		"noColor":      c.NoColor,
		"remote": map[string]interface{}{
			"functionName":   c.Remote.FunctionName,
			"region":         c.Remote.Region,
			"ceiling":        c.Remote.Ceiling,
			"initialBackoff": c.Remote.InitialBackoff.String(),
			"maxBackoff":     c.Remote.MaxBackoff.String(),
		},
		"forecast": map[string]interface{}{
			"horizon":         c.Forecast.Horizon,
			"inputFrequency":  c.Forecast.InputFrequency,
			"frequency":       c.Forecast.Frequency,
			"objectiveMetric": c.Forecast.ObjectiveMetric,
			"cvStride":        c.Forecast.CVStride,
			"topN":            c.Forecast.TopN,
		},
		"export": map[string]interface{}{
			"bucketURL": c.Export.BucketURL,
			"formats":   formats,
		},
		"store": map[string]interface{}{
			"path": c.Store.Path,
		},
		"metrics": map[string]interface{}{
			"address": c.Metrics.Address,
		},
		"log": map[string]interface{}{
			"level":  c.Log.Level,
			"format": c.Log.Format,
			"file":   c.Log.File,
		},
	}
}

func flatten(m map[string]interface{}, prefix string) map[string]interface{} {
	out := make(map[string]interface{})
	for k, v := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			for nk, nv := range flatten(nested, key) {
				out[nk] = nv
			}
			continue
		}
		out[key] = v
	}
	return out
}

type contextKey struct{}

// NewContext returns a copy of ctx carrying cfg
func NewContext(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, contextKey{}, cfg)
}

// FromContext returns the configuration stored in ctx, or the defaults
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(contextKey{}).(*Config); ok && cfg != nil {
		return cfg
	}
	return Default()
}
