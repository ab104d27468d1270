package config

import "time"

// Backend names accepted by the backend key
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Config represents the sfs configuration file structure
type Config struct {
	// Backend selects where units run: local or remote
	Backend string `yaml:"backend" json:"backend"`

	// MaxWorkers caps the worker pool size of a batch
	MaxWorkers int `yaml:"maxWorkers" json:"maxWorkers"`

	// PollInterval is the progress polling cadence
	PollInterval time.Duration `yaml:"pollInterval" json:"pollInterval"`

	// RetryLimit is the number of retries after a transient remote failure
	RetryLimit int `yaml:"retryLimit" json:"retryLimit"`

	// Timeout bounds a whole run. Zero means no deadline.
	Timeout time.Duration `yaml:"timeout" json:"timeout"`

	// Output is the default output format (table, json, yaml)
	Output string `yaml:"output" json:"output"`

	// NoColor disables colored output
	NoColor bool `yaml:"noColor" json:"noColor"`

	Remote   RemoteConfig   `yaml:"remote" json:"remote"`
	Forecast ForecastConfig `yaml:"forecast" json:"forecast"`
	Export   ExportConfig   `yaml:"export" json:"export"`
	Store    StoreConfig    `yaml:"store" json:"store"`
	Metrics  MetricsConfig  `yaml:"metrics" json:"metrics"`
	Log      LogConfig      `yaml:"log" json:"log"`
}

// RemoteConfig configures the remote backend
type RemoteConfig struct {
	// FunctionName is the remote function invoked per unit
	FunctionName string `yaml:"functionName" json:"functionName"`

	// Region is the AWS region. Empty uses the SDK default chain.
	Region string `yaml:"region,omitempty" json:"region,omitempty"`

	// Ceiling caps concurrent invocations; values above 1000 are clamped
	Ceiling int `yaml:"ceiling" json:"ceiling"`

	InitialBackoff time.Duration `yaml:"initialBackoff" json:"initialBackoff"`
	MaxBackoff     time.Duration `yaml:"maxBackoff" json:"maxBackoff"`
}

// ForecastConfig holds the per-run forecasting parameters
type ForecastConfig struct {
	// Horizon is the number of periods to forecast
	Horizon int `yaml:"horizon" json:"horizon"`

	// InputFrequency is the frequency of the uploaded data
	InputFrequency string `yaml:"inputFrequency" json:"inputFrequency"`

	// Frequency is the forecast frequency; data is resampled to it
	Frequency string `yaml:"frequency" json:"frequency"`

	ObjectiveMetric string `yaml:"objectiveMetric" json:"objectiveMetric"`
	CVStride        int    `yaml:"cvStride" json:"cvStride"`

	// TopN is the leaderboard size
	TopN int `yaml:"topN" json:"topN"`
}

// ExportConfig configures table export
type ExportConfig struct {
	// BucketURL is a gocloud bucket URL. Empty disables export.
	BucketURL string   `yaml:"bucketURL,omitempty" json:"bucketURL,omitempty"`
	Formats   []string `yaml:"formats" json:"formats"`
}

// StoreConfig configures the run ledger
type StoreConfig struct {
	// Path is the sqlite database file. Empty disables the ledger.
	Path string `yaml:"path" json:"path"`
}

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Address is the listen address. Empty disables the endpoint.
	Address string `yaml:"address,omitempty" json:"address,omitempty"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`

	// File mirrors logs into a rotated file when set
	File string `yaml:"file,omitempty" json:"file,omitempty"`
}
