package config

import (
	"fmt"

	"github.com/aryankumar/sfs/internal/export"
	"github.com/aryankumar/sfs/internal/forecast"
	"github.com/aryankumar/sfs/internal/output"
	"github.com/aryankumar/sfs/internal/util"
)

var (
	logLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	logFormats = map[string]bool{"text": true, "json": true}
)

// Validate checks every key and reports all problems at once. The returned
// error wraps util.ErrInvalidConfig and one *util.ValidationError per field.
func (c *Config) Validate() error {
	errs := &util.MultiError{}
	check := func(ok bool, field string, value interface{}, message string) {
		if !ok {
			errs.Add(util.NewValidationError(field, value, message))
		}
	}

	check(c.Backend == BackendLocal || c.Backend == BackendRemote, "backend", c.Backend, "must be local or remote")
	check(c.MaxWorkers >= 1, "maxWorkers", c.MaxWorkers, "must be at least 1")
	check(c.PollInterval > 0, "pollInterval", c.PollInterval, "must be positive")
	check(c.RetryLimit >= 0, "retryLimit", c.RetryLimit, "must not be negative")
	check(c.Timeout >= 0, "timeout", c.Timeout, "must not be negative")
	if _, err := output.ParseFormat(c.Output); err != nil {
		check(false, "output", c.Output, "must be table, json or yaml")
	}

	if c.Backend == BackendRemote {
		check(c.Remote.FunctionName != "", "remote.functionName", nil, "is required for the remote backend")
	}
	check(c.Remote.Ceiling >= 1, "remote.ceiling", c.Remote.Ceiling, "must be at least 1")
	check(c.Remote.InitialBackoff > 0, "remote.initialBackoff", c.Remote.InitialBackoff, "must be positive")
	check(c.Remote.MaxBackoff >= c.Remote.InitialBackoff, "remote.maxBackoff", c.Remote.MaxBackoff, "must not be below remote.initialBackoff")

	check(c.Forecast.Horizon >= 1, "forecast.horizon", c.Forecast.Horizon, "must be at least 1")
	if _, err := forecast.ParseFrequency(c.Forecast.InputFrequency); err != nil {
		check(false, "forecast.inputFrequency", c.Forecast.InputFrequency, err.Error())
	}
	if _, err := forecast.ParseFrequency(c.Forecast.Frequency); err != nil {
		check(false, "forecast.frequency", c.Forecast.Frequency, err.Error())
	}
	check(forecast.ValidObjective(c.Forecast.ObjectiveMetric), "forecast.objectiveMetric", c.Forecast.ObjectiveMetric,
		fmt.Sprintf("must be one of %s, %s, %s", forecast.MetricSMAPE, forecast.MetricMAE, forecast.MetricRMSE))
	check(c.Forecast.CVStride >= 1, "forecast.cvStride", c.Forecast.CVStride, "must be at least 1")
	check(c.Forecast.TopN >= 0, "forecast.topN", c.Forecast.TopN, "must not be negative")

	if _, err := export.ParseFormats(c.Export.Formats); err != nil {
		check(false, "export.formats", c.Export.Formats, err.Error())
	}

	check(logLevels[c.Log.Level], "log.level", c.Log.Level, "must be debug, info, warn or error")
	check(logFormats[c.Log.Format], "log.format", c.Log.Format, "must be text or json")

	if err := errs.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", util.ErrInvalidConfig, err)
	}
	return nil
}
