package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aryankumar/sfs/internal/aggregate"
	"github.com/aryankumar/sfs/internal/config"
	"github.com/aryankumar/sfs/internal/dataset"
	"github.com/aryankumar/sfs/internal/executor"
	"github.com/aryankumar/sfs/internal/export"
	"github.com/aryankumar/sfs/internal/forecast"
	"github.com/aryankumar/sfs/internal/invoke"
	"github.com/aryankumar/sfs/internal/metrics"
	"github.com/aryankumar/sfs/internal/output"
	"github.com/aryankumar/sfs/internal/runstore"
	"github.com/aryankumar/sfs/internal/util"
)

// LoopbackFunction as remote.functionName runs the remote backend against an
// in-process handler instead of AWS Lambda
const LoopbackFunction = "local"

// runRequest describes one pass over a dataset
type runRequest struct {
	datasetPath string
	params      dataset.Params
	inputFreq   forecast.Frequency

	// only restricts the run to these groups when non-empty
	only []forecast.GroupKey

	// name is the export base name
	name          string
	wide          bool
	failOnPartial bool
}

// pipeline runs load, partition, Map, Watch, Drain, then prints, exports
// and records the result
type pipeline struct {
	cfg    *config.Config
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer

	// newInvoker builds the remote invoker; tests replace it
	newInvoker func(ctx context.Context, cfg *config.Config) (invoke.Invoker, error)
}

func newPipeline(cfg *config.Config, stdout, stderr io.Writer) *pipeline {
	return &pipeline{
		cfg:        cfg,
		logger:     slog.Default(),
		stdout:     stdout,
		stderr:     stderr,
		newInvoker: defaultInvoker,
	}
}

// paramsFromConfig returns the partition params and the input frequency
func paramsFromConfig(cfg *config.Config) (dataset.Params, forecast.Frequency, error) {
	freq, err := forecast.ParseFrequency(cfg.Forecast.Frequency)
	if err != nil {
		return dataset.Params{}, "", err
	}
	inputFreq, err := forecast.ParseFrequency(cfg.Forecast.InputFrequency)
	if err != nil {
		return dataset.Params{}, "", err
	}
	return dataset.Params{
		Horizon:         cfg.Forecast.Horizon,
		Frequency:       freq,
		ObjectiveMetric: cfg.Forecast.ObjectiveMetric,
		CVStride:        cfg.Forecast.CVStride,
	}, inputFreq, nil
}

// run executes req. Unit failures are reported, not returned, unless
// failOnPartial is set. Cancellation and timeouts are returned after the
// partial output has been printed and recorded.
func (p *pipeline) run(ctx context.Context, req runRequest) (*aggregate.Output, error) {
	ds, err := dataset.Load(req.datasetPath, req.inputFreq)
	if err != nil {
		return nil, err
	}
	if len(req.only) > 0 {
		ds = ds.Filter(req.only)
	}
	ds = dataset.Resample(ds, req.params.Frequency)

	units, err := dataset.Partition(ds, req.params)
	if err != nil {
		return nil, err
	}
	p.logger.Info("dataset partitioned", "dataset", req.datasetPath, "records", ds.Len(), "groups", len(units))

	m, stopMetrics := p.startMetrics(ctx)
	defer stopMetrics()

	backend, err := p.newBackend(ctx, m)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := runContext(ctx, p.cfg.Timeout)
	defer cancel()

	batch, err := executor.New(p.logger, m).Map(runCtx, units, backend)
	if err != nil {
		return nil, err
	}

	progress := output.NewProgressPrinter(p.stderr, "forecasting", p.cfg.NoColor)
	watchCtx, stopWatch := context.WithCancel(runCtx)
	watched := executor.NewProgressMonitor(p.logger).Watch(watchCtx, batch, progress.Update, p.cfg.PollInterval)

	out, drainErr := aggregate.New(p.logger, p.cfg.Forecast.TopN).Drain(runCtx, batch)
	batch.Cancel()
	stopWatch()
	<-watched
	progress.Finish()

	if drainErr != nil {
		return nil, drainErr
	}

	formatter := output.NewFormatter(output.Format(p.cfg.Output), output.WithNoColor(p.cfg.NoColor), output.WithWide(req.wide))
	if err := formatter.FormatRun(p.stdout, out); err != nil {
		return out, err
	}

	// Partial results are persisted even when the run was interrupted
	persistCtx := context.WithoutCancel(ctx)
	if err := p.export(persistCtx, req.name, out); err != nil {
		return out, err
	}
	if err := p.record(persistCtx, req, out); err != nil {
		return out, err
	}

	if out.Cancelled {
		switch {
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			return out, fmt.Errorf("%w: %d groups pending after %s", util.ErrTimeout, len(out.Pending), p.cfg.Timeout)
		default:
			return out, fmt.Errorf("%w: %d groups pending", util.ErrCancelled, len(out.Pending))
		}
	}
	if req.failOnPartial {
		if err := out.Err(); err != nil {
			return out, fmt.Errorf("%d of %d groups failed: %w", len(out.Failures), out.Total(), err)
		}
	}
	return out, nil
}

// newBackend builds the configured execution backend
func (p *pipeline) newBackend(ctx context.Context, m *metrics.Metrics) (executor.Backend, error) {
	opts := []executor.Option{executor.WithLogger(p.logger), executor.WithMetrics(m)}

	switch p.cfg.Backend {
	case config.BackendRemote:
		invoker, err := p.newInvoker(ctx, p.cfg)
		if err != nil {
			return nil, util.NewSubmissionError(config.BackendRemote, "", fmt.Errorf("%w: %w", util.ErrBackendUnavailable, err))
		}
		return executor.NewRemoteBackend(invoker, executor.RemoteConfig{
			FunctionName:   p.cfg.Remote.FunctionName,
			MaxWorkers:     p.cfg.MaxWorkers,
			Ceiling:        p.cfg.Remote.Ceiling,
			RetryLimit:     p.cfg.RetryLimit,
			InitialBackoff: p.cfg.Remote.InitialBackoff,
			MaxBackoff:     p.cfg.Remote.MaxBackoff,
		}, opts...)
	default:
		return executor.NewLocalBackend(forecast.Compute, p.cfg.MaxWorkers, opts...), nil
	}
}

func defaultInvoker(ctx context.Context, cfg *config.Config) (invoke.Invoker, error) {
	if cfg.Remote.FunctionName == LoopbackFunction {
		return invoke.NewLoopback(LoopbackFunction, invoke.Handler(forecast.Compute)), nil
	}
	return invoke.NewLambdaInvokerFromConfig(ctx, cfg.Remote.Region)
}

// startMetrics serves Prometheus metrics when metrics.address is set. The
// returned func stops the server.
func (p *pipeline) startMetrics(ctx context.Context) (*metrics.Metrics, func()) {
	if p.cfg.Metrics.Address == "" {
		return nil, func() {}
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg, "sfs")

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := metrics.Serve(ctx, p.cfg.Metrics.Address, reg); err != nil {
			p.logger.Warn("metrics endpoint stopped", "address", p.cfg.Metrics.Address, "error", err)
		}
	}()
	return m, func() {
		cancel()
		<-done
	}
}

// export writes the tables when export.bucketURL is set
func (p *pipeline) export(ctx context.Context, name string, out *aggregate.Output) error {
	if p.cfg.Export.BucketURL == "" {
		return nil
	}
	formats, err := export.ParseFormats(p.cfg.Export.Formats)
	if err != nil {
		return err
	}

	exporter, err := export.Open(ctx, p.cfg.Export.BucketURL, formats, p.logger)
	if err != nil {
		return err
	}
	defer exporter.Close()

	manifest, err := exporter.Export(ctx, name, out)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	p.logger.Info("tables exported", "bucket", p.cfg.Export.BucketURL, "name", name, "files", len(manifest.Files))
	return nil
}

// record saves the run to the ledger when store.path is set
func (p *pipeline) record(ctx context.Context, req runRequest, out *aggregate.Output) error {
	if p.cfg.Store.Path == "" {
		return nil
	}
	store, err := runstore.Open(p.cfg.Store.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	path := req.datasetPath
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	run := runstore.NewRun(out, path, req.params)
	if err := store.SaveRun(ctx, run, out.Failures, out.Pending); err != nil {
		return err
	}
	p.logger.Debug("run recorded", "run_id", run.ID, "store", p.cfg.Store.Path)
	return nil
}

// exportName derives the export base name from a dataset path
func exportName(path string) string {
	name := filepath.Base(path)
	for _, ext := range []string{".csv.gz", ".csv.zst", ".csv"} {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}
