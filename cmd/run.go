package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/equinix-labs/otel-init-go/otelinit"
	"github.com/metal-toolbox/bootorder/internal/bootorder"
	"github.com/metal-toolbox/bootorder/internal/configuration"
	"github.com/metal-toolbox/bootorder/internal/handlers"
	"github.com/metal-toolbox/bootorder/internal/log"
	"github.com/metal-toolbox/bootorder/internal/metrics"
	"github.com/metal-toolbox/bootorder/internal/model"
	"github.com/metal-toolbox/bootorder/internal/profiling"
	"github.com/metal-toolbox/bootorder/internal/store"
	"github.com/metal-toolbox/bootorder/internal/version"
	"github.com/pkg/errors"
)

// runReconcile loads the policy file and reconciles it, forceState overrides
// the state given in the file when set.
func runReconcile(ctx context.Context, args *model.Args, forceState model.State) error {
	log.InitLogger()

	config, err := configuration.Load(args)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		return err
	}

	log.SetLevel(config.LogLevel)
	log.SetOtelLogger(log.NewLogrusLogger(config.LogLevel))

	slog.Debug("Configuration loaded", config.AsLogFields()...)

	if config.MetricsEndpoint != "" {
		metrics.ListenAndServe(config.MetricsEndpoint)
		version.ExportBuildInfoMetric()
	}

	if config.EnableProfiling {
		profiling.Enable(config.ProfilingEndpoint)
	}

	params, err := loadPolicyFile(args.PolicyFile)
	if err != nil {
		slog.Error("Failed to load policy file", "error", err, "file", args.PolicyFile)
		return err
	}

	if forceState != "" {
		params.State = forceState
	}

	ctx, otelShutdown := otelinit.InitOpenTelemetry(ctx, model.AppName)
	defer otelShutdown(ctx)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	repository, err := store.NewRepository(ctx, config)
	if err != nil {
		slog.Error("Failed to create repository", "error", err)
		return err
	}

	if config.DryRun {
		slog.Warn("Running in dry run mode, Intersight is not contacted")
	}

	slog.With(version.Current().AsLogFields()...).Debug("bootorder running")

	handler := handlers.NewHandler(repository, handlers.WithCheckMode(args.Check))

	result, err := handler.Handle(ctx, params)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")

	if err := encoder.Encode(result); err != nil {
		return errors.Wrap(err, "failed to write result")
	}

	return nil
}

func loadPolicyFile(path string) (*bootorder.Parameters, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(model.ErrConfig, err.Error())
	}
	defer fh.Close()

	return bootorder.LoadParameters(fh)
}
