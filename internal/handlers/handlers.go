package handlers

import (
	"context"
	"log/slog"

	"github.com/metal-toolbox/bootorder/internal/bootorder"
	"github.com/metal-toolbox/bootorder/internal/model"
	"github.com/metal-toolbox/bootorder/internal/store"
	"github.com/metal-toolbox/bootorder/internal/tasks"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	pkgName = "internal/handlers"
)

// Handler reconciles boot order policies against the repository.
type Handler struct {
	repository store.Repository
	publisher  tasks.StatusPublisher
	check      bool
}

// Option configures a Handler.
type Option func(*Handler)

// WithCheckMode makes the handler report what would change without writing.
func WithCheckMode(check bool) Option {
	return func(h *Handler) {
		h.check = check
	}
}

// WithPublisher sets the task status publisher, the default logs the status.
func WithPublisher(publisher tasks.StatusPublisher) Option {
	return func(h *Handler) {
		h.publisher = publisher
	}
}

// NewHandler returns a new instance of the Handler
func NewHandler(repository store.Repository, opts ...Option) *Handler {
	h := &Handler{
		repository: repository,
		publisher:  &tasks.LogPublisher{},
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Handle validates the parameters and reconciles the policy they describe.
// Invalid parameters are rejected before any remote call.
func (h *Handler) Handle(ctx context.Context, input *bootorder.Parameters) (*tasks.Result, error) {
	ctx, span := otel.Tracer(pkgName).Start(
		ctx,
		"Handler.Handle",
		trace.WithAttributes(attribute.Bool("check", h.check)),
	)
	defer span.End()

	// the caller's parameters are not modified
	params, err := input.Normalized()
	if err != nil {
		slog.Error("Invalid policy parameters", "error", err)
		return nil, err
	}

	policy, err := params.Policy()
	if err != nil {
		return nil, err
	}

	slog.Debug("Parsed policy parameters", params.AsLogFields()...)

	var (
		task    tasks.Task
		desired model.Document
	)

	switch params.State {
	case model.StatePresent:
		task = tasks.NewApplyPolicyTask(params)
		desired = bootorder.Build(policy)
	case model.StateAbsent:
		task = tasks.NewDeletePolicyTask(params)
	default:
		slog.With(params.AsLogFields()...).Error("Invalid state")
		return nil, errors.Wrap(model.ErrInvalidState, string(params.State))
	}

	span.SetAttributes(attribute.String("task", task.Name()))

	runner := tasks.NewTaskRunner(h.publisher, task, h.check)

	result, err := runner.Run(ctx, h.repository, desired)
	if err != nil {
		slog.Error("Failed running task", "error", err, "task", task.Name())
		return nil, err
	}

	slog.With(params.AsLogFields()...).Info("Policy reconciled",
		"action", result.Action,
		"changed", result.Changed,
		"traceID", result.TraceID,
	)

	return result, nil
}
