package tasks

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/metal-toolbox/bootorder/internal/bootorder"
	"github.com/metal-toolbox/bootorder/internal/metrics"
	"github.com/metal-toolbox/bootorder/internal/model"
	"github.com/metal-toolbox/bootorder/internal/store"
	"github.com/metal-toolbox/bootorder/internal/store/query"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	pkgName = "internal/tasks"
)

var (
	ErrTaskFatal = errors.New("Task fatal error, check logs for details")
	ErrNoResult  = errors.New("task completed without a result")
)

// State is the lifecycle state of a task or step.
type State string

const (
	Pending   State = "pending"
	Active    State = "active"
	Succeeded State = "succeeded"
	Failed    State = "failed"
)

// Action is the change a reconcile made, or would make in check mode.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionDeleted   Action = "deleted"
	ActionUnchanged Action = "unchanged"
	ActionAbsent    Action = "absent"
)

// Result is the outcome of a reconcile.
type Result struct {
	// APIResponse is the remote policy document after the reconcile, empty when none exists.
	APIResponse model.Document `json:"api_response"`
	TraceID     string         `json:"trace_id"`
	Changed     bool           `json:"changed"`
	Action      Action         `json:"action"`
}

// sharedData is the state handed from one step to the next.
type sharedData struct {
	desired          model.Document
	check            bool
	organizationMoid string
	filter           query.Filter
	// current is nil when the policy does not exist
	current model.Document
	traceID string
	result  *Result
}

func (d *sharedData) recordTrace(resp *query.Response) {
	if resp != nil && resp.TraceID != "" {
		d.traceID = resp.TraceID
	}
}

func (d *sharedData) currentOrEmpty() model.Document {
	if d.current == nil {
		return model.Document{}
	}

	return d.current
}

// StatusPublisher receives the task status on every update.
type StatusPublisher interface {
	Publish(ctx context.Context, taskID string, state State, status json.RawMessage)
}

// LogPublisher publishes task status updates to the default logger.
type LogPublisher struct{}

func (p *LogPublisher) Publish(_ context.Context, taskID string, state State, status json.RawMessage) {
	slog.Debug("Task status", "taskID", taskID, "state", state, "status", status)
}

// TaskStatus has status about a task, and it's steps.
type TaskStatus struct {
	Task       string        `json:"task"`
	Status     string        `json:"status"`
	Details    string        `json:"details,omitempty"`
	Error      string        `json:"error,omitempty"`
	ActiveStep string        `json:"active_step,omitempty"`
	Steps      []*StepStatus `json:"steps"`
}

// NewTaskStatus will generate a new task status struct
func NewTaskStatus(taskName string, state State) *TaskStatus {
	return &TaskStatus{
		Task:   taskName,
		Status: string(state),
	}
}

func (r *TaskStatus) AsLogFields() []any {
	return []any{
		"task", r.Task,
		"status", r.Status,
		"details", r.Details,
		"error", r.Error,
	}
}

func (r *TaskStatus) Marshal() ([]byte, error) {
	respBytes, err := json.Marshal(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal response to json")
	}

	return respBytes, nil
}

// Task is a reconcile of one boot order policy.
// The task runs multiple steps to accomplish the task.
type Task interface {
	// ID identifies this run of the task
	ID() string
	// Name of the task
	Name() string
	// Policy is the policy that will be affected by this task
	Policy() *bootorder.Parameters
	// Steps is the multiple units of work that will accomplish this task
	Steps() []Step
}

type policyTask struct {
	id     string
	name   string
	policy *bootorder.Parameters
	steps  []Step
}

// NewApplyPolicyTask creates the task making the remote policy match the parameters.
func NewApplyPolicyTask(policy *bootorder.Parameters) Task {
	return &policyTask{
		id:     uuid.NewString(),
		name:   "ApplyBootOrderPolicy",
		policy: policy,
		steps: []Step{
			ResolveOrganizationStep(policy.Organization),
			FetchPolicyStep(policy.Name),
			ApplyPolicyStep(),
		},
	}
}

// NewDeletePolicyTask creates the task removing the remote policy.
func NewDeletePolicyTask(policy *bootorder.Parameters) Task {
	return &policyTask{
		id:     uuid.NewString(),
		name:   "DeleteBootOrderPolicy",
		policy: policy,
		steps: []Step{
			ResolveOrganizationStep(policy.Organization),
			FetchPolicyStep(policy.Name),
			DeletePolicyStep(),
		},
	}
}

func (j *policyTask) ID() string {
	return j.id
}

func (j *policyTask) Name() string {
	return j.name
}

func (j *policyTask) Steps() []Step {
	return j.steps
}

func (j *policyTask) Policy() *bootorder.Parameters {
	return j.policy
}

// TaskRunner Will run the task by executing the individual steps in the task,
// and reports task status using the publisher.
type TaskRunner struct {
	publisher  StatusPublisher
	task       Task
	taskStatus *TaskStatus
	check      bool
}

// NewTaskRunner creates a TaskRunner to run a specific Task.
// In check mode the runner decides what would change but writes nothing.
func NewTaskRunner(publisher StatusPublisher, task Task, check bool) *TaskRunner {
	return &TaskRunner{
		publisher:  publisher,
		task:       task,
		taskStatus: NewTaskStatus(task.Name(), Pending),
		check:      check,
	}
}

// Status returns the status of the task as last published.
func (r *TaskRunner) Status() *TaskStatus {
	return r.taskStatus
}

// Run executes the steps in order, stopping at the first failure.
// desired is the request body the policy should have remotely.
func (r *TaskRunner) Run(ctx context.Context, repository store.Repository, desired model.Document) (result *Result, err error) {
	ctx, span := otel.Tracer(pkgName).Start(
		ctx,
		"TaskRunner.Run",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("task", r.task.Name()),
			attribute.String("policy", r.task.Policy().Name),
			attribute.Bool("check", r.check),
		),
	)
	defer span.End()

	slog.With(r.task.Policy().AsLogFields()...).Info("Running task", "task", r.task.Name(), "taskID", r.task.ID())

	startTS := time.Now()
	data := &sharedData{desired: desired, check: r.check}
	r.initTaskLog()

	defer func() {
		if rec := recover(); rec != nil {
			result, err = nil, r.handlePanic(ctx, rec)
		}

		r.registerMetrics(startTS, result, err)

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	r.publishTaskUpdate(ctx, Active, "Running steps", nil)

	for stepID, step := range r.task.Steps() {
		r.publishStepUpdate(ctx, stepID, "Running step")

		details, err := r.runStep(ctx, step, repository, data)
		if err != nil {
			r.publishFailed(ctx, stepID, details, err)
			return nil, err
		}

		r.publishStepSuccess(ctx, stepID, details)
	}

	if data.result == nil {
		r.publishTaskUpdate(ctx, Failed, "No step produced a result", ErrNoResult)
		return nil, ErrNoResult
	}

	data.result.TraceID = data.traceID

	r.publishTaskSuccess(ctx)

	return data.result, nil
}

func (r *TaskRunner) runStep(ctx context.Context, step Step, repository store.Repository, data *sharedData) (string, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Step."+step.Name())
	defer span.End()

	details, err := step.Run(ctx, repository, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, details)
	}

	return details, err
}

func (r *TaskRunner) registerMetrics(startTS time.Time, result *Result, err error) {
	state := Succeeded
	if err != nil {
		state = Failed
	}

	metrics.TaskRunTimeSummary.With(prometheus.Labels{
		"task":  r.task.Name(),
		"state": string(state),
	}).Observe(time.Since(startTS).Seconds())

	if result != nil {
		metrics.ReconcileActions.With(prometheus.Labels{
			"action": string(result.Action),
			"state":  string(r.task.Policy().State),
		}).Inc()
	}
}

func (r *TaskRunner) initTaskLog() {
	steps := r.task.Steps()
	r.taskStatus.Steps = make([]*StepStatus, len(steps))

	for i, step := range steps {
		r.taskStatus.Steps[i] = NewStepStatus(step.Name(), Pending, "", nil)
	}
}

func (r *TaskRunner) handlePanic(ctx context.Context, rec any) error {
	msg := "Panic occurred while running task"
	slog.Error("!!panic occurred", "rec", rec, "stack", string(debug.Stack()))
	slog.Error(msg)

	r.publishTaskUpdate(ctx, Failed, msg, ErrTaskFatal)

	return ErrTaskFatal
}

func (r *TaskRunner) publishStepUpdate(ctx context.Context, stepID int, details string) {
	r.taskStatus.ActiveStep = r.task.Steps()[stepID].Name()
	r.publish(ctx, stepID, Active, Active, details, nil)
}

func (r *TaskRunner) publishStepSuccess(ctx context.Context, stepID int, details string) {
	r.publish(ctx, stepID, Succeeded, Active, details, nil)
}

func (r *TaskRunner) publishFailed(ctx context.Context, stepID int, details string, err error) {
	slog.With(r.task.Policy().AsLogFields()...).Error("Task failed", "task", r.task.Name(), "error", err)
	r.publish(ctx, stepID, Failed, Failed, details, err)
}

func (r *TaskRunner) publishTaskSuccess(ctx context.Context) {
	slog.With(r.task.Policy().AsLogFields()...).Info("Task completed successfully", "task", r.task.Name())
	r.taskStatus.ActiveStep = ""
	r.publishTaskUpdate(ctx, Succeeded, "Task completed successfully", nil)
}

func (r *TaskRunner) publish(ctx context.Context, stepID int, stepState, taskState State, details string, err error) {
	step := r.task.Steps()[stepID]
	stepStatus := NewStepStatus(step.Name(), stepState, details, err)

	slog.With(stepStatus.AsLogFields()...).Debug(details, "task", r.task.Name())

	r.taskStatus.Steps[stepID] = stepStatus

	var taskDetails string
	if err != nil {
		taskDetails = "Task failed at step " + step.Name()
	}

	r.publishTaskUpdate(ctx, taskState, taskDetails, err)
}

func (r *TaskRunner) publishTaskUpdate(ctx context.Context, state State, details string, err error) {
	r.taskStatus.Status = string(state)
	r.taskStatus.Details = details

	if err != nil {
		r.taskStatus.Error = err.Error()
	}

	respBytes, err := r.taskStatus.Marshal()
	if err != nil {
		slog.Error("Failed to marshal task status", "error", err)
		return
	}

	r.publisher.Publish(ctx, r.task.ID(), state, respBytes)
}
