package tasks

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/metal-toolbox/bootorder/internal/bootorder"
	"github.com/metal-toolbox/bootorder/internal/model"
	"github.com/metal-toolbox/bootorder/internal/store"
	"github.com/metal-toolbox/bootorder/internal/store/memory"
	"github.com/metal-toolbox/bootorder/internal/store/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStep struct{}

func (s *fakeStep) Name() string {
	return "fake step"
}

func (s *fakeStep) Run(ctx context.Context, repository store.Repository, _ *sharedData) (string, error) {
	// a nil repository panics
	_, err := repository.Get(ctx, model.OrganizationsPath, nil)
	return "", err
}

type fakeTask struct {
	policy *bootorder.Parameters
	steps  []Step
}

func newFakeTask() *fakeTask {
	return &fakeTask{
		policy: &bootorder.Parameters{},
		steps:  []Step{&fakeStep{}},
	}
}

func (t *fakeTask) ID() string {
	return "fake-id"
}

func (t *fakeTask) Name() string {
	return "fake task"
}

func (t *fakeTask) Policy() *bootorder.Parameters {
	return t.policy
}

func (t *fakeTask) Steps() []Step {
	return t.steps
}

type fakePublisher struct {
	states []State
}

func (m *fakePublisher) Publish(_ context.Context, _ string, state State, _ json.RawMessage) {
	m.states = append(m.states, state)
}

// recordingRepository keeps the last body written through it.
type recordingRepository struct {
	*memory.Store
	lastBody model.Document
}

func (r *recordingRepository) Create(ctx context.Context, path string, body model.Document) (*query.Response, error) {
	r.lastBody = body
	return r.Store.Create(ctx, path, body)
}

func (r *recordingRepository) Update(ctx context.Context, path string, filter query.Filter, body model.Document) (*query.Response, error) {
	r.lastBody = body
	return r.Store.Update(ctx, path, filter, body)
}

func cosBootParams(state model.State) *bootorder.Parameters {
	return &bootorder.Parameters{
		State:        state,
		Organization: "default",
		Name:         "COS-Boot",
		BootDevices: []bootorder.DeviceParameters{
			{
				DeviceType:     bootorder.KindLocalDisk,
				DeviceName:     "Boot-Lun",
				ControllerSlot: "MRAID",
			},
		},
	}
}

func desiredBody(t *testing.T, params *bootorder.Parameters) model.Document {
	t.Helper()

	policy, err := params.Policy()
	require.NoError(t, err)

	return bootorder.Build(policy)
}

func organizationMoid(t *testing.T, s *memory.Store) string {
	t.Helper()

	orgs := s.Resources(model.OrganizationsPath)
	require.Len(t, orgs, 1)

	return orgs[0].Moid()
}

func toMap(t *testing.T, v any) map[string]any {
	t.Helper()

	switch m := v.(type) {
	case model.Document:
		return m
	case map[string]any:
		return m
	default:
		require.Failf(t, "not a document", "%T", v)
		return nil
	}
}

func runTask(t *testing.T, repository store.Repository, task Task, desired model.Document, check bool) (*Result, error) {
	t.Helper()

	return NewTaskRunner(&fakePublisher{}, task, check).Run(context.Background(), repository, desired)
}

func TestTaskRunnerHandlePanic(t *testing.T) {
	task := newFakeTask()
	publisher := &fakePublisher{}
	runner := NewTaskRunner(publisher, task, false)

	_, err := runner.Run(context.Background(), nil, model.Document{})

	if assert.NotNil(t, err) {
		assert.Equal(t, "Task fatal error, check logs for details", err.Error())
	}

	assert.Equal(t, Failed, publisher.states[len(publisher.states)-1])
}

func TestApplyCreatesOnce(t *testing.T) {
	repository := memory.New("default")
	params := cosBootParams(model.StatePresent)
	desired := desiredBody(t, params)

	result, err := runTask(t, repository, NewApplyPolicyTask(params), desired, false)
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, ActionCreated, result.Action)
	assert.NotEmpty(t, result.APIResponse.Moid())
	assert.NotEmpty(t, result.TraceID)

	result, err = runTask(t, repository, NewApplyPolicyTask(params), desired, false)
	require.NoError(t, err)

	assert.False(t, result.Changed)
	assert.Equal(t, ActionUnchanged, result.Action)
	assert.Equal(t, 1, repository.Calls(memory.MethodCreate))
	assert.Equal(t, 0, repository.Calls(memory.MethodUpdate))
}

func TestApplyCreateBody(t *testing.T) {
	repository := &recordingRepository{Store: memory.New("default")}
	params := cosBootParams(model.StatePresent)

	_, err := runTask(t, repository, NewApplyPolicyTask(params), desiredBody(t, params), false)
	require.NoError(t, err)

	orgMoid := organizationMoid(t, repository.Store)
	assert.Equal(t, model.Document{"Moid": orgMoid}, repository.lastBody["Organization"])
	assert.Equal(t, "COS-Boot", repository.lastBody["Name"])
	assert.Equal(t, "Legacy", repository.lastBody["ConfiguredBootMode"])

	devices := repository.lastBody["BootDevices"].([]any)
	require.Len(t, devices, 1)

	device := toMap(t, devices[0])
	assert.Equal(t, "boot.LocalDisk", device["ClassId"])
	assert.Equal(t, "Boot-Lun", device["Name"])
	assert.Equal(t, "MRAID", device["Slot"])
	assert.Equal(t, true, device["Enabled"])

	stored := repository.Resources(model.BootPolicyPath)
	require.Len(t, stored, 1)
	assert.Equal(t, "boot.PrecisionPolicy", stored[0]["ObjectType"])
}

func TestApplyUpdatesDifferingPolicy(t *testing.T) {
	repository := &recordingRepository{Store: memory.New("default")}
	orgMoid := organizationMoid(t, repository.Store)

	existing := repository.Seed(model.BootPolicyPath, model.Document{
		"Name":               "COS-Boot",
		"ConfiguredBootMode": "Uefi",
		"Organization":       model.Document{"Moid": orgMoid},
	})

	params := cosBootParams(model.StatePresent)
	desired := desiredBody(t, params)

	result, err := runTask(t, repository, NewApplyPolicyTask(params), desired, false)
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, ActionUpdated, result.Action)
	assert.Equal(t, 1, repository.Calls(memory.MethodUpdate))
	assert.Equal(t, 0, repository.Calls(memory.MethodCreate))

	assert.NotContains(t, repository.lastBody, "Organization")
	// the desired body is left untouched
	assert.Contains(t, desired, "Organization")

	stored := repository.Resources(model.BootPolicyPath)
	require.Len(t, stored, 1)
	assert.Equal(t, existing.Moid(), stored[0].Moid())
	assert.Equal(t, "Legacy", stored[0]["ConfiguredBootMode"])
}

func TestDeleteWhenAbsent(t *testing.T) {
	repository := memory.New("default")
	params := cosBootParams(model.StateAbsent)

	result, err := runTask(t, repository, NewDeletePolicyTask(params), nil, false)
	require.NoError(t, err)

	assert.False(t, result.Changed)
	assert.Equal(t, ActionAbsent, result.Action)
	assert.Empty(t, result.APIResponse)
	assert.Equal(t, 0, repository.Calls(memory.MethodDelete))
}

func TestDeleteExisting(t *testing.T) {
	repository := memory.New("default")
	orgMoid := organizationMoid(t, repository)

	existing := repository.Seed(model.BootPolicyPath, model.Document{
		"Name":         "COS-Boot",
		"Organization": model.Document{"Moid": orgMoid},
	})

	// same name in another organization is left alone
	repository.Seed(model.BootPolicyPath, model.Document{
		"Name":         "COS-Boot",
		"Organization": model.Document{"Moid": "other-org"},
	})

	result, err := runTask(t, repository, NewDeletePolicyTask(cosBootParams(model.StateAbsent)), nil, false)
	require.NoError(t, err)

	assert.True(t, result.Changed)
	assert.Equal(t, ActionDeleted, result.Action)
	assert.Equal(t, 1, repository.Calls(memory.MethodDelete))

	remaining := repository.Resources(model.BootPolicyPath)
	require.Len(t, remaining, 1)
	assert.NotEqual(t, existing.Moid(), remaining[0].Moid())
}

func TestOrganizationNotFound(t *testing.T) {
	repository := memory.New("other")
	params := cosBootParams(model.StatePresent)

	runner := NewTaskRunner(&fakePublisher{}, NewApplyPolicyTask(params), false)

	_, err := runner.Run(context.Background(), repository, desiredBody(t, params))
	assert.ErrorIs(t, err, model.ErrOrganizationNotFound)

	assert.Equal(t, 1, repository.Calls(memory.MethodGet))
	assert.Equal(t, 0, repository.Calls(memory.MethodCreate))

	status := runner.Status()
	assert.Equal(t, string(Failed), status.Status)
	assert.Equal(t, string(Failed), status.Steps[0].Status)
	assert.Equal(t, string(Pending), status.Steps[1].Status)
}

func TestCheckModeWritesNothing(t *testing.T) {
	repository := memory.New("default")
	orgMoid := organizationMoid(t, repository)
	params := cosBootParams(model.StatePresent)

	result, err := runTask(t, repository, NewApplyPolicyTask(params), desiredBody(t, params), true)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, ActionCreated, result.Action)

	repository.Seed(model.BootPolicyPath, model.Document{
		"Name":         "COS-Boot",
		"Organization": model.Document{"Moid": orgMoid},
	})

	result, err = runTask(t, repository, NewDeletePolicyTask(cosBootParams(model.StateAbsent)), nil, true)
	require.NoError(t, err)
	assert.True(t, result.Changed)
	assert.Equal(t, ActionDeleted, result.Action)

	assert.Equal(t, 0, repository.Calls(memory.MethodCreate))
	assert.Equal(t, 0, repository.Calls(memory.MethodUpdate))
	assert.Equal(t, 0, repository.Calls(memory.MethodDelete))
	assert.Len(t, repository.Resources(model.BootPolicyPath), 1)
}

func TestTaskStatusSucceeded(t *testing.T) {
	repository := memory.New("default")
	params := cosBootParams(model.StatePresent)
	publisher := &fakePublisher{}

	runner := NewTaskRunner(publisher, NewApplyPolicyTask(params), false)
	_, err := runner.Run(context.Background(), repository, desiredBody(t, params))
	require.NoError(t, err)

	status := runner.Status()
	assert.Equal(t, string(Succeeded), status.Status)
	require.Len(t, status.Steps, 3)

	for _, step := range status.Steps {
		assert.Equal(t, string(Succeeded), step.Status)
	}

	assert.Equal(t, Active, publisher.states[0])
	assert.Equal(t, Succeeded, publisher.states[len(publisher.states)-1])
}
