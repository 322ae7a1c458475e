package tasks

import (
	"context"
	"log/slog"

	"github.com/metal-toolbox/bootorder/internal/bootorder"
	"github.com/metal-toolbox/bootorder/internal/model"
	"github.com/metal-toolbox/bootorder/internal/store"
	"github.com/metal-toolbox/bootorder/internal/store/query"
	"github.com/mitchellh/copystructure"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// StepStatus has status about a step, to be reported as part of the overall task.
type StepStatus struct {
	Step    string `json:"step"`
	Status  string `json:"status"`
	Details string `json:"details,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewStepStatus will create a new step status struct
func NewStepStatus(stepName string, state State, details string, err error) *StepStatus {
	status := &StepStatus{
		Step:    stepName,
		Status:  string(state),
		Details: details,
	}

	if err != nil {
		status.Error = err.Error()
	}

	return status
}

func (s *StepStatus) AsLogFields() []any {
	return []any{
		"step", s.Step,
		"status", s.Status,
		"details", s.Details,
		"error", s.Error,
	}
}

// Step is a unit of work. Multiple steps accomplish a task.
type Step interface {
	// Name of this step
	Name() string
	// Run will execute the code to accomplish this step
	Run(ctx context.Context, repository store.Repository, data *sharedData) (string, error)
}

// organizationRef is the part of an organization document the reconcile needs.
type organizationRef struct {
	Moid string `mapstructure:"Moid"`
}

type resolveOrganizationStep struct {
	name         string
	organization string
}

// ResolveOrganizationStep looks up the organization by name and stores its Moid in sharedData.
func ResolveOrganizationStep(organization string) Step {
	return &resolveOrganizationStep{
		name:         "ResolveOrganization",
		organization: organization,
	}
}

func (t *resolveOrganizationStep) Name() string {
	return t.name
}

func (t *resolveOrganizationStep) Run(ctx context.Context, repository store.Repository, data *sharedData) (string, error) {
	resp, err := repository.Get(ctx, model.OrganizationsPath, &query.Query{
		Filter: query.Eq("Name", t.organization),
		Select: "Moid",
	})
	data.recordTrace(resp)

	if err != nil {
		if errors.Is(err, query.ErrNotFound) {
			return "Organization not found", errors.Wrap(model.ErrOrganizationNotFound, t.organization)
		}

		return "Failed to look up organization", errors.Wrap(err, "organization "+t.organization)
	}

	ref := organizationRef{}
	if err := mapstructure.Decode(resp.Document, &ref); err != nil {
		return "Failed to decode organization", errors.Wrap(err, "organization "+t.organization)
	}

	if ref.Moid == "" {
		return "Organization has no Moid", errors.Wrap(model.ErrOrganizationNotFound, t.organization)
	}

	data.organizationMoid = ref.Moid

	return "Organization Moid: " + ref.Moid, nil
}

type fetchPolicyStep struct {
	name       string
	policyName string
}

// FetchPolicyStep reads the current policy, if any, into sharedData.
func FetchPolicyStep(policyName string) Step {
	return &fetchPolicyStep{
		name:       "FetchPolicy",
		policyName: policyName,
	}
}

func (t *fetchPolicyStep) Name() string {
	return t.name
}

func (t *fetchPolicyStep) Run(ctx context.Context, repository store.Repository, data *sharedData) (string, error) {
	data.filter = query.And(
		query.Eq("Name", t.policyName),
		query.Eq("Organization.Moid", data.organizationMoid),
	)

	resp, err := repository.Get(ctx, model.BootPolicyPath, &query.Query{
		Filter: data.filter,
		Expand: "Organization",
	})
	data.recordTrace(resp)

	switch {
	case errors.Is(err, query.ErrNotFound):
		data.current = nil
		return "Policy does not exist", nil
	case err != nil:
		return "Failed to fetch policy", errors.Wrap(err, "policy "+t.policyName)
	}

	data.current = resp.Document

	return "Policy exists with Moid: " + resp.Document.Moid(), nil
}

type applyPolicyStep struct {
	name string
}

// ApplyPolicyStep creates the policy when missing and updates it when it differs
// from the desired body.
func ApplyPolicyStep() Step {
	return &applyPolicyStep{
		name: "ApplyPolicy",
	}
}

func (t *applyPolicyStep) Name() string {
	return t.name
}

func (t *applyPolicyStep) Run(ctx context.Context, repository store.Repository, data *sharedData) (string, error) {
	if data.current != nil && bootorder.Matches(data.desired, data.current) {
		data.result = &Result{APIResponse: data.current, Action: ActionUnchanged}
		return "Policy is up to date", nil
	}

	body, err := copyDocument(data.desired)
	if err != nil {
		return "Failed to copy policy body", err
	}

	if data.current == nil {
		// the organization is referenced by Moid on create
		body["Organization"] = model.Document{"Moid": data.organizationMoid}

		return t.write(data, ActionCreated, func() (*query.Response, error) {
			return repository.Create(ctx, model.BootPolicyPath, body)
		})
	}

	// the organization cannot be changed once set
	delete(body, "Organization")

	return t.write(data, ActionUpdated, func() (*query.Response, error) {
		return repository.Update(ctx, model.BootPolicyPath, data.filter, body)
	})
}

func (t *applyPolicyStep) write(data *sharedData, action Action, fn func() (*query.Response, error)) (string, error) {
	details := "Policy " + string(action)

	if data.check {
		data.result = &Result{APIResponse: data.currentOrEmpty(), Changed: true, Action: action}
		return details + " (check mode)", nil
	}

	resp, err := fn()
	data.recordTrace(resp)

	if err != nil {
		return "Failed to write policy", errors.Wrap(err, string(action))
	}

	data.result = &Result{APIResponse: resp.Document, Changed: true, Action: action}

	return details, nil
}

type deletePolicyStep struct {
	name string
}

// DeletePolicyStep removes the policy when it exists.
func DeletePolicyStep() Step {
	return &deletePolicyStep{
		name: "DeletePolicy",
	}
}

func (t *deletePolicyStep) Name() string {
	return t.name
}

func (t *deletePolicyStep) Run(ctx context.Context, repository store.Repository, data *sharedData) (string, error) {
	if data.current == nil {
		data.result = &Result{APIResponse: model.Document{}, Action: ActionAbsent}
		return "Policy already absent", nil
	}

	moid := data.current.Moid()

	if data.check {
		data.result = &Result{APIResponse: data.current, Changed: true, Action: ActionDeleted}
		return "Policy deleted (check mode)", nil
	}

	resp, err := repository.Delete(ctx, model.BootPolicyPath, moid)
	data.recordTrace(resp)

	if err != nil {
		return "Failed to delete policy", errors.Wrap(err, "delete "+moid)
	}

	slog.Debug("Deleted policy", "moid", moid)

	data.result = &Result{APIResponse: model.Document{}, Changed: true, Action: ActionDeleted}

	return "Policy deleted, Moid: " + moid, nil
}

func copyDocument(doc model.Document) (model.Document, error) {
	copied, err := copystructure.Copy(doc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to copy document")
	}

	out, ok := copied.(model.Document)
	if !ok {
		return nil, errors.New("unexpected document copy type")
	}

	return out, nil
}
