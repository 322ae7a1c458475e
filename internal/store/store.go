package store

import (
	"context"

	"github.com/metal-toolbox/bootorder/internal/configuration"
	"github.com/metal-toolbox/bootorder/internal/model"
	"github.com/metal-toolbox/bootorder/internal/store/intersight"
	"github.com/metal-toolbox/bootorder/internal/store/memory"
	"github.com/metal-toolbox/bootorder/internal/store/query"
)

// Repository is the resource client the reconciler drives.
type Repository interface {
	// Get returns the single resource under path matching the query.
	// It returns query.ErrNotFound when nothing matches and
	// query.ErrAmbiguousMatch when more than one resource does.
	Get(ctx context.Context, path string, q *query.Query) (*query.Response, error)
	// Create posts a new resource under path.
	Create(ctx context.Context, path string, body model.Document) (*query.Response, error)
	// Update replaces the resources under path matched by the filter.
	Update(ctx context.Context, path string, filter query.Filter, body model.Document) (*query.Response, error)
	// Delete removes the resource identified by moid.
	Delete(ctx context.Context, path, moid string) (*query.Response, error)
}

func NewRepository(ctx context.Context, config *configuration.Configuration) (Repository, error) {
	if config.DryRun {
		return memory.New(config.IntersightOptions.Organizations...), nil
	}

	client, err := intersight.New(ctx, config.IntersightOptions)
	if err != nil {
		return nil, err
	}

	return client, nil
}
