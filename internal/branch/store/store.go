// Package store persists branches for the branch API. Every implementation
// cascades a rate write to the written branch's descendants.
package store

import (
	"context"

	branchmetrics "branchrate/internal/branch/metrics"
	"branchrate/internal/branch/models"
)

type options struct {
	metrics *branchmetrics.Metrics
}

// Option configures a store.
type Option func(*options)

// WithMetrics records rate write outcomes.
func WithMetrics(m *branchmetrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

func applyOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// Store is implemented by InMemory and Postgres.
type Store interface {
	Create(ctx context.Context, b *models.Branch) error
	Count(ctx context.Context) (int, error)
	ListBranches(ctx context.Context) ([]models.Branch, error)
	FindByID(ctx context.Context, id models.BranchID) (*models.Branch, error)
	SetRate(ctx context.Context, id models.BranchID, rate models.Rate) ([]models.BranchID, error)
	WriteRate(ctx context.Context, id models.BranchID, rate models.Rate) error
}

var (
	_ Store = (*InMemory)(nil)
	_ Store = (*Postgres)(nil)
)
