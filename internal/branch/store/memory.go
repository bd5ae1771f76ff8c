package store

import (
	"context"
	"sync"

	"branchrate/internal/branch/directory"
	branchmetrics "branchrate/internal/branch/metrics"
	"branchrate/internal/branch/models"
	"branchrate/pkg/platform/sentinel"
)

// InMemory keeps branches in insertion order. It is the default store for
// development and tests.
type InMemory struct {
	mu       sync.RWMutex
	branches []models.Branch
	index    map[models.BranchID]int
	metrics  *branchmetrics.Metrics
}

func NewInMemory(opts ...Option) *InMemory {
	o := applyOptions(opts)
	return &InMemory{index: make(map[models.BranchID]int), metrics: o.metrics}
}

// Create appends a branch. Duplicate ids return sentinel.ErrConflict.
func (s *InMemory) Create(_ context.Context, b *models.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.index[b.ID]; exists {
		return sentinel.ErrConflict
	}
	s.index[b.ID] = len(s.branches)
	s.branches = append(s.branches, *b)
	return nil
}

func (s *InMemory) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.branches), nil
}

// ListBranches returns a copy of all branches in insertion order.
func (s *InMemory) ListBranches(context.Context) ([]models.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Branch, len(s.branches))
	copy(out, s.branches)
	return out, nil
}

func (s *InMemory) FindByID(_ context.Context, id models.BranchID) (*models.Branch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	b := s.branches[i]
	return &b, nil
}

// SetRate sets rate on id and on every descendant of id, returning the
// updated ids root first.
func (s *InMemory) SetRate(_ context.Context, id models.BranchID, rate models.Rate) ([]models.BranchID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[id]; !ok {
		s.metrics.IncrementRateWrite("not_found")
		return nil, sentinel.ErrNotFound
	}

	view := directory.NewView(s.branches)
	targets := append([]models.BranchID{id}, branchIDs(view.DescendantsOf(id))...)
	for _, t := range targets {
		s.branches[s.index[t]].Rate = rate
	}
	s.metrics.IncrementRateWrite("ok")
	return targets, nil
}

// WriteRate is SetRate without the affected ids.
func (s *InMemory) WriteRate(ctx context.Context, id models.BranchID, rate models.Rate) error {
	_, err := s.SetRate(ctx, id, rate)
	return err
}

func branchIDs(branches []models.Branch) []models.BranchID {
	out := make([]models.BranchID, 0, len(branches))
	for _, b := range branches {
		out = append(out, b.ID)
	}
	return out
}
