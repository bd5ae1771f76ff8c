// Package directory holds the branch forest and answers structural queries
// over it. The backing data is fetched from a Source and replaced wholesale
// on every refresh; readers never observe a partially applied refresh.
package directory

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	branchmetrics "branchrate/internal/branch/metrics"
	"branchrate/internal/branch/models"
	dErrors "branchrate/pkg/domain-errors"
)

// Source is the external source of truth for branches.
type Source interface {
	ListBranches(ctx context.Context) ([]models.Branch, error)
}

// StaticSource serves a fixed branch list.
type StaticSource []models.Branch

func (s StaticSource) ListBranches(context.Context) ([]models.Branch, error) {
	out := make([]models.Branch, len(s))
	copy(out, s)
	return out, nil
}

// DefaultRefreshTimeout bounds one fetch from the source.
const DefaultRefreshTimeout = 30 * time.Second

var errNotLoaded = dErrors.New(dErrors.CodeDirectoryUnavailable, "branch directory has not been loaded")

// Directory is safe for concurrent use.
type Directory struct {
	source  Source
	current atomic.Pointer[View]
	group   singleflight.Group
	logger  *slog.Logger
	metrics *branchmetrics.Metrics
	timeout time.Duration
	now     func() time.Time
}

type Option func(*Directory)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Directory) {
		d.logger = logger
	}
}

func WithMetrics(m *branchmetrics.Metrics) Option {
	return func(d *Directory) {
		d.metrics = m
	}
}

// WithRefreshTimeout bounds each fetch. Non-positive values keep the default.
func WithRefreshTimeout(d time.Duration) Option {
	return func(dir *Directory) {
		if d > 0 {
			dir.timeout = d
		}
	}
}

// New returns an unloaded directory; call Refresh before use.
func New(source Source, opts ...Option) *Directory {
	d := &Directory{
		source: source,
		logger:  slog.New(slog.DiscardHandler),
		timeout: DefaultRefreshTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.current.Store(emptyView(errNotLoaded, time.Time{}))
	return d
}

// View returns the current snapshot.
func (d *Directory) View() *View {
	return d.current.Load()
}

// Err returns the error of the last refresh, or nil when the directory holds
// data from a successful fetch.
func (d *Directory) Err() error {
	return d.View().Err()
}

func (d *Directory) GetAll() []models.Branch {
	return d.View().GetAll()
}

func (d *Directory) GetByID(id models.BranchID) (models.Branch, bool) {
	return d.View().GetByID(id)
}

func (d *Directory) ChildrenOf(id models.BranchID) []models.Branch {
	return d.View().ChildrenOf(id)
}

func (d *Directory) DescendantsOf(id models.BranchID) []models.Branch {
	return d.View().DescendantsOf(id)
}

func (d *Directory) AncestorsOf(id models.BranchID) []models.Branch {
	return d.View().AncestorsOf(id)
}

func (d *Directory) SiblingsOf(id models.BranchID) []models.Branch {
	return d.View().SiblingsOf(id)
}

func (d *Directory) RelatedTo(id models.BranchID) []models.Branch {
	return d.View().RelatedTo(id)
}

// Refresh re-synchronises from the source. Concurrent callers share a single
// fetch. On failure the directory becomes empty and the returned error, also
// reported by Err, carries CodeDirectoryUnavailable.
//
// The shared fetch is detached from ctx and bounded by the refresh timeout. A
// caller whose ctx ends first abandons the result; the fetch still completes
// and the current snapshot is never replaced on its behalf.
func (d *Directory) Refresh(ctx context.Context) error {
	fetchCtx := context.WithoutCancel(ctx)
	ch := d.group.DoChan("refresh", func() (any, error) {
		fctx, cancel := context.WithTimeout(fetchCtx, d.timeout)
		defer cancel()
		return nil, d.refresh(fctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeDirectoryUnavailable, "branch directory refresh abandoned")
	}
}

func (d *Directory) refresh(ctx context.Context) error {
	start := d.now()
	branches, err := d.source.ListBranches(ctx)
	if err == nil {
		err = validate(branches)
	}
	if err != nil {
		if !dErrors.HasCode(err, dErrors.CodeDirectoryUnavailable) {
			err = dErrors.Wrap(err, dErrors.CodeDirectoryUnavailable, "branch directory unavailable")
		}
		d.current.Store(emptyView(err, start))
		d.metrics.ObserveRefresh(start, 0, err)
		d.logger.WarnContext(ctx, "branch directory refresh failed", "error", err)
		return err
	}

	view := newView(branches, start)
	d.current.Store(view)
	d.metrics.ObserveRefresh(start, view.Len(), nil)
	if orphans := countOrphans(view); orphans > 0 {
		d.logger.WarnContext(ctx, "branches reference missing parents", "count", orphans)
	}
	d.logger.DebugContext(ctx, "branch directory refreshed", "branches", view.Len())
	return nil
}

// validate rejects source data that breaks branch invariants or repeats ids.
func validate(branches []models.Branch) error {
	seen := make(map[models.BranchID]struct{}, len(branches))
	for _, b := range branches {
		if err := b.Validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeDirectoryUnavailable, fmt.Sprintf("malformed branch %q", b.ID))
		}
		if _, dup := seen[b.ID]; dup {
			return dErrors.New(dErrors.CodeDirectoryUnavailable, fmt.Sprintf("duplicate branch id %q", b.ID))
		}
		seen[b.ID] = struct{}{}
	}
	return nil
}

func countOrphans(v *View) int {
	n := 0
	for _, b := range v.branches {
		if b.ParentID != nil {
			if _, ok := v.index[*b.ParentID]; !ok {
				n++
			}
		}
	}
	return n
}

// RunRefreshLoop refreshes every interval until ctx is cancelled. Failures
// are logged and retried on the next tick.
func (d *Directory) RunRefreshLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = d.Refresh(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
