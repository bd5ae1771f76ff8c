package directory

import (
	"strings"
	"time"

	"branchrate/internal/branch/models"
)

// View is an immutable snapshot of the branch forest. Every query on a View
// sees the same data, so callers that combine several queries should take
// one View and use it throughout.
type View struct {
	branches []models.Branch
	index    map[models.BranchID]int
	children map[models.BranchID][]int
	err      error
	loadedAt time.Time
}

// NewView builds a standalone view over branches, for callers that need the
// forest queries without a Directory.
func NewView(branches []models.Branch) *View {
	return newView(branches, time.Now())
}

func newView(branches []models.Branch, loadedAt time.Time) *View {
	v := &View{
		branches: branches,
		index:    make(map[models.BranchID]int, len(branches)),
		children: make(map[models.BranchID][]int),
		loadedAt: loadedAt,
	}
	for i, b := range branches {
		v.index[b.ID] = i
		if b.ParentID != nil {
			v.children[*b.ParentID] = append(v.children[*b.ParentID], i)
		}
	}
	return v
}

func emptyView(err error, at time.Time) *View {
	v := newView(nil, at)
	v.err = err
	return v
}

// Err is the fetch error that produced this view, if any.
func (v *View) Err() error {
	return v.err
}

func (v *View) LoadedAt() time.Time {
	return v.loadedAt
}

func (v *View) Len() int {
	return len(v.branches)
}

// GetAll returns every branch in insertion order.
func (v *View) GetAll() []models.Branch {
	out := make([]models.Branch, len(v.branches))
	copy(out, v.branches)
	return out
}

func (v *View) GetByID(id models.BranchID) (models.Branch, bool) {
	i, ok := v.index[id]
	if !ok {
		return models.Branch{}, false
	}
	return v.branches[i], true
}

// Roots returns branches without a parent.
func (v *View) Roots() []models.Branch {
	var out []models.Branch
	for _, b := range v.branches {
		if b.IsRoot() {
			out = append(out, b)
		}
	}
	return out
}

// ChildrenOf returns the direct children of id; empty when there are none.
func (v *View) ChildrenOf(id models.BranchID) []models.Branch {
	idxs := v.children[id]
	out := make([]models.Branch, 0, len(idxs))
	for _, i := range idxs {
		if v.branches[i].ID == id {
			continue
		}
		out = append(out, v.branches[i])
	}
	return out
}

// DescendantsOf returns the transitive children of id, breadth first with
// siblings in insertion order. The result never contains id or any of its
// ancestors, so cyclic parent references terminate instead of looping.
func (v *View) DescendantsOf(id models.BranchID) []models.Branch {
	visited := map[models.BranchID]struct{}{id: {}}
	for _, a := range v.AncestorsOf(id) {
		visited[a.ID] = struct{}{}
	}

	var out []models.Branch
	queue := []models.BranchID{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, i := range v.children[current] {
			child := v.branches[i]
			if _, seen := visited[child.ID]; seen {
				continue
			}
			visited[child.ID] = struct{}{}
			out = append(out, child)
			queue = append(queue, child.ID)
		}
	}
	return out
}

// AncestorsOf walks parent references from id, nearest first. The walk stops
// at a root, at a parent missing from the view, or on a repeated id.
func (v *View) AncestorsOf(id models.BranchID) []models.Branch {
	b, ok := v.GetByID(id)
	if !ok {
		return nil
	}
	seen := map[models.BranchID]struct{}{id: {}}
	var out []models.Branch
	for b.ParentID != nil {
		if _, dup := seen[*b.ParentID]; dup {
			break
		}
		parent, ok := v.GetByID(*b.ParentID)
		if !ok {
			break
		}
		seen[parent.ID] = struct{}{}
		out = append(out, parent)
		b = parent
	}
	return out
}

// SiblingsOf returns branches sharing id's parent, excluding id. Roots are
// siblings of each other.
func (v *View) SiblingsOf(id models.BranchID) []models.Branch {
	b, ok := v.GetByID(id)
	if !ok {
		return nil
	}
	if b.IsRoot() {
		var out []models.Branch
		for _, r := range v.Roots() {
			if r.ID != id {
				out = append(out, r)
			}
		}
		return out
	}
	var out []models.Branch
	for _, s := range v.ChildrenOf(*b.ParentID) {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

// RelatedTo returns the branches a caller logged in as id works with: a
// parent-type branch sees its direct children; a child-type branch sees its
// parent followed by its siblings.
func (v *View) RelatedTo(id models.BranchID) []models.Branch {
	b, ok := v.GetByID(id)
	if !ok {
		return nil
	}
	if b.CanManageDescendants() {
		return v.ChildrenOf(id)
	}
	if b.ParentID == nil {
		return nil
	}
	parent, ok := v.GetByID(*b.ParentID)
	if !ok {
		return nil
	}
	return append([]models.Branch{parent}, v.SiblingsOf(id)...)
}

// FilterByName keeps branches whose name contains term, case-insensitively.
// An empty term keeps everything.
func FilterByName(branches []models.Branch, term string) []models.Branch {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return branches
	}
	var out []models.Branch
	for _, b := range branches {
		if strings.Contains(strings.ToLower(b.Name), term) {
			out = append(out, b)
		}
	}
	return out
}
