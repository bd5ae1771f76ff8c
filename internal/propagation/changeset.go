package propagation

import (
	"branchrate/internal/branch/models"
)

// Entry pairs a branch with its current and prospective rate.
type Entry struct {
	BranchID    models.BranchID   `json:"branchId"`
	Name        string            `json:"name"`
	Type        models.BranchType `json:"type"`
	Current     models.Rate       `json:"currentRate"`
	Prospective models.Rate       `json:"prospectiveRate"`
}

// ChangeSet is the ordered blast radius of one update: the root first, then
// its descendants in directory order. Every entry carries the same
// prospective rate.
type ChangeSet struct {
	Root    models.BranchID `json:"root"`
	Rate    models.Rate     `json:"rate"`
	Entries []Entry         `json:"entries"`
}

func newChangeSet(root models.Branch, descendants []models.Branch, rate models.Rate) ChangeSet {
	cs := ChangeSet{
		Root:    root.ID,
		Rate:    rate,
		Entries: make([]Entry, 0, len(descendants)+1),
	}
	cs.Entries = append(cs.Entries, entryFor(root, rate))
	for _, d := range descendants {
		cs.Entries = append(cs.Entries, entryFor(d, rate))
	}
	return cs
}

func entryFor(b models.Branch, rate models.Rate) Entry {
	return Entry{
		BranchID:    b.ID,
		Name:        b.Name,
		Type:        b.Type,
		Current:     b.Rate,
		Prospective: rate,
	}
}

func (c ChangeSet) Len() int {
	return len(c.Entries)
}

// IDs lists entry ids in change-set order.
func (c ChangeSet) IDs() []models.BranchID {
	out := make([]models.BranchID, 0, len(c.Entries))
	for _, e := range c.Entries {
		out = append(out, e.BranchID)
	}
	return out
}

// Changed counts entries whose rate actually moves.
func (c ChangeSet) Changed() int {
	n := 0
	for _, e := range c.Entries {
		if !e.Current.Equal(e.Prospective) {
			n++
		}
	}
	return n
}

func (c ChangeSet) markApplied() {
	for i := range c.Entries {
		c.Entries[i].Current = c.Entries[i].Prospective
	}
}

func (c ChangeSet) clone() ChangeSet {
	out := c
	out.Entries = append([]Entry(nil), c.Entries...)
	return out
}

func idStrings(ids []models.BranchID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
