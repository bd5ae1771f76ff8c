package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	dErrors "branchrate/pkg/domain-errors"
)

// BranchID is an opaque branch identifier. Numeric identifiers from the
// branch API are normalised to their decimal string form.
type BranchID string

func (id BranchID) String() string {
	return string(id)
}

func (id BranchID) IsZero() bool {
	return id == ""
}

// ParseBranchID trims and validates a raw identifier.
func ParseBranchID(raw string) (BranchID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", dErrors.New(dErrors.CodeValidation, "branch id is required")
	}
	return BranchID(raw), nil
}

// UnmarshalJSON accepts a JSON string or number.
func (id *BranchID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = BranchID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return dErrors.Wrap(err, dErrors.CodeValidation, "branch id must be a string or integer")
	}
	*id = BranchID(n.String())
	return nil
}

// BranchType is the capability label carried by every branch.
type BranchType string

const (
	BranchTypeParent BranchType = "parent"
	BranchTypeChild  BranchType = "child"
)

func (t BranchType) IsValid() bool {
	return t == BranchTypeParent || t == BranchTypeChild
}

func ParseBranchType(raw string) (BranchType, error) {
	t := BranchType(strings.ToLower(strings.TrimSpace(raw)))
	if !t.IsValid() {
		return "", dErrors.New(dErrors.CodeValidation, "branch type must be parent or child")
	}
	return t, nil
}

// Branch is a node of the organisational forest.
//
// Invariants:
//   - ID and Name are non-empty
//   - Type is parent or child
//   - ParentID is nil only for roots, and never equals ID
//   - Rate is non-negative
//
// Tree position and permission are separate concerns: ParentID alone marks
// a root, while Type only decides CanManageDescendants. A parent-type branch
// may itself have a parent.
type Branch struct {
	ID       BranchID   `json:"id"`
	Name     string     `json:"name"`
	Type     BranchType `json:"type"`
	ParentID *BranchID  `json:"parentId"`
	Rate     Rate       `json:"rate"`
}

// NewBranch validates invariants and returns a branch.
func NewBranch(id BranchID, name string, branchType BranchType, parentID *BranchID, rate Rate) (*Branch, error) {
	if id.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "branch id cannot be empty")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "branch name cannot be empty")
	}
	if !branchType.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "branch type must be parent or child")
	}
	if parentID != nil && *parentID == id {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "branch cannot be its own parent")
	}
	if rate.Decimal().IsNegative() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "branch rate cannot be negative")
	}
	return &Branch{ID: id, Name: name, Type: branchType, ParentID: parentID, Rate: rate}, nil
}

func (b Branch) IsRoot() bool {
	return b.ParentID == nil
}

// HasParent reports whether b's parent reference is id.
func (b Branch) HasParent(id BranchID) bool {
	return b.ParentID != nil && *b.ParentID == id
}

// CanManageDescendants reports whether a caller logged in as b may change
// rates of branches other than its own.
func (b Branch) CanManageDescendants() bool {
	return b.Type == BranchTypeParent
}

// WithRate returns a copy of b carrying rate.
func (b Branch) WithRate(rate Rate) Branch {
	b.Rate = rate
	return b
}

// Validate checks invariants on a decoded branch.
func (b Branch) Validate() error {
	_, err := NewBranch(b.ID, b.Name, b.Type, b.ParentID, b.Rate)
	return err
}

// wireBranch accepts both the flat shape ({parentId}) and the nested shape
// ({parent: {id}, children: [...]}) served by older branch APIs.
type wireBranch struct {
	ID       BranchID   `json:"id"`
	Name     string     `json:"name"`
	Type     BranchType `json:"type"`
	ParentID *BranchID  `json:"parentId"`
	Parent   *struct {
		ID BranchID `json:"id"`
	} `json:"parent"`
	Rate Rate `json:"rate"`
}

// UnmarshalJSON decodes either wire shape. When type is absent it is derived
// from tree position: roots are parents, everything else is a child.
func (b *Branch) UnmarshalJSON(data []byte) error {
	var w wireBranch
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	parentID := w.ParentID
	if parentID == nil && w.Parent != nil && !w.Parent.ID.IsZero() {
		id := w.Parent.ID
		parentID = &id
	}
	if parentID != nil && parentID.IsZero() {
		parentID = nil
	}
	branchType := w.Type
	if branchType == "" {
		branchType = BranchTypeChild
		if parentID == nil {
			branchType = BranchTypeParent
		}
	}
	*b = Branch{ID: w.ID, Name: w.Name, Type: branchType, ParentID: parentID, Rate: w.Rate}
	return nil
}

// Ptr returns a pointer to id, for ParentID literals.
func Ptr(id BranchID) *BranchID {
	return &id
}
