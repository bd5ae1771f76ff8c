package store

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"branchrate/internal/branch/models"
	"branchrate/pkg/platform/sentinel"
)

//go:embed default_seed.yaml
var defaultSeed []byte

type seedFile struct {
	Branches []seedBranch `yaml:"branches"`
}

type seedBranch struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	ParentID string `yaml:"parentId"`
	Rate     string `yaml:"rate"`
}

// LoadSeed parses a YAML seed document into validated branches.
func LoadSeed(r io.Reader) ([]models.Branch, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	out := make([]models.Branch, 0, len(f.Branches))
	for i, sb := range f.Branches {
		b, err := sb.toBranch()
		if err != nil {
			return nil, fmt.Errorf("seed branch %d (%q): %w", i, sb.ID, err)
		}
		out = append(out, *b)
	}
	return out, nil
}

// DefaultSeed returns the bundled demo forest.
func DefaultSeed() ([]models.Branch, error) {
	return LoadSeed(bytes.NewReader(defaultSeed))
}

func (sb seedBranch) toBranch() (*models.Branch, error) {
	id, err := models.ParseBranchID(sb.ID)
	if err != nil {
		return nil, err
	}
	branchType, err := models.ParseBranchType(sb.Type)
	if err != nil {
		return nil, err
	}
	rate, err := models.ParseRate(sb.Rate)
	if err != nil {
		return nil, err
	}
	var parentID *models.BranchID
	if sb.ParentID != "" {
		parentID = models.Ptr(models.BranchID(sb.ParentID))
	}
	return models.NewBranch(id, sb.Name, branchType, parentID, rate)
}

// SeedIfEmpty inserts branches when the store holds none. Existing ids are
// skipped. Returns the number of branches inserted.
func SeedIfEmpty(ctx context.Context, s Store, branches []models.Branch) (int, error) {
	n, err := s.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count branches: %w", err)
	}
	if n > 0 {
		return 0, nil
	}
	inserted := 0
	for i := range branches {
		if err := s.Create(ctx, &branches[i]); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				continue
			}
			return inserted, fmt.Errorf("seed branch %s: %w", branches[i].ID, err)
		}
		inserted++
	}
	return inserted, nil
}
