package ratectl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"branchrate/internal/branch/models"
)

const sessionFile = "session.yaml"

// ErrNotLoggedIn is returned when no session file exists.
var ErrNotLoggedIn = errors.New("not logged in: run `ratectl login <branchId>`")

// Session is the durable association between this CLI user and a branch.
type Session struct {
	ID         string          `yaml:"id"`
	BranchID   models.BranchID `yaml:"branch_id"`
	BranchName string          `yaml:"branch_name"`
	LoggedInAt time.Time       `yaml:"logged_in_at"`
}

func sessionPath(home string) string {
	return filepath.Join(home, sessionFile)
}

// LoadSession reads the session file once. A missing file is ErrNotLoggedIn.
func LoadSession(home string) (*Session, error) {
	data, err := os.ReadFile(sessionPath(home))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotLoggedIn
		}
		return nil, fmt.Errorf("read session: %w", err)
	}
	var s Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	if s.BranchID.IsZero() {
		return nil, ErrNotLoggedIn
	}
	return &s, nil
}

func SaveSession(home string, s *Session) error {
	if err := os.MkdirAll(home, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", home, err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	return os.WriteFile(sessionPath(home), data, 0o600)
}

// ClearSession removes the session file. Clearing twice is fine.
func ClearSession(home string) error {
	err := os.Remove(sessionPath(home))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
