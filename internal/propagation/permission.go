package propagation

import (
	"branchrate/internal/branch/models"
	dErrors "branchrate/pkg/domain-errors"
)

// authorize allows a caller to modify target when the caller's branch can
// manage descendants or is the target itself. The caller's branch is looked
// up fresh so a stale session cannot carry old capabilities.
func (e *Engine) authorize(caller Caller, target models.BranchID) error {
	if err := e.directoryErr(); err != nil {
		return err
	}
	own, ok := e.directory.GetByID(caller.BranchID)
	if !ok {
		return dErrors.New(dErrors.CodePermissionDenied, "caller branch is not in the directory")
	}
	if own.CanManageDescendants() || own.ID == target {
		return nil
	}
	return dErrors.New(dErrors.CodePermissionDenied, "branch "+own.ID.String()+" may only change its own rate")
}
