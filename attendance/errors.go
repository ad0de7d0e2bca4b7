package attendance

import (
	"errors"
	"fmt"

	"github.com/warp/attendance-engine/generic"
)

// ErrDryRun marks a run that evaluated corrections without persisting them.
var ErrDryRun = errors.New("dry run: corrections not persisted")

// DryRunNotice is returned by dry runs so the caller has to acknowledge the
// report before triggering a commit run. Its message is the report itself.
type DryRunNotice struct {
	RunID   RunID
	Pending int
	Report  string
}

func (n *DryRunNotice) Error() string { return n.Report }

func (n *DryRunNotice) Unwrap() error { return ErrDryRun }

// CommitError is a persistence failure during commit. Nothing of the batch
// was kept. It matches generic.ErrTransactionFailed and the underlying cause.
type CommitError struct {
	RunID   RunID
	Pending int
	Err     error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit run %s (%d corrections): %v", e.RunID, e.Pending, e.Err)
}

func (e *CommitError) Unwrap() []error {
	return []error{generic.ErrTransactionFailed, e.Err}
}
