package attendance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CorrectionUpserter keeps at most one correction per (employee, day).
type CorrectionUpserter struct {
	// NewID generates ids for new corrections. Defaults to random UUIDs.
	NewID func() CorrectionID
}

// Upsert overwrites the existing correction for the candidate's key, keeping
// its id, or creates one. The find and the write must share store, which
// callers pass as the Tx of the enclosing transaction.
func (u *CorrectionUpserter) Upsert(ctx context.Context, store CorrectionStore, cand Candidate) (Correction, bool, error) {
	existing, err := store.FindCorrection(ctx, cand.EmployeeID, cand.Date)
	if err != nil {
		return Correction{}, false, fmt.Errorf("find correction %s/%s: %w", cand.EmployeeID, cand.Date, err)
	}

	if existing != nil {
		updated := cand.Apply(*existing)
		if err := store.UpdateCorrection(ctx, updated); err != nil {
			return Correction{}, false, fmt.Errorf("update correction %s: %w", updated.ID, err)
		}
		return updated, false, nil
	}

	created := cand.Apply(Correction{ID: u.newID()})
	if err := store.CreateCorrection(ctx, created); err != nil {
		return Correction{}, false, fmt.Errorf("create correction %s/%s: %w", cand.EmployeeID, cand.Date, err)
	}
	return created, true, nil
}

func (u *CorrectionUpserter) newID() CorrectionID {
	if u != nil && u.NewID != nil {
		return u.NewID()
	}
	return CorrectionID(uuid.NewString())
}
