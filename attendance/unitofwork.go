/*
unitofwork.go - Staged writes flushed as one transaction

PURPOSE:
  The pipeline never writes while it evaluates. Candidates are staged here
  and Flush applies all of them, then the overtime recompute of every
  anchor interval, inside a single WithTx. Any error rolls everything back.

  When an overwrite moves a day's correction to another interval, the
  interval it used to be anchored at is recomputed too, so no interval
  keeps overtime from a correction that no longer points at it.

LIFECYCLE:
  uow := NewUnitOfWork(store, upserter)
  uow.Stage(candidate)      // once per correction outcome
  written, err := uow.Flush(ctx)

  After a successful Flush the unit is empty and may be reused.
*/
package attendance

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Upserted is one correction written by Flush.
type Upserted struct {
	Correction Correction
	Created    bool
}

type UnitOfWork struct {
	store      TxStore
	upserter   *CorrectionUpserter
	candidates []Candidate
	anchors    []IntervalID
	seen       map[IntervalID]bool
}

func NewUnitOfWork(store TxStore, upserter *CorrectionUpserter) *UnitOfWork {
	if upserter == nil {
		upserter = &CorrectionUpserter{}
	}
	return &UnitOfWork{store: store, upserter: upserter, seen: make(map[IntervalID]bool)}
}

// Stage queues a candidate and marks its anchor for recompute.
func (u *UnitOfWork) Stage(c Candidate) {
	u.candidates = append(u.candidates, c)
	if c.AnchorID != "" && !u.seen[c.AnchorID] {
		u.seen[c.AnchorID] = true
		u.anchors = append(u.anchors, c.AnchorID)
	}
}

func (u *UnitOfWork) Pending() int { return len(u.candidates) }

// Flush upserts every staged candidate and recomputes the anchors in one
// transaction. With nothing staged it does not open a transaction.
func (u *UnitOfWork) Flush(ctx context.Context) ([]Upserted, error) {
	if len(u.candidates) == 0 {
		return nil, nil
	}

	ctx, span := otel.Tracer("attendance").Start(ctx, "reconciliation.flush")
	defer span.End()
	span.SetAttributes(attribute.Int("corrections.pending", len(u.candidates)))

	var written []Upserted
	err := u.store.WithTx(ctx, func(tx Tx) error {
		written = written[:0]
		recompute := append([]IntervalID(nil), u.anchors...)
		seen := make(map[IntervalID]bool, len(u.seen))
		for id := range u.seen {
			seen[id] = true
		}

		for _, c := range u.candidates {
			stale, err := previousAnchors(ctx, tx, c)
			if err != nil {
				return err
			}
			for _, id := range stale {
				if !seen[id] {
					seen[id] = true
					recompute = append(recompute, id)
				}
			}

			corr, created, err := u.upserter.Upsert(ctx, tx, c)
			if err != nil {
				return err
			}
			written = append(written, Upserted{Correction: corr, Created: created})
		}
		span.SetAttributes(attribute.Int("intervals.recompute", len(recompute)))
		return tx.RecomputeOvertime(ctx, recompute)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "flush failed")
		return nil, err
	}

	u.candidates = nil
	u.anchors = nil
	u.seen = make(map[IntervalID]bool)
	return written, nil
}

// previousAnchors returns the intervals the existing correction for the
// candidate's key is anchored at, when that anchor differs from the
// candidate's.
func previousAnchors(ctx context.Context, tx Tx, c Candidate) ([]IntervalID, error) {
	existing, err := tx.FindCorrection(ctx, c.EmployeeID, c.Date)
	if err != nil {
		return nil, fmt.Errorf("find correction %s/%s: %w", c.EmployeeID, c.Date, err)
	}
	if existing == nil || existing.TimeStart.IsZero() || existing.TimeStart.Equal(c.TimeStart) {
		return nil, nil
	}

	ivs, err := tx.IntervalsBetween(ctx, c.EmployeeID, existing.TimeStart, existing.TimeStart.Add(time.Nanosecond))
	if err != nil {
		return nil, fmt.Errorf("load previous anchor of %s/%s: %w", c.EmployeeID, c.Date, err)
	}
	ids := make([]IntervalID, 0, len(ivs))
	for _, iv := range ivs {
		ids = append(ids, iv.ID)
	}
	return ids, nil
}
