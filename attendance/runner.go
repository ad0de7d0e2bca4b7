/*
runner.go - Reconciliation run orchestration

PURPOSE:
  Drives aggregation, evaluation and the unit of work across every eligible
  (employee, day), builds the report and records the run.

MODES:
  Dry run: evaluate and report only. No correction is written and no
           interval is recomputed. The run record is still saved: it is
           the engine's own history, not reconciled data, and it is what
           GET /api/reconciliation/runs lists. Run returns the result
           together with a *DryRunNotice so an operator has to acknowledge
           the report.
  Commit:  Flush the unit of work (upserts + recompute) as one transaction.
           The report is logged. Post-commit, upserted corrections are
           published when a publisher is configured; publishing failures
           are logged and never undo the commit.

FAILURES:
  A collaborator read failure or a flush failure aborts the run. The run
  is recorded as failed and the error returned (flush failures as
  *CommitError). Abstentions are never errors.
*/
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/warp/attendance-engine/generic"
)

// CorrectionPublisher delivers committed corrections to downstream consumers.
type CorrectionPublisher interface {
	PublishCorrections(ctx context.Context, runID RunID, corrections []Upserted) error
}

// ReportNotifier delivers dry-run reports to operators.
type ReportNotifier interface {
	NotifyDryRun(ctx context.Context, run Run) error
}

type RunOptions struct {
	// Since is the earliest check-in considered.
	Since  time.Time
	Commit bool
}

type Result struct {
	Run         Run
	Report      *Report
	Outcomes    []Outcome
	Corrections []Upserted
}

type ReconciliationRunner struct {
	Store            Store
	DefaultRulesetID RulesetID
	Upserter         *CorrectionUpserter

	// Optional collaborators.
	Publisher CorrectionPublisher
	Notifier  ReportNotifier

	Now      func() time.Time
	NewRunID func() RunID
}

func NewReconciliationRunner(store Store, defaultRuleset RulesetID) *ReconciliationRunner {
	return &ReconciliationRunner{
		Store:            store,
		DefaultRulesetID: defaultRuleset,
		Upserter:         &CorrectionUpserter{},
	}
}

// Run executes one reconciliation pass.
func (r *ReconciliationRunner) Run(ctx context.Context, opts RunOptions) (*Result, error) {
	mode := ModeDryRun
	if opts.Commit {
		mode = ModeCommit
	}

	ctx, span := otel.Tracer("attendance").Start(ctx, "reconciliation.run")
	defer span.End()

	run := Run{
		ID:        r.newRunID(),
		Mode:      mode,
		Since:     generic.DayOf(opts.Since, time.UTC),
		StartedAt: r.now(),
	}
	span.SetAttributes(
		attribute.String("run.id", string(run.ID)),
		attribute.String("run.mode", string(mode)),
		attribute.String("run.since", run.Since.String()),
	)
	logger := log.Ctx(ctx).With().Str("run_id", string(run.ID)).Str("mode", string(mode)).Logger()

	report := NewReport(mode)
	result := &Result{Run: run, Report: report}

	uow := NewUnitOfWork(r.Store, r.Upserter)
	if err := r.evaluate(ctx, opts.Since, report, uow, result); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation failed")
		return nil, r.fail(ctx, &result.Run, report, err)
	}

	span.SetAttributes(
		attribute.Int("run.corrections", report.Corrections),
		attribute.Int("run.skipped", report.Skipped()),
	)

	if !opts.Commit {
		result.Run.Status = RunStatusDryRun
		r.finish(ctx, &result.Run, report)

		if r.Notifier != nil {
			if err := r.Notifier.NotifyDryRun(ctx, result.Run); err != nil {
				logger.Warn().Err(err).Msg("dry-run notice not delivered")
			}
		}
		return result, &DryRunNotice{RunID: run.ID, Pending: uow.Pending(), Report: report.String()}
	}

	pending := uow.Pending()
	written, err := uow.Flush(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "commit failed")
		cerr := &CommitError{RunID: run.ID, Pending: pending, Err: err}
		return nil, r.fail(ctx, &result.Run, report, cerr)
	}
	result.Corrections = written

	result.Run.Status = RunStatusCommitted
	r.finish(ctx, &result.Run, report)
	logger.Info().Int("corrections", report.Corrections).Int("skipped", report.Skipped()).Msg(report.String())

	if r.Publisher != nil && len(written) > 0 {
		if err := r.Publisher.PublishCorrections(ctx, run.ID, written); err != nil {
			logger.Warn().Err(err).Msg("correction events not published")
		}
	}
	return result, nil
}

func (r *ReconciliationRunner) evaluate(ctx context.Context, since time.Time, report *Report, uow *UnitOfWork, result *Result) error {
	aggregator := &DailyAggregator{Ledger: r.Store, Directory: r.Store}
	totals, err := aggregator.Aggregate(ctx, since)
	if err != nil {
		return err
	}

	resolver, err := LoadScheduleResolver(ctx, r.Store, r.Store)
	if err != nil {
		return err
	}
	evaluator := &DiscrepancyEvaluator{
		Resolver: resolver,
		Policy:   &ThresholdPolicy{Rulesets: r.Store, DefaultRulesetID: r.DefaultRulesetID},
		Ledger:   r.Store,
	}

	for _, total := range totals {
		outcome, err := evaluator.Evaluate(ctx, total)
		if err != nil {
			return err
		}
		log.Ctx(ctx).Debug().
			Str("employee_id", string(total.Employee.ID)).
			Str("day", total.Day.String()).
			Str("outcome", string(outcome.Kind)).
			Msg("day evaluated")

		report.Add(outcome)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Candidate != nil {
			uow.Stage(*outcome.Candidate)
		}
	}
	return nil
}

// finish stamps the run and stores it. The run record is bookkeeping: a
// failure to store it is logged, not returned.
func (r *ReconciliationRunner) finish(ctx context.Context, run *Run, report *Report) {
	run.CompletedAt = r.now()
	if run.Status != RunStatusFailed {
		run.Applied = report.Corrections
	}
	run.Skipped = report.Skipped()
	run.Report = report.String()
	if err := r.Store.SaveRun(ctx, *run); err != nil {
		log.Ctx(ctx).Error().Err(err).Str("run_id", string(run.ID)).Msg("run record not saved")
	}
}

func (r *ReconciliationRunner) fail(ctx context.Context, run *Run, report *Report, cause error) error {
	run.Status = RunStatusFailed
	run.Error = cause.Error()
	r.finish(ctx, run, report)

	var cerr *CommitError
	if errors.As(cause, &cerr) {
		return cause
	}
	return fmt.Errorf("reconciliation run %s: %w", run.ID, cause)
}

func (r *ReconciliationRunner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

func (r *ReconciliationRunner) newRunID() RunID {
	if r.NewRunID != nil {
		return r.NewRunID()
	}
	return RunID(uuid.NewString())
}
