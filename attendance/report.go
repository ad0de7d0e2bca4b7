package attendance

import (
	"fmt"
	"strings"
)

// Report accumulates the human-readable lines of one run.
type Report struct {
	Mode           RunMode
	Lines          []string
	Corrections    int
	FlexibleSkips  int
	ValidatedSkips int
}

func NewReport(mode RunMode) *Report {
	return &Report{Mode: mode}
}

// Add records an outcome. Silent outcomes are ignored.
func (r *Report) Add(o Outcome) {
	if !o.Reported() {
		return
	}
	switch o.Kind {
	case OutcomeFlexibleSkip:
		r.FlexibleSkips++
	case OutcomeValidatedMismatch:
		r.ValidatedSkips++
	case OutcomeCorrection:
		r.Corrections++
	}
	r.Lines = append(r.Lines, o.ReportLine())
}

// Skipped counts the reported abstentions.
func (r *Report) Skipped() int { return r.FlexibleSkips + r.ValidatedSkips }

func (r *Report) Header() string {
	if r.Mode == ModeCommit {
		return "Corrections applied:"
	}
	return "Corrections pending (dry run):"
}

func (r *Report) Summary() string {
	return fmt.Sprintf("Summary: %d corrections, %d flexible-calendar skips, %d validated-mismatch skips",
		r.Corrections, r.FlexibleSkips, r.ValidatedSkips)
}

func (r *Report) String() string {
	var b strings.Builder
	b.WriteString(r.Header())
	b.WriteString("\n")
	for _, line := range r.Lines {
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString(r.Summary())
	return b.String()
}
