package audit

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"

	"github.com/calyptra/ace-go/pkg/precedent"
)

// ReportType tags trust-audit reports in logs.
const ReportType = "ace:trust-audit"

// PrecedentSummarizer supplies the precedent section of a report.
type PrecedentSummarizer interface {
	AuditSummary(days int) precedent.Summary
}

// ActivitySection breaks down escalations inside the window.
type ActivitySection struct {
	Escalations int            `json:"escalations"`
	ByDecision  map[string]int `json:"byDecision"`
}

// BypassSection snapshots bypass posture at report time.
type BypassSection struct {
	Mode      Mode        `json:"mode"`
	Remaining string      `json:"remaining,omitempty"`
	Stats     BypassStats `json:"stats"`
}

// Report is a full trust audit over a trailing window.
type Report struct {
	Type        string            `json:"type"`
	ID          string            `json:"id"`
	GeneratedAt time.Time         `json:"generatedAt"`
	PeriodDays  int               `json:"periodDays"`
	Activity    ActivitySection   `json:"activity"`
	Precedent   precedent.Summary `json:"precedent"`
	Drift       DriftResult       `json:"drift"`
	RubberStamp RubberStampResult `json:"rubberStamp"`
	Bypass      BypassSection     `json:"bypass"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// GenerateAudit assembles a full report over the trailing window and
// marks the audit as done. The precedent summary walks every class, so
// it runs alongside the sections built from the auditor's own state.
func (a *Auditor) GenerateAudit(days int, precedents PrecedentSummarizer) (Report, error) {
	if days <= 0 {
		days = a.params.AuditIntervalDays
	}

	var precedentSummary precedent.Summary
	var wg conc.WaitGroup
	if precedents != nil {
		wg.Go(func() { precedentSummary = precedents.AuditSummary(days) })
	}

	drift := a.CheckDriftRate(days)
	rubber := a.DetectRubberStamp()
	activity := a.activitySection(days)
	bypass := a.bypassSection()
	wg.Wait()

	report := Report{
		Type:        ReportType,
		ID:          uuid.NewString(),
		PeriodDays:  days,
		Activity:    activity,
		Precedent:   precedentSummary,
		Drift:       drift,
		RubberStamp: rubber,
		Bypass:      bypass,
	}

	if rubber.Detected {
		report.Warnings = append(report.Warnings, rubber.Message)
	}
	if drift.Warning {
		report.Warnings = append(report.Warnings, fmt.Sprintf("sustained autonomy expansion at drift rate %.2f", drift.Rate))
	}
	if bypass.Mode != ModeOff {
		report.Warnings = append(report.Warnings, fmt.Sprintf("bypass active in %s mode", bypass.Mode))
	}
	if bypass.Stats.HardCeilingBlocks > 0 {
		report.Warnings = append(report.Warnings, fmt.Sprintf("%d hard-ceiling actions attempted during a bypass", bypass.Stats.HardCeilingBlocks))
	}

	a.mu.Lock()
	now := a.clock()
	a.state.LastAuditAt = &now
	a.mu.Unlock()
	report.GeneratedAt = now

	if a.log != nil {
		if err := a.log.Append(ReportType, report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func (a *Auditor) activitySection(days int) ActivitySection {
	a.mu.Lock()
	defer a.mu.Unlock()

	cutoff := a.clock().AddDate(0, 0, -days)
	section := ActivitySection{ByDecision: map[string]int{}}
	for _, rec := range a.state.EscalationHistory {
		if rec.Timestamp.Before(cutoff) {
			continue
		}
		section.Escalations++
		section.ByDecision[rec.Decision]++
	}
	return section
}

func (a *Auditor) bypassSection() BypassSection {
	section := BypassSection{
		Mode:  a.bypass.CurrentMode(),
		Stats: a.bypass.Stats(),
	}
	if remaining, ok := a.bypass.Remaining(); ok {
		section.Remaining = remaining.String()
	}
	return section
}

// FormatAuditReport renders a report for direct operator reading.
func FormatAuditReport(r Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Trust Audit (%s)\n", r.GeneratedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&b, "Window: last %d days\n\n", r.PeriodDays)

	b.WriteString("Activity Summary\n")
	fmt.Fprintf(&b, "  Escalations: %d\n", r.Activity.Escalations)
	for _, decision := range sortedKeys(r.Activity.ByDecision) {
		fmt.Fprintf(&b, "    %s: %d\n", decision, r.Activity.ByDecision[decision])
	}
	fmt.Fprintf(&b, "  Actions recorded: %d across %d classes (%d in window: %d positive, %d negative)\n",
		r.Precedent.TotalActions, r.Precedent.TotalClasses,
		r.Precedent.Recent.Actions, r.Precedent.Recent.Positive, r.Precedent.Recent.Negative)
	fmt.Fprintf(&b, "  Drift rate: %+.2f over %d deliberations\n", r.Drift.Rate, r.Drift.Samples)
	fmt.Fprintf(&b, "  Rubber-stamp streak: %d\n", r.RubberStamp.Count)
	fmt.Fprintf(&b, "  Bypass: %s", r.Bypass.Mode)
	if r.Bypass.Remaining != "" {
		fmt.Fprintf(&b, " (%s remaining)", r.Bypass.Remaining)
	}
	b.WriteString("\n")

	if len(r.Precedent.Scores) > 0 {
		b.WriteString("\nActive Classes\n")
		for _, class := range sortedScoreKeys(r.Precedent.Scores) {
			fmt.Fprintf(&b, "  %-32s %.2f", class, r.Precedent.Scores[class])
			if delta, ok := r.Precedent.ScoreChanges[class]; ok {
				fmt.Fprintf(&b, " (%+.2f)", delta)
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\nWarnings\n")
	if len(r.Warnings) == 0 {
		b.WriteString("  none\n")
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "  - %s\n", w)
	}

	return b.String()
}

func sortedKeys(m map[string]int) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func sortedScoreKeys(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
