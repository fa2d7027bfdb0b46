// Package audit is the longitudinal safety net over the decision loop:
// it watches escalation responses for rubber-stamping, deliberation
// outcomes for autonomy drift, and owns the self-modification lockout
// and the capped temporary bypass.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/calyptra/ace-go/pkg/action"
	"github.com/calyptra/ace-go/pkg/deliberation"
	"github.com/calyptra/ace-go/pkg/errors"
	"github.com/calyptra/ace-go/pkg/logging"
)

// Default tuning.
const (
	DefaultRubberStampThreshold = 10
	DefaultAuditIntervalDays    = 7
	DefaultDriftWarnRate        = 0.3
)

// DecisionApproved is the escalation decision that feeds the
// rubber-stamp streak; any other decision resets it.
const DecisionApproved = "approved"

// Record kinds written to the audit log. The log is the auditor's
// durable form: replaying every record in order rebuilds State.
const (
	KindEscalationResponse  = "escalation-response"
	KindDeliberationOutcome = "deliberation-outcome"
	KindDriftSample         = "drift-sample"
	KindStreakReset         = "rubber-stamp-reset"
	KindStateReset          = "state-reset"
)

// EscalationRecord is one human response to an escalated action.
type EscalationRecord struct {
	ActionClass string    `json:"actionClass"`
	Decision    string    `json:"decision"`
	Timestamp   time.Time `json:"ts"`
}

// DriftSample is one persisted drift-rate measurement.
type DriftSample struct {
	Timestamp time.Time `json:"ts"`
	Rate      float64   `json:"rate"`
}

// deliberationSample feeds drift measurement.
type deliberationSample struct {
	Timestamp time.Time
	Outcome   deliberation.Outcome
}

// deliberationRecord is the journaled form of one drift-window sample.
type deliberationRecord struct {
	Timestamp time.Time            `json:"ts"`
	Outcome   deliberation.Outcome `json:"outcome"`
}

// State is the persisted audit state.
type State struct {
	EscalationHistory    []EscalationRecord `json:"escalationHistory"`
	ConsecutiveApprovals int                `json:"consecutiveApprovals"`
	DriftHistory         []DriftSample      `json:"driftHistory"`
	LastAuditAt          *time.Time         `json:"lastAuditAt,omitempty"`
}

// Params tunes the auditor. Zero values fall back to defaults.
type Params struct {
	RubberStampThreshold int
	AuditIntervalDays    int
	DriftWarnRate        float64
}

func (p Params) withDefaults() Params {
	if p.RubberStampThreshold == 0 {
		p.RubberStampThreshold = DefaultRubberStampThreshold
	}
	if p.AuditIntervalDays == 0 {
		p.AuditIntervalDays = DefaultAuditIntervalDays
	}
	if p.DriftWarnRate == 0 {
		p.DriftWarnRate = DefaultDriftWarnRate
	}
	return p
}

// Auditor tracks escalation and deliberation history. Audit writes are
// rare, so a single mutex serializes all state access.
type Auditor struct {
	mu            sync.Mutex
	state         State
	deliberations []deliberationSample
	params        Params
	clock         func() time.Time
	bypass        *Bypass
	log           *Log
	logger        *logging.Logger
}

// Option configures an Auditor.
type Option func(*Auditor)

// WithParams overrides the default tuning.
func WithParams(p Params) Option {
	return func(a *Auditor) { a.params = p.withDefaults() }
}

// WithClock substitutes the wall clock.
func WithClock(clock func() time.Time) Option {
	return func(a *Auditor) {
		a.clock = clock
		a.bypass = NewBypass(clock)
	}
}

// WithLog attaches an append-only audit log; without one, events are
// kept in memory only.
func WithLog(log *Log) Option {
	return func(a *Auditor) { a.log = log }
}

// NewAuditor builds an auditor with its own bypass state. When a log
// is attached, the full audit state is rebuilt from it before the
// first decision, so streaks, drift history, and the audit schedule
// survive a restart.
func NewAuditor(opts ...Option) (*Auditor, error) {
	a := &Auditor{
		params: Params{}.withDefaults(),
		clock:  time.Now,
		logger: logging.GetLogger(),
	}
	a.bypass = NewBypass(a.clock)
	for _, opt := range opts {
		opt(a)
	}
	if a.log != nil {
		if err := a.replayLog(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// replayLog rebuilds State and the deliberation window by applying
// every journaled record in order.
func (a *Auditor) replayLog() error {
	records, err := a.log.Read()
	if err != nil {
		return err
	}

	for _, rec := range records {
		switch rec.Kind {
		case KindEscalationResponse:
			var er EscalationRecord
			if err := rec.DecodePayload(&er); err != nil {
				return err
			}
			a.state.EscalationHistory = append(a.state.EscalationHistory, er)
			if er.Decision == DecisionApproved {
				a.state.ConsecutiveApprovals++
			} else {
				a.state.ConsecutiveApprovals = 0
			}

		case KindDeliberationOutcome:
			var d deliberationRecord
			if err := rec.DecodePayload(&d); err != nil {
				return err
			}
			a.deliberations = append(a.deliberations, deliberationSample{
				Timestamp: d.Timestamp,
				Outcome:   d.Outcome,
			})

		case KindDriftSample:
			var s DriftSample
			if err := rec.DecodePayload(&s); err != nil {
				return err
			}
			a.state.DriftHistory = append(a.state.DriftHistory, s)

		case ReportType:
			var r Report
			if err := rec.DecodePayload(&r); err != nil {
				return err
			}
			t := r.GeneratedAt
			a.state.LastAuditAt = &t

		case KindStreakReset:
			a.state.ConsecutiveApprovals = 0

		case KindStateReset:
			a.state = State{}
			a.deliberations = nil
		}
	}
	return nil
}

// Bypass exposes the auditor's bypass state.
func (a *Auditor) Bypass() *Bypass { return a.bypass }

// EscalationResponse summarizes one recorded human decision.
type EscalationResponse struct {
	RubberStampWarning bool
	ConsecutiveCount   int
}

// RecordEscalationResponse appends a human decision on an escalated
// action. Only approvals extend the rubber-stamp streak; any denial or
// modification resets it.
func (a *Auditor) RecordEscalationResponse(actionClass, decision string) (EscalationResponse, error) {
	if actionClass == "" {
		return EscalationResponse{}, errors.New(errors.InvalidInput, "action class is required")
	}
	if decision == "" {
		return EscalationResponse{}, errors.New(errors.InvalidInput, "decision is required")
	}

	a.mu.Lock()
	rec := EscalationRecord{
		ActionClass: actionClass,
		Decision:    decision,
		Timestamp:   a.clock(),
	}
	a.state.EscalationHistory = append(a.state.EscalationHistory, rec)

	if decision == DecisionApproved {
		a.state.ConsecutiveApprovals++
	} else {
		a.state.ConsecutiveApprovals = 0
	}

	resp := EscalationResponse{
		RubberStampWarning: a.state.ConsecutiveApprovals >= a.params.RubberStampThreshold,
		ConsecutiveCount:   a.state.ConsecutiveApprovals,
	}
	a.mu.Unlock()

	if a.log != nil {
		if err := a.log.Append(KindEscalationResponse, rec); err != nil {
			return resp, err
		}
	}
	if resp.RubberStampWarning {
		a.logger.Warn(context.Background(), "rubber-stamp streak at %d consecutive approvals", resp.ConsecutiveCount)
	}
	return resp, nil
}

// RubberStampResult is the answer to one rubber-stamp check.
type RubberStampResult struct {
	Detected bool
	Count    int
	Message  string
}

// DetectRubberStamp reports whether the approval streak has reached the
// threshold. A long unbroken streak means the human gate has stopped
// gating.
func (a *Auditor) DetectRubberStamp() RubberStampResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	count := a.state.ConsecutiveApprovals
	if count < a.params.RubberStampThreshold {
		return RubberStampResult{Count: count}
	}
	return RubberStampResult{
		Detected: true,
		Count:    count,
		Message:  fmt.Sprintf("%d consecutive approvals; escalations may be rubber-stamped rather than reviewed", count),
	}
}

// ResetRubberStampCounter zeroes the approval streak, typically after
// an operator acknowledges the warning.
func (a *Auditor) ResetRubberStampCounter() {
	a.mu.Lock()
	a.state.ConsecutiveApprovals = 0
	a.mu.Unlock()

	a.journal(KindStreakReset, nil)
}

// SelfModCheck is the verdict on a self-modification attempt.
type SelfModCheck struct {
	Blocked bool
	Reason  string
}

// CheckSelfModification unconditionally blocks changes to the policy
// layer's own thresholds and config, and every hard-ceiling class.
// This check sits above bypass and deliberation; nothing overrides it.
func (a *Auditor) CheckSelfModification(actionClass string) SelfModCheck {
	if action.Matches(actionClass, "self:modify:*") {
		return SelfModCheck{
			Blocked: true,
			Reason:  fmt.Sprintf("%s modifies the policy layer itself and is permanently locked out", actionClass),
		}
	}
	if action.HasHardCeiling(actionClass) {
		return SelfModCheck{
			Blocked: true,
			Reason:  fmt.Sprintf("Hard ceiling: %s can never be automated", actionClass),
		}
	}
	return SelfModCheck{}
}

// RecordDeliberationOutcome feeds one deliberation verdict into the
// drift window.
func (a *Auditor) RecordDeliberationOutcome(outcome deliberation.Outcome) {
	a.mu.Lock()
	now := a.clock()
	a.deliberations = append(a.deliberations, deliberationSample{
		Timestamp: now,
		Outcome:   outcome,
	})
	a.mu.Unlock()

	a.journal(KindDeliberationOutcome, deliberationRecord{Timestamp: now, Outcome: outcome})
}

// journal appends a record when a log is attached. Failures are
// logged, not returned.
func (a *Auditor) journal(kind string, payload interface{}) {
	if a.log == nil {
		return
	}
	if err := a.log.Append(kind, payload); err != nil {
		a.logger.Error(context.Background(), "cannot journal %s: %v", kind, err)
	}
}

// DriftResult describes the promote-vs-demote balance over a window.
type DriftResult struct {
	Rate        float64
	Expanding   bool
	Contracting bool
	Warning     bool
	Samples     int
}

// CheckDriftRate measures autonomy drift over the trailing window:
// rate = (promotes - demotes) / total deliberations. A positive rate
// means autonomy is expanding. The warning fires on sustained
// expansion, meaning this check and the previous one both crossed the
// warn rate. Each check is persisted into the drift history.
func (a *Auditor) CheckDriftRate(days int) DriftResult {
	if days <= 0 {
		days = a.params.AuditIntervalDays
	}

	a.mu.Lock()

	now := a.clock()
	cutoff := now.AddDate(0, 0, -days)

	var promotes, demotes, total int
	for _, s := range a.deliberations {
		if s.Timestamp.Before(cutoff) {
			continue
		}
		total++
		switch s.Outcome {
		case deliberation.OutcomePromote:
			promotes++
		case deliberation.OutcomeDemote:
			demotes++
		}
	}

	var rate float64
	if total > 0 {
		rate = float64(promotes-demotes) / float64(total)
	}

	sustained := rate >= a.params.DriftWarnRate
	if sustained {
		if n := len(a.state.DriftHistory); n == 0 || a.state.DriftHistory[n-1].Rate < a.params.DriftWarnRate {
			sustained = false
		}
	}

	sample := DriftSample{Timestamp: now, Rate: rate}
	a.state.DriftHistory = append(a.state.DriftHistory, sample)
	a.mu.Unlock()

	a.journal(KindDriftSample, sample)

	return DriftResult{
		Rate:        rate,
		Expanding:   rate > 0,
		Contracting: rate < 0,
		Warning:     sustained,
		Samples:     total,
	}
}

// AuditDue reports whether a periodic audit is overdue.
type AuditDue struct {
	Due           bool
	DaysSinceLast float64
}

// IsAuditDue is due when no audit has ever run, or the configured
// interval has elapsed since the last one.
func (a *Auditor) IsAuditDue() AuditDue {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.state.LastAuditAt == nil {
		return AuditDue{Due: true}
	}
	days := a.clock().Sub(*a.state.LastAuditAt).Hours() / 24
	return AuditDue{Due: days >= float64(a.params.AuditIntervalDays), DaysSinceLast: days}
}

// GetState returns a copy of the audit state.
func (a *Auditor) GetState() State {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := State{
		EscalationHistory:    append([]EscalationRecord(nil), a.state.EscalationHistory...),
		ConsecutiveApprovals: a.state.ConsecutiveApprovals,
		DriftHistory:         append([]DriftSample(nil), a.state.DriftHistory...),
	}
	if a.state.LastAuditAt != nil {
		t := *a.state.LastAuditAt
		out.LastAuditAt = &t
	}
	return out
}

// ResetState wipes all accumulated audit state, including the
// deliberation window. Bypass state and stats are untouched.
func (a *Auditor) ResetState() {
	a.mu.Lock()
	a.state = State{}
	a.deliberations = nil
	a.mu.Unlock()

	a.journal(KindStateReset, nil)
}
