// Package deliberation runs the structured self-review protocol for
// actions that are neither fast-pathed to Act nor forced to Escalate.
// Five independent checks turn their concerns into a final promote,
// maintain, or demote verdict.
package deliberation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/calyptra/ace-go/pkg/scoring"
	"github.com/calyptra/ace-go/pkg/trust"
)

// EventName tags deliberation reports in logs and audit trails.
const EventName = "ace:deliberation"

// Default protocol tuning.
const (
	DefaultLowPrecedent   = 0.30
	DefaultDemoteConcerns = 3
	DefaultConcernPenalty = 0.10
	DefaultUrgencyHorizon = time.Hour
	lowReversibility      = 0.5
)

// Outcome is the protocol's verdict relative to the initial tier.
type Outcome string

const (
	OutcomePromote  Outcome = "promote"
	OutcomeMaintain Outcome = "maintain"
	OutcomeDemote   Outcome = "demote"
)

// Input describes the action under review. Score carries the factors
// handed to the scorer; the remaining fields feed the five checks.
type Input struct {
	Score scoring.Input

	Motivation       string
	MotivationSource string // "external" flags outside pressure

	Deadline        *time.Time
	OpportunityLost bool

	BackupExists    bool
	AffectsExternal bool
}

// StepResult is the outcome of one protocol check.
type StepResult struct {
	Step     string                 `json:"step"`
	Passed   bool                   `json:"passed"`
	Details  map[string]interface{} `json:"details,omitempty"`
	Concerns []string               `json:"concerns,omitempty"`
}

// Report is the full record of one deliberation.
type Report struct {
	Event             string         `json:"event"`
	ID                string         `json:"id"`
	Timestamp         time.Time      `json:"timestamp"`
	ActionClass       string         `json:"actionClass"`
	InitialScores     scoring.Result `json:"initialScores"`
	Steps             []StepResult   `json:"steps,omitempty"`
	FailedSteps       int            `json:"failedSteps"`
	TotalConcerns     int            `json:"totalConcerns"`
	AdjustedComposite float64        `json:"adjustedComposite"`
	Outcome           Outcome        `json:"outcome"`
	FinalTier         scoring.Tier   `json:"finalTier"`
	Reason            string         `json:"reason"`
}

// Params tunes the protocol. Zero values fall back to defaults.
type Params struct {
	LowPrecedent   float64
	DemoteConcerns int
	ConcernPenalty float64
	UrgencyHorizon time.Duration
}

func (p Params) withDefaults() Params {
	if p.LowPrecedent == 0 {
		p.LowPrecedent = DefaultLowPrecedent
	}
	if p.DemoteConcerns == 0 {
		p.DemoteConcerns = DefaultDemoteConcerns
	}
	if p.ConcernPenalty == 0 {
		p.ConcernPenalty = DefaultConcernPenalty
	}
	if p.UrgencyHorizon == 0 {
		p.UrgencyHorizon = DefaultUrgencyHorizon
	}
	return p
}

// Protocol runs deliberations against a scorer.
type Protocol struct {
	scorer *scoring.Scorer
	params Params
	clock  func() time.Time
}

// Option configures a Protocol.
type Option func(*Protocol)

// WithParams overrides the default tuning.
func WithParams(p Params) Option {
	return func(pr *Protocol) { pr.params = p.withDefaults() }
}

// WithClock substitutes the wall clock for urgency checks.
func WithClock(clock func() time.Time) Option {
	return func(pr *Protocol) { pr.clock = clock }
}

// NewProtocol builds a protocol over the given scorer.
func NewProtocol(scorer *scoring.Scorer, opts ...Option) *Protocol {
	p := &Protocol{
		scorer: scorer,
		params: Params{}.withDefaults(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SkipResult says whether deliberation can be skipped outright.
type SkipResult struct {
	Skip   bool
	Tier   scoring.Tier
	Reason string
}

// ShouldSkip short-circuits the five-step review for cases whose answer
// is fixed: hard-ceiling classes, hostile sources, and first-in-class
// actions all escalate unconditionally.
func (p *Protocol) ShouldSkip(in Input) SkipResult {
	class := in.Score.Class

	if p.scorer.ClassifyAction(class).HasHardCeiling {
		return SkipResult{
			Skip:   true,
			Tier:   scoring.TierEscalate,
			Reason: fmt.Sprintf("Hard ceiling: %s can never be automated", class),
		}
	}

	if src := in.Score.TrustSource; src != nil && src.Level == trust.LevelHostile {
		return SkipResult{
			Skip:   true,
			Tier:   scoring.TierEscalate,
			Reason: "hostile trust source",
		}
	}

	if p.scorer.ScoreAction(in.Score).FirstInClass {
		return SkipResult{
			Skip:   true,
			Tier:   scoring.TierEscalate,
			Reason: fmt.Sprintf("First action in class %s requires human review", class),
		}
	}

	return SkipResult{}
}

// Deliberate runs all five checks, derives the adjusted composite, and
// decides the verdict:
//
//   - a hostile trust source demotes to Escalate regardless of steps;
//   - too many concerns demote;
//   - a clean run whose adjusted composite clears the Act boundary
//     promotes, unless the class has a deliberate minimum;
//   - anything else maintains, tier following the adjusted composite.
func (p *Protocol) Deliberate(in Input) Report {
	initial := p.scorer.ScoreAction(in.Score)

	steps := []StepResult{
		p.checkContext(in),
		p.checkPrecedent(initial),
		p.checkSource(in),
		p.checkCounterfactual(in),
		p.checkReversibility(in, initial),
	}

	failed := 0
	concerns := 0
	for _, s := range steps {
		if !s.Passed {
			failed++
		}
		concerns += len(s.Concerns)
	}

	adjusted := initial.Composite - p.params.ConcernPenalty*float64(concerns)
	if adjusted < 0 {
		adjusted = 0
	}

	report := Report{
		Event:             EventName,
		ID:                uuid.NewString(),
		Timestamp:         p.clock(),
		ActionClass:       in.Score.Class,
		InitialScores:     initial,
		Steps:             steps,
		FailedSteps:       failed,
		TotalConcerns:     concerns,
		AdjustedComposite: adjusted,
	}

	requiresDeliberation := p.scorer.ClassifyAction(in.Score.Class).RequiresDeliberation
	hostile := in.Score.TrustSource != nil && in.Score.TrustSource.Level == trust.LevelHostile

	switch {
	case hostile:
		report.Outcome = OutcomeDemote
		report.FinalTier = scoring.TierEscalate
		report.Reason = "hostile trust source overrides deliberation"

	case concerns >= p.params.DemoteConcerns:
		report.Outcome = OutcomeDemote
		report.FinalTier = scoring.TierEscalate
		report.Reason = fmt.Sprintf("%d concerns across %d failed steps", concerns, failed)

	case failed == 0 && adjusted >= p.scorer.ActThresholdFloor() && p.scorer.Tier(adjusted, scoring.ForceFlags{}) == scoring.TierAct:
		if requiresDeliberation {
			// The deliberate minimum keeps even a clean review from
			// reaching full autonomy.
			report.Outcome = OutcomeMaintain
			report.FinalTier = scoring.TierDeliberate
			report.Reason = "clean review, but class always deliberates at minimum"
		} else {
			report.Outcome = OutcomePromote
			report.FinalTier = scoring.TierAct
			report.Reason = fmt.Sprintf("all steps passed, adjusted composite %.2f clears the act boundary", adjusted)
		}

	default:
		tier := p.scorer.Tier(adjusted, scoring.ForceFlags{})
		if requiresDeliberation && tier == scoring.TierAct {
			tier = scoring.TierDeliberate
		}
		report.Outcome = OutcomeMaintain
		report.FinalTier = tier
		report.Reason = fmt.Sprintf("adjusted composite %.2f with %d concerns", adjusted, concerns)
	}

	return report
}

// checkContext verifies the action arrives with a motivation and that
// the motivation is the agent's own.
func (p *Protocol) checkContext(in Input) StepResult {
	step := StepResult{
		Step: "context",
		Details: map[string]interface{}{
			"motivationSource": in.MotivationSource,
		},
	}

	if in.Motivation == "" {
		step.Concerns = append(step.Concerns, "no motivation provided")
	}
	if in.MotivationSource == "external" {
		step.Concerns = append(step.Concerns, "motivation originates from external input")
	}

	step.Passed = in.Motivation != ""
	return step
}

// checkPrecedent reviews the class history behind the initial score.
func (p *Protocol) checkPrecedent(initial scoring.Result) StepResult {
	step := StepResult{
		Step: "precedent",
		Details: map[string]interface{}{
			"score":         initial.Precedent,
			"isFirstAction": initial.FirstInClass,
		},
	}

	if initial.FirstInClass {
		step.Concerns = append(step.Concerns, "no precedent for this class")
	}
	if initial.Precedent < p.params.LowPrecedent {
		step.Concerns = append(step.Concerns, fmt.Sprintf("low precedent %.2f", initial.Precedent))
	}

	step.Passed = len(step.Concerns) == 0
	return step
}

// checkSource audits the trust source and its provenance chain. Absent
// sources pass: an action with no external content has nothing to audit.
func (p *Protocol) checkSource(in Input) StepResult {
	step := StepResult{Step: "source", Details: map[string]interface{}{}}

	src := in.Score.TrustSource
	if src == nil {
		step.Passed = true
		step.Details["level"] = "none"
		return step
	}

	step.Details["level"] = string(src.Level)

	switch src.Level {
	case trust.LevelTrusted, trust.LevelVerified:
		step.Passed = true
	case trust.LevelHostile:
		step.Concerns = append(step.Concerns, "hostile source")
	default:
		step.Concerns = append(step.Concerns, "untrusted source")
	}

	chain := trust.ValidateChain(*src)
	for _, link := range chain.UntrustedLinks {
		step.Concerns = append(step.Concerns, "untrusted chain link: "+link)
	}

	return step
}

// checkCounterfactual asks what is lost by waiting. A concern is raised
// only when urgency or opportunity pressure would prevent waiting for
// human input.
func (p *Protocol) checkCounterfactual(in Input) StepResult {
	step := StepResult{Step: "counterfactual", Details: map[string]interface{}{}}

	urgent := in.OpportunityLost
	if in.Deadline != nil {
		remaining := in.Deadline.Sub(p.clock())
		step.Details["deadlineIn"] = remaining.String()
		if remaining <= p.params.UrgencyHorizon {
			urgent = true
		}
	}
	step.Details["isUrgent"] = urgent

	if urgent {
		step.Concerns = append(step.Concerns, "urgency pressure prevents waiting for human input")
	}

	step.Passed = !urgent
	return step
}

// checkReversibility confirms a way back exists. Low-reversibility
// classes need a backup; anything touching the outside world is flagged
// regardless.
func (p *Protocol) checkReversibility(in Input, initial scoring.Result) StepResult {
	step := StepResult{
		Step: "reversibility",
		Details: map[string]interface{}{
			"reversibility": initial.Reversibility,
			"backupExists":  in.BackupExists,
		},
	}

	if initial.Reversibility < lowReversibility && !in.BackupExists {
		step.Concerns = append(step.Concerns, "low reversibility without a backup")
	}
	if in.AffectsExternal {
		step.Concerns = append(step.Concerns, "action affects external systems")
	}

	step.Passed = len(step.Concerns) == 0
	return step
}
