// Package scoring combines reversibility, precedent, and blast radius
// into a composite score and maps it, plus hard overrides, onto one of
// the three autonomy tiers.
package scoring

import (
	"fmt"

	"github.com/calyptra/ace-go/pkg/action"
	"github.com/calyptra/ace-go/pkg/errors"
	"github.com/calyptra/ace-go/pkg/precedent"
	"github.com/calyptra/ace-go/pkg/trust"
)

// Tier is the autonomy level granted to an action.
type Tier string

const (
	TierAct        Tier = "act"
	TierDeliberate Tier = "deliberate"
	TierEscalate   Tier = "escalate"
)

// ActFloor is the minimum composite below which Act can never be
// granted, independent of the tunable thresholds.
const ActFloor = 0.50

// Weights blends the three factors. They must sum to 1.
type Weights struct {
	Reversibility float64
	Precedent     float64
	BlastRadius   float64
}

// DefaultWeights favor history and containment slightly over undo-ability.
func DefaultWeights() Weights {
	return Weights{Reversibility: 0.30, Precedent: 0.35, BlastRadius: 0.35}
}

// Validate rejects weights that do not sum to 1.
func (w Weights) Validate() error {
	sum := w.Reversibility + w.Precedent + w.BlastRadius
	if sum < 0.999 || sum > 1.001 {
		return errors.WithFields(
			errors.New(errors.ValidationFailed, "scoring weights must sum to 1"),
			errors.Fields{"sum": sum})
	}
	return nil
}

// Thresholds maps a composite score to a tier: composite >= Act acts,
// composite >= Deliberate deliberates, anything lower escalates.
type Thresholds struct {
	Act        float64
	Deliberate float64
}

// DefaultThresholds put typical well-precedented work (R/P/B around
// 0.8) into Act, mid scores into Deliberate, and low ones into
// Escalate.
func DefaultThresholds() Thresholds {
	return Thresholds{Act: 0.75, Deliberate: 0.40}
}

// PrecedentReader is the read side of precedent.Book the scorer needs.
type PrecedentReader interface {
	Precedent(class string, applyDecay bool) precedent.PrecedentResult
}

// Scorer resolves factors, computes composites, and assigns tiers.
type Scorer struct {
	weights    Weights
	thresholds Thresholds
	book       PrecedentReader
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights overrides the default factor weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) { s.weights = w }
}

// WithThresholds overrides the default tier thresholds.
func WithThresholds(t Thresholds) Option {
	return func(s *Scorer) { s.thresholds = t }
}

// NewScorer builds a scorer over the given precedent reader, which may
// be nil when every call supplies its factors explicitly.
func NewScorer(book PrecedentReader, opts ...Option) (*Scorer, error) {
	s := &Scorer{
		weights:    DefaultWeights(),
		thresholds: DefaultThresholds(),
		book:       book,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.weights.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Input describes one proposed action. Nil factor pointers resolve to
// class defaults (R, B) or recorded precedent (P); IsFirstInClass nil
// derives from the precedent book.
type Input struct {
	Class          string
	Reversibility  *float64
	Precedent      *float64
	BlastRadius    *float64
	TrustSource    *trust.Source
	IsFirstInClass *bool
}

// Result is the ephemeral outcome of scoring one action.
type Result struct {
	Reversibility float64
	Precedent     float64
	BlastRadius   float64
	Composite     float64
	Tier          Tier
	Reason        string
	FirstInClass  bool
}

// ScoreAction resolves the three factors for the class, blends them,
// and assigns a tier. Hard overrides are applied in priority order:
// hard ceiling, first action, deliberate-minimum floor, then the
// composite thresholds.
func (s *Scorer) ScoreAction(in Input) Result {
	cls := action.Classify(in.Class)

	r := cls.DefaultReversibility
	if in.Reversibility != nil {
		r = clamp01(*in.Reversibility)
	}

	// The book is consulted for first-action detection even when P is
	// supplied explicitly; an override replaces the score, not the
	// class's history.
	var p float64
	first := false
	if s.book != nil {
		rec := s.book.Precedent(in.Class, true)
		p = rec.Score
		first = rec.IsFirstAction
	}
	if in.Precedent != nil {
		p = *in.Precedent
	}
	if p > precedent.Ceiling {
		p = precedent.Ceiling
	}
	if p < 0 {
		p = 0
	}
	if in.IsFirstInClass != nil {
		first = *in.IsFirstInClass
	}

	b := cls.DefaultBlastRadius
	if in.BlastRadius != nil {
		b = clamp01(*in.BlastRadius)
	}
	b = trust.ApplyTrustModifier(b, in.TrustSource)

	composite := CompositeScore(r, p, b, s.weights)

	result := Result{
		Reversibility: r,
		Precedent:     p,
		BlastRadius:   b,
		Composite:     composite,
		FirstInClass:  first,
	}

	switch {
	case cls.HasHardCeiling:
		result.Tier = TierEscalate
		result.Reason = fmt.Sprintf("Hard ceiling: %s can never be automated", in.Class)

	case first:
		result.Tier = TierEscalate
		result.Reason = fmt.Sprintf("First action in class %s requires human review", in.Class)

	default:
		tier := s.tierFor(composite)
		reason := fmt.Sprintf("composite %.2f (R=%.2f P=%.2f B=%.2f)", composite, r, p, b)

		// Deliberate-minimum sets a floor, not a ceiling: it pulls Act
		// down to Deliberate but never lifts a low score out of
		// Escalate.
		if cls.RequiresDeliberation && tier == TierAct {
			tier = TierDeliberate
			reason = fmt.Sprintf("%s always deliberates at minimum; %s", in.Class, reason)
		}

		result.Tier = tier
		result.Reason = reason
	}

	return result
}

// ClassifyAction exposes the static class flags without full scoring.
func (s *Scorer) ClassifyAction(class string) action.Classification {
	return action.Classify(class)
}

// ForceFlags override a computed tier; escalate wins over deliberate.
type ForceFlags struct {
	Escalate   bool
	Deliberate bool
}

// Tier maps a composite to a tier, with force flags always winning.
func (s *Scorer) Tier(composite float64, force ForceFlags) Tier {
	if force.Escalate {
		return TierEscalate
	}
	if force.Deliberate {
		return TierDeliberate
	}
	return s.tierFor(composite)
}

func (s *Scorer) tierFor(composite float64) Tier {
	switch {
	case composite >= s.thresholds.Act && composite >= ActFloor:
		return TierAct
	case composite >= s.thresholds.Deliberate:
		return TierDeliberate
	default:
		return TierEscalate
	}
}

// CompositeScore is the pure weighted blend, exposed for testability.
func CompositeScore(r, p, b float64, w Weights) float64 {
	return clamp01(w.Reversibility*r + w.Precedent*p + w.BlastRadius*b)
}

// ActThresholdFloor reports the non-configurable Act safety floor.
func (s *Scorer) ActThresholdFloor() float64 { return ActFloor }

// PrecedentCeiling reports the maximum credit precedent can supply.
func (s *Scorer) PrecedentCeiling() float64 { return precedent.Ceiling }

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
