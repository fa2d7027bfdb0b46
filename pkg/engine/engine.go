// Package engine ties the decision loop together behind one facade:
// classify, tag trust, read precedent, score, deliberate when needed,
// and feed outcomes and escalation responses back into precedent and
// audit state.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/calyptra/ace-go/pkg/audit"
	"github.com/calyptra/ace-go/pkg/config"
	"github.com/calyptra/ace-go/pkg/deliberation"
	"github.com/calyptra/ace-go/pkg/errors"
	"github.com/calyptra/ace-go/pkg/logging"
	"github.com/calyptra/ace-go/pkg/precedent"
	"github.com/calyptra/ace-go/pkg/scoring"
	"github.com/calyptra/ace-go/pkg/trust"
)

// DefaultStorePath is where precedent entries live when config names no
// path: $ACE_HOME/precedent.json, or ~/.ace/precedent.json.
func DefaultStorePath() string {
	base := os.Getenv("ACE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = filepath.Join(home, ".ace")
	}
	return filepath.Join(base, "precedent.json")
}

// SourceInfo describes where the content driving an action came from.
type SourceInfo struct {
	Type   string
	Level  trust.Level // empty infers from Type
	Origin string
	Chain  []string
}

// ActionRequest is one proposed action.
type ActionRequest struct {
	Class   string
	Details string

	// Content is scanned for hostile patterns when a source is given.
	Content string
	Source  *SourceInfo

	// Factor overrides; nil resolves to class defaults and precedent.
	Reversibility *float64
	Precedent     *float64
	BlastRadius   *float64

	// Deliberation context.
	Motivation       string
	MotivationSource string
	Deadline         *time.Time
	OpportunityLost  bool
	BackupExists     bool
	AffectsExternal  bool
}

// Decision is the engine's answer for one action.
type Decision struct {
	ID     string
	Class  string
	Tier   scoring.Tier
	Reason string

	Scores       scoring.Result
	Source       *trust.Source
	Deliberation *deliberation.Report

	Bypassed                bool
	BypassMode              audit.Mode
	SelfModificationBlocked bool
}

// Engine owns the stores and components for one policy instance. State
// is explicit so multiple engines in one process never share anything.
type Engine struct {
	cfg      *config.Config
	store    precedent.Store
	book     *precedent.Book
	scorer   *scoring.Scorer
	protocol *deliberation.Protocol
	auditor  *audit.Auditor
	logger   *logging.Logger
	clock    func() time.Time
}

// Option configures an Engine.
type Option func(*options)

type options struct {
	store  precedent.Store
	logger *logging.Logger
	clock  func() time.Time
}

// WithStore substitutes the precedent backend, bypassing config-driven
// store selection.
func WithStore(store precedent.Store) Option {
	return func(o *options) { o.store = store }
}

// WithLogger substitutes the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithClock substitutes the wall clock across every component.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// New builds an engine from config, loading all durable state from
// disk before the first decision.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	store := o.store
	if store == nil {
		var err error
		if store, err = openStore(cfg.Storage); err != nil {
			return nil, err
		}
	}

	book, err := precedent.NewBook(store,
		precedent.WithClock(o.clock),
		precedent.WithParams(precedent.Params{
			PositiveDelta:       cfg.Precedent.PositiveDelta,
			NegativeDelta:       cfg.Precedent.NegativeDelta,
			DecayHalfLife:       time.Duration(cfg.Precedent.DecayHalfLifeDays * 24 * float64(time.Hour)),
			PropagationFraction: cfg.Precedent.PropagationFraction,
		}))
	if err != nil {
		return nil, err
	}

	scorer, err := scoring.NewScorer(book,
		scoring.WithWeights(scoring.Weights{
			Reversibility: cfg.Scoring.Weights.Reversibility,
			Precedent:     cfg.Scoring.Weights.Precedent,
			BlastRadius:   cfg.Scoring.Weights.BlastRadius,
		}),
		scoring.WithThresholds(scoring.Thresholds{
			Act:        cfg.Scoring.Thresholds.Act,
			Deliberate: cfg.Scoring.Thresholds.Deliberate,
		}))
	if err != nil {
		return nil, err
	}

	protocol := deliberation.NewProtocol(scorer,
		deliberation.WithClock(o.clock),
		deliberation.WithParams(deliberation.Params{
			LowPrecedent:   cfg.Deliberation.LowPrecedent,
			DemoteConcerns: cfg.Deliberation.DemoteConcerns,
			ConcernPenalty: cfg.Deliberation.ConcernPenalty,
			UrgencyHorizon: cfg.Deliberation.UrgencyHorizon.Std(),
		}))

	logPath := cfg.Audit.LogPath
	if logPath == "" {
		logPath = audit.DefaultLogPath()
	}
	auditor, err := audit.NewAuditor(
		audit.WithClock(o.clock),
		audit.WithLog(audit.NewLog(logPath)),
		audit.WithParams(audit.Params{
			RubberStampThreshold: cfg.Audit.RubberStampThreshold,
			AuditIntervalDays:    cfg.Audit.IntervalDays,
			DriftWarnRate:        cfg.Audit.DriftWarnRate,
		}))
	if err != nil {
		return nil, err
	}

	logger := o.logger
	if logger == nil {
		if logger, err = buildLogger(cfg.Logging); err != nil {
			return nil, err
		}
	}

	return &Engine{
		cfg:      cfg,
		store:    store,
		book:     book,
		scorer:   scorer,
		protocol: protocol,
		auditor:  auditor,
		logger:   logger,
		clock:    o.clock,
	}, nil
}

func openStore(cfg config.StorageConfig) (precedent.Store, error) {
	path := cfg.Path
	switch cfg.Backend {
	case "sqlite":
		if path == "" {
			path = strings.TrimSuffix(DefaultStorePath(), ".json") + ".db"
		}
		return precedent.NewSQLiteStore(path)
	default:
		if path == "" {
			path = DefaultStorePath()
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(err, errors.StorageFailed, "cannot create store directory")
		}
		return precedent.NewFileStore(path), nil
	}
}

func buildLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	var out logging.Output
	switch cfg.Format {
	case "json":
		path := cfg.Path
		if path == "" {
			path = filepath.Join(filepath.Dir(DefaultStorePath()), "ace.log")
		}
		fileOut, err := logging.NewFileOutput(path)
		if err != nil {
			return nil, err
		}
		out = fileOut
	default:
		out = logging.NewConsoleOutput(true)
	}

	return logging.NewLogger(logging.Config{
		Severity: logging.ParseSeverity(strings.ToUpper(cfg.Severity)),
		Outputs:  []logging.Output{out},
	}), nil
}

// Evaluate decides what the agent may do with one action. The
// self-modification lockout runs before anything else; bypass is
// consulted after it, so a bypass never reaches a locked-out class.
func (e *Engine) Evaluate(ctx context.Context, req ActionRequest) (Decision, error) {
	if err := errors.CheckContext(ctx, "evaluate action"); err != nil {
		return Decision{}, err
	}
	if req.Class == "" {
		return Decision{}, errors.New(errors.InvalidInput, "action class is required")
	}

	decision := Decision{
		ID:    uuid.NewString(),
		Class: req.Class,
	}
	ctx = logging.WithDecisionID(ctx, decision.ID)

	if check := e.auditor.CheckSelfModification(req.Class); check.Blocked {
		decision.Tier = scoring.TierEscalate
		decision.Reason = check.Reason
		decision.SelfModificationBlocked = true
		e.logDecision(ctx, decision)
		return decision, nil
	}

	source := e.resolveSource(req)
	decision.Source = source

	if status := e.auditor.Bypass().IsBypassed(req.Class); status.Bypassed {
		decision.Tier = scoring.TierAct
		decision.Bypassed = true
		decision.BypassMode = status.Mode
		decision.Reason = "policy bypassed (" + string(status.Mode) + " mode)"
		e.recordInstance(req, decision.Tier)
		e.logDecision(ctx, decision)
		return decision, nil
	}

	scoreInput := scoring.Input{
		Class:         req.Class,
		Reversibility: req.Reversibility,
		Precedent:     req.Precedent,
		BlastRadius:   req.BlastRadius,
		TrustSource:   source,
	}

	result := e.scorer.ScoreAction(scoreInput)
	decision.Scores = result
	decision.Tier = result.Tier
	decision.Reason = result.Reason

	if result.Tier == scoring.TierDeliberate {
		in := deliberation.Input{
			Score:            scoreInput,
			Motivation:       req.Motivation,
			MotivationSource: req.MotivationSource,
			Deadline:         req.Deadline,
			OpportunityLost:  req.OpportunityLost,
			BackupExists:     req.BackupExists,
			AffectsExternal:  req.AffectsExternal,
		}
		if skip := e.protocol.ShouldSkip(in); skip.Skip {
			decision.Tier = skip.Tier
			decision.Reason = skip.Reason
		} else {
			report := e.protocol.Deliberate(in)
			e.auditor.RecordDeliberationOutcome(report.Outcome)

			decision.Deliberation = &report
			decision.Tier = report.FinalTier
			decision.Reason = report.Reason
		}
	}

	if decision.Tier != scoring.TierEscalate {
		e.recordInstance(req, decision.Tier)
	}
	e.logDecision(ctx, decision)
	return decision, nil
}

// resolveSource tags the request's source and escalates it to hostile
// when the content carries injection patterns.
func (e *Engine) resolveSource(req ActionRequest) *trust.Source {
	if req.Source == nil {
		return nil
	}
	source := trust.TagContent(trust.TagInput{
		Type:   req.Source.Type,
		Level:  req.Source.Level,
		Origin: req.Source.Origin,
		Chain:  req.Source.Chain,
	})
	if req.Content != "" {
		source = trust.EscalateOnHostile(source, req.Content)
	}
	return &source
}

func (e *Engine) recordInstance(req ActionRequest, tier scoring.Tier) {
	_, err := e.book.RecordAction(precedent.RecordActionInput{
		Class:   req.Class,
		Details: req.Details,
		Tier:    string(tier),
	})
	if err != nil {
		e.logger.Error(context.Background(), "cannot record action for %s: %v", req.Class, err)
	}
}

func (e *Engine) logDecision(ctx context.Context, d Decision) {
	e.logger.Decision(ctx, d.Class, string(d.Tier), d.Scores.Composite, d.Reason)
}

// OutcomeReport closes the loop on a previously evaluated action.
type OutcomeReport struct {
	Class            string
	Result           precedent.Result
	Severity         float64
	OperatorResponse string
}

// ReportOutcome applies the outcome to precedent memory.
func (e *Engine) ReportOutcome(ctx context.Context, report OutcomeReport) (precedent.OutcomeResult, error) {
	if err := errors.CheckContext(ctx, "report outcome"); err != nil {
		return precedent.OutcomeResult{}, err
	}
	return e.book.RecordOutcome(precedent.OutcomeInput{
		Class:            report.Class,
		Result:           report.Result,
		Severity:         report.Severity,
		OperatorResponse: report.OperatorResponse,
	})
}

// RecordEscalationDecision records the human response to an escalated
// action and reports rubber-stamp pressure to the caller.
func (e *Engine) RecordEscalationDecision(ctx context.Context, class, decision string) (audit.EscalationResponse, error) {
	if err := errors.CheckContext(ctx, "record escalation decision"); err != nil {
		return audit.EscalationResponse{}, err
	}
	return e.auditor.RecordEscalationResponse(class, decision)
}

// SelfImproveClass maps a self-improvement category onto its action
// class. Unknown categories map to core, the most restricted rung.
func SelfImproveClass(category string) string {
	switch category {
	case "reflection", "skill", "plugin", "config", "core":
		return "self:improve:" + category
	default:
		return "self:improve:core"
	}
}

// GenerateAudit produces a trust-audit report over the trailing window.
func (e *Engine) GenerateAudit(days int) (audit.Report, error) {
	return e.auditor.GenerateAudit(days, e.book)
}

// IsAuditDue reports whether the periodic audit is overdue.
func (e *Engine) IsAuditDue() audit.AuditDue {
	return e.auditor.IsAuditDue()
}

// DecayScores settles decay on every class and persists the results.
func (e *Engine) DecayScores() error {
	return e.book.DecayScores()
}

// Auditor exposes audit and bypass state to the operator surface.
func (e *Engine) Auditor() *audit.Auditor { return e.auditor }

// Book exposes precedent memory.
func (e *Engine) Book() *precedent.Book { return e.book }

// Close releases the precedent store.
func (e *Engine) Close() error {
	return e.store.Close()
}
