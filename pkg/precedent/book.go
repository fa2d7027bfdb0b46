package precedent

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/calyptra/ace-go/pkg/action"
	"github.com/calyptra/ace-go/pkg/errors"
)

// Score bounds. The ceiling keeps even a perfect history short of full
// automation credit; the floor keeps scores non-negative.
const (
	Ceiling = 0.95
	Floor   = 0.0
)

// Default tuning. The decay curve is an exponential half-life: a score
// untouched for one half-life reads at half its stored value. Negative
// outcomes propagate half their delta to the parent wildcard class,
// halved again per level.
const (
	DefaultPositiveDelta       = 0.15
	DefaultNegativeDelta       = 0.20
	DefaultDecayHalfLife       = 30 * 24 * time.Hour
	DefaultPropagationFraction = 0.5
)

// Result classifies a reported outcome.
type Result string

const (
	Positive Result = "positive"
	Negative Result = "negative"
)

// Params tunes score arithmetic. Zero values fall back to defaults.
type Params struct {
	PositiveDelta       float64
	NegativeDelta       float64
	DecayHalfLife       time.Duration
	PropagationFraction float64
}

func (p Params) withDefaults() Params {
	if p.PositiveDelta == 0 {
		p.PositiveDelta = DefaultPositiveDelta
	}
	if p.NegativeDelta == 0 {
		p.NegativeDelta = DefaultNegativeDelta
	}
	if p.DecayHalfLife == 0 {
		p.DecayHalfLife = DefaultDecayHalfLife
	}
	if p.PropagationFraction == 0 {
		p.PropagationFraction = DefaultPropagationFraction
	}
	return p
}

// Book is the in-memory view over a Store. Reads are served from the
// cache; every write mutates the cache and persists the touched class
// before returning. Writes to one class are serialized by a per-class
// lock so concurrent outcome reports never interleave a
// read-modify-write cycle.
type Book struct {
	store  Store
	params Params
	clock  func() time.Time

	mu      sync.RWMutex // guards entries and locks maps
	entries map[string]*Entry
	locks   map[string]*sync.Mutex
}

// Option configures a Book.
type Option func(*Book)

// WithClock substitutes the wall clock, for deterministic decay tests.
func WithClock(clock func() time.Time) Option {
	return func(b *Book) { b.clock = clock }
}

// WithParams overrides the default score arithmetic.
func WithParams(p Params) Option {
	return func(b *Book) { b.params = p.withDefaults() }
}

// NewBook loads all entries from the store and returns a ready Book.
func NewBook(store Store, opts ...Option) (*Book, error) {
	b := &Book{
		store:  store,
		params: Params{}.withDefaults(),
		clock:  time.Now,
		locks:  map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(b)
	}

	entries, err := store.Load()
	if err != nil {
		return nil, err
	}
	b.entries = entries
	return b, nil
}

// RecordActionInput describes an action being taken now.
type RecordActionInput struct {
	Class   string
	Details string
	Tier    string
}

// RecordAction appends an instance to the class entry, creating the
// entry on first sight, and returns the current (decayed) score.
func (b *Book) RecordAction(in RecordActionInput) (float64, error) {
	if in.Class == "" {
		return 0, errors.New(errors.InvalidInput, "action class is required")
	}

	unlock := b.lockClasses(in.Class)
	defer unlock()

	now := b.clock()
	entry := b.getOrCreate(in.Class, now)

	details := in.Details
	if in.Tier != "" {
		if details != "" {
			details += " "
		}
		details += "tier=" + in.Tier
	}
	entry.Instances = append(entry.Instances, Instance{Timestamp: now, Details: details})

	if err := b.store.Put(in.Class, entry); err != nil {
		return 0, err
	}
	return b.decayedScore(entry, now), nil
}

// OutcomeInput reports how a recorded action actually went.
type OutcomeInput struct {
	Class            string
	Result           Result
	Severity         float64 // negative outcomes only; 0 means 1
	OperatorResponse string
}

// OutcomeResult reports the score movement caused by one outcome.
type OutcomeResult struct {
	OldScore   float64
	NewScore   float64
	Propagated []string
}

// RecordOutcome applies a score delta for the class: +0.15 for a
// positive outcome, -0.20 x severity for a negative one, clamped to
// [Floor, Ceiling] on every write. Negative outcomes also propagate a
// reduced penalty to each parent wildcard class up to the root.
func (b *Book) RecordOutcome(in OutcomeInput) (OutcomeResult, error) {
	if in.Class == "" {
		return OutcomeResult{}, errors.New(errors.InvalidInput, "action class is required")
	}
	if in.Result != Positive && in.Result != Negative {
		return OutcomeResult{}, errors.New(errors.InvalidInput, "result must be positive or negative")
	}

	severity := in.Severity
	if severity <= 0 {
		severity = 1
	}

	// Lock the class and, for negative outcomes, every ancestor the
	// penalty will touch. lockClasses orders acquisition to avoid
	// deadlocking against a concurrent overlapping report.
	affected := []string{in.Class}
	if in.Result == Negative {
		affected = append(affected, action.Ancestors(in.Class)...)
	}
	unlock := b.lockClasses(affected...)
	defer unlock()

	now := b.clock()
	entry := b.getOrCreate(in.Class, now)

	// Materialize decay before applying the delta so the anchor can
	// move to now without double-counting elapsed time.
	oldScore := b.settleDecay(entry, now)

	var delta float64
	if in.Result == Positive {
		delta = b.params.PositiveDelta
	} else {
		delta = -b.params.NegativeDelta * severity
	}
	entry.Score = clampScore(oldScore + delta)
	if applied := entry.Score - oldScore; applied != 0 {
		entry.Changes = append(entry.Changes, ScoreChange{Timestamp: now, Delta: applied})
	}
	b.markOutcome(entry, in.Result, now)

	if err := b.store.Put(in.Class, entry); err != nil {
		return OutcomeResult{}, err
	}

	result := OutcomeResult{OldScore: oldScore, NewScore: entry.Score}

	if in.Result == Negative {
		propagated, err := b.propagateLocked(in.Class, delta, now)
		if err != nil {
			return OutcomeResult{}, err
		}
		result.Propagated = propagated
	}

	return result, nil
}

// propagateLocked pushes a reduced share of a negative delta up the
// class hierarchy. Callers must already hold the ancestor locks.
func (b *Book) propagateLocked(class string, delta float64, now time.Time) ([]string, error) {
	var propagated []string

	share := delta
	for _, parent := range action.Ancestors(class) {
		share *= b.params.PropagationFraction
		if math.Abs(share) < 1e-9 {
			break
		}

		entry := b.getOrCreate(parent, now)
		settled := b.settleDecay(entry, now)
		entry.Score = clampScore(settled + share)
		if applied := entry.Score - settled; applied != 0 {
			entry.Changes = append(entry.Changes, ScoreChange{Timestamp: now, Delta: applied})
		}

		if err := b.store.Put(parent, entry); err != nil {
			return nil, err
		}
		propagated = append(propagated, parent)
	}

	return propagated, nil
}

// History is the instance breakdown reported alongside a score.
type History struct {
	Count    int
	Positive int
	Negative int
}

// PrecedentResult is the read-side view of one class.
type PrecedentResult struct {
	Score         float64
	IsFirstAction bool
	History       *History
}

// Precedent returns the current score for a class. History is nil and
// IsFirstAction true when the class has never been recorded. With
// applyDecay, the stored score is pulled toward zero as a function of
// time since the decay anchor; decay only ever lowers a score.
func (b *Book) Precedent(class string, applyDecay bool) PrecedentResult {
	unlock := b.lockClasses(class)
	defer unlock()

	b.mu.RLock()
	entry, ok := b.entries[class]
	b.mu.RUnlock()

	if !ok {
		return PrecedentResult{IsFirstAction: true}
	}

	score := entry.Score
	if applyDecay {
		score = b.decayedScore(entry, b.clock())
	}

	h := &History{Count: len(entry.Instances)}
	for _, inst := range entry.Instances {
		switch inst.Result {
		case Positive:
			h.Positive++
		case Negative:
			h.Negative++
		}
	}

	return PrecedentResult{Score: score, History: h}
}

// DecayScores settles decay on every class and persists the results,
// fanning the per-class writes out over a bounded worker pool.
func (b *Book) DecayScores() error {
	now := b.clock()
	classes := b.Classes()

	p := pool.New().WithErrors().WithMaxGoroutines(4)
	for _, class := range classes {
		p.Go(func() error {
			unlock := b.lockClasses(class)
			defer unlock()

			b.mu.RLock()
			entry, ok := b.entries[class]
			b.mu.RUnlock()
			if !ok {
				return nil
			}

			b.settleDecay(entry, now)
			return b.store.Put(class, entry)
		})
	}
	return p.Wait()
}

// Reset zeroes the score for a class. Instance history is retained so
// audit summaries keep counting past activity. Unknown classes report
// ResourceNotFound.
func (b *Book) Reset(class string) (float64, error) {
	unlock := b.lockClasses(class)
	defer unlock()

	b.mu.RLock()
	entry, ok := b.entries[class]
	b.mu.RUnlock()

	if !ok {
		return 0, errors.WithFields(
			errors.New(errors.ResourceNotFound, "no recorded actions"),
			errors.Fields{"class": class})
	}

	now := b.clock()
	oldScore := entry.Score
	entry.Score = Floor
	entry.DecayAnchor = now
	if oldScore != Floor {
		entry.Changes = append(entry.Changes, ScoreChange{Timestamp: now, Delta: Floor - oldScore})
	}

	if err := b.store.Put(class, entry); err != nil {
		return 0, err
	}
	return oldScore, nil
}

// Classes returns every recorded class, sorted.
func (b *Book) Classes() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.entries))
	for class := range b.entries {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}

// Summary aggregates activity inside a trailing window for audit
// reporting. ScoreChanges is the net outcome-driven score movement per
// class inside the window, propagated penalties and resets included;
// decay is excluded.
type Summary struct {
	PeriodDays   int
	TotalClasses int
	TotalActions int
	Recent       RecentActivity
	Scores       map[string]float64
	ScoreChanges map[string]float64
}

// RecentActivity counts instances recorded inside the window.
type RecentActivity struct {
	Actions  int
	Positive int
	Negative int
}

// AuditSummary reports totals plus windowed activity, the current
// decayed score of every class active in the window, and each active
// class's net score movement. A class whose score moved only by
// propagation still counts as active.
func (b *Book) AuditSummary(days int) Summary {
	if days <= 0 {
		days = 7
	}
	now := b.clock()
	cutoff := now.AddDate(0, 0, -days)
	classes := b.Classes()

	summary := Summary{
		PeriodDays:   days,
		TotalClasses: len(classes),
		Scores:       map[string]float64{},
		ScoreChanges: map[string]float64{},
	}

	for _, class := range classes {
		unlock := b.lockClasses(class)

		b.mu.RLock()
		entry, ok := b.entries[class]
		b.mu.RUnlock()
		if !ok {
			unlock()
			continue
		}

		summary.TotalActions += len(entry.Instances)

		active := false
		for _, inst := range entry.Instances {
			if inst.Timestamp.Before(cutoff) {
				continue
			}
			active = true
			summary.Recent.Actions++
			switch inst.Result {
			case Positive:
				summary.Recent.Positive++
			case Negative:
				summary.Recent.Negative++
			}
		}
		var movement float64
		moved := false
		for _, ch := range entry.Changes {
			if ch.Timestamp.Before(cutoff) {
				continue
			}
			movement += ch.Delta
			moved = true
		}
		if moved {
			summary.ScoreChanges[class] = movement
			active = true
		}

		if active {
			summary.Scores[class] = b.decayedScore(entry, now)
		}
		unlock()
	}

	return summary
}

// getOrCreate must be called with the class lock held.
func (b *Book) getOrCreate(class string, now time.Time) *Entry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if entry, ok := b.entries[class]; ok {
		return entry
	}
	entry := &Entry{Score: Floor, DecayAnchor: now}
	b.entries[class] = entry
	return entry
}

// settleDecay folds elapsed decay into the stored score and moves the
// anchor to now, returning the settled value.
func (b *Book) settleDecay(entry *Entry, now time.Time) float64 {
	entry.Score = b.decayedScore(entry, now)
	entry.DecayAnchor = now
	return entry.Score
}

func (b *Book) decayedScore(entry *Entry, now time.Time) float64 {
	elapsed := now.Sub(entry.DecayAnchor)
	if elapsed <= 0 || entry.Score <= Floor {
		return clampScore(entry.Score)
	}

	halfLives := float64(elapsed) / float64(b.params.DecayHalfLife)
	return clampScore(entry.Score * math.Pow(0.5, halfLives))
}

// markOutcome attaches the result to the most recent instance that has
// none, or appends a bare instance when outcomes outpace actions.
func (b *Book) markOutcome(entry *Entry, result Result, now time.Time) {
	for i := len(entry.Instances) - 1; i >= 0; i-- {
		if entry.Instances[i].Result == "" {
			entry.Instances[i].Result = result
			return
		}
	}
	entry.Instances = append(entry.Instances, Instance{Timestamp: now, Result: result})
}

// lockClasses acquires the per-class mutexes for every named class in
// sorted order and returns a release function.
func (b *Book) lockClasses(classes ...string) func() {
	sorted := append([]string{}, classes...)
	sort.Strings(sorted)

	var acquired []*sync.Mutex
	seen := map[string]bool{}
	for _, class := range sorted {
		if seen[class] {
			continue
		}
		seen[class] = true
		acquired = append(acquired, b.classLock(class))
	}

	for _, m := range acquired {
		m.Lock()
	}
	return func() {
		for i := len(acquired) - 1; i >= 0; i-- {
			acquired[i].Unlock()
		}
	}
}

func (b *Book) classLock(class string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m, ok := b.locks[class]; ok {
		return m
	}
	m := &sync.Mutex{}
	b.locks[class] = m
	return m
}

func clampScore(v float64) float64 {
	if v < Floor {
		return Floor
	}
	if v > Ceiling {
		return Ceiling
	}
	return v
}
