package action

import "sort"

// HardCeilingClasses can never be automated. No score, trust level, or
// bypass mode lifts them out of escalation.
var HardCeilingClasses = []string{
	"code:execute:external",
	"credentials:read",
	"credentials:read:*",
	"self:modify:thresholds",
	"self:modify:config",
	"self:improve:core",
}

// DeliberateMinimumClasses can never be fully automated: they always at
// least deliberate, however strong their precedent.
var DeliberateMinimumClasses = []string{
	"git:push:*",
	"comms:send:*",
	"self:improve:plugin",
}

// Classification carries the static policy attributes of a class.
type Classification struct {
	HasHardCeiling       bool
	RequiresDeliberation bool
	DefaultReversibility float64
	DefaultBlastRadius   float64
}

// Reversibility defaults per class pattern: 1 is trivially undoable, 0
// is permanent. Seed values only; callers may override per call.
var reversibilityDefaults = newTable(map[string]float64{
	"git:commit:local":        0.9,
	"git:push:*":              0.5,
	"git:*":                   0.7,
	"fs:write:local":          0.8,
	"fs:delete:permanent":     0.2,
	"fs:delete:*":             0.4,
	"fs:*":                    0.7,
	"comms:send:*":            0.3,
	"code:execute:local":      0.6,
	"code:execute:external":   0.3,
	"credentials:read:*":      0.5,
	"credentials:read":        0.5,
	"self:improve:reflection": 0.9,
	"self:improve:skill":      0.8,
	"self:improve:plugin":     0.6,
	"self:improve:config":     0.4,
	"self:improve:core":       0.2,
	"self:modify:*":           0.2,
	"*":                       0.5,
})

// Blast radius defaults, expressed as containment: 1 means the damage
// from a misfire stays local, 0 means it reaches everything.
var blastRadiusDefaults = newTable(map[string]float64{
	"git:commit:local":        0.9,
	"git:push:*":              0.5,
	"git:*":                   0.7,
	"fs:write:local":          0.9,
	"fs:delete:*":             0.5,
	"fs:*":                    0.7,
	"comms:send:*":            0.4,
	"code:execute:local":      0.6,
	"code:execute:external":   0.1,
	"credentials:read:*":      0.0,
	"credentials:read":        0.0,
	"self:improve:reflection": 0.9,
	"self:improve:skill":      0.7,
	"self:improve:plugin":     0.5,
	"self:improve:config":     0.3,
	"self:improve:core":       0.1,
	"self:modify:*":           0.1,
	"*":                       0.5,
})

// HasHardCeiling reports whether class falls under a hard-ceiling pattern.
func HasHardCeiling(class string) bool {
	return matchesAny(class, HardCeilingClasses)
}

// RequiresDeliberation reports whether class falls under a
// deliberate-minimum pattern.
func RequiresDeliberation(class string) bool {
	return matchesAny(class, DeliberateMinimumClasses)
}

// DefaultReversibility looks up the seed reversibility for class,
// longest pattern winning.
func DefaultReversibility(class string) float64 {
	return reversibilityDefaults.lookup(class)
}

// DefaultBlastRadius looks up the seed blast radius for class, longest
// pattern winning.
func DefaultBlastRadius(class string) float64 {
	return blastRadiusDefaults.lookup(class)
}

// Classify resolves all static attributes of class in one call.
func Classify(class string) Classification {
	return Classification{
		HasHardCeiling:       HasHardCeiling(class),
		RequiresDeliberation: RequiresDeliberation(class),
		DefaultReversibility: DefaultReversibility(class),
		DefaultBlastRadius:   DefaultBlastRadius(class),
	}
}

func matchesAny(class string, patterns []string) bool {
	for _, p := range patterns {
		if Matches(class, p) {
			return true
		}
	}
	return false
}

// table is a pattern lookup sorted most-specific-first, so the first
// matching entry is the longest-pattern winner. Specificity is the
// number of concrete segments, ties broken by total segment count.
type table struct {
	entries []tableEntry
}

type tableEntry struct {
	pattern string
	value   float64
}

func newTable(m map[string]float64) *table {
	t := &table{entries: make([]tableEntry, 0, len(m))}
	for pattern, value := range m {
		t.entries = append(t.entries, tableEntry{pattern: pattern, value: value})
	}
	sort.Slice(t.entries, func(i, j int) bool {
		si, sj := specificity(t.entries[i].pattern), specificity(t.entries[j].pattern)
		if si != sj {
			return si > sj
		}
		return t.entries[i].pattern < t.entries[j].pattern
	})
	return t
}

func (t *table) lookup(class string) float64 {
	for _, e := range t.entries {
		if Matches(class, e.pattern) {
			return e.value
		}
	}
	// Unreachable as long as the table seeds a bare "*" entry.
	return 0.5
}

func specificity(pattern string) int {
	parsed := Parse(pattern)
	concrete := 0
	for _, p := range parsed.Parts {
		if p != Wildcard {
			concrete++
		}
	}
	return concrete*10 + len(parsed.Parts)
}
