// Package trust tags units of external content with a trust level and
// provenance chain, detects prompt-injection style hostile patterns, and
// derives blast-radius adjustments from the resulting level.
package trust

import "time"

// Level is the trust classification of a content source. Levels are
// ordered: hostile < untrusted < verified < trusted.
type Level string

const (
	LevelHostile   Level = "hostile"
	LevelUntrusted Level = "untrusted"
	LevelVerified  Level = "verified"
	LevelTrusted   Level = "trusted"
)

var levelRank = map[Level]int{
	LevelHostile:   0,
	LevelUntrusted: 1,
	LevelVerified:  2,
	LevelTrusted:   3,
}

// Rank returns the ordering position of the level; unknown levels rank
// as untrusted.
func (l Level) Rank() int {
	if r, ok := levelRank[l]; ok {
		return r
	}
	return levelRank[LevelUntrusted]
}

// Min returns the lower-trust of two levels.
func Min(a, b Level) Level {
	if a.Rank() <= b.Rank() {
		return a
	}
	return b
}

// Source describes where a unit of content came from. It is created
// once per unit and is immutable except for hostile escalation, which
// returns a copy preserving the prior level.
type Source struct {
	Type            string     `json:"type"`
	Level           Level      `json:"level"`
	Origin          string     `json:"origin"`
	Chain           []string   `json:"chain"`
	Timestamp       time.Time  `json:"timestamp"`
	HostilePatterns []string   `json:"hostilePatterns,omitempty"`
	EscalatedAt     *time.Time `json:"escalatedAt,omitempty"`
	OriginalLevel   Level      `json:"originalLevel,omitempty"`
}

// TagInput is the caller-supplied description of a content unit.
// Level may be left empty to infer it from Type.
type TagInput struct {
	Type   string
	Level  Level
	Origin string
	Chain  []string
}

// TagContent builds a Source for a unit of content, inferring the trust
// level from the source type when not given and appending the origin to
// a copy of the provenance chain.
func TagContent(in TagInput) Source {
	level := in.Level
	if level == "" {
		level = DefaultTrustLevel(in.Type)
	}

	chain := make([]string, 0, len(in.Chain)+1)
	chain = append(chain, in.Chain...)
	if in.Origin != "" {
		chain = append(chain, in.Origin)
	}

	return Source{
		Type:      in.Type,
		Level:     level,
		Origin:    in.Origin,
		Chain:     chain,
		Timestamp: time.Now(),
	}
}

// DefaultTrustLevel infers a trust level from a source type. Content
// from the operating user or the agent's own internals is trusted,
// approved plugins are verified, and anything reaching in from the
// outside world starts untrusted.
func DefaultTrustLevel(sourceType string) Level {
	switch sourceType {
	case "user", "internal", "system":
		return LevelTrusted
	case "plugin":
		return LevelVerified
	case "web", "external", "email", "file":
		return LevelUntrusted
	default:
		return LevelUntrusted
	}
}

// ApplyTrustModifier adjusts a blast radius score by the source's trust
// level. Hostile content is hard-capped at 0.1 and never raised,
// untrusted content loses 0.3, trusted content gains 0.1. The result is
// always clamped to [0, 1].
func ApplyTrustModifier(blastRadius float64, source *Source) float64 {
	b := clamp01(blastRadius)
	if source == nil {
		return b
	}

	switch source.Level {
	case LevelHostile:
		if b > 0.1 {
			b = 0.1
		}
	case LevelUntrusted:
		b -= 0.3
	case LevelTrusted:
		b += 0.1
	}

	return clamp01(b)
}

// MergeSources combines two sources into one whose level is the lower
// of the two. Chains are concatenated with a "merged" marker appended
// for traceability.
func MergeSources(a, b Source) Source {
	mergedType := a.Type
	if b.Type != a.Type {
		mergedType = "merged"
	}

	chain := make([]string, 0, len(a.Chain)+len(b.Chain)+1)
	chain = append(chain, a.Chain...)
	chain = append(chain, b.Chain...)
	chain = append(chain, "merged")

	return Source{
		Type:      mergedType,
		Level:     Min(a.Level, b.Level),
		Origin:    a.Origin,
		Chain:     chain,
		Timestamp: time.Now(),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
