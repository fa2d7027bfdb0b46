package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagContent(t *testing.T) {
	t.Run("explicit level wins", func(t *testing.T) {
		src := TagContent(TagInput{
			Type:   "web",
			Level:  LevelVerified,
			Origin: "web:docs.example.com",
		})
		assert.Equal(t, LevelVerified, src.Level)
	})

	t.Run("level inferred from type", func(t *testing.T) {
		tests := []struct {
			sourceType string
			want       Level
		}{
			{"user", LevelTrusted},
			{"internal", LevelTrusted},
			{"plugin", LevelVerified},
			{"web", LevelUntrusted},
			{"external", LevelUntrusted},
			{"mystery", LevelUntrusted},
		}
		for _, tt := range tests {
			src := TagContent(TagInput{Type: tt.sourceType, Origin: "x:y"})
			assert.Equal(t, tt.want, src.Level, "type %q", tt.sourceType)
		}
	})

	t.Run("origin appended to copied chain", func(t *testing.T) {
		chain := []string{"user:alice"}
		src := TagContent(TagInput{
			Type:   "user",
			Origin: "cli:session-1",
			Chain:  chain,
		})
		assert.Equal(t, []string{"user:alice", "cli:session-1"}, src.Chain)
		// The caller's slice is untouched.
		assert.Equal(t, []string{"user:alice"}, chain)
	})

	t.Run("timestamp set", func(t *testing.T) {
		src := TagContent(TagInput{Type: "user", Origin: "cli:s"})
		assert.False(t, src.Timestamp.IsZero())
	})
}

func TestLevelOrdering(t *testing.T) {
	assert.Equal(t, LevelHostile, Min(LevelHostile, LevelTrusted))
	assert.Equal(t, LevelUntrusted, Min(LevelVerified, LevelUntrusted))
	assert.Equal(t, LevelVerified, Min(LevelTrusted, LevelVerified))
	assert.Equal(t, LevelTrusted, Min(LevelTrusted, LevelTrusted))

	// Unknown levels are treated as untrusted, never as trusted.
	assert.Equal(t, 1, Level("bogus").Rank())
}

func TestApplyTrustModifier(t *testing.T) {
	src := func(l Level) *Source { return &Source{Level: l} }

	tests := []struct {
		name        string
		blastRadius float64
		source      *Source
		want        float64
	}{
		{"hostile capped at 0.1", 0.9, src(LevelHostile), 0.1},
		{"hostile never raised", 0.05, src(LevelHostile), 0.05},
		{"untrusted subtracts 0.3", 0.5, src(LevelUntrusted), 0.2},
		{"untrusted floors at 0", 0.1, src(LevelUntrusted), 0.0},
		{"trusted adds 0.1", 0.5, src(LevelTrusted), 0.6},
		{"trusted ceils at 1", 0.95, src(LevelTrusted), 1.0},
		{"verified unchanged", 0.5, src(LevelVerified), 0.5},
		{"nil source unchanged", 0.5, nil, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ApplyTrustModifier(tt.blastRadius, tt.source), 0.001)
		})
	}

	t.Run("always clamped", func(t *testing.T) {
		levels := []Level{LevelHostile, LevelUntrusted, LevelVerified, LevelTrusted}
		inputs := []float64{-5, -0.1, 0, 0.3, 0.7, 1, 1.5, 99}
		for _, l := range levels {
			for _, b := range inputs {
				got := ApplyTrustModifier(b, src(l))
				assert.GreaterOrEqual(t, got, 0.0, "level=%s b=%v", l, b)
				assert.LessOrEqual(t, got, 1.0, "level=%s b=%v", l, b)
			}
		}
	})
}

func TestMergeSources(t *testing.T) {
	a := TagContent(TagInput{Type: "user", Origin: "user:alice"})
	b := TagContent(TagInput{Type: "web", Origin: "web:example.com"})

	merged := MergeSources(a, b)

	assert.Equal(t, LevelUntrusted, merged.Level, "merge takes the lower level")
	assert.Equal(t, "merged", merged.Type)
	assert.Equal(t, "merged", merged.Chain[len(merged.Chain)-1])
	assert.Contains(t, merged.Chain, "user:alice")
	assert.Contains(t, merged.Chain, "web:example.com")

	t.Run("same type preserved", func(t *testing.T) {
		m := MergeSources(a, TagContent(TagInput{Type: "user", Origin: "user:bob"}))
		assert.Equal(t, "user", m.Type)
	})

	t.Run("hostile dominates", func(t *testing.T) {
		h := Source{Type: "web", Level: LevelHostile}
		m := MergeSources(a, h)
		assert.Equal(t, LevelHostile, m.Level)
	})
}
