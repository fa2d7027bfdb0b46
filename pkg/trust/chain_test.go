package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLinkLevel(t *testing.T) {
	tests := []struct {
		link string
		want Level
	}{
		{"telegram:chat-42", LevelTrusted},
		{"user:alice", LevelTrusted},
		{"plugin:weather", LevelVerified},
		{"merged", LevelVerified},
		{"web:example.com", LevelUntrusted},
		{"https:example.com/page", LevelUntrusted},
		{"no-scheme-at-all", LevelUntrusted},
		{"", LevelUntrusted},
	}

	for _, tt := range tests {
		t.Run(tt.link, func(t *testing.T) {
			assert.Equal(t, tt.want, LinkLevel(tt.link))
		})
	}
}

func TestValidateChain(t *testing.T) {
	t.Run("empty chain is invalid", func(t *testing.T) {
		report := ValidateChain(Source{})
		assert.False(t, report.Valid)
		assert.Equal(t, LevelUntrusted, report.LowestLevel)
		assert.Empty(t, report.UntrustedLinks)
	})

	t.Run("all trusted", func(t *testing.T) {
		report := ValidateChain(Source{Chain: []string{"user:alice", "telegram:chat-1"}})
		assert.True(t, report.Valid)
		assert.Equal(t, LevelTrusted, report.LowestLevel)
		assert.Empty(t, report.UntrustedLinks)
	})

	t.Run("one untrusted link lowers the chain", func(t *testing.T) {
		report := ValidateChain(Source{Chain: []string{
			"user:alice",
			"web:random-blog.example",
			"telegram:chat-1",
		}})
		assert.True(t, report.Valid)
		assert.Equal(t, LevelUntrusted, report.LowestLevel)
		assert.Equal(t, []string{"web:random-blog.example"}, report.UntrustedLinks)
	})

	t.Run("verified links reported below trusted", func(t *testing.T) {
		report := ValidateChain(Source{Chain: []string{"user:alice", "plugin:weather"}})
		assert.Equal(t, LevelVerified, report.LowestLevel)
		assert.Equal(t, []string{"plugin:weather"}, report.UntrustedLinks)
	})
}
