package action

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Class
	}{
		{
			name:  "full three segments",
			input: "git:commit:local",
			want: Class{
				Category:    "git",
				Subcategory: "commit",
				Specific:    "local",
				Parts:       []string{"git", "commit", "local"},
			},
		},
		{
			name:  "two segments",
			input: "credentials:read",
			want: Class{
				Category:    "credentials",
				Subcategory: "read",
				Parts:       []string{"credentials", "read"},
			},
		},
		{
			name:  "bare category",
			input: "fs",
			want:  Class{Category: "fs", Parts: []string{"fs"}},
		},
		{
			name:  "empty input never fails",
			input: "",
			want:  Class{Parts: []string{}},
		},
		{
			name:  "unknown segments stay opaque",
			input: "frobnicate:quux:zot",
			want: Class{
				Category:    "frobnicate",
				Subcategory: "quux",
				Specific:    "zot",
				Parts:       []string{"frobnicate", "quux", "zot"},
			},
		},
		{
			name:  "extra segments kept in parts",
			input: "a:b:c:d",
			want: Class{
				Category:    "a",
				Subcategory: "b",
				Specific:    "c",
				Parts:       []string{"a", "b", "c", "d"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestParent(t *testing.T) {
	tests := []struct {
		class  string
		parent string
		ok     bool
	}{
		{"git:push:remote", "git:push:*", true},
		{"git:push:*", "git:*", true},
		{"git:push", "git:*", true},
		{"git:*", "", false},
		{"git", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.class, func(t *testing.T) {
			parent, ok := Parent(tt.class)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.parent, parent)
		})
	}
}

func TestAncestors(t *testing.T) {
	assert.Equal(t, []string{"git:push:*", "git:*"}, Ancestors("git:push:remote"))
	assert.Empty(t, Ancestors("git"))
}

func TestMatches(t *testing.T) {
	tests := []struct {
		class   string
		pattern string
		want    bool
	}{
		{"git:commit:local", "git:commit:local", true},
		{"git:commit:local", "git:*", true},
		{"git:commit:local", "git:commit:*", true},
		{"git:commit:local", "fs:*", false},
		{"git:commit:local", "git:push:*", false},
		{"anything:at:all", "*", true},
		{"git", "*", true},
		// A wildcard pattern matches itself exactly.
		{"git:*", "git:*", true},
		// Prefix matching is segment-aware, not substring.
		{"github:clone", "git:*", false},
	}

	for _, tt := range tests {
		t.Run(tt.class+"~"+tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.class, tt.pattern))
		})
	}
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "git:commit:local", Parse("git:commit:local").String())
	assert.Equal(t, "", Parse("").String())
}
