// Package action classifies hierarchical agent action identifiers and
// supplies per-class policy defaults.
//
// An action class is a dotted identifier of one to three segments,
// `category:subcategory:specific`, e.g. "git:commit:local". Parsing is
// total: unknown or malformed segments are carried through as opaque
// strings and never rejected, so classification can always proceed.
package action

import "strings"

// Wildcard is the segment that matches any suffix in a class pattern.
const Wildcard = "*"

// Class holds the parsed segments of an action class identifier.
type Class struct {
	Category    string
	Subcategory string
	Specific    string
	Parts       []string
}

// Parse splits an action class into its segments. It never fails:
// empty input yields a Class with no parts, extra segments are kept in
// Parts beyond the three named fields.
func Parse(class string) Class {
	if class == "" {
		return Class{Parts: []string{}}
	}

	parts := strings.Split(class, ":")
	c := Class{Parts: parts}
	if len(parts) > 0 {
		c.Category = parts[0]
	}
	if len(parts) > 1 {
		c.Subcategory = parts[1]
	}
	if len(parts) > 2 {
		c.Specific = parts[2]
	}
	return c
}

// String reassembles the class identifier from its parts.
func (c Class) String() string {
	return strings.Join(c.Parts, ":")
}

// Parent returns the wildcard class one level up: the last concrete
// segment is dropped and replaced with "*", so "git:push:remote"
// becomes "git:push:*" and "git:push:*" becomes "git:*". A bare
// category has no parent and returns ok=false.
func Parent(class string) (string, bool) {
	base := Parse(class).Parts

	// A trailing wildcard is not a concrete segment.
	if n := len(base); n > 0 && base[n-1] == Wildcard {
		base = base[:n-1]
	}
	if len(base) <= 1 {
		return "", false
	}

	parent := append(append([]string{}, base[:len(base)-1]...), Wildcard)
	return strings.Join(parent, ":"), true
}

// Ancestors returns every wildcard parent of class, nearest first.
func Ancestors(class string) []string {
	var out []string
	cur := class
	for {
		parent, ok := Parent(cur)
		if !ok {
			return out
		}
		out = append(out, parent)
		cur = parent
	}
}

// Matches reports whether class matches pattern. A pattern is either an
// exact class, a wildcard suffix ("git:*" matches "git:commit:local"),
// or the bare "*" which matches everything.
func Matches(class, pattern string) bool {
	if pattern == Wildcard {
		return true
	}
	if class == pattern {
		return true
	}
	if strings.HasSuffix(pattern, ":"+Wildcard) {
		prefix := strings.TrimSuffix(pattern, Wildcard)
		return strings.HasPrefix(class, prefix)
	}
	return false
}
