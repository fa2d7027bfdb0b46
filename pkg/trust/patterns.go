package trust

import (
	"regexp"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Pattern pairs a stable identifier with its matcher so individual
// families can be unit-tested and extended without touching the scan
// logic.
type Pattern struct {
	ID      string
	Matcher *regexp.Regexp
}

// HostilePatterns is the scan table for prompt-injection signatures.
// Matchers run against NFKC-normalized, case-folded content, so they
// are written lowercase and need no case classes.
var HostilePatterns = []Pattern{
	// Instruction override
	{ID: "ignore-instructions", Matcher: regexp.MustCompile(`ignore (all |any |the )?(previous|prior|above|earlier) (instructions|prompts|rules|directives)`)},
	{ID: "forget-everything", Matcher: regexp.MustCompile(`forget (everything|all|what) (you|i|we)`)},
	{ID: "disregard-rules", Matcher: regexp.MustCompile(`disregard (your|the|all|previous) (instructions|rules|guidelines|training)`)},
	{ID: "new-instructions", Matcher: regexp.MustCompile(`(new|updated|real) instructions( follow|:)`)},
	{ID: "override-system", Matcher: regexp.MustCompile(`override (the |your )?(system|safety|default)`)},

	// Role override
	{ID: "you-are-now", Matcher: regexp.MustCompile(`you are now (a|an|the|in) `)},
	{ID: "pretend-to-be", Matcher: regexp.MustCompile(`pretend (to be|you are|that you)`)},
	{ID: "act-as", Matcher: regexp.MustCompile(`act as (if you|though you|a|an|the) `)},
	{ID: "roleplay-as", Matcher: regexp.MustCompile(`roleplay as `)},

	// System tag injection
	{ID: "system-tag", Matcher: regexp.MustCompile(`<\s*/?\s*system\s*>`)},
	{ID: "system-bracket", Matcher: regexp.MustCompile(`\[\s*/?\s*system\s*\]`)},
	{ID: "special-token", Matcher: regexp.MustCompile(`<\|[a-z_]+\|>`)},

	// Destructive commands
	{ID: "rm-rf", Matcher: regexp.MustCompile(`rm\s+(-[a-z]*r[a-z]*f|-[a-z]*f[a-z]*r)\b`)},
	{ID: "drop-table", Matcher: regexp.MustCompile(`drop\s+(table|database)\b`)},
	{ID: "format-disk", Matcher: regexp.MustCompile(`(format\s+[a-z]:|mkfs\.)`)},

	// Urgency and authority manipulation
	{ID: "urgency", Matcher: regexp.MustCompile(`\b(urgent|emergency|immediately|right now|before it'?s too late)\b`)},
	{ID: "authority-claim", Matcher: regexp.MustCompile(`i am (the|your) (developer|admin|administrator|creator|owner|operator)`)},
	{ID: "disable-safety", Matcher: regexp.MustCompile(`(disable|bypass|turn off|remove) (the |your |all )?(safety|security|guardrails?|filters?|restrictions?)`)},

	// Prompt and secret exfiltration
	{ID: "reveal-prompt", Matcher: regexp.MustCompile(`(reveal|show|print|repeat) (me )?(your|the) (system )?(prompt|instructions)`)},
	{ID: "exfiltrate-secrets", Matcher: regexp.MustCompile(`(send|upload|post|forward|leak) .{0,40}(password|credential|secret|token|api.?key|\.env)`)},

	// Payload smuggling
	{ID: "base64-smuggle", Matcher: regexp.MustCompile(`(decode|run|execute) (this|the following) base64`)},
}

// HostileScan is the result of scanning one unit of content.
type HostileScan struct {
	IsHostile bool
	Matches   []string
}

// DetectHostilePatterns scans content for prompt-injection signatures.
// Content is NFKC-normalized and case-folded first so width and
// compatibility homoglyphs cannot dodge the matchers. Empty content is
// never hostile.
func DetectHostilePatterns(content string) HostileScan {
	if content == "" {
		return HostileScan{}
	}

	// Casers are stateful, so build one per scan.
	folded := cases.Fold().String(norm.NFKC.String(content))

	var matches []string
	for _, p := range HostilePatterns {
		if p.Matcher.MatchString(folded) {
			matches = append(matches, p.ID)
		}
	}

	return HostileScan{
		IsHostile: len(matches) > 0,
		Matches:   matches,
	}
}

// EscalateOnHostile scans content and, if hostile patterns are found,
// returns a copy of source escalated to the hostile level with the
// original level preserved. Clean content returns the source unchanged.
func EscalateOnHostile(source Source, content string) Source {
	scan := DetectHostilePatterns(content)
	if !scan.IsHostile {
		return source
	}

	now := time.Now()
	escalated := source
	escalated.OriginalLevel = source.Level
	escalated.Level = LevelHostile
	escalated.EscalatedAt = &now
	escalated.HostilePatterns = scan.Matches
	return escalated
}
