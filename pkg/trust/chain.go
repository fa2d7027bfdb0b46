package trust

import "strings"

// ChainReport summarizes a walk over a source's provenance chain.
type ChainReport struct {
	Valid          bool
	LowestLevel    Level
	UntrustedLinks []string
}

// Scheme prefixes classify each chain link by where it came from. The
// "merged" marker left by MergeSources counts as verified so merge
// bookkeeping never drags a chain down on its own.
var schemeLevels = map[string]Level{
	"user":     LevelTrusted,
	"internal": LevelTrusted,
	"system":   LevelTrusted,
	"telegram": LevelTrusted,
	"cli":      LevelTrusted,
	"plugin":   LevelVerified,
	"api":      LevelVerified,
	"merged":   LevelVerified,
	"web":      LevelUntrusted,
	"http":     LevelUntrusted,
	"https":    LevelUntrusted,
	"email":    LevelUntrusted,
	"file":     LevelUntrusted,
	"external": LevelUntrusted,
}

// LinkLevel classifies a single chain link by its scheme prefix.
// Links without a recognized scheme are untrusted.
func LinkLevel(link string) Level {
	scheme := link
	if i := strings.Index(link, ":"); i >= 0 {
		scheme = link[:i]
	}
	if level, ok := schemeLevels[scheme]; ok {
		return level
	}
	return LevelUntrusted
}

// ValidateChain walks the provenance chain and reports the minimum
// trust found along it plus every link below the trusted level. An
// empty chain is invalid and reports untrusted.
func ValidateChain(source Source) ChainReport {
	if len(source.Chain) == 0 {
		return ChainReport{
			Valid:       false,
			LowestLevel: LevelUntrusted,
		}
	}

	report := ChainReport{
		Valid:       true,
		LowestLevel: LevelTrusted,
	}

	for _, link := range source.Chain {
		level := LinkLevel(link)
		report.LowestLevel = Min(report.LowestLevel, level)
		if level.Rank() < LevelTrusted.Rank() {
			report.UntrustedLinks = append(report.UntrustedLinks, link)
		}
	}

	return report
}
