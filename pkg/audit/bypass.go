package audit

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"time"

	"github.com/calyptra/ace-go/pkg/action"
	"github.com/calyptra/ace-go/pkg/errors"
)

// Mode controls how much of the policy layer a bypass suspends.
type Mode string

const (
	// ModeOff means no bypass is active.
	ModeOff Mode = "off"
	// ModeLogOnly skips deliberation and escalation but still records
	// every decision.
	ModeLogOnly Mode = "log-only"
	// ModeDisabled suspends the policy layer entirely, hard ceilings
	// excepted.
	ModeDisabled Mode = "disabled"
)

// MaxBypassDuration caps every temporary bypass regardless of the
// requested length.
const MaxBypassDuration = 24 * time.Hour

var durationPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// BypassStats counts bypass usage. Hard-ceiling blocks during an
// active bypass are the key signal an operator tried to route around
// the root of trust.
type BypassStats struct {
	Activations          int `json:"activations"`
	ActionsWhileBypassed int `json:"actionsWhileBypassed"`
	HardCeilingBlocks    int `json:"hardCeilingBlocks"`
}

// BypassStatus is the answer to one isBypassed query.
type BypassStatus struct {
	Bypassed           bool
	Mode               Mode
	HardCeilingBlocked bool
}

// Bypass holds the temporary-bypass state under a single mutex.
type Bypass struct {
	mu        sync.Mutex
	mode      Mode
	temporary bool
	expiresAt time.Time
	stats     BypassStats
	clock     func() time.Time
}

// NewBypass returns an inactive bypass. A nil clock means wall time.
func NewBypass(clock func() time.Time) *Bypass {
	if clock == nil {
		clock = time.Now
	}
	return &Bypass{mode: ModeOff, clock: clock}
}

// SetTemporary activates a bypass for the given duration string
// (e.g. "30m", "2h"). Durations longer than MaxBypassDuration are
// silently capped at 24 hours. An empty mode defaults to log-only;
// "off" is rejected since clearing goes through ClearTemporary.
func (b *Bypass) SetTemporary(duration string, mode Mode) (time.Time, error) {
	d, err := parseDuration(duration)
	if err != nil {
		return time.Time{}, err
	}
	if d > MaxBypassDuration {
		d = MaxBypassDuration
	}

	switch mode {
	case "":
		mode = ModeLogOnly
	case ModeLogOnly, ModeDisabled:
	case ModeOff:
		return time.Time{}, errors.New(errors.InvalidInput, "bypass mode off makes no sense for a temporary bypass; use ClearTemporary")
	default:
		return time.Time{}, errors.New(errors.InvalidInput, fmt.Sprintf("unknown bypass mode %q", mode))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.mode = mode
	b.temporary = true
	b.expiresAt = b.clock().Add(d)
	b.stats.Activations++
	return b.expiresAt, nil
}

// ClearTemporary deactivates any active bypass.
func (b *Bypass) ClearTemporary() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reset()
}

// reset must be called with the mutex held.
func (b *Bypass) reset() {
	b.mode = ModeOff
	b.temporary = false
	b.expiresAt = time.Time{}
}

// IsBypassed reports whether class may skip the normal decision path
// right now. Hard-ceiling classes are never bypassable under any mode;
// the attempt is counted when a bypass is active.
func (b *Bypass) IsBypassed(class string) BypassStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	active := b.activeLocked()

	if class != "" && action.HasHardCeiling(class) {
		if active {
			b.stats.HardCeilingBlocks++
		}
		return BypassStatus{Bypassed: false, Mode: b.mode, HardCeilingBlocked: true}
	}

	if !active {
		return BypassStatus{Bypassed: false, Mode: ModeOff}
	}

	b.stats.ActionsWhileBypassed++
	return BypassStatus{Bypassed: true, Mode: b.mode}
}

// activeLocked checks expiry and clears a lapsed bypass. Expiry is
// polled at call time; there is no timer.
func (b *Bypass) activeLocked() bool {
	if b.mode == ModeOff {
		return false
	}
	if b.temporary && !b.clock().Before(b.expiresAt) {
		b.reset()
		return false
	}
	return true
}

// Remaining returns the time left on an active temporary bypass.
func (b *Bypass) Remaining() (time.Duration, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.activeLocked() || !b.temporary {
		return 0, false
	}
	return b.expiresAt.Sub(b.clock()), true
}

// Stats returns a copy of the usage counters.
func (b *Bypass) Stats() BypassStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// ResetStats zeroes the usage counters.
func (b *Bypass) ResetStats() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats = BypassStats{}
}

// CurrentMode returns the current mode, honoring expiry.
func (b *Bypass) CurrentMode() Mode {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.activeLocked() {
		return ModeOff
	}
	return b.mode
}

func parseDuration(s string) (time.Duration, error) {
	m := durationPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, errors.New(errors.InvalidInput, fmt.Sprintf("invalid bypass duration %q: want a number followed by s, m, h, or d", s))
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, errors.Wrap(err, errors.InvalidInput, "invalid bypass duration")
	}

	var unit time.Duration
	switch m[2] {
	case "s":
		unit = time.Second
	case "m":
		unit = time.Minute
	case "h":
		unit = time.Hour
	case "d":
		unit = 24 * time.Hour
	}
	return time.Duration(n) * unit, nil
}
