package streaming

import (
	"context"
	"time"
)

// Transport actions the playback policy rules on.
const (
	ActionSeek       = "seek"
	ActionSkip       = "skip"
	ActionNaturalEnd = "natural_end"
)

const (
	DirectionNext = "next"
	DirectionPrev = "prev"
)

// Deny reasons surfaced to the client as a non-blocking notice, never as an
// HTTP error.
const (
	DenySeekNotAllowed    = "seek_not_allowed"
	DenySkipQuotaExceeded = "skip_quota_exceeded"
)

// AdCountdownSeconds is the mandatory interstitial length. The ad phase is
// not cancellable before it elapses.
const AdCountdownSeconds = 5

// Action is one transport request from the player: a seek to TargetOffset,
// a manual or automatic skip, or the natural end of a track (which behaves
// like an automatic forward skip).
type Action struct {
	Kind         string        `json:"action"`
	Direction    string        `json:"direction,omitempty"`
	Manual       bool          `json:"manual,omitempty"`
	TargetOffset time.Duration `json:"-"`
}

func SeekTo(offset time.Duration) Action {
	return Action{Kind: ActionSeek, TargetOffset: offset}
}

func ManualSkip(direction string) Action {
	return Action{Kind: ActionSkip, Direction: direction, Manual: true}
}

func NaturalEnd() Action {
	return Action{Kind: ActionNaturalEnd, Direction: DirectionNext}
}

// Decision is the outcome of the policy engine for one action.
// RequiresAd means the advance is deferred behind an interstitial, not
// denied: the client shows the countdown and confirms afterwards.
type Decision struct {
	Allowed       bool   `json:"allowed"`
	RequiresAd    bool   `json:"requiresAd"`
	ConsumesQuota bool   `json:"consumesQuota"`
	DenyReason    string `json:"denyReason,omitempty"`
}

// Decide is the playback policy. It is pure given the action, the resolved
// entitlements and the current daily skip count.
//
// Seek is gated on the plan's seek capability and never touches quota.
// Forward manual skips consume quota on non-unlimited plans and get denied
// once the day's allowance is spent. Backward skips are never limited or
// ad-gated; only forward motion is monetized. Ad-supported plans carry the
// interstitial on every forward advance, manual or natural, independent of
// the quota outcome.
func Decide(a Action, ent Entitlements, skipsSoFar int) Decision {
	switch a.Kind {
	case ActionSeek:
		if !ent.CanSeek {
			return Decision{DenyReason: DenySeekNotAllowed}
		}
		return Decision{Allowed: true}

	case ActionNaturalEnd:
		return Decision{Allowed: true, RequiresAd: ent.AdSupported}

	case ActionSkip:
		if a.Direction == DirectionPrev {
			return Decision{Allowed: true}
		}
		if a.Manual && !ent.UnlimitedSkips() && skipsSoFar >= ent.MaxSkipsPerDay {
			return Decision{DenyReason: DenySkipQuotaExceeded}
		}
		return Decision{
			Allowed:       true,
			RequiresAd:    ent.AdSupported,
			ConsumesQuota: a.Manual && !ent.UnlimitedSkips(),
		}
	}

	return Decision{}
}

// Engine binds the pure policy to the persisted skip quota. Decide rolls the
// counter, evaluates the action, and consumes quota at most once per call
// when the allowed decision says so.
type Engine struct {
	quota *QuotaTracker
}

func NewEngine(quota *QuotaTracker) *Engine {
	return &Engine{quota: quota}
}

func (e *Engine) Decide(ctx context.Context, userID string, a Action, ent Entitlements) (Decision, error) {
	today := QuotaDay(time.Now())

	skips := 0
	if a.Kind == ActionSkip && a.Direction != DirectionPrev && a.Manual && !ent.UnlimitedSkips() {
		var err error
		skips, err = e.quota.CheckAndRoll(ctx, userID, today)
		if err != nil {
			return Decision{}, err
		}
	}

	d := Decide(a, ent, skips)
	if d.Allowed && d.ConsumesQuota {
		if _, err := e.quota.Increment(ctx, userID, today); err != nil {
			return Decision{}, err
		}
	}
	return d, nil
}
