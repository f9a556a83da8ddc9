// Package player implements the playback state machine a client device runs
// against a fixed queue. It evaluates the same playback policy the service
// exposes over /playback/decide, so a device with a cached entitlement set
// reaches identical decisions offline.
package player

import (
	"errors"
	"math/rand"
	"time"

	"streaming-service/internal/streaming"
)

type State string

const (
	StateIdle      State = "idle"
	StateLoaded    State = "loaded"
	StatePlaying   State = "playing"
	StatePaused    State = "paused"
	StateAdShowing State = "ad_showing"
	StateClosed    State = "closed"
)

var (
	ErrNoQueue       = errors.New("player: no queue loaded")
	ErrBadState      = errors.New("player: operation not valid in current state")
	ErrAdNotFinished = errors.New("player: ad countdown still running")
	ErrSeekDenied    = errors.New("player: seeking not allowed on this plan")
	ErrSkipDenied    = errors.New("player: daily skip quota exceeded")
	ErrClosed        = errors.New("player: closed")
)

// Player advances through a queue of track ids under a plan's entitlements.
// It is not safe for concurrent use; a device drives it from one goroutine.
//
// Shuffle is a permutation over queue indices. Toggling shuffle off restores
// the original order and keeps the current track current.
type Player struct {
	ent   streaming.Entitlements
	queue []string

	state      State
	order      []int // playback order as indices into queue
	pos        int   // index into order
	offset     time.Duration
	shuffled   bool
	skipsToday int

	adRemaining int    // seconds left on the interstitial
	pendingPos  int    // order position to land on once the ad confirms
	rng         *rand.Rand
}

type Option func(*Player)

// WithSkipsToday seeds the local quota mirror, normally from
// GET /users/skip-count at startup.
func WithSkipsToday(n int) Option {
	return func(p *Player) { p.skipsToday = n }
}

// WithRandSource fixes the shuffle source. Tests use this.
func WithRandSource(src rand.Source) Option {
	return func(p *Player) { p.rng = rand.New(src) }
}

func New(ent streaming.Entitlements, opts ...Option) *Player {
	p := &Player{
		ent:   ent,
		state: StateIdle,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Player) State() State { return p.state }

// SkipsToday reports the local mirror of the daily counter.
func (p *Player) SkipsToday() int { return p.skipsToday }

// Current returns the track id under the cursor.
func (p *Player) Current() (string, bool) {
	if len(p.queue) == 0 || p.state == StateIdle || p.state == StateClosed {
		return "", false
	}
	return p.queue[p.order[p.pos]], true
}

// Offset reports the playback position within the current track.
func (p *Player) Offset() time.Duration { return p.offset }

// AdRemaining reports the seconds left on the interstitial, zero outside the
// ad state.
func (p *Player) AdRemaining() int { return p.adRemaining }

// Load replaces the queue and parks the player on the first track.
func (p *Player) Load(trackIDs []string) error {
	if p.state == StateClosed {
		return ErrClosed
	}
	if len(trackIDs) == 0 {
		return ErrNoQueue
	}
	p.queue = append([]string(nil), trackIDs...)
	p.order = make([]int, len(p.queue))
	for i := range p.order {
		p.order[i] = i
	}
	p.pos = 0
	p.offset = 0
	p.shuffled = false
	p.adRemaining = 0
	p.state = StateLoaded
	return nil
}

func (p *Player) Play() error {
	switch p.state {
	case StateLoaded, StatePaused:
		p.state = StatePlaying
		return nil
	case StatePlaying:
		return nil
	default:
		return ErrBadState
	}
}

func (p *Player) Pause() error {
	if p.state != StatePlaying {
		return ErrBadState
	}
	p.state = StatePaused
	return nil
}

func (p *Player) Resume() error {
	if p.state != StatePaused {
		return ErrBadState
	}
	p.state = StatePlaying
	return nil
}

// Seek moves within the current track. Denied outright on plans without the
// seek capability.
func (p *Player) Seek(to time.Duration) error {
	if p.state != StatePlaying && p.state != StatePaused {
		return ErrBadState
	}
	d := streaming.Decide(streaming.SeekTo(to), p.ent, p.skipsToday)
	if !d.Allowed {
		return ErrSeekDenied
	}
	p.offset = to
	return nil
}

// Next is a manual forward skip. On ad-supported plans an allowed skip parks
// the player in the ad state; the track only changes after ConfirmAd.
func (p *Player) Next() error {
	if p.state != StatePlaying && p.state != StatePaused {
		return ErrBadState
	}
	d := streaming.Decide(streaming.ManualSkip(streaming.DirectionNext), p.ent, p.skipsToday)
	if !d.Allowed {
		return ErrSkipDenied
	}
	if d.ConsumesQuota {
		p.skipsToday++
	}
	p.advance(p.nextPos(), d.RequiresAd)
	return nil
}

// Prev steps backward. Never quota-limited and never ad-gated.
func (p *Player) Prev() error {
	if p.state != StatePlaying && p.state != StatePaused {
		return ErrBadState
	}
	d := streaming.Decide(streaming.ManualSkip(streaming.DirectionPrev), p.ent, p.skipsToday)
	if !d.Allowed {
		return ErrSkipDenied
	}
	p.advance(p.prevPos(), d.RequiresAd)
	return nil
}

// TrackEnded advances to the next track when the current one plays out. No
// quota is consumed, but ad-supported plans still get the interstitial.
func (p *Player) TrackEnded() error {
	if p.state != StatePlaying {
		return ErrBadState
	}
	d := streaming.Decide(streaming.NaturalEnd(), p.ent, p.skipsToday)
	p.advance(p.nextPos(), d.RequiresAd)
	return nil
}

// Tick counts one second off the ad interstitial. Outside the ad state it is
// a no-op.
func (p *Player) Tick() {
	if p.state == StateAdShowing && p.adRemaining > 0 {
		p.adRemaining--
	}
}

// ConfirmAd completes the deferred advance once the countdown has elapsed.
func (p *Player) ConfirmAd() error {
	if p.state != StateAdShowing {
		return ErrBadState
	}
	if p.adRemaining > 0 {
		return ErrAdNotFinished
	}
	p.pos = p.pendingPos
	p.offset = 0
	p.state = StatePlaying
	return nil
}

// ToggleShuffle permutes the remaining playback order, keeping the current
// track in place. Toggling off restores the original order with the cursor
// following the current track.
func (p *Player) ToggleShuffle() error {
	if len(p.queue) == 0 || p.state == StateClosed || p.state == StateIdle {
		return ErrBadState
	}
	current := p.order[p.pos]
	if p.shuffled {
		for i := range p.order {
			p.order[i] = i
		}
		p.pos = current
		p.shuffled = false
		return nil
	}
	p.rng.Shuffle(len(p.order), func(i, j int) {
		p.order[i], p.order[j] = p.order[j], p.order[i]
	})
	// Put the current track back under the cursor.
	for i, idx := range p.order {
		if idx == current {
			p.order[i], p.order[p.pos] = p.order[p.pos], p.order[i]
			break
		}
	}
	p.shuffled = true
	return nil
}

func (p *Player) Close() {
	p.state = StateClosed
	p.queue = nil
	p.order = nil
}

// advance moves the cursor, or defers the move behind the interstitial.
func (p *Player) advance(target int, requiresAd bool) {
	if requiresAd {
		p.pendingPos = target
		p.adRemaining = streaming.AdCountdownSeconds
		p.state = StateAdShowing
		return
	}
	p.pos = target
	p.offset = 0
	p.state = StatePlaying
}

func (p *Player) nextPos() int {
	return (p.pos + 1) % len(p.order)
}

func (p *Player) prevPos() int {
	return (p.pos - 1 + len(p.order)) % len(p.order)
}
