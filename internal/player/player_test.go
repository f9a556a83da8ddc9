package player

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"streaming-service/internal/streaming"
)

func freeEnt() streaming.Entitlements {
	return streaming.Entitlements{
		Plan:           "free",
		MaxDevices:     1,
		MaxSkipsPerDay: 3,
		AudioQuality:   "standard",
		AdSupported:    true,
	}
}

func premiumEnt() streaming.Entitlements {
	return streaming.Entitlements{
		Plan:               "premium",
		MaxDevices:         5,
		DownloadAllowed:    true,
		MaxSkipsPerDay:     100000,
		CanSeek:            true,
		AudioQuality:       "high",
		CanCreatePlaylists: true,
	}
}

func loadedPlayer(t *testing.T, ent streaming.Entitlements, tracks []string, opts ...Option) *Player {
	t.Helper()
	p := New(ent, opts...)
	if err := p.Load(tracks); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := p.Play(); err != nil {
		t.Fatalf("Play: %v", err)
	}
	return p
}

// finishAd ticks the countdown to zero and confirms.
func finishAd(t *testing.T, p *Player) {
	t.Helper()
	if p.State() != StateAdShowing {
		t.Fatalf("expected ad state, got %s", p.State())
	}
	for i := 0; i < streaming.AdCountdownSeconds; i++ {
		p.Tick()
	}
	if err := p.ConfirmAd(); err != nil {
		t.Fatalf("ConfirmAd: %v", err)
	}
}

func TestPlayer_Lifecycle(t *testing.T) {
	p := New(premiumEnt())

	if err := p.Play(); !errors.Is(err, ErrBadState) {
		t.Errorf("Play before Load should fail, got %v", err)
	}
	if err := p.Load(nil); !errors.Is(err, ErrNoQueue) {
		t.Errorf("Load with empty queue should fail, got %v", err)
	}

	if err := p.Load([]string{"t1", "t2"}); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.State() != StateLoaded {
		t.Errorf("expected loaded, got %s", p.State())
	}

	p.Play()
	p.Pause()
	if p.State() != StatePaused {
		t.Errorf("expected paused, got %s", p.State())
	}
	p.Resume()
	if p.State() != StatePlaying {
		t.Errorf("expected playing, got %s", p.State())
	}

	p.Close()
	if err := p.Load([]string{"t1"}); !errors.Is(err, ErrClosed) {
		t.Errorf("Load after Close should fail, got %v", err)
	}
}

func TestPlayer_PremiumNextIsImmediate(t *testing.T) {
	p := loadedPlayer(t, premiumEnt(), []string{"t1", "t2", "t3"})

	if err := p.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if cur, _ := p.Current(); cur != "t2" {
		t.Errorf("expected t2, got %s", cur)
	}
	if p.State() != StatePlaying {
		t.Errorf("premium skip should not enter ad state, got %s", p.State())
	}
	if p.SkipsToday() != 0 {
		t.Errorf("premium skips should not count, got %d", p.SkipsToday())
	}
}

func TestPlayer_FreeSkipShowsAdThenAdvances(t *testing.T) {
	p := loadedPlayer(t, freeEnt(), []string{"t1", "t2"})

	if err := p.Next(); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if p.State() != StateAdShowing {
		t.Fatalf("expected ad state, got %s", p.State())
	}
	// Still on t1 while the ad runs.
	if cur, _ := p.Current(); cur != "t1" {
		t.Errorf("track must not change before the ad confirms, on %s", cur)
	}
	// Confirming early is rejected.
	if err := p.ConfirmAd(); !errors.Is(err, ErrAdNotFinished) {
		t.Errorf("expected ErrAdNotFinished, got %v", err)
	}

	finishAd(t, p)
	if cur, _ := p.Current(); cur != "t2" {
		t.Errorf("expected t2 after the ad, got %s", cur)
	}
	if p.SkipsToday() != 1 {
		t.Errorf("expected one counted skip, got %d", p.SkipsToday())
	}
}

func TestPlayer_FreeSkipQuota(t *testing.T) {
	p := loadedPlayer(t, freeEnt(), []string{"t1", "t2", "t3", "t4", "t5"})

	for i := 0; i < 3; i++ {
		if err := p.Next(); err != nil {
			t.Fatalf("skip %d: %v", i+1, err)
		}
		finishAd(t, p)
	}

	if err := p.Next(); !errors.Is(err, ErrSkipDenied) {
		t.Errorf("fourth skip should be denied, got %v", err)
	}
	// Prev still works with the quota spent.
	if err := p.Prev(); err != nil {
		t.Errorf("Prev should never be quota limited: %v", err)
	}
	if p.State() != StatePlaying {
		t.Errorf("prev must not show an ad, got %s", p.State())
	}
}

func TestPlayer_SeedsQuotaFromServerCount(t *testing.T) {
	p := loadedPlayer(t, freeEnt(), []string{"t1", "t2"}, WithSkipsToday(3))

	if err := p.Next(); !errors.Is(err, ErrSkipDenied) {
		t.Errorf("seeded counter should deny immediately, got %v", err)
	}
}

func TestPlayer_Seek(t *testing.T) {
	p := loadedPlayer(t, freeEnt(), []string{"t1"})
	if err := p.Seek(30 * time.Second); !errors.Is(err, ErrSeekDenied) {
		t.Errorf("free seek should be denied, got %v", err)
	}

	p = loadedPlayer(t, premiumEnt(), []string{"t1"})
	if err := p.Seek(30 * time.Second); err != nil {
		t.Fatalf("premium seek: %v", err)
	}
	if p.Offset() != 30*time.Second {
		t.Errorf("expected offset 30s, got %s", p.Offset())
	}
}

func TestPlayer_TrackEndedFreeStillGetsAd(t *testing.T) {
	p := loadedPlayer(t, freeEnt(), []string{"t1", "t2"}, WithSkipsToday(3))

	// Natural end bypasses the quota entirely but not the interstitial.
	if err := p.TrackEnded(); err != nil {
		t.Fatalf("TrackEnded: %v", err)
	}
	finishAd(t, p)
	if cur, _ := p.Current(); cur != "t2" {
		t.Errorf("expected t2, got %s", cur)
	}
	if p.SkipsToday() != 3 {
		t.Errorf("natural end must not consume quota, got %d", p.SkipsToday())
	}
}

func TestPlayer_QueueWrapsAround(t *testing.T) {
	p := loadedPlayer(t, premiumEnt(), []string{"t1", "t2"})

	p.Next()
	p.Next()
	if cur, _ := p.Current(); cur != "t1" {
		t.Errorf("expected wrap to t1, got %s", cur)
	}
	p.Prev()
	if cur, _ := p.Current(); cur != "t2" {
		t.Errorf("expected wrap back to t2, got %s", cur)
	}
}

func TestPlayer_ShuffleKeepsCurrentAndRestores(t *testing.T) {
	tracks := []string{"t1", "t2", "t3", "t4", "t5", "t6"}
	p := loadedPlayer(t, premiumEnt(), tracks, WithRandSource(rand.NewSource(42)))

	p.Next() // move off the first track
	before, _ := p.Current()

	if err := p.ToggleShuffle(); err != nil {
		t.Fatalf("ToggleShuffle on: %v", err)
	}
	if cur, _ := p.Current(); cur != before {
		t.Errorf("shuffle must keep the current track, got %s want %s", cur, before)
	}

	// Walk a few tracks in shuffled order.
	p.Next()
	p.Next()
	current, _ := p.Current()

	if err := p.ToggleShuffle(); err != nil {
		t.Fatalf("ToggleShuffle off: %v", err)
	}
	if cur, _ := p.Current(); cur != current {
		t.Errorf("unshuffle must keep the current track, got %s want %s", cur, current)
	}

	// Order is the original again: from t3 the next track is t4.
	if current == "t3" {
		p.Next()
		if cur, _ := p.Current(); cur != "t4" {
			t.Errorf("expected original order after unshuffle, got %s", cur)
		}
	}
}

func TestPlayer_ShuffleCoversAllTracks(t *testing.T) {
	tracks := []string{"t1", "t2", "t3", "t4"}
	p := loadedPlayer(t, premiumEnt(), tracks, WithRandSource(rand.NewSource(7)))
	p.ToggleShuffle()

	seen := map[string]bool{}
	for i := 0; i < len(tracks); i++ {
		cur, _ := p.Current()
		seen[cur] = true
		p.Next()
	}
	if len(seen) != len(tracks) {
		t.Errorf("shuffled walk should visit every track once, saw %d of %d", len(seen), len(tracks))
	}
}
