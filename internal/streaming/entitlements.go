package streaming

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// unlimitedSkips is the sentinel: a plan with max_skips_per_day at or above
// this value never enforces the skip quota, regardless of the counter.
const unlimitedSkips = 100000

// Entitlements is the capability set of a subscription plan, resolved once
// per request and threaded through instead of re-deriving from plan-name
// comparisons at every call site.
type Entitlements struct {
	Plan               string `json:"plan"`
	MaxDevices         int    `json:"maxDevices"`
	DownloadAllowed    bool   `json:"downloadAllowed"`
	MaxSkipsPerDay     int    `json:"maxSkipsPerDay"`
	CanSeek            bool   `json:"canSeek"`
	AudioQuality       string `json:"audioQuality"`
	CanCreatePlaylists bool   `json:"canCreatePlaylists"`
	// AdSupported marks the ad-funded tier: every forward track advance
	// carries an ad interstitial, independent of the skip quota.
	AdSupported bool `json:"adSupported"`
}

func (e Entitlements) UnlimitedSkips() bool {
	return e.MaxSkipsPerDay >= unlimitedSkips
}

func entitlementsFromPlan(p SubscriptionPlan) Entitlements {
	return Entitlements{
		Plan:               p.PlanName,
		MaxDevices:         p.MaxDevices,
		DownloadAllowed:    p.IsDownloadAllowed,
		MaxSkipsPerDay:     p.MaxSkipsPerDay,
		CanSeek:            p.CanSeekInSongs,
		AudioQuality:       p.AudioQuality,
		CanCreatePlaylists: p.CanCreatePlaylists,
		AdSupported:        p.PlanName == planFree,
	}
}

// freeEntitlements mirrors the seeded free plan row. It is the fallback when
// a user row has no plan reference at all.
func freeEntitlements() Entitlements {
	return Entitlements{
		Plan:           planFree,
		MaxDevices:     1,
		MaxSkipsPerDay: 3,
		AudioQuality:   "standard",
		AdSupported:    true,
	}
}

// resolveEntitlements loads the user's plan row and derives the capability
// set. Users without a plan reference fall back to free.
func (s *Server) resolveEntitlements(ctx context.Context, userID string) (Entitlements, error) {
	var p SubscriptionPlan
	err := s.db.QueryRow(ctx, `
		SELECT sp.id, sp.plan_name, sp.price, sp.max_devices, sp.is_download_allowed,
		       sp.max_skips_per_day, sp.can_seek_in_songs, sp.audio_quality, sp.can_create_playlists
		FROM users u
		JOIN subscription_plans sp ON sp.id = u.subscription_plan_id
		WHERE u.id = $1
	`, userID).Scan(
		&p.ID,
		&p.PlanName,
		&p.Price,
		&p.MaxDevices,
		&p.IsDownloadAllowed,
		&p.MaxSkipsPerDay,
		&p.CanSeekInSongs,
		&p.AudioQuality,
		&p.CanCreatePlaylists,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the user is gone or it has a NULL plan. Distinguish the two.
		var exists bool
		if err := s.db.QueryRow(ctx, `SELECT TRUE FROM users WHERE id = $1`, userID).Scan(&exists); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return Entitlements{}, ErrUserNotFound
			}
			return Entitlements{}, err
		}
		return freeEntitlements(), nil
	}
	if err != nil {
		return Entitlements{}, err
	}
	return entitlementsFromPlan(p), nil
}
