package streaming

import (
	"time"
)

// User is an account row. SkipsToday is only meaningful relative to
// LastSkipDate: if LastSkipDate is not the current quota day, the counter
// is logically zero and gets reset on first access (see quota.go).
type User struct {
	ID                 string     `json:"id"`
	Username           string     `json:"username"`
	Email              string     `json:"email"`
	PasswordHash       string     `json:"-"`
	Role               string     `json:"role"` // "user" | "creator" | "admin"
	SubscriptionPlanID *string    `json:"subscriptionPlanId,omitempty"`
	SkipsToday         int        `json:"skipsToday"`
	LastSkipDate       *time.Time `json:"lastSkipDate,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

// SubscriptionPlan is immutable reference data created at provisioning time
// and mutated only by administrative update.
type SubscriptionPlan struct {
	ID                 string  `json:"id"`
	PlanName           string  `json:"planName"` // "free" | "premium" | "family" | "student"
	Price              float64 `json:"price"`
	MaxDevices         int     `json:"maxDevices"`
	IsDownloadAllowed  bool    `json:"isDownloadAllowed"`
	MaxSkipsPerDay     int     `json:"maxSkipsPerDay"`
	CanSeekInSongs     bool    `json:"canSeekInSongs"`
	AudioQuality       string  `json:"audioQuality"`
	CanCreatePlaylists bool    `json:"canCreatePlaylists"`
}

// Media is a catalog item. The thumbnail blob is stored in the row but never
// serialized with the metadata; clients fetch it from /media/{id}/thumbnail.
type Media struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	MediaType       string     `json:"mediaType"` // "music" | "video" | "podcast" | "audiobook"
	URL             string     `json:"url"`
	DurationMinutes int        `json:"durationInMinutes"`
	Genre           string     `json:"genre,omitempty"`
	ReleaseDate     *time.Time `json:"releaseDate,omitempty"`
	Composer        string     `json:"composer,omitempty"`
	Album           string     `json:"album,omitempty"`
	Description     string     `json:"description,omitempty"`
	Language        string     `json:"language,omitempty"`
	CreatorID       *string    `json:"creatorId,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
}

// Playlist metadata; membership is modelled separately in playlist_media,
// keyed (playlist_id, position) with 0-based positions.
type Playlist struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	PlaylistType string    `json:"playlistType"` // "custom" | "liked"
	IsDefault    bool      `json:"isDefault"`
	UserID       *string   `json:"userId,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Payment is an append-mostly ledger row. A "success" payment switches the
// user onto the paid plan in the same transaction.
type Payment struct {
	ID                 string    `json:"id"`
	UserID             string    `json:"userId"`
	SubscriptionPlanID string    `json:"subscriptionPlanId"`
	Amount             float64   `json:"amount"`
	PaymentDate        time.Time `json:"paymentDate"`
	Status             string    `json:"status"` // "success" | "failed" | "pending"
	TransactionID      string    `json:"transactionId,omitempty"`
}

const (
	roleUser    = "user"
	roleCreator = "creator"
	roleAdmin   = "admin"
)

const (
	planFree    = "free"
	planPremium = "premium"
	planFamily  = "family"
	planStudent = "student"
)

const (
	mediaTypeMusic     = "music"
	mediaTypeVideo     = "video"
	mediaTypePodcast   = "podcast"
	mediaTypeAudioBook = "audiobook"
)

const (
	playlistTypeCustom = "custom"
	playlistTypeLiked  = "liked"
)

const (
	paymentStatusSuccess = "success"
	paymentStatusFailed  = "failed"
	paymentStatusPending = "pending"
)

func validRole(r string) bool {
	return r == roleUser || r == roleCreator || r == roleAdmin
}

func validMediaType(t string) bool {
	switch t {
	case mediaTypeMusic, mediaTypeVideo, mediaTypePodcast, mediaTypeAudioBook:
		return true
	}
	return false
}

func validPaymentStatus(s string) bool {
	switch s {
	case paymentStatusSuccess, paymentStatusFailed, paymentStatusPending:
		return true
	}
	return false
}
