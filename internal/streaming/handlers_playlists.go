package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

const playlistColumns = `id, name, playlist_type, is_default, user_id, created_at`

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	rows, err := s.db.Query(r.Context(), `
		SELECT `+playlistColumns+`
		FROM playlists
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		log.Printf("streaming-service: list playlists: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	playlists := []Playlist{}
	for rows.Next() {
		var pl Playlist
		if err := rows.Scan(&pl.ID, &pl.Name, &pl.PlaylistType, &pl.IsDefault, &pl.UserID, &pl.CreatedAt); err != nil {
			log.Printf("streaming-service: list playlists scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		playlists = append(playlists, pl)
	}
	if err := rows.Err(); err != nil {
		log.Printf("streaming-service: list playlists rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, playlists)
}

// handleCreatePlaylist creates a custom playlist, optionally pre-filled with
// an ordered set of media ids. Gated on the plan's playlist capability.
func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	ent, err := s.resolveEntitlements(r.Context(), userID)
	if errors.Is(err, ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("streaming-service: create playlist entitlements: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if !ent.CanCreatePlaylists {
		writeError(w, http.StatusForbidden, "your plan does not allow creating playlists")
		return
	}

	var body struct {
		Name     string   `json:"name"`
		MediaIDs []string `json:"mediaIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" || len(body.Name) > 50 {
		writeError(w, http.StatusBadRequest, "name must be between 1 and 50 characters")
		return
	}

	tx, err := s.db.BeginTx(r.Context(), pgx.TxOptions{})
	if err != nil {
		log.Printf("streaming-service: create playlist begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(r.Context())

	pl, err := scanPlaylist(tx.QueryRow(r.Context(), `
		INSERT INTO playlists (name, playlist_type, user_id)
		VALUES ($1, $2, $3)
		RETURNING `+playlistColumns+`
	`, body.Name, playlistTypeCustom, userID))
	if err != nil {
		log.Printf("streaming-service: create playlist insert: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	for pos, mediaID := range body.MediaIDs {
		if _, err := tx.Exec(r.Context(), `
			INSERT INTO playlist_media (playlist_id, media_id, position)
			VALUES ($1, $2, $3)
		`, pl.ID, mediaID, pos); err != nil {
			log.Printf("streaming-service: create playlist insert media: %v", err)
			writeError(w, http.StatusBadRequest, "invalid media id")
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("streaming-service: create playlist commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(r.Context(), map[string]any{
		"type":    "playlist.created",
		"payload": map[string]any{"playlist": pl},
	})

	writeJSON(w, http.StatusCreated, pl)
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	pl, err := scanPlaylist(s.db.QueryRow(r.Context(), `
		SELECT `+playlistColumns+`
		FROM playlists
		WHERE id = $1
	`, playlistID))
	if errors.Is(err, ErrPlaylistNotFound) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("streaming-service: get playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	claims, _ := claimsFromContext(r)
	if pl.UserID != nil && *pl.UserID != userID && claims.Role != roleAdmin {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	media, err := s.playlistMedia(r.Context(), playlistID)
	if err != nil {
		log.Printf("streaming-service: get playlist media: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"playlist": pl,
		"media":    media,
	})
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	playlistID := chi.URLParam(r, "id")
	if playlistID == "" {
		writeError(w, http.StatusBadRequest, "missing playlist id")
		return
	}

	ownerID, plType, err := s.playlistOwner(r.Context(), playlistID)
	if errors.Is(err, ErrPlaylistNotFound) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("streaming-service: delete playlist fetch: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	claims, _ := claimsFromContext(r)
	if (ownerID == nil || *ownerID != userID) && claims.Role != roleAdmin {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	// The liked playlist is a per-user default; unlike removes its entries.
	if plType == playlistTypeLiked {
		writeError(w, http.StatusBadRequest, "the liked playlist cannot be deleted")
		return
	}

	if _, err := s.db.Exec(r.Context(), `DELETE FROM playlists WHERE id = $1`, playlistID); err != nil {
		log.Printf("streaming-service: delete playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(r.Context(), map[string]any{
		"type":    "playlist.deleted",
		"payload": map[string]any{"playlistId": playlistID},
	})

	w.WriteHeader(http.StatusNoContent)
}

// handleAddMediaToPlaylist appends a media item; adding an item that is
// already in the playlist is a no-op.
// POST /playlists/{id}/media
func (s *Server) handleAddMediaToPlaylist(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	playlistID := chi.URLParam(r, "id")
	var body struct {
		MediaID string `json:"mediaId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.MediaID == "" {
		writeError(w, http.StatusBadRequest, "mediaId is required")
		return
	}

	ownerID, _, err := s.playlistOwner(r.Context(), playlistID)
	if errors.Is(err, ErrPlaylistNotFound) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("streaming-service: add media fetch playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if ownerID == nil || *ownerID != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if err := s.appendToPlaylist(r.Context(), playlistID, body.MediaID); err != nil {
		log.Printf("streaming-service: add media: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleReorderPlaylist destructively rewrites the playlist's membership in
// the exact order given. The delete and re-insert run in one transaction so
// no reader ever observes the emptied playlist.
// PUT /playlists/{id}/reorder
func (s *Server) handleReorderPlaylist(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	playlistID := chi.URLParam(r, "id")
	var body struct {
		MediaIDs []string `json:"mediaIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ownerID, _, err := s.playlistOwner(r.Context(), playlistID)
	if errors.Is(err, ErrPlaylistNotFound) {
		writeError(w, http.StatusNotFound, "playlist not found")
		return
	}
	if err != nil {
		log.Printf("streaming-service: reorder fetch playlist: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if ownerID == nil || *ownerID != userID {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	// Validate the ids against the catalog up front; duplicates are allowed
	// and keep their positions.
	if len(body.MediaIDs) > 0 {
		var known int
		if err := s.db.QueryRow(r.Context(), `
			SELECT COUNT(DISTINCT id) FROM media WHERE id = ANY($1)
		`, body.MediaIDs).Scan(&known); err != nil {
			log.Printf("streaming-service: reorder validate: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		if known != distinctCount(body.MediaIDs) {
			writeError(w, http.StatusBadRequest, "unknown media id in reorder")
			return
		}
	}

	tx, err := s.db.BeginTx(r.Context(), pgx.TxOptions{})
	if err != nil {
		log.Printf("streaming-service: reorder begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(r.Context())

	if _, err := tx.Exec(r.Context(), `
		DELETE FROM playlist_media WHERE playlist_id = $1
	`, playlistID); err != nil {
		log.Printf("streaming-service: reorder delete: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	for pos, mediaID := range body.MediaIDs {
		if _, err := tx.Exec(r.Context(), `
			INSERT INTO playlist_media (playlist_id, media_id, position)
			VALUES ($1, $2, $3)
		`, playlistID, mediaID, pos); err != nil {
			log.Printf("streaming-service: reorder insert: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("streaming-service: reorder commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(r.Context(), map[string]any{
		"type": "playlist.reordered",
		"payload": map[string]any{
			"playlistId": playlistID,
			"count":      len(body.MediaIDs),
		},
	})

	w.WriteHeader(http.StatusNoContent)
}

// GET /playlists/liked-music
func (s *Server) handleGetLikedMusic(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	pl, err := s.getOrCreateLiked(r.Context(), userID)
	if err != nil {
		log.Printf("streaming-service: liked music: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	media, err := s.playlistMedia(r.Context(), pl.ID)
	if err != nil {
		log.Printf("streaming-service: liked music media: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"playlist": pl,
		"media":    media,
	})
}

// POST /playlists/like/{mediaId}
func (s *Server) handleLikeMedia(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	mediaID := chi.URLParam(r, "mediaId")
	if mediaID == "" {
		writeError(w, http.StatusBadRequest, "missing media id")
		return
	}

	pl, err := s.getOrCreateLiked(r.Context(), userID)
	if err != nil {
		log.Printf("streaming-service: like getOrCreateLiked: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if err := s.appendToPlaylist(r.Context(), pl.ID, mediaID); err != nil {
		log.Printf("streaming-service: like insert: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(r.Context(), map[string]any{
		"type": "media.liked",
		"payload": map[string]any{
			"userId":  userID,
			"mediaId": mediaID,
		},
	})

	w.WriteHeader(http.StatusNoContent)
}

// DELETE /playlists/unlike/{mediaId}
func (s *Server) handleUnlikeMedia(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	mediaID := chi.URLParam(r, "mediaId")
	if mediaID == "" {
		writeError(w, http.StatusBadRequest, "missing media id")
		return
	}

	pl, err := s.getOrCreateLiked(r.Context(), userID)
	if err != nil {
		log.Printf("streaming-service: unlike getOrCreateLiked: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	// No-op when the membership is already gone.
	if _, err := s.db.Exec(r.Context(), `
		DELETE FROM playlist_media WHERE playlist_id = $1 AND media_id = $2
	`, pl.ID, mediaID); err != nil {
		log.Printf("streaming-service: unlike delete: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(r.Context(), map[string]any{
		"type": "media.unliked",
		"payload": map[string]any{
			"userId":  userID,
			"mediaId": mediaID,
		},
	})

	w.WriteHeader(http.StatusNoContent)
}

// getOrCreateLiked returns the user's liked-music playlist, creating it on
// first use. The insert races with concurrent requests from other devices of
// the same user; ON CONFLICT DO NOTHING plus the re-select makes the whole
// operation idempotent without ever surfacing the uniqueness violation.
func (s *Server) getOrCreateLiked(ctx context.Context, userID string) (Playlist, error) {
	pl, err := scanPlaylist(s.db.QueryRow(ctx, `
		SELECT `+playlistColumns+`
		FROM playlists
		WHERE user_id = $1 AND playlist_type = $2
	`, userID, playlistTypeLiked))
	if err == nil {
		return pl, nil
	}
	if !errors.Is(err, ErrPlaylistNotFound) {
		return Playlist{}, err
	}

	pl, err = scanPlaylist(s.db.QueryRow(ctx, `
		INSERT INTO playlists (name, playlist_type, is_default, user_id)
		VALUES ('Liked Music', $2, TRUE, $1)
		ON CONFLICT (user_id, playlist_type) WHERE playlist_type = 'liked' DO NOTHING
		RETURNING `+playlistColumns+`
	`, userID, playlistTypeLiked))
	if err == nil {
		return pl, nil
	}
	if errors.Is(err, ErrPlaylistNotFound) {
		// A concurrent creator won the insert; take its row.
		return scanPlaylist(s.db.QueryRow(ctx, `
			SELECT `+playlistColumns+`
			FROM playlists
			WHERE user_id = $1 AND playlist_type = $2
		`, userID, playlistTypeLiked))
	}
	return Playlist{}, err
}

// appendToPlaylist inserts the media at the tail position unless it is
// already a member. The membership guard sits on the outer select: an
// aggregate over zero rows still yields one row, so a guard inside the
// aggregate subquery would not stop the insert.
func (s *Server) appendToPlaylist(ctx context.Context, playlistID, mediaID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO playlist_media (playlist_id, media_id, position)
		SELECT $1, $2, next_pos
		FROM (
			SELECT COALESCE(MAX(position) + 1, 0) AS next_pos
			FROM playlist_media
			WHERE playlist_id = $1
		) t
		WHERE NOT EXISTS (
			SELECT 1 FROM playlist_media WHERE playlist_id = $1 AND media_id = $2
		)
	`, playlistID, mediaID)
	return err
}

// playlistMedia returns the playlist's media rows in stored order.
func (s *Server) playlistMedia(ctx context.Context, playlistID string) ([]Media, error) {
	rows, err := s.db.Query(ctx, `
		SELECT m.id, m.title, m.media_type, m.url, m.duration_minutes, m.genre, m.release_date,
		       m.composer, m.album, m.description, m.language, m.creator_id, m.created_at
		FROM playlist_media pm
		JOIN media m ON m.id = pm.media_id
		WHERE pm.playlist_id = $1
		ORDER BY pm.position ASC
	`, playlistID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	media := []Media{}
	for rows.Next() {
		var m Media
		if err := rows.Scan(
			&m.ID,
			&m.Title,
			&m.MediaType,
			&m.URL,
			&m.DurationMinutes,
			&m.Genre,
			&m.ReleaseDate,
			&m.Composer,
			&m.Album,
			&m.Description,
			&m.Language,
			&m.CreatorID,
			&m.CreatedAt,
		); err != nil {
			return nil, err
		}
		media = append(media, m)
	}
	return media, rows.Err()
}

func distinctCount(ids []string) int {
	seen := map[string]struct{}{}
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return len(seen)
}
