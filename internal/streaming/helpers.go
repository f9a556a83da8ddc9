package streaming

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/jackc/pgx/v5"
)

// publishEvent pushes a best-effort JSON event onto the broadcast channel.
// Failures are logged, never surfaced.
func (s *Server) publishEvent(ctx context.Context, event map[string]any) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("streaming-service: marshal event: %v", err)
		return
	}
	if err := s.rdb.Publish(ctx, "broadcast", string(data)).Err(); err != nil {
		log.Printf("streaming-service: publish event: %v", err)
	}
}

func (s *Server) playlistOwner(ctx context.Context, playlistID string) (ownerID *string, playlistType string, err error) {
	err = s.db.QueryRow(ctx, `
		SELECT user_id, playlist_type
		FROM playlists
		WHERE id = $1
	`, playlistID).Scan(&ownerID, &playlistType)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrPlaylistNotFound
	}
	return ownerID, playlistType, err
}

func scanPlaylist(row pgx.Row) (Playlist, error) {
	var pl Playlist
	err := row.Scan(
		&pl.ID,
		&pl.Name,
		&pl.PlaylistType,
		&pl.IsDefault,
		&pl.UserID,
		&pl.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Playlist{}, ErrPlaylistNotFound
	}
	return pl, err
}

func scanMedia(row pgx.Row) (Media, error) {
	var m Media
	err := row.Scan(
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
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Media{}, ErrMediaNotFound
	}
	return m, err
}

const mediaColumns = `id, title, media_type, url, duration_minutes, genre, release_date,
       composer, album, description, language, creator_id, created_at`
