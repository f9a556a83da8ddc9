package streaming

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// 2 MB, same ceiling as the thumbnail column is expected to hold.
const maxThumbnailBytes = 2 << 20

// handleListMedia lists catalog items, optionally filtered by type, genre
// and a case-insensitive title/composer/album search.
// GET /media?type=music&genre=rock&q=moonlight
func (s *Server) handleListMedia(w http.ResponseWriter, r *http.Request) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE 1=1`
	args := []any{}

	if t := r.URL.Query().Get("type"); t != "" {
		if !validMediaType(t) {
			writeError(w, http.StatusBadRequest, "invalid media type")
			return
		}
		args = append(args, t)
		query += ` AND media_type = $` + strconv.Itoa(len(args))
	}
	if g := r.URL.Query().Get("genre"); g != "" {
		args = append(args, g)
		query += ` AND genre ILIKE $` + strconv.Itoa(len(args))
	}
	if q := r.URL.Query().Get("q"); q != "" {
		args = append(args, "%"+q+"%")
		n := strconv.Itoa(len(args))
		query += ` AND (title ILIKE $` + n + ` OR composer ILIKE $` + n + ` OR album ILIKE $` + n + `)`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(r.Context(), query, args...)
	if err != nil {
		log.Printf("streaming-service: list media: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
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
			log.Printf("streaming-service: list media scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		media = append(media, m)
	}
	if err := rows.Err(); err != nil {
		log.Printf("streaming-service: list media rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, media)
}

// handleUploadMedia registers a catalog item from a multipart form. The
// thumbnail part is optional; everything else travels as form values so the
// endpoint works from plain HTML forms.
// POST /media
func (s *Server) handleUploadMedia(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	claims, _ := claimsFromContext(r)
	if claims.Role != roleCreator && claims.Role != roleAdmin {
		writeError(w, http.StatusForbidden, "only creators can upload media")
		return
	}

	if err := r.ParseMultipartForm(maxThumbnailBytes + 1<<20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	mediaType := r.FormValue("mediaType")
	mediaURL := strings.TrimSpace(r.FormValue("url"))
	if title == "" || mediaURL == "" {
		writeError(w, http.StatusBadRequest, "title and url are required")
		return
	}
	if !validMediaType(mediaType) {
		writeError(w, http.StatusBadRequest, "invalid media type")
		return
	}

	duration := 0
	if v := r.FormValue("durationInMinutes"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 0 {
			writeError(w, http.StatusBadRequest, "durationInMinutes must be a non-negative integer")
			return
		}
		duration = d
	}

	var releaseDate *time.Time
	if v := r.FormValue("releaseDate"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "releaseDate must be YYYY-MM-DD")
			return
		}
		releaseDate = &t
	}

	var thumbnail []byte
	if file, header, err := r.FormFile("thumbnail"); err == nil {
		defer file.Close()
		if header.Size > maxThumbnailBytes {
			writeError(w, http.StatusBadRequest, "thumbnail exceeds 2MB")
			return
		}
		thumbnail, err = io.ReadAll(io.LimitReader(file, maxThumbnailBytes))
		if err != nil {
			log.Printf("streaming-service: upload media read thumbnail: %v", err)
			writeError(w, http.StatusInternalServerError, "failed to read thumbnail")
			return
		}
	}

	m, err := scanMedia(s.db.QueryRow(r.Context(), `
		INSERT INTO media (title, media_type, url, duration_minutes, genre, release_date,
		                   composer, album, description, language, thumbnail, creator_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+mediaColumns+`
	`,
		title,
		mediaType,
		mediaURL,
		duration,
		r.FormValue("genre"),
		releaseDate,
		r.FormValue("composer"),
		r.FormValue("album"),
		r.FormValue("description"),
		r.FormValue("language"),
		thumbnail,
		userID,
	))
	if err != nil {
		log.Printf("streaming-service: upload media insert: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(r.Context(), map[string]any{
		"type":    "media.uploaded",
		"payload": map[string]any{"media": m},
	})

	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleGetMedia(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "id")
	if mediaID == "" {
		writeError(w, http.StatusBadRequest, "missing media id")
		return
	}

	m, err := scanMedia(s.db.QueryRow(r.Context(), `
		SELECT `+mediaColumns+` FROM media WHERE id = $1
	`, mediaID))
	if errors.Is(err, ErrMediaNotFound) {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}
	if err != nil {
		log.Printf("streaming-service: get media: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, m)
}

// handleMediaThumbnail serves the raw thumbnail blob. 404 covers both a
// missing row and a row without a thumbnail.
// GET /media/{id}/thumbnail
func (s *Server) handleMediaThumbnail(w http.ResponseWriter, r *http.Request) {
	mediaID := chi.URLParam(r, "id")
	if mediaID == "" {
		writeError(w, http.StatusBadRequest, "missing media id")
		return
	}

	var thumbnail []byte
	err := s.db.QueryRow(r.Context(), `
		SELECT thumbnail FROM media WHERE id = $1
	`, mediaID).Scan(&thumbnail)
	if err != nil {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}
	if len(thumbnail) == 0 {
		writeError(w, http.StatusNotFound, "no thumbnail")
		return
	}

	w.Header().Set("Content-Type", http.DetectContentType(thumbnail))
	w.Header().Set("Cache-Control", "public, max-age=86400")
	w.WriteHeader(http.StatusOK)
	w.Write(thumbnail)
}

// handleDeleteMedia removes a catalog item. Only the uploader or an admin
// may delete; playlist memberships cascade away with the row.
func (s *Server) handleDeleteMedia(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	mediaID := chi.URLParam(r, "id")
	if mediaID == "" {
		writeError(w, http.StatusBadRequest, "missing media id")
		return
	}

	var creatorID *string
	err := s.db.QueryRow(r.Context(), `
		SELECT creator_id FROM media WHERE id = $1
	`, mediaID).Scan(&creatorID)
	if err != nil {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}

	claims, _ := claimsFromContext(r)
	if (creatorID == nil || *creatorID != userID) && claims.Role != roleAdmin {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	if _, err := s.db.Exec(r.Context(), `DELETE FROM media WHERE id = $1`, mediaID); err != nil {
		log.Printf("streaming-service: delete media: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(r.Context(), map[string]any{
		"type":    "media.deleted",
		"payload": map[string]any{"mediaId": mediaID},
	})

	w.WriteHeader(http.StatusNoContent)
}
