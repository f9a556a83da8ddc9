package streaming

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

const planColumns = `id, plan_name, price, max_devices, is_download_allowed,
       max_skips_per_day, can_seek_in_songs, audio_quality, can_create_playlists`

func scanPlan(row pgx.Row) (SubscriptionPlan, error) {
	var p SubscriptionPlan
	err := row.Scan(
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
	return p, err
}

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(r.Context(), `
		SELECT `+planColumns+`
		FROM subscription_plans
		ORDER BY price ASC
	`)
	if err != nil {
		log.Printf("streaming-service: list plans: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	plans := []SubscriptionPlan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			log.Printf("streaming-service: list plans scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		log.Printf("streaming-service: list plans rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, plans)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")
	if planID == "" {
		writeError(w, http.StatusBadRequest, "missing plan id")
		return
	}

	p, err := scanPlan(s.db.QueryRow(r.Context(), `
		SELECT `+planColumns+` FROM subscription_plans WHERE id = $1
	`, planID))
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}
	if err != nil {
		log.Printf("streaming-service: get plan: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

type planRequest struct {
	PlanName           string  `json:"planName"`
	Price              float64 `json:"price"`
	MaxDevices         int     `json:"maxDevices"`
	IsDownloadAllowed  bool    `json:"isDownloadAllowed"`
	MaxSkipsPerDay     int     `json:"maxSkipsPerDay"`
	CanSeekInSongs     bool    `json:"canSeekInSongs"`
	AudioQuality       string  `json:"audioQuality"`
	CanCreatePlaylists bool    `json:"canCreatePlaylists"`
}

func (pr *planRequest) validate() string {
	pr.PlanName = strings.ToLower(strings.TrimSpace(pr.PlanName))
	if pr.PlanName == "" {
		return "planName is required"
	}
	if pr.Price < 0 {
		return "price must not be negative"
	}
	if pr.MaxDevices < 1 {
		return "maxDevices must be at least 1"
	}
	if pr.MaxSkipsPerDay < 0 {
		return "maxSkipsPerDay must not be negative"
	}
	if pr.AudioQuality == "" {
		pr.AudioQuality = "standard"
	}
	return ""
}

// POST /plans (admin)
func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	var body planRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg := body.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	p, err := scanPlan(s.db.QueryRow(r.Context(), `
		INSERT INTO subscription_plans
			(plan_name, price, max_devices, is_download_allowed, max_skips_per_day,
			 can_seek_in_songs, audio_quality, can_create_playlists)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+planColumns+`
	`,
		body.PlanName, body.Price, body.MaxDevices, body.IsDownloadAllowed,
		body.MaxSkipsPerDay, body.CanSeekInSongs, body.AudioQuality, body.CanCreatePlaylists,
	))
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			writeError(w, http.StatusConflict, "plan name already exists")
			return
		}
		log.Printf("streaming-service: create plan: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

// PUT /plans/{id} (admin)
func (s *Server) handleUpdatePlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")
	if planID == "" {
		writeError(w, http.StatusBadRequest, "missing plan id")
		return
	}

	var body planRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if msg := body.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	p, err := scanPlan(s.db.QueryRow(r.Context(), `
		UPDATE subscription_plans
		SET plan_name = $2, price = $3, max_devices = $4, is_download_allowed = $5,
		    max_skips_per_day = $6, can_seek_in_songs = $7, audio_quality = $8,
		    can_create_playlists = $9
		WHERE id = $1
		RETURNING `+planColumns+`
	`,
		planID, body.PlanName, body.Price, body.MaxDevices, body.IsDownloadAllowed,
		body.MaxSkipsPerDay, body.CanSeekInSongs, body.AudioQuality, body.CanCreatePlaylists,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}
	if err != nil {
		log.Printf("streaming-service: update plan: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(r.Context(), map[string]any{
		"type":    "plan.updated",
		"payload": map[string]any{"plan": p},
	})

	writeJSON(w, http.StatusOK, p)
}

// DELETE /plans/{id} (admin). Users on the plan drop to the free fallback
// through the ON DELETE SET NULL on users.subscription_plan_id.
func (s *Server) handleDeletePlan(w http.ResponseWriter, r *http.Request) {
	planID := chi.URLParam(r, "id")
	if planID == "" {
		writeError(w, http.StatusBadRequest, "missing plan id")
		return
	}

	tag, err := s.db.Exec(r.Context(), `DELETE FROM subscription_plans WHERE id = $1`, planID)
	if err != nil {
		log.Printf("streaming-service: delete plan: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
