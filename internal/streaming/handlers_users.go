package streaming

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
)

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(r.Context(), `
		SELECT id, username, email, role, subscription_plan_id, skips_today, last_skip_date, created_at
		FROM users
		ORDER BY created_at DESC
		LIMIT 500
	`)
	if err != nil {
		log.Printf("streaming-service: list users: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		var u User
		if err := rows.Scan(
			&u.ID,
			&u.Username,
			&u.Email,
			&u.Role,
			&u.SubscriptionPlanID,
			&u.SkipsToday,
			&u.LastSkipDate,
			&u.CreatedAt,
		); err != nil {
			log.Printf("streaming-service: list users scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		log.Printf("streaming-service: list users rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	claims, _ := claimsFromContext(r)
	if claims.Role != roleAdmin && claims.UserID != id {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	var u User
	err := s.db.QueryRow(r.Context(), `
		SELECT id, username, email, role, subscription_plan_id, skips_today, last_skip_date, created_at
		FROM users
		WHERE id = $1
	`, id).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.Role,
		&u.SubscriptionPlanID,
		&u.SkipsToday,
		&u.LastSkipDate,
		&u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("streaming-service: get user: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, u)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tag, err := s.db.Exec(r.Context(), `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		log.Printf("streaming-service: delete user: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleUpdateSubscription switches the caller onto another plan.
// PUT /users/subscription/{planId}
func (s *Server) handleUpdateSubscription(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	planID := chi.URLParam(r, "planId")
	if planID == "" {
		writeError(w, http.StatusBadRequest, "missing plan id")
		return
	}

	var exists bool
	err := s.db.QueryRow(r.Context(), `SELECT TRUE FROM subscription_plans WHERE id = $1`, planID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}
	if err != nil {
		log.Printf("streaming-service: update subscription fetch plan: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	tag, err := s.db.Exec(r.Context(), `
		UPDATE users SET subscription_plan_id = $2 WHERE id = $1
	`, userID, planID)
	if err != nil {
		log.Printf("streaming-service: update subscription: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if tag.RowsAffected() == 0 {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	s.publishEvent(r.Context(), map[string]any{
		"type": "subscription.changed",
		"payload": map[string]any{
			"userId": userID,
			"planId": planID,
		},
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "subscription updated",
		"planId":  planID,
	})
}

// handleSkipCount returns today's skip counter, applying the day rollover as
// a read side effect.
// GET /users/skip-count
func (s *Server) handleSkipCount(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	skips, err := s.quota.CheckAndRoll(r.Context(), userID, QuotaDay(time.Now()))
	if errors.Is(err, ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("streaming-service: skip count: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"skipsToday": skips})
}

// handleIncrementSkip bumps today's counter. Kept unconditional for client
// compatibility; the policy-checked path is POST /playback/decide.
// POST /users/increment-skip
func (s *Server) handleIncrementSkip(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	skips, err := s.quota.Increment(r.Context(), userID, QuotaDay(time.Now()))
	if errors.Is(err, ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("streaming-service: increment skip: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"skipsToday": skips})
}
