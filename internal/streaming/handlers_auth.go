package streaming

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

type Credentials struct {
	Username string `json:"username,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	email := strings.TrimSpace(strings.ToLower(creds.Email))
	username := strings.TrimSpace(creds.Username)
	if email == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if len(username) < 3 || len(username) > 50 {
		writeError(w, http.StatusBadRequest, "username must be between 3 and 50 characters")
		return
	}
	if len(creds.Password) < 6 {
		writeError(w, http.StatusBadRequest, "password must be at least 6 characters")
		return
	}

	role := creds.Role
	if role == "" {
		role = roleUser
	}
	// Admin accounts are provisioned out of band, never via self-signup.
	if !validRole(role) || role == roleAdmin {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("streaming-service: register hash: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	// New accounts start on the free plan.
	var user User
	err = s.db.QueryRow(r.Context(), `
		INSERT INTO users (username, email, password_hash, role, subscription_plan_id)
		VALUES ($1, $2, $3, $4, (SELECT id FROM subscription_plans WHERE plan_name = 'free'))
		RETURNING id, username, email, role, subscription_plan_id, skips_today, last_skip_date, created_at
	`, username, email, string(hash), role).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Role,
		&user.SubscriptionPlanID,
		&user.SkipsToday,
		&user.LastSkipDate,
		&user.CreatedAt,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "duplicate key") {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		log.Printf("streaming-service: register insert: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		log.Printf("streaming-service: register issueTokens: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, tokens)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	email := strings.TrimSpace(strings.ToLower(creds.Email))
	if email == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	var user User
	err := s.db.QueryRow(r.Context(), `
		SELECT id, username, email, password_hash, role, subscription_plan_id, skips_today, last_skip_date, created_at
		FROM users
		WHERE email = $1
	`, email).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.SubscriptionPlanID,
		&user.SkipsToday,
		&user.LastSkipDate,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		log.Printf("streaming-service: login fetch user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		log.Printf("streaming-service: login issueTokens: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refreshToken is required")
		return
	}

	claims, err := s.parseToken(body.RefreshToken, "refresh")
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	// Re-read the user so a plan or role change since issuance is reflected
	// in the new claims.
	var user User
	err = s.db.QueryRow(r.Context(), `
		SELECT id, username, email, role, subscription_plan_id, skips_today, last_skip_date, created_at
		FROM users
		WHERE id = $1
	`, claims.UserID).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Role,
		&user.SubscriptionPlanID,
		&user.SkipsToday,
		&user.LastSkipDate,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusUnauthorized, "user no longer exists")
		return
	}
	if err != nil {
		log.Printf("streaming-service: refresh fetch user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	tokens, err := s.issueTokens(user)
	if err != nil {
		log.Printf("streaming-service: refresh issueTokens: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var user User
	err := s.db.QueryRow(r.Context(), `
		SELECT id, username, email, role, subscription_plan_id, skips_today, last_skip_date, created_at
		FROM users
		WHERE id = $1
	`, userID).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Role,
		&user.SubscriptionPlanID,
		&user.SkipsToday,
		&user.LastSkipDate,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("streaming-service: me fetch user: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	ent, err := s.resolveEntitlements(r.Context(), userID)
	if err != nil {
		log.Printf("streaming-service: me entitlements: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"user":         user,
		"entitlements": ent,
	})
}
