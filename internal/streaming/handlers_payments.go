package streaming

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const paymentColumns = `id, user_id, subscription_plan_id, amount, payment_date, status, transaction_id`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.SubscriptionPlanID,
		&p.Amount,
		&p.PaymentDate,
		&p.Status,
		&p.TransactionID,
	)
	return p, err
}

// handleCreatePayment records a payment for the calling user. A payment that
// arrives as "success" switches the user onto the paid plan in the same
// transaction, so a crash between the two writes can never leave a paid-for
// plan unapplied.
// POST /payments
func (s *Server) handleCreatePayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body struct {
		SubscriptionPlanID string  `json:"subscriptionPlanId"`
		Amount             float64 `json:"amount"`
		Status             string  `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.SubscriptionPlanID == "" {
		writeError(w, http.StatusBadRequest, "subscriptionPlanId is required")
		return
	}
	if body.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}
	if body.Status == "" {
		body.Status = paymentStatusPending
	}
	if !validPaymentStatus(body.Status) {
		writeError(w, http.StatusBadRequest, "invalid payment status")
		return
	}

	var planExists bool
	if err := s.db.QueryRow(r.Context(), `
		SELECT EXISTS(SELECT 1 FROM subscription_plans WHERE id = $1)
	`, body.SubscriptionPlanID).Scan(&planExists); err != nil {
		log.Printf("streaming-service: create payment plan check: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if !planExists {
		writeError(w, http.StatusNotFound, "plan not found")
		return
	}

	tx, err := s.db.BeginTx(r.Context(), pgx.TxOptions{})
	if err != nil {
		log.Printf("streaming-service: create payment begin tx: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer tx.Rollback(r.Context())

	p, err := scanPayment(tx.QueryRow(r.Context(), `
		INSERT INTO payments (user_id, subscription_plan_id, amount, status, transaction_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+paymentColumns+`
	`, userID, body.SubscriptionPlanID, body.Amount, body.Status, uuid.NewString()))
	if err != nil {
		log.Printf("streaming-service: create payment insert: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	if p.Status == paymentStatusSuccess {
		if _, err := tx.Exec(r.Context(), `
			UPDATE users SET subscription_plan_id = $2 WHERE id = $1
		`, userID, body.SubscriptionPlanID); err != nil {
			log.Printf("streaming-service: create payment plan switch: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("streaming-service: create payment commit: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(r.Context(), map[string]any{
		"type":    "payment.recorded",
		"payload": map[string]any{"payment": p},
	})

	writeJSON(w, http.StatusCreated, p)
}

// GET /payments/{id} (admin)
func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "id")
	if paymentID == "" {
		writeError(w, http.StatusBadRequest, "missing payment id")
		return
	}

	p, err := scanPayment(s.db.QueryRow(r.Context(), `
		SELECT `+paymentColumns+` FROM payments WHERE id = $1
	`, paymentID))
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "payment not found")
		return
	}
	if err != nil {
		log.Printf("streaming-service: get payment: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, p)
}

// GET /payments (admin)
func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query(r.Context(), `
		SELECT `+paymentColumns+`
		FROM payments
		ORDER BY payment_date DESC
	`)
	if err != nil {
		log.Printf("streaming-service: list payments: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	payments := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			log.Printf("streaming-service: list payments scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		log.Printf("streaming-service: list payments rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, payments)
}

// GET /payments/user/{userId}. Callers may read their own history; admins
// may read anyone's.
func (s *Server) handleUserPayments(w http.ResponseWriter, r *http.Request) {
	callerID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	targetID := chi.URLParam(r, "userId")
	claims, _ := claimsFromContext(r)
	if targetID != callerID && claims.Role != roleAdmin {
		writeError(w, http.StatusForbidden, "forbidden")
		return
	}

	rows, err := s.db.Query(r.Context(), `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE user_id = $1
		ORDER BY payment_date DESC
	`, targetID)
	if err != nil {
		log.Printf("streaming-service: user payments: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	defer rows.Close()

	payments := []Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			log.Printf("streaming-service: user payments scan: %v", err)
			writeError(w, http.StatusInternalServerError, "database error")
			return
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		log.Printf("streaming-service: user payments rows: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, payments)
}
