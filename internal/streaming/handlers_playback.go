package streaming

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// handlePlaybackDecide evaluates one transport action against the caller's
// entitlements and skip quota. Denials are decisions, not HTTP errors: the
// response is 200 with allowed=false and a denyReason for the client toast.
// POST /playback/decide
func (s *Server) handlePlaybackDecide(w http.ResponseWriter, r *http.Request) {
	userID, ok := userIDFromContext(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var action Action
	if err := json.NewDecoder(r.Body).Decode(&action); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	switch action.Kind {
	case ActionSeek, ActionNaturalEnd:
	case ActionSkip:
		if action.Direction != DirectionNext && action.Direction != DirectionPrev {
			writeError(w, http.StatusBadRequest, "direction must be \"next\" or \"prev\"")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}

	ent, err := s.resolveEntitlements(r.Context(), userID)
	if errors.Is(err, ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("streaming-service: decide entitlements: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	decision, err := s.engine.Decide(r.Context(), userID, action, ent)
	if err != nil {
		log.Printf("streaming-service: decide: %v", err)
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	s.publishEvent(r.Context(), map[string]any{
		"type": "player.decision",
		"payload": map[string]any{
			"userId":   userID,
			"action":   action.Kind,
			"decision": decision,
		},
	})

	writeJSON(w, http.StatusOK, decision)
}
