package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Ashifo7/StudyBuddy/internal/metrics"
)

// RegisterRequest represents the registration request body.
type RegisterRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// RegisterResponse represents the registration response. The token is the
// session credential for authenticated endpoints and the channel
// handshake; key material is generated client-side afterwards.
type RegisterResponse struct {
	ID         string `json:"id"`
	Token      string `json:"token"`
	ProfileURL string `json:"profile_url"`
}

// Register handles user registration.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := sanitizeName(req.Name)
	if name == "" {
		h.Error(w, http.StatusBadRequest, "name is required")
		return
	}
	if !isValidEmail(req.Email) {
		h.Error(w, http.StatusBadRequest, "invalid email format")
		return
	}

	user, err := h.db.CreateUser(r.Context(), name, req.Email)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	sessionToken, err := h.tokens.Issue(user.ID)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	metrics.UsersRegistered.Inc()

	h.JSON(w, http.StatusCreated, RegisterResponse{
		ID:         user.ID.String(),
		Token:      sessionToken,
		ProfileURL: fmt.Sprintf("/users/%s", user.ID.String()),
	})
}
