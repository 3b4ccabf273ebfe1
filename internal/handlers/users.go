package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Ashifo7/StudyBuddy/internal/api/middleware"
	"github.com/Ashifo7/StudyBuddy/internal/crypto"
	"github.com/Ashifo7/StudyBuddy/internal/metrics"
)

// UserResponse represents a user profile response.
type UserResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	PublicKey string `json:"public_key,omitempty"`
	JoinedAt  string `json:"joined_at"`
}

// GetUser handles user profile lookup.
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")

	id, err := uuid.Parse(idStr)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}

	user, err := h.db.GetUserByID(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}

	h.JSON(w, http.StatusOK, UserResponse{
		ID:        user.ID.String(),
		Name:      user.Name,
		Email:     user.Email,
		PublicKey: user.PublicKey,
		JoinedAt:  user.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

// SetPublicKeyRequest represents the public-key publish request body.
type SetPublicKeyRequest struct {
	PublicKey string `json:"publicKey"`
}

// SetPublicKey publishes the authenticated user's public key to the
// directory. Clients call this once when they first generate a keypair.
func (h *Handler) SetPublicKey(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req SetPublicKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.PublicKey == "" {
		h.Error(w, http.StatusBadRequest, "publicKey is required")
		return
	}
	if _, err := crypto.ValidatePublicKey(req.PublicKey); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid publicKey: must be a base64-encoded PKIX RSA public key (2048+ bits)")
		return
	}

	if err := h.db.SetPublicKey(r.Context(), user.ID, req.PublicKey); err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to store public key")
		return
	}

	metrics.KeysPublished.Inc()

	h.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

// PublicKeyResponse represents the directory lookup response.
type PublicKeyResponse struct {
	UserID    string `json:"userId"`
	PublicKey string `json:"publicKey"`
}

// GetPublicKey handles directory lookups of another user's public key.
// 404 means the user exists but has not published a key yet.
func (h *Handler) GetPublicKey(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")

	id, err := uuid.Parse(idStr)
	if err != nil {
		h.Error(w, http.StatusBadRequest, "invalid user ID format")
		return
	}

	user, err := h.db.GetUserByID(r.Context(), id)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "database error")
		return
	}
	if user == nil {
		h.Error(w, http.StatusNotFound, "user not found")
		return
	}
	if user.PublicKey == "" {
		h.Error(w, http.StatusNotFound, "user has not published a public key")
		return
	}

	h.JSON(w, http.StatusOK, PublicKeyResponse{
		UserID:    user.ID.String(),
		PublicKey: user.PublicKey,
	})
}
