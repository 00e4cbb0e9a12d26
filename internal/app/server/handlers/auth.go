package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/A8-Moke/SignalR/internal/platform/authn"
	"github.com/A8-Moke/SignalR/pkg/logging"
)

// AuthHandler issues demo bearer tokens. Real identity verification (OTP,
// password, SSO) is the transport's concern and out of scope here; this
// exists only so the /ws endpoint has something to gate on.
type AuthHandler struct {
	tokenSvc *authn.TokenService
}

func NewAuthHandler(tokenSvc *authn.TokenService) *AuthHandler {
	return &AuthHandler{tokenSvc: tokenSvc}
}

func (h *AuthHandler) IssueToken(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	token, err := h.tokenSvc.IssueToken(req.UserID)
	if err != nil {
		log.ErrorContext(r.Context(), "auth handler - issue token failed", slog.String("user_id", req.UserID), logging.Err(err))
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"token": token, "user_id": req.UserID})
}
