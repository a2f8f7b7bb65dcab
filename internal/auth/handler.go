package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wolfman30/lead-crm/pkg/logging"
)

// LoginRequest is the admin login payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token string `json:"token"`
	Email string `json:"email"`
}

// Handler serves the login endpoint.
type Handler struct {
	auth   *Authenticator
	logger *logging.Logger
}

func NewHandler(a *Authenticator, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{auth: a, logger: logger.Component("auth_handler")}
}

// Login handles POST /api/auth/login
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, ErrMissingCredentials):
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	case errors.Is(err, ErrInvalidCredentials):
		h.logger.Warn("admin login rejected", "remote_ip", r.RemoteAddr)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	case err != nil:
		h.logger.Error("admin login failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("admin logged in", "email", token.Email)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(LoginResponse{Token: token.Value, Email: token.Email})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
