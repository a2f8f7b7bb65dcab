package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/lead-crm/pkg/logging"
)

// maxBodyBytes caps request bodies accepted by the lead endpoints.
const maxBodyBytes = 1 << 20

// SubmissionGuard decides whether a public submission from email may proceed.
type SubmissionGuard interface {
	AllowSubmission(ctx context.Context, email string) bool
}

// Handler handles HTTP requests for leads
type Handler struct {
	service *LeadService
	guard   SubmissionGuard
	logger  *logging.Logger
}

// NewHandler creates a new leads handler. guard may be nil.
func NewHandler(service *LeadService, guard SubmissionGuard, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service: service,
		guard:   guard,
		logger:  logger.Component("lead_handler"),
	}
}

// DeleteResponse confirms a deletion.
type DeleteResponse struct {
	Deleted bool   `json:"deleted"`
	ID      string `json:"id"`
}

// Submit handles POST /api/leads (public intake form).
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req CreateLeadRequest
	if !h.decode(w, r, &req) {
		return
	}
	// Rejected input must not spend the sender's submission quota.
	in, err := normalizeNewLead(req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if h.guard != nil && !h.guard.AllowSubmission(r.Context(), in.Email) {
		jsonError(w, http.StatusTooManyRequests, "too many submissions, please try again later")
		return
	}
	lead, err := h.service.SubmitLead(r.Context(), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

// List handles GET /api/leads?search=&status=&source=
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := Filter{
		Search: strings.TrimSpace(q.Get("search")),
		Source: strings.TrimSpace(q.Get("source")),
	}
	if raw := strings.TrimSpace(q.Get("status")); raw != "" {
		status, err := ParseStatus(raw)
		if err != nil {
			h.writeError(w, err)
			return
		}
		filter.Status = status
	}

	leads, err := h.service.ListLeads(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leads)
}

// Get handles GET /api/leads/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	lead, err := h.service.GetLead(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// Update handles PUT and PATCH /api/leads/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateLeadRequest
	if !h.decode(w, r, &req) {
		return
	}
	lead, err := h.service.UpdateLead(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

// Delete handles DELETE /api/leads/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.service.DeleteLead(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteResponse{Deleted: true, ID: id})
}

// AddNote handles POST /api/leads/{id}/notes
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req AddNoteRequest
	if !h.decode(w, r, &req) {
		return
	}
	lead, err := h.service.AddNote(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, lead)
}

// ListNotes handles GET /api/leads/{id}/notes
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := h.service.ListNotes(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// Summary handles GET /api/leads/summary
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.Summary(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		h.logger.Warn("failed to decode request", "error", err)
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case IsValidation(err):
		jsonError(w, http.StatusBadRequest, err.Error())
	case IsNotFound(err):
		jsonError(w, http.StatusNotFound, "lead not found")
	default:
		h.logger.Error("lead request failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func jsonError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
