package leads

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lead-crm/pkg/logging"
)

type countingGuard struct {
	limit int
	seen  map[string]int
}

func (g *countingGuard) AllowSubmission(ctx context.Context, email string) bool {
	g.seen[email]++
	return g.seen[email] <= g.limit
}

func newTestRouter(t *testing.T) http.Handler {
	return newGuardedRouter(t, nil)
}

func newGuardedRouter(t *testing.T, guard SubmissionGuard) http.Handler {
	t.Helper()
	svc, _ := newTestService(t)
	h := NewHandler(svc, guard, logging.New("error"))

	r := chi.NewRouter()
	r.Post("/api/leads", h.Submit)
	r.Get("/api/leads", h.List)
	r.Get("/api/leads/summary", h.Summary)
	r.Get("/api/leads/{id}", h.Get)
	r.Put("/api/leads/{id}", h.Update)
	r.Patch("/api/leads/{id}", h.Update)
	r.Delete("/api/leads/{id}", h.Delete)
	r.Post("/api/leads/{id}/notes", h.AddNote)
	r.Get("/api/leads/{id}/notes", h.ListNotes)
	return r
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeLead(t *testing.T, rec *httptest.ResponseRecorder) Lead {
	t.Helper()
	var lead Lead
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&lead))
	return lead
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}

func TestHandler_SubmitAndGet(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/leads", `{"name":"Ada","email":"ada@example.com","note":"hi"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	raw := rec.Body.Bytes()
	var shape map[string]any
	require.NoError(t, json.Unmarshal(raw, &shape))
	for _, key := range []string{"id", "name", "email", "phone", "source", "status", "notes", "createdAt", "updatedAt"} {
		assert.Contains(t, shape, key)
	}

	var created Lead
	require.NoError(t, json.Unmarshal(raw, &created))
	assert.Equal(t, StatusNew, created.Status)

	rec = doJSON(t, router, http.MethodGet, "/api/leads/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeLead(t, rec)
	assert.Equal(t, created.ID, got.ID)
	require.Len(t, got.Notes, 1)
}

func TestHandler_SubmitValidationAndBadBody(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/leads", `{"email":"ada@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "name: is required", errorMessage(t, rec))

	rec = doJSON(t, router, http.MethodPost, "/api/leads", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", errorMessage(t, rec))
}

func TestHandler_RejectsOversizedBody(t *testing.T) {
	router := newTestRouter(t)
	huge := `{"name":"Ada","email":"ada@example.com","note":"` + strings.Repeat("x", maxBodyBytes) + `"}`

	req := httptest.NewRequest(http.MethodPost, "/api/leads", bytes.NewBufferString(huge))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandler_ListFilters(t *testing.T) {
	router := newTestRouter(t)
	doJSON(t, router, http.MethodPost, "/api/leads", `{"name":"Ada","email":"ada@example.com","source":"ads"}`)
	doJSON(t, router, http.MethodPost, "/api/leads", `{"name":"Grace","email":"grace@example.com"}`)

	rec := doJSON(t, router, http.MethodGet, "/api/leads", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []Lead
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	assert.Len(t, all, 2)

	rec = doJSON(t, router, http.MethodGet, "/api/leads?source=ads&search=ADA", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var filtered []Lead
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&filtered))
	require.Len(t, filtered, 1)
	assert.Equal(t, "Ada", filtered[0].Name)

	rec = doJSON(t, router, http.MethodGet, "/api/leads?search=nobody", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = doJSON(t, router, http.MethodGet, "/api/leads?status=lost", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_UpdateDeleteAndNotes(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/api/leads", `{"name":"Ada","email":"ada@example.com"}`)
	created := decodeLead(t, rec)
	path := "/api/leads/" + created.ID

	rec = doJSON(t, router, http.MethodPatch, path, `{"status":"contacted","note":"called"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeLead(t, rec)
	assert.Equal(t, StatusContacted, updated.Status)
	require.Len(t, updated.Notes, 1)

	rec = doJSON(t, router, http.MethodPut, path, `{"status":"bogus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPut, path, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodPost, path+"/notes", `{"text":"sent pricing"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	withNote := decodeLead(t, rec)
	assert.Len(t, withNote.Notes, 2)

	rec = doJSON(t, router, http.MethodPost, path+"/notes", `{"text":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, path+"/notes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var notes []Note
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&notes))
	require.Len(t, notes, 2)
	assert.Equal(t, "called", notes[0].Text)

	rec = doJSON(t, router, http.MethodDelete, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var del DeleteResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&del))
	assert.True(t, del.Deleted)
	assert.Equal(t, created.ID, del.ID)

	rec = doJSON(t, router, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "lead not found", errorMessage(t, rec))

	rec = doJSON(t, router, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandler_Summary(t *testing.T) {
	router := newTestRouter(t)
	rec := doJSON(t, router, http.MethodPost, "/api/leads", `{"name":"Ada","email":"ada@example.com"}`)
	created := decodeLead(t, rec)
	doJSON(t, router, http.MethodPatch, "/api/leads/"+created.ID, `{"status":"converted"}`)

	rec = doJSON(t, router, http.MethodGet, "/api/leads/summary", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(1), body["converted"])
	assert.Equal(t, float64(100), body["conversionRate"])
	assert.Equal(t, map[string]any{"website": float64(1)}, body["bySource"])
}

func TestHandler_SubmitGuardRejects(t *testing.T) {
	router := newGuardedRouter(t, &countingGuard{limit: 1, seen: map[string]int{}})
	body := `{"name":"Ada","email":"ada@example.com"}`

	rec := doJSON(t, router, http.MethodPost, "/api/leads", body)
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/leads", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/leads", "")
	var all []Lead
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&all))
	assert.Len(t, all, 1)
}

func TestHandler_SubmitInvalidDoesNotSpendQuota(t *testing.T) {
	guard := &countingGuard{limit: 1, seen: map[string]int{}}
	router := newGuardedRouter(t, guard)

	rec := doJSON(t, router, http.MethodPost, "/api/leads", `{"email":"ada@example.com"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = doJSON(t, router, http.MethodPost, "/api/leads", `{"name":"Ada","email":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, guard.seen)

	rec = doJSON(t, router, http.MethodPost, "/api/leads", `{"name":"Ada","email":" ada@example.com "}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, map[string]int{"ada@example.com": 1}, guard.seen)
}
