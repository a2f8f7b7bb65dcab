package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/lead-crm/pkg/logging"
)

func TestLoginHandler(t *testing.T) {
	a := newTestAuthenticator(t, "admin123")
	h := NewHandler(a, logging.New("error"))

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"success", `{"email":"admin@example.com","password":"admin123"}`, http.StatusOK},
		{"wrong password", `{"email":"admin@example.com","password":"nope"}`, http.StatusUnauthorized},
		{"missing password", `{"email":"admin@example.com"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.Login(rec, req)
			require.Equal(t, tt.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			if tt.status == http.StatusOK {
				assert.NotEmpty(t, body["token"])
				assert.Equal(t, "admin@example.com", body["email"])
				_, err := a.Verify(body["token"])
				assert.NoError(t, err)
			} else {
				assert.NotEmpty(t, body["error"])
				assert.Empty(t, body["token"])
			}
		})
	}
}
