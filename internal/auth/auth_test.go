package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func newTestRouter(apiKey string, role string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/")
	group.Use(APIKeyMiddleware(apiKey))
	group.Use(PrincipalMiddleware())
	if role != "" {
		group.Use(RequireRole(role))
	}
	group.GET("/ping", func(c *gin.Context) {
		p, _ := FromContext(c)
		c.JSON(http.StatusOK, gin.H{"email": p.Email, "role": p.Role})
	})
	return r
}

func doRequest(r *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAPIKeyMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		headers  map[string]string
		expected int
	}{
		{
			"disabled when no key configured",
			"",
			map[string]string{"X-User-Email": "a@b.c", "X-User-Role": "attendee"},
			http.StatusOK,
		},
		{
			"missing key",
			"secret",
			map[string]string{"X-User-Email": "a@b.c", "X-User-Role": "attendee"},
			http.StatusUnauthorized,
		},
		{
			"wrong key",
			"secret",
			map[string]string{"X-API-Key": "wrong", "X-User-Email": "a@b.c", "X-User-Role": "attendee"},
			http.StatusForbidden,
		},
		{
			"correct key",
			"secret",
			map[string]string{"X-API-Key": "secret", "X-User-Email": "a@b.c", "X-User-Role": "attendee"},
			http.StatusOK,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(newTestRouter(tc.key, ""), tc.headers)
			if w.Code != tc.expected {
				t.Errorf("status = %d; want %d", w.Code, tc.expected)
			}
		})
	}
}

func TestPrincipalMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		headers  map[string]string
		expected int
	}{
		{"no identity headers", nil, http.StatusUnauthorized},
		{"missing role", map[string]string{"X-User-Email": "a@b.c"}, http.StatusUnauthorized},
		{"unknown role", map[string]string{"X-User-Email": "a@b.c", "X-User-Role": "admin"}, http.StatusUnauthorized},
		{"organizer", map[string]string{"X-User-Email": "a@b.c", "X-User-Role": "organizer"}, http.StatusOK},
		{"attendee", map[string]string{"X-User-Email": "a@b.c", "X-User-Role": "attendee"}, http.StatusOK},
		{"role is case-insensitive", map[string]string{"X-User-Email": "a@b.c", "X-User-Role": "Organizer"}, http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := doRequest(newTestRouter("", ""), tc.headers)
			if w.Code != tc.expected {
				t.Errorf("status = %d; want %d", w.Code, tc.expected)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	r := newTestRouter("", RoleOrganizer)

	w := doRequest(r, map[string]string{"X-User-Email": "a@b.c", "X-User-Role": "attendee"})
	if w.Code != http.StatusForbidden {
		t.Errorf("attendee hitting organizer route: status = %d; want 403", w.Code)
	}

	w = doRequest(r, map[string]string{"X-User-Email": "a@b.c", "X-User-Role": "organizer"})
	if w.Code != http.StatusOK {
		t.Errorf("organizer hitting organizer route: status = %d; want 200", w.Code)
	}
}

func TestPrincipalEmailNormalized(t *testing.T) {
	r := newTestRouter("", "")
	w := doRequest(r, map[string]string{"X-User-Email": " Hana@Example.COM ", "X-User-Role": "attendee"})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; want 200", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, `"email":"hana@example.com"`) {
		t.Errorf("body = %s; want lowercased trimmed email", body)
	}
}
