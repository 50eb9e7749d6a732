package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/reportctl/internal/models"
	"github.com/wolfeidau/reportctl/internal/session"
	"golang.org/x/oauth2"
)

type recorded struct {
	method    string
	path      string
	rawPath   string
	auth      string
	requestID string
	body      map[string]any
}

type backend struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	requests []recorded
	handlers map[string]http.HandlerFunc
}

func newBackend(t *testing.T) *backend {
	t.Helper()

	b := &backend{t: t, handlers: make(map[string]http.HandlerFunc)}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recorded{
			method:    r.Method,
			path:      r.URL.Path,
			rawPath:   r.URL.EscapedPath(),
			auth:      r.Header.Get("Authorization"),
			requestID: r.Header.Get("X-Request-ID"),
		}
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, &rec.body))
		}

		b.mu.Lock()
		b.requests = append(b.requests, rec)
		h, ok := b.handlers[r.Method+" "+r.URL.Path]
		b.mu.Unlock()

		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{"detail": "Not Found"})
			return
		}
		h(w, r)
	}))
	t.Cleanup(b.srv.Close)

	return b
}

func (b *backend) handle(pattern string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[pattern] = h
}

func (b *backend) last() recorded {
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(b.t, b.requests)
	return b.requests[len(b.requests)-1]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(status int, v any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, status, v)
	}
}

func newTestClient(t *testing.T, b *backend, opts ...Option) *Client {
	t.Helper()

	c, err := NewClient(Config{ServerURL: b.srv.URL + "/"}, opts...)
	require.NoError(t, err)
	return c
}

func TestNewClient_InvalidURL(t *testing.T) {
	_, err := NewClient(Config{ServerURL: "localhost:8000"})
	require.Error(t, err)

	_, err = NewClient(Config{ServerURL: "ftp://example.com"})
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	b := newBackend(t)
	b.handle("POST /api/v1/auth/login", respond(http.StatusOK, map[string]any{
		"access_token": "tok-1",
		"token_type":   "bearer",
		"expires_in":   1800,
	}))

	bundle, err := newTestClient(t, b).Login(context.Background(), "jane@example.com", "pw")
	require.NoError(t, err)
	require.Equal(t, &models.TokenBundle{AccessToken: "tok-1", TokenType: "bearer", ExpiresIn: 1800}, bundle)

	req := b.last()
	require.Equal(t, "jane@example.com", req.body["email"])
	require.Equal(t, "pw", req.body["password"])
	require.Empty(t, req.auth)
	require.NotEmpty(t, req.requestID)
}

func TestLogin_Rejected(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		target error
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   map[string]any{"detail": "Incorrect email or password"},
			target: ErrInvalidCredentials,
		},
		{
			name:   "inactive user",
			status: http.StatusBadRequest,
			body:   map[string]any{"detail": "Inactive user"},
			target: ErrInvalidCredentials,
		},
		{
			name:   "validation error",
			status: http.StatusUnprocessableEntity,
			body:   map[string]any{"detail": []map[string]any{{"loc": []string{"body", "email"}, "msg": "value is not a valid email address"}}},
			target: ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t)
			b.handle("POST /api/v1/auth/login", respond(tt.status, tt.body))

			_, err := newTestClient(t, b).Login(context.Background(), "jane@example.com", "wrong")
			require.ErrorIs(t, err, tt.target)
			// the backend detail never reaches the caller
			require.Equal(t, "invalid email or password", err.Error())
		})
	}
}

func TestLogin_ServerError(t *testing.T) {
	b := newBackend(t)
	b.handle("POST /api/v1/auth/login", respond(http.StatusInternalServerError, map[string]any{"detail": "db down"}))

	_, err := newTestClient(t, b).Login(context.Background(), "jane@example.com", "pw")
	require.NotErrorIs(t, err, ErrInvalidCredentials)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	require.Equal(t, "db down", apiErr.Detail)
	require.Equal(t, DefaultMessages[500], apiErr.Message)
}

func TestMeAndVerifyUseExplicitBearer(t *testing.T) {
	b := newBackend(t)
	claims := map[string]any{
		"id":        "user-1",
		"email":     "jane@example.com",
		"full_name": "Jane",
		"role":      "admin",
		"is_active": true,
	}
	b.handle("GET /api/v1/auth/me", respond(http.StatusOK, claims))
	b.handle("POST /api/v1/auth/verify", respond(http.StatusOK, claims))

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "from-source"})
	c := newTestClient(t, b, WithTokenSource(ts))

	me, err := c.Me(context.Background(), "explicit")
	require.NoError(t, err)
	require.Equal(t, "user-1", me.SubjectID)
	require.Equal(t, "Jane", me.Name())
	require.True(t, me.IsAdmin())
	require.Equal(t, "Bearer explicit", b.last().auth)

	_, err = c.Verify(context.Background(), "explicit-2")
	require.NoError(t, err)
	require.Equal(t, http.MethodPost, b.last().method)
	require.Equal(t, "Bearer explicit-2", b.last().auth)
}

func TestVerify_Failure(t *testing.T) {
	b := newBackend(t)
	b.handle("POST /api/v1/auth/verify", respond(http.StatusUnauthorized, map[string]any{"detail": "Could not validate credentials"}))

	_, err := newTestClient(t, b).Verify(context.Background(), "stale")
	require.Equal(t, http.StatusUnauthorized, StatusCode(err))
}

func TestAnalyses(t *testing.T) {
	b := newBackend(t)
	b.handle("GET /api/v1/reporting_analysis/file/file F", respond(http.StatusOK, map[string]any{
		"analyses": []map[string]any{
			{"id": "a-1", "file_id": "file F", "status": "in_progress", "created_at": "2026-03-01T09:00:00"},
			{"id": "a-2", "file_id": "file F", "status": "completed", "created_at": "2026-03-01T08:00:00"},
		},
		"total": 2,
	}))
	b.handle("POST /api/v1/reporting_analysis/", respond(http.StatusCreated, map[string]any{
		"id": "a-3", "file_id": "file F", "status": "pending", "created_at": "2026-03-01T09:05:00",
	}))
	b.handle("DELETE /api/v1/reporting_analysis/a-3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-1", TokenType: "bearer"})
	c := newTestClient(t, b, WithTokenSource(ts))
	ctx := context.Background()

	list, err := c.ListAnalyses(ctx, "file F")
	require.NoError(t, err)
	require.Equal(t, 2, list.Total)
	require.Equal(t, models.AnalysisStatusInProgress, list.Analyses[0].Status)
	require.Equal(t, "/api/v1/reporting_analysis/file/file%20F", b.last().rawPath)
	require.Equal(t, "Bearer tok-1", b.last().auth)

	created, err := c.CreateAnalysis(ctx, "file F", map[string]any{"period": "2025-Q4"})
	require.NoError(t, err)
	require.Equal(t, "a-3", created.ID)
	require.Equal(t, "file F", b.last().body["file_id"])
	require.Equal(t, map[string]any{"period": "2025-Q4"}, b.last().body["parameters"])

	require.NoError(t, c.DeleteAnalysis(ctx, "a-3"))
	require.Equal(t, http.MethodDelete, b.last().method)
}

func TestAnalyses_RequireIDs(t *testing.T) {
	b := newBackend(t)
	c := newTestClient(t, b, WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "x"})))

	_, err := c.ListAnalyses(context.Background(), "")
	require.Error(t, err)
	_, err = c.CreateAnalysis(context.Background(), "", nil)
	require.Error(t, err)
	require.Error(t, c.DeleteAnalysis(context.Background(), ""))
}

func TestAnalyses_NoTokenSource(t *testing.T) {
	b := newBackend(t)

	_, err := newTestClient(t, b).ListAnalyses(context.Background(), "file-F")
	require.ErrorIs(t, err, ErrNoTokenSource)
}

type failingSource struct{ err error }

func (f failingSource) Token() (*oauth2.Token, error) { return nil, f.err }

func TestAnalyses_TokenSourceErrorPropagates(t *testing.T) {
	b := newBackend(t)
	c := newTestClient(t, b, WithTokenSource(failingSource{err: session.ErrSessionErrored}))

	_, err := c.ListAnalyses(context.Background(), "file-F")
	require.ErrorIs(t, err, session.ErrSessionErrored)

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Empty(t, b.requests)
}

func TestMessages(t *testing.T) {
	b := newBackend(t)
	b.handle("GET /api/v1/reporting_analysis/file/file-F", respond(529, map[string]any{"detail": "overloaded"}))

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "x"})
	c := newTestClient(t, b, WithTokenSource(ts), WithMessages(map[int]string{529: "Busy, try later."}))

	_, err := c.ListAnalyses(context.Background(), "file-F")
	require.EqualError(t, err, "Busy, try later.")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "HTTP 529: Busy, try later. (overloaded)", apiErr.Verbose())

	// unmapped status and untouched defaults
	require.Equal(t, fallbackMessage, c.Message(418))
	require.Equal(t, DefaultMessages[404], c.Message(404))
}

func TestUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{ServerURL: url})
	require.NoError(t, err)

	_, err = c.Me(context.Background(), "x")
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestCancelledContext(t *testing.T) {
	b := newBackend(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(t, b).Me(ctx, "x")
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, errors.Is(err, ErrUnavailable))
}

func TestUnexpectedResponse(t *testing.T) {
	b := newBackend(t)
	b.handle("GET /api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway</html>"))
	})

	_, err := newTestClient(t, b).Me(context.Background(), "x")
	require.ErrorIs(t, err, ErrUnexpectedResponse)
}

func TestParseDetail(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected string
	}{
		{
			name:     "string detail",
			body:     `{"detail":"Analysis not found"}`,
			expected: "Analysis not found",
		},
		{
			name:     "validation list",
			body:     `{"detail":[{"loc":["body","file_id"],"msg":"field required"},{"loc":[],"msg":"bad"}]}`,
			expected: "file_id: field required; bad",
		},
		{
			name:     "object detail",
			body:     `{"detail":{"code":7}}`,
			expected: `{"code":7}`,
		},
		{
			name:     "plain text",
			body:     "Bad Gateway\n",
			expected: "Bad Gateway",
		},
		{
			name:     "empty",
			body:     "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseDetail([]byte(tt.body)))
		})
	}
}
