package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Request-ID", r.Header.Get(RequestIDHeader))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	return srv
}

func TestRequestIDTransport(t *testing.T) {
	srv := newEchoServer(t)
	client := &http.Client{Transport: &RequestIDTransport{}}

	tests := []struct {
		name   string
		ctx    context.Context
		header string
		check  func(t *testing.T, seen string)
	}{
		{
			name: "generates v7 id",
			ctx:  context.Background(),
			check: func(t *testing.T, seen string) {
				id, err := uuid.Parse(seen)
				require.NoError(t, err)
				require.Equal(t, uuid.Version(7), id.Version())
			},
		},
		{
			name: "uses id from context",
			ctx:  WithRequestID(context.Background(), "cmd-123"),
			check: func(t *testing.T, seen string) {
				require.Equal(t, "cmd-123", seen)
			},
		},
		{
			name:   "keeps explicit header",
			ctx:    WithRequestID(context.Background(), "cmd-123"),
			header: "explicit",
			check: func(t *testing.T, seen string) {
				require.Equal(t, "explicit", seen)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequestWithContext(tt.ctx, http.MethodGet, srv.URL, nil)
			require.NoError(t, err)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}

			resp, err := client.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			tt.check(t, resp.Header.Get("X-Seen-Request-ID"))
		})
	}
}

func TestRequestIDTransport_DoesNotMutateRequest(t *testing.T) {
	srv := newEchoServer(t)
	client := &http.Client{Transport: &RequestIDTransport{}}

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	require.Empty(t, req.Header.Get(RequestIDHeader))
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	require.Empty(t, RequestIDFromContext(context.Background()))
}
