package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/stockdash/internal/core"
	"github.com/JonMunkholm/stockdash/internal/credentials"
)

type fakeVerifier map[string]credentials.Credential

func (f fakeVerifier) Verify(token string) (credentials.Credential, error) {
	c, ok := f[token]
	if !ok {
		return credentials.Credential{}, credentials.ErrInvalidToken
	}
	return c, nil
}

func TestSessionAuth(t *testing.T) {
	tokens := fakeVerifier{"good": {Email: "ana@example.com"}}

	var gotActor string
	var gotCred credentials.Credential
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotActor = core.ActorFromContext(r.Context())
		gotCred, _ = CredentialFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name      string
		enabled   bool
		setup     func(r *http.Request)
		wantCode  int
		wantActor string
	}{
		{name: "disabled", enabled: false, setup: func(*http.Request) {}, wantCode: http.StatusOK},
		{name: "missing", enabled: true, setup: func(*http.Request) {}, wantCode: http.StatusUnauthorized},
		{
			name:    "cookie",
			enabled: true,
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: "session", Value: "good"})
			},
			wantCode:  http.StatusOK,
			wantActor: "ana@example.com",
		},
		{
			name:    "bearer",
			enabled: true,
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer good")
			},
			wantCode:  http.StatusOK,
			wantActor: "ana@example.com",
		},
		{
			name:    "invalid",
			enabled: true,
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer forged")
			},
			wantCode: http.StatusUnauthorized,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotActor, gotCred = "", credentials.Credential{}
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tt.setup(req)
			rec := httptest.NewRecorder()

			SessionAuth(tokens, "session", tt.enabled)(next).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, tt.wantActor, gotActor)
			assert.Equal(t, tt.wantActor, gotCred.Email)
		})
	}
}

func TestTrustedRealIP(t *testing.T) {
	tests := []struct {
		name       string
		trusted    []string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "untrusted source keeps remote addr",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "203.0.113.5:4000",
			headers:    map[string]string{"X-Real-IP": "1.1.1.1"},
			want:       "203.0.113.5:4000",
		},
		{
			name:       "trusted proxy real ip",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			want:       "198.51.100.7",
		},
		{
			name:       "trusted proxy forwarded for",
			trusted:    []string{"10.1.2.3"},
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7, 10.1.2.3"},
			want:       "198.51.100.7",
		},
		{
			name:       "forwarded for skips trusted hops",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Forwarded-For": "1.1.1.1, 198.51.100.7, 10.9.9.9"},
			want:       "198.51.100.7",
		},
		{
			name:       "no trusted proxies",
			trusted:    nil,
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Real-IP": "198.51.100.7"},
			want:       "10.1.2.3:4000",
		},
		{
			name:       "invalid header ignored",
			trusted:    []string{"10.0.0.0/8"},
			remoteAddr: "10.1.2.3:4000",
			headers:    map[string]string{"X-Real-IP": "not-an-ip"},
			want:       "10.1.2.3:4000",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := TrustedRealIP(tt.trusted)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = r.RemoteAddr
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLogger_CapturesStatus(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	ww := &responseWriter{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	_, err := ww.Write([]byte("abc"))
	require.NoError(t, err)
	assert.True(t, ww.wroteHeader)
	assert.Equal(t, 3, ww.bytes)
}
