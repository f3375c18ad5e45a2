package middleware

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// uuidRegex matches UUID v4 format.
var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestRequestID(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{name: "generates ID when none provided", incoming: ""},
		{name: "uses provided UUID", incoming: "550e8400-e29b-41d4-a716-446655440000", keep: true},
		{name: "accepts custom trace format", incoming: "my-trace-id_12345", keep: true},
		{name: "replaces unsafe characters", incoming: "invalid<script>alert('xss')</script>"},
		{name: "replaces overlong value", incoming: strings.Repeat("a", requestIDMaxLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var capturedID string
			handler := RequestID()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				capturedID = GetRequestID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/feedback", nil)
			if tt.incoming != "" {
				req.Header.Set(HeaderXRequestID, tt.incoming)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			responseID := rec.Header().Get(HeaderXRequestID)
			assert.Equal(t, responseID, capturedID)
			if tt.keep {
				assert.Equal(t, tt.incoming, responseID)
				return
			}
			assert.NotEqual(t, tt.incoming, responseID)
			assert.True(t, uuidRegex.MatchString(responseID), "expected UUID format, got: %s", responseID)
		})
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, GetRequestID(req.Context()))
	assert.Empty(t, GetClientIP(req.Context()))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{
			name:       "remote address with port",
			remoteAddr: "192.168.1.1:12345",
			want:       "192.168.1.1",
		},
		{
			name:       "remote address without port",
			remoteAddr: "192.168.1.1",
			want:       "192.168.1.1",
		},
		{
			name:       "IPv6 remote address",
			remoteAddr: "[2001:db8::1]:12345",
			want:       "2001:db8::1",
		},
		{
			name:       "forwarding headers ignored when untrusted",
			remoteAddr: "192.168.1.1:12345",
			headers:    map[string]string{HeaderXForwardedFor: "203.0.113.195"},
			want:       "192.168.1.1",
		},
		{
			name:       "leftmost X-Forwarded-For when trusted",
			trustProxy: true,
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{HeaderXForwardedFor: "203.0.113.195, 70.41.3.18"},
			want:       "203.0.113.195",
		},
		{
			name:       "X-Real-IP when X-Forwarded-For is blank",
			trustProxy: true,
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{HeaderXForwardedFor: "  ", HeaderXRealIP: "203.0.113.100"},
			want:       "203.0.113.100",
		},
		{
			name:       "remote address when both headers are blank",
			trustProxy: true,
			remoteAddr: "10.0.0.1:80",
			headers:    map[string]string{HeaderXForwardedFor: "  "},
			want:       "10.0.0.1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured string
			handler := ClientIP(tt.trustProxy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured = GetClientIP(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}

			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, captured)
		})
	}
}
