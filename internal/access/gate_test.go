package access

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tmux-util/backend/internal/config"
)

func testGateConfig() config.AccessConfig {
	return config.AccessConfig{
		Enabled:       true,
		AllowedRanges: []string{"10.0.0.0/8"},
		Messages: config.Messages{
			AccessDenied: "Access denied. VPN connection required.",
			VPNRequired:  "This service is only accessible through VPN.",
		},
	}
}

func TestGateAllowsInRangeAddress(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/tmux/sessions", nil)
	req.RemoteAddr = "10.1.2.3:54321"
	rec := httptest.NewRecorder()

	NewGate(testGateConfig()).Middleware(next).ServeHTTP(rec, req)

	if !called {
		t.Fatal("handler not reached for allowed address")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestGateDeniesOutOfRangeAddress(t *testing.T) {
	next := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler reached for denied address")
	})

	req := httptest.NewRequest(http.MethodGet, "/tmux/sessions", nil)
	req.RemoteAddr = "8.8.8.8:443"
	rec := httptest.NewRecorder()

	NewGate(testGateConfig()).Middleware(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}

	var body struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding denial body: %v", err)
	}
	if body.Success {
		t.Error("denial body success = true, want false")
	}
	if body.Error != "Access denied. VPN connection required." {
		t.Errorf("denial error = %q", body.Error)
	}
	if body.Message != "This service is only accessible through VPN." {
		t.Errorf("denial message = %q", body.Message)
	}
}

func TestGatePrefersForwardedFor(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// Socket peer would be allowed, but the proxy says the real client
	// is outside the range.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	req.Header.Set("X-Forwarded-For", "8.8.8.8, 10.0.0.1")
	rec := httptest.NewRecorder()

	NewGate(testGateConfig()).Middleware(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 for forwarded client", rec.Code)
	}
}

func TestClientIPFallbacks(t *testing.T) {
	tests := []struct {
		remoteAddr string
		forwarded  string
		want       string
	}{
		{"10.1.2.3:80", "", "10.1.2.3"},
		{"[::1]:8080", "", "::1"},
		{"plain-addr", "", "plain-addr"},
		{"10.1.2.3:80", "192.168.1.5", "192.168.1.5"},
		{"10.1.2.3:80", " 192.168.1.5 , 8.8.8.8", "192.168.1.5"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if tt.forwarded != "" {
			req.Header.Set("X-Forwarded-For", tt.forwarded)
		}
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(remote=%q fwd=%q) = %q, want %q", tt.remoteAddr, tt.forwarded, got, tt.want)
		}
	}
}
