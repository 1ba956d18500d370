package access

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/tmux-util/backend/internal/config"
)

// Gate wraps an http.Handler and rejects requests whose client address
// fails the policy before the handler runs.
type Gate struct {
	policy *Policy
	cfg    config.AccessConfig
}

func NewGate(cfg config.AccessConfig) *Gate {
	return &Gate{
		policy: NewPolicy(cfg),
		cfg:    cfg,
	}
}

type denialBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		if g.cfg.LogAccessAttempts {
			log.Printf("Access attempt from IP: %s", ip)
		}

		if !g.policy.Allowed(ip) {
			if g.cfg.LogDeniedAccess {
				log.Printf("Access denied for IP: %s", ip)
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(denialBody{
				Success: false,
				Error:   g.cfg.Messages.AccessDenied,
				Message: g.cfg.Messages.VPNRequired,
			})
			return
		}

		if g.cfg.LogAccessAttempts {
			log.Printf("Access granted for IP: %s", ip)
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP extracts the client address, preferring the first entry of a
// proxy-supplied X-Forwarded-For header over the raw socket peer.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
