// Package access implements the IP-based gate that fronts every endpoint.
// A request is classified against a static allow policy (exact addresses,
// CIDR ranges, loopback aliases) before any handler runs.
package access

import (
	"strconv"
	"strings"

	"github.com/tmux-util/backend/internal/config"
)

// cidrRule is a pre-parsed CIDR allow rule. Matching is done on octet
// boundaries only: /24 and longer compare the first three octets, /16..
// /23 the first two, /8../15 the first one, and anything shorter than
// /8 matches every address. This is coarser than true prefix masking
// but matches the deployed behavior this service replaces.
type cidrRule struct {
	octets [4]int
	prefix int
}

// Policy is an immutable allow policy. Safe for unsynchronized
// concurrent use once built.
type Policy struct {
	enabled bool
	exact   map[string]bool
	cidrs   []cidrRule
}

// NewPolicy builds a Policy from configuration. Entries in AllowedRanges
// without a "/" are treated as exact addresses; unparseable CIDR entries
// are kept as exact-match strings so they can never over-match.
func NewPolicy(cfg config.AccessConfig) *Policy {
	p := &Policy{
		enabled: cfg.Enabled,
		exact:   make(map[string]bool),
	}

	for _, ip := range cfg.AllowedIPs {
		if ip = strings.TrimSpace(ip); ip != "" {
			p.exact[ip] = true
		}
	}

	for _, entry := range cfg.AllowedRanges {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if !strings.Contains(entry, "/") {
			p.exact[entry] = true
			continue
		}
		base, prefixStr, _ := strings.Cut(entry, "/")
		prefix, err := strconv.Atoi(prefixStr)
		if err != nil {
			p.exact[entry] = true
			continue
		}
		octets, ok := parseOctets(base)
		if !ok {
			p.exact[entry] = true
			continue
		}
		p.cidrs = append(p.cidrs, cidrRule{octets: octets, prefix: prefix})
	}

	return p
}

// Allowed reports whether addr passes the policy. Pure function of its
// inputs; malformed addresses never panic, they simply fail every range
// rule and are denied unless an exact or loopback rule matched first.
func (p *Policy) Allowed(addr string) bool {
	if !p.enabled {
		return true
	}

	if isLoopback(addr) {
		return true
	}

	if p.exact[addr] {
		return true
	}

	octets, ok := parseOctets(addr)
	if !ok {
		return false
	}

	for _, rule := range p.cidrs {
		if rule.matches(octets) {
			return true
		}
	}
	return false
}

func (r cidrRule) matches(octets [4]int) bool {
	switch {
	case r.prefix >= 24:
		return octets[0] == r.octets[0] && octets[1] == r.octets[1] && octets[2] == r.octets[2]
	case r.prefix >= 16:
		return octets[0] == r.octets[0] && octets[1] == r.octets[1]
	case r.prefix >= 8:
		return octets[0] == r.octets[0]
	default:
		return true
	}
}

func isLoopback(addr string) bool {
	return addr == "127.0.0.1" || addr == "::1" || addr == "localhost"
}

// parseOctets parses a dotted-quad IPv4 address. Returns ok=false for
// anything else (IPv6, hostnames, junk).
func parseOctets(addr string) ([4]int, bool) {
	var octets [4]int
	parts := strings.Split(addr, ".")
	if len(parts) != 4 {
		return octets, false
	}
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return octets, false
		}
		octets[i] = n
	}
	return octets, true
}
