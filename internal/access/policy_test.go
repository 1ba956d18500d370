package access

import (
	"testing"

	"github.com/tmux-util/backend/internal/config"
)

func testPolicy(enabled bool, ranges, ips []string) *Policy {
	return NewPolicy(config.AccessConfig{
		Enabled:       enabled,
		AllowedRanges: ranges,
		AllowedIPs:    ips,
	})
}

func TestDisabledPolicyAllowsEverything(t *testing.T) {
	p := testPolicy(false, nil, nil)

	for _, addr := range []string{"8.8.8.8", "not-an-ip", "", "10.0.0.1", "::ffff:1.2.3.4"} {
		if !p.Allowed(addr) {
			t.Errorf("Allowed(%q) = false with disabled policy, want true", addr)
		}
	}
}

func TestLoopbackAlwaysAllowed(t *testing.T) {
	p := testPolicy(true, nil, nil)

	for _, addr := range []string{"127.0.0.1", "::1", "localhost"} {
		if !p.Allowed(addr) {
			t.Errorf("Allowed(%q) = false, want true", addr)
		}
	}
}

func TestExactIPs(t *testing.T) {
	p := testPolicy(true, nil, []string{"203.0.113.9"})

	if !p.Allowed("203.0.113.9") {
		t.Error("Allowed(203.0.113.9) = false, want true")
	}
	if p.Allowed("203.0.113.10") {
		t.Error("Allowed(203.0.113.10) = true, want false")
	}
}

func TestExactRangeEntry(t *testing.T) {
	// A range entry without a slash is an exact address.
	p := testPolicy(true, []string{"198.51.100.7"}, nil)

	if !p.Allowed("198.51.100.7") {
		t.Error("Allowed(198.51.100.7) = false, want true")
	}
	if p.Allowed("198.51.100.8") {
		t.Error("Allowed(198.51.100.8) = true, want false")
	}
}

func TestCIDRMatching(t *testing.T) {
	tests := []struct {
		name  string
		rule  string
		addr  string
		allow bool
	}{
		{"slash8 inside", "10.0.0.0/8", "10.255.3.4", true},
		{"slash8 outside", "10.0.0.0/8", "11.0.0.1", false},
		{"slash16 inside", "192.168.0.0/16", "192.168.9.9", true},
		{"slash16 outside", "192.168.0.0/16", "192.169.0.1", false},
		{"slash24 inside", "203.0.113.0/24", "203.0.113.200", true},
		{"slash24 outside", "203.0.113.0/24", "203.0.114.1", false},
		// /12 falls in the [8,16) bucket: only the first octet is compared.
		{"slash12 octet-coarse", "172.16.0.0/12", "172.200.0.1", true},
		{"slash12 outside first octet", "172.16.0.0/12", "173.16.0.1", false},
		// Prefixes shorter than /8 match unconditionally.
		{"slash0 matches all", "0.0.0.0/0", "8.8.8.8", true},
		{"slash7 matches all", "12.0.0.0/7", "200.1.2.3", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testPolicy(true, []string{tt.rule}, nil)
			if got := p.Allowed(tt.addr); got != tt.allow {
				t.Errorf("rule %s: Allowed(%s) = %v, want %v", tt.rule, tt.addr, got, tt.allow)
			}
		})
	}
}

func TestMalformedAddressesDenied(t *testing.T) {
	p := testPolicy(true, []string{"10.0.0.0/8"}, nil)

	for _, addr := range []string{"", "garbage", "10.0.0", "10.0.0.0.0", "10.0.0.x", "256.1.1.1", "::ffff:10.0.0.1"} {
		if p.Allowed(addr) {
			t.Errorf("Allowed(%q) = true, want false", addr)
		}
	}
}

func TestMalformedAddressStillMatchesExactRule(t *testing.T) {
	p := testPolicy(true, nil, []string{"fe80::1"})

	if !p.Allowed("fe80::1") {
		t.Error("Allowed(fe80::1) = false, want true via exact rule")
	}
}

func TestUnparseableCIDRNeverOverMatches(t *testing.T) {
	p := testPolicy(true, []string{"10.0.0.0/abc", "bad/8"}, nil)

	if p.Allowed("10.1.2.3") {
		t.Error("unparseable CIDR entry matched a range, want exact-only")
	}
	if !p.Allowed("10.0.0.0/abc") {
		t.Error("unparseable entry should still exact-match its literal form")
	}
}
