package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server           ServerConfig  `yaml:"server"`
	Access           AccessConfig  `yaml:"access"`
	Monitor          MonitorConfig `yaml:"monitor"`
	SessionNamesFile string        `yaml:"session_names_file"`
}

type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// AccessConfig is the VPN access-control policy. Read once at startup,
// never mutated afterwards.
type AccessConfig struct {
	Enabled           bool     `yaml:"enabled"`
	AllowedRanges     []string `yaml:"allowed_ranges"`
	AllowedIPs        []string `yaml:"allowed_ips"`
	LogAccessAttempts bool     `yaml:"log_access_attempts"`
	LogDeniedAccess   bool     `yaml:"log_denied_access"`
	Messages          Messages `yaml:"messages"`
}

type Messages struct {
	AccessDenied string `yaml:"access_denied"`
	VPNRequired  string `yaml:"vpn_required"`
	InvalidIP    string `yaml:"invalid_ip"`
}

type MonitorConfig struct {
	// PollInterval is how often each pane stream re-captures its pane.
	PollInterval time.Duration `yaml:"poll_interval"`
}

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3000,
			Host: "0.0.0.0",
		},
		Access: AccessConfig{
			Enabled: true,
			AllowedRanges: []string{
				"10.0.0.0/8",
				"172.16.0.0/12",
				"192.168.0.0/16",
			},
			LogAccessAttempts: true,
			LogDeniedAccess:   true,
			Messages: Messages{
				AccessDenied: "Access denied. VPN connection required.",
				VPNRequired:  "This service is only accessible through VPN.",
				InvalidIP:    "Invalid IP address detected.",
			},
		},
		Monitor: MonitorConfig{
			PollInterval: time.Second,
		},
		SessionNamesFile: "config/session-names.json",
	}
}

// Load reads the YAML config at path on top of the built-in defaults.
// A missing file is not an error: the defaults are returned as-is.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
