package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/tmux-util/backend/internal/api"
	"github.com/tmux-util/backend/internal/config"
	"github.com/tmux-util/backend/internal/names"
	"github.com/tmux-util/backend/internal/tmux"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	} else if env := os.Getenv("PORT"); env != "" {
		p, err := strconv.Atoi(env)
		if err != nil {
			log.Fatalf("Invalid PORT value %q: %v", env, err)
		}
		cfg.Server.Port = p
	}

	client := tmux.NewClient(tmux.ShellRunner{})
	nameStore := names.NewStore(cfg.SessionNamesFile)
	server := api.NewServer(cfg, client, nameStore)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("tmux-util service listening on %s", addr)
	if cfg.Access.Enabled {
		log.Printf("VPN access control enabled (%d ranges, %d exact IPs)",
			len(cfg.Access.AllowedRanges), len(cfg.Access.AllowedIPs))
	} else {
		log.Println("VPN access control disabled: all addresses allowed")
	}

	if err := http.ListenAndServe(addr, server.Handler()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
