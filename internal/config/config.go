package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	ListenAddr string
	WSAddr     string
	StatusAddr string

	// WSOrigins lists extra browser origins allowed on the WebSocket listener.
	WSOrigins []string

	HandshakeTimeout time.Duration

	RedisURL   string
	SessionTTL time.Duration

	MessagesDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:       ":5555",
		HandshakeTimeout: 10 * time.Second,
		SessionTTL:       24 * time.Hour,
	}

	if v, ok := os.LookupEnv("LISTEN_ADDR"); ok {
		cfg.ListenAddr = strings.TrimSpace(v)
	}
	cfg.WSAddr = strings.TrimSpace(os.Getenv("WS_ADDR"))
	cfg.StatusAddr = strings.TrimSpace(os.Getenv("STATUS_ADDR"))
	for _, o := range strings.Split(os.Getenv("WS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.WSOrigins = append(cfg.WSOrigins, o)
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))

	if v := strings.TrimSpace(os.Getenv("HANDSHAKE_TIMEOUT_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HandshakeTimeout = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("SESSION_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SessionTTL = time.Duration(n) * time.Second
		}
	}

	if cfg.ListenAddr == "" {
		return nil, errors.New("LISTEN_ADDR must not be empty")
	}
	return cfg, nil
}
