// package config provides a minimal environment-backed configuration loader
// used by the service bootstrap (cmd/dossier/main.go).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runtime config values used by main.go.
type Config struct {
	DatabaseURL   string        // DATABASE_URL (empty: no Postgres store)
	ArchiveDir    string        // ARCHIVE_DIR (empty: no file store)
	ListenAddr    string        // LISTEN_ADDR (default :8080)
	MirrorBaseURL string        // MIRROR_BASE_URL (empty: sync disabled)
	PullInterval  time.Duration // SYNC_PULL_INTERVAL_SECONDS (default 30s)

	KafkaBrokers []string // KAFKA_BROKERS (comma-separated; empty: relay disabled)
	KafkaTopic   string   // KAFKA_TOPIC (default dossier.events)

	S3Bucket string // S3_BUCKET (empty: snapshot archival disabled)
	S3Prefix string // S3_PREFIX

	AuthHMACSecret string // AUTH_HMAC_SECRET (empty: dev header auth)
}

// LoadFromEnv reads config values from environment variables. Malformed
// numeric values fall back to defaults rather than failing startup.
func LoadFromEnv() *Config {
	cfg := &Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		ArchiveDir:     os.Getenv("ARCHIVE_DIR"),
		ListenAddr:     os.Getenv("LISTEN_ADDR"),
		MirrorBaseURL:  os.Getenv("MIRROR_BASE_URL"),
		KafkaTopic:     os.Getenv("KAFKA_TOPIC"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Prefix:       os.Getenv("S3_PREFIX"),
		AuthHMACSecret: os.Getenv("AUTH_HMAC_SECRET"),
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = "dossier.events"
	}

	cfg.PullInterval = 30 * time.Second
	if v := os.Getenv("SYNC_PULL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PullInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	return cfg
}
