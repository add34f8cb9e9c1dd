package config

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

type Config struct {
	Addr        string
	DatabaseURL string
	RedisURL    string
	CORSOrigin  string

	// Path of the file holding the persisted session token. The token
	// lets a restarted process resume its signed-in identity.
	SessionTokenFile string

	// Feed and session behavior
	FeedPageSize int
	SessionTTL   time.Duration

	// Meilisearch Configuration
	MeiliURL       string
	MeiliMasterKey string
}

func Load() Config {
	return Config{
		Addr:        getenv("API_ADDR", ":8790"),
		DatabaseURL: getenv("DATABASE_URL", ""),
		RedisURL:    getenv("REDIS_URL", "redis://localhost:6379/0"),
		CORSOrigin:  getenv("QUORUM_CORS_ORIGIN", "*"),

		SessionTokenFile: getenv("QUORUM_SESSION_TOKEN_FILE", ".quorum-session"),

		FeedPageSize: getenvInt("QUORUM_FEED_PAGE_SIZE", 10),
		SessionTTL:   time.Duration(getenvInt("QUORUM_SESSION_TTL_SECONDS", 2592000)) * time.Second,

		// Meilisearch - empty URL disables search indexing
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
