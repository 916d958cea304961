package util

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

//nolint:gochecknoglobals // here its ok
var once sync.Once

func init() {
	once.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Warning: could not load .env file: %v", err)
		}
	})
}

const (
	defaultServerAddr      = "localhost:8080"
	defaultWriteTimeout    = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultIdleTimeout     = 30 * time.Second
	defaultGracefulTimeout = 5 * time.Second

	defaultSessionTTL = 3 * time.Hour
	defaultRefreshTTL = 24 * 24 * time.Hour

	defaultRateLimit     = 100
	defaultRateInterval  = 1 * time.Minute
	defaultRateBlockTime = 5 * time.Minute

	defaultGoogleIssuer = "https://accounts.google.com"
)

// Storage backends selectable via STORAGE_BACKEND / SESSION_STORE.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
)

type ServerConfig struct {
	ServerAddr      string
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	IdleTimeout     time.Duration
	GracefulTimeout time.Duration
	SecureCookies   bool
}

func NewServerConfig() *ServerConfig {
	addr := os.Getenv("SERVER_ADDRESS")
	if addr == "" {
		addr = defaultServerAddr
	}

	return &ServerConfig{
		ServerAddr:      addr,
		WriteTimeout:    parseDurationOrDefault("WRITE_TIMEOUT", defaultWriteTimeout),
		ReadTimeout:     parseDurationOrDefault("READ_TIMEOUT", defaultReadTimeout),
		IdleTimeout:     parseDurationOrDefault("IDLE_TIMEOUT", defaultIdleTimeout),
		GracefulTimeout: parseDurationOrDefault("GRACEFUL_TIMEOUT", defaultGracefulTimeout),
		SecureCookies:   parseBoolOrDefault("SECURE_COOKIES", false),
	}
}

// TokenConfig is built once at startup and never mutated afterwards.
type TokenConfig struct {
	JwtSecretKey []byte
	SessionTTL   time.Duration
	RefreshTTL   time.Duration
}

func NewTokenConfig() *TokenConfig {
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET is not set")
	}
	return &TokenConfig{
		JwtSecretKey: []byte(secret),
		SessionTTL:   parseDurationOrDefault("SESSION_TOKEN_TTL", defaultSessionTTL),
		RefreshTTL:   parseDurationOrDefault("REFRESH_TOKEN_TTL", defaultRefreshTTL),
	}
}

type RateLimiterConfig struct {
	Limit     int
	Interval  time.Duration
	BlockTime time.Duration
}

func NewRateLimiterConfig() *RateLimiterConfig {
	limitStr := os.Getenv("RATE_LIMIT_LIMIT")
	limit := defaultRateLimit
	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		} else {
			log.Printf("Invalid RATE_LIMIT_LIMIT: %s, using default %d", limitStr, defaultRateLimit)
		}
	}

	interval := parseDurationOrDefault("RATE_LIMIT_INTERVAL", defaultRateInterval)
	blockTime := parseDurationOrDefault("RATE_LIMIT_BLOCK_TIME", defaultRateBlockTime)

	return &RateLimiterConfig{
		Limit:     limit,
		Interval:  interval,
		BlockTime: blockTime,
	}
}

// StorageConfig picks where users and sessions live.
// SessionStore overrides the backend for sessions only (e.g. "redis").
type StorageConfig struct {
	Backend      string
	SessionStore string
}

func NewStorageConfig() *StorageConfig {
	backend := strings.ToLower(os.Getenv("STORAGE_BACKEND"))
	switch backend {
	case BackendPostgres, BackendMongo, BackendMemory:
	case "":
		backend = BackendPostgres
	default:
		log.Fatalf("Unknown STORAGE_BACKEND: %s", backend)
	}

	sessionStore := strings.ToLower(os.Getenv("SESSION_STORE"))
	if sessionStore == "" {
		sessionStore = backend
	}

	return &StorageConfig{
		Backend:      backend,
		SessionStore: sessionStore,
	}
}

type GoogleConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
}

// NewGoogleConfig returns nil when GOOGLE_CLIENT_ID is unset; federated login is then disabled.
func NewGoogleConfig() *GoogleConfig {
	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	if clientID == "" {
		return nil
	}
	issuer := os.Getenv("GOOGLE_ISSUER")
	if issuer == "" {
		issuer = defaultGoogleIssuer
	}
	return &GoogleConfig{
		Issuer:       issuer,
		ClientID:     clientID,
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
	}
}

func GetWebhookURL() string {
	return os.Getenv("WEBHOOK_URL")
}

func GetAPIKey() string {
	return os.Getenv("AUTH_SERVICE_API_KEY")
}

func parseDurationOrDefault(varName string, def time.Duration) time.Duration {
	if v := os.Getenv(varName); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		log.Printf("Invalid duration in %s: %s, using default %s", varName, v, def)
	}
	return def
}

func parseBoolOrDefault(varName string, def bool) bool {
	if v := os.Getenv(varName); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
		log.Printf("Invalid bool in %s: %s, using default %t", varName, v, def)
	}
	return def
}
