package config

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

type Config struct {
	Addr           string
	DatabaseDriver string
	DatabaseURL    string
	SessionKey     string
	JWTSecret      string
	TokenTTL       time.Duration
	SessionTTL     time.Duration
	AllowedOrigins []string
	FrontendURL    string
	RateLimit      float64
	RateBurst      int
	WebhookTimeout time.Duration
	LogLevel       string
	LogFile        string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
}

// Load reads .env (when present) and the environment.
func Load() (Config, error) {
	// a missing .env is fine, the environment may carry everything
	_ = godotenv.Load()

	cfg := Config{
		Addr:               getEnv("ADDR", ":8080"),
		DatabaseDriver:     getEnv("DATABASE_DRIVER", "postgres"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		SessionKey:         os.Getenv("SESSION_KEY"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:3000"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFile:            os.Getenv("LOG_FILE"),
		GoogleClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
	}

	var err error
	if cfg.TokenTTL, err = durationEnv("TOKEN_TTL", 24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", 2*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.WebhookTimeout, err = durationEnv("WEBHOOK_TIMEOUT", 10*time.Second); err != nil {
		return cfg, err
	}
	if cfg.RateLimit, err = strconv.ParseFloat(getEnv("RATE_LIMIT", "5"), 64); err != nil {
		return cfg, fmt.Errorf("RATE_LIMIT: %w", err)
	}
	if cfg.RateBurst, err = strconv.Atoi(getEnv("RATE_BURST", "20")); err != nil {
		return cfg, fmt.Errorf("RATE_BURST: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL environment variable is not set")
	}
	if cfg.SessionKey == "" {
		return cfg, fmt.Errorf("SESSION_KEY environment variable is not set")
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	return cfg, nil
}

// GoogleOAuth returns the OAuth client configuration for Google login.
func (cfg Config) GoogleOAuth() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: google.Endpoint,
	}
}

func GenerateStateOauthCookie(w http.ResponseWriter) string {
	b := make([]byte, 16)
	rand.Read(b)
	state := base64.URLEncoding.EncodeToString(b)
	cookie := &http.Cookie{
		Name:     "oauthstate",
		Value:    state,
		Expires:  time.Now().Add(30 * time.Minute),
		HttpOnly: true,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
	}
	http.SetCookie(w, cookie)
	return state
}

func VerifyStateOauthCookie(r *http.Request) error {
	state := r.FormValue("state")
	cookie, err := r.Cookie("oauthstate")
	if err != nil {
		return err
	}
	if cookie.Value != state {
		return fmt.Errorf("invalid oauth state")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
