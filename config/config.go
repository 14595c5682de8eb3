package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	StorageType string
	HTTP        HTTPConfig
	Postgres    PostgresConfig
	SpamCheck   SpamCheckConfig
	Uploads     UploadsConfig
	WS          WSConfig
	Posting     PostingConfig
}

type PostgresConfig struct {
	User     string
	Password string
	DB       string
	Host     string
	Port     int
	SSLMode  string
}

func (pc PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		pc.User,
		pc.Password,
		pc.Host,
		pc.Port,
		pc.DB,
		pc.SSLMode,
	)
}

type HTTPConfig struct {
	Port           string
	PublicBaseURL  string
	AllowedOrigins []string
}

// SpamCheckConfig points at the CAPTCHA verification endpoint. An empty URL
// disables verification, which is only meant for local runs.
type SpamCheckConfig struct {
	URL    string
	Secret string
}

type UploadsConfig struct {
	Dir string
}

type WSConfig struct {
	KeepAliveSeconds int
}

type PostingConfig struct {
	CooldownSeconds int
}

func LoadConfig() Config {
	storageType := mustGetEnv("STORAGE_TYPE")

	cfg := Config{
		StorageType: storageType,
		HTTP: HTTPConfig{
			Port:           mustGetEnv("HTTP_PORT"),
			PublicBaseURL:  getEnv("PUBLIC_BASE_URL", ""),
			AllowedOrigins: splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		},
		SpamCheck: SpamCheckConfig{
			URL:    getEnv("SPAMCHECK_URL", ""),
			Secret: getEnv("SPAMCHECK_SECRET", ""),
		},
		Uploads: UploadsConfig{
			Dir: getEnv("UPLOAD_DIR", "./uploads"),
		},
		WS: WSConfig{
			KeepAliveSeconds: getEnvInt("WS_KEEPALIVE_SECONDS", 30),
		},
		Posting: PostingConfig{
			CooldownSeconds: getEnvInt("POST_COOLDOWN_SECONDS", 0),
		},
	}

	if storageType == "postgres" {
		cfg.Postgres = LoadPostgresConfig()
	}

	return cfg
}

// LoadPostgresConfig reads the POSTGRES_* vars on their own, for commands
// that talk to the database without the rest of the app.
func LoadPostgresConfig() PostgresConfig {
	return PostgresConfig{
		User:     mustGetEnv("POSTGRES_USER"),
		Password: mustGetEnv("POSTGRES_PASSWORD"),
		DB:       mustGetEnv("POSTGRES_DB"),
		Host:     mustGetEnv("POSTGRES_HOST"),
		Port:     mustGetInt("POSTGRES_PORT"),
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
	}
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic("missing required env var: " + key)
	}
	return val
}

func mustGetInt(key string) int {
	val := mustGetEnv(key)
	i, err := strconv.Atoi(val)
	if err != nil {
		panic("invalid int for env var " + key + ": " + val)
	}
	return i
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		panic("invalid int for env var " + key + ": " + val)
	}
	return i
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
