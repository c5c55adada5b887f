package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	ModeRemote = "remote"
	ModeLocal  = "local"
)

// app config; provider-specific settings live with the provider (see gemini.NewConfig)
type Config struct {
	Port           string
	Provider       string
	AllowedOrigins []string
	LogFile        string

	// remote backend; both must be present to leave the local fallback
	BackendURL string
	BackendKey string

	LocalStorePath string
	JWTSecret      string
	RedisAddr      string

	// set when JWT_SECRET was absent and a per-process secret was generated
	JWTSecretGenerated bool

	SMTP SMTPConfig
	// base URL used to build confirmation links
	AppURL string

	ConfirmationTTL time.Duration
	CleanupSchedule string
	ClientTTL       time.Duration
}

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Enabled reports whether enough SMTP settings exist to send mail.
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && s.User != "" && s.Pass != ""
}

// loads configuration from environment variables, reading .env first when present
func LoadConfig() (*Config, error) {
	// a missing .env is the normal case outside local development
	_ = godotenv.Load()

	config := &Config{
		Port:            getEnvOrDefault("PORT", "8080"),
		Provider:        getEnvOrDefault("AI_PROVIDER", "gemini"),
		AllowedOrigins:  splitList(getEnvOrDefault("ALLOWED_ORIGINS", "http://localhost:5173")),
		LogFile:         os.Getenv("LOG_FILE"),
		BackendURL:      strings.TrimSpace(os.Getenv("BACKEND_URL")),
		BackendKey:      strings.TrimSpace(os.Getenv("BACKEND_KEY")),
		LocalStorePath:  getEnvOrDefault("LOCAL_STORE_PATH", "entrevistia.db"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		AppURL:          strings.TrimRight(getEnvOrDefault("APP_URL", "http://localhost:8080"), "/"),
		CleanupSchedule: getEnvOrDefault("CLEANUP_SCHEDULE", "0 * * * *"),
		SMTP: SMTPConfig{
			Host: os.Getenv("SMTP_HOST"),
			Port: getEnvInt("SMTP_PORT", 587),
			User: os.Getenv("SMTP_USER"),
			Pass: os.Getenv("SMTP_PASS"),
			From: os.Getenv("SMTP_FROM"),
		},
	}
	if config.SMTP.From == "" {
		config.SMTP.From = config.SMTP.User
	}

	if config.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, err
		}
		config.JWTSecret = secret
		config.JWTSecretGenerated = true
	}

	var err error
	if config.ConfirmationTTL, err = getEnvDuration("CONFIRMATION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if config.ClientTTL, err = getEnvDuration("CLIENT_TTL", 2*time.Hour); err != nil {
		return nil, err
	}

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// Mode selects the persistence/auth backend. It is decided once, from configuration presence.
func (c *Config) Mode() string {
	if c.BackendURL != "" && c.BackendKey != "" {
		return ModeRemote
	}
	return ModeLocal
}

func validateConfig(config *Config) error {
	if config.Provider != "gemini" {
		return errors.New("unsupported AI provider: " + config.Provider + ". Currently supported: gemini")
	}
	if _, err := strconv.Atoi(config.Port); err != nil {
		return errors.New("PORT must be numeric, got " + config.Port)
	}
	if config.ConfirmationTTL <= 0 || config.ClientTTL <= 0 {
		return errors.New("CONFIRMATION_TTL and CLIENT_TTL must be positive")
	}
	// Gemini validation is handled by gemini.NewConfig()
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, errors.New(key + " is not a valid duration: " + val)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// randomSecret returns 32 random bytes, hex encoded.
func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.New("failed to generate JWT secret: " + err.Error())
	}
	return hex.EncodeToString(buf), nil
}
