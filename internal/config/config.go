// internal/config/config.go
package config

import (
	"net/url"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string

	// Token store backend: "postgres", "mongo" or "memory".
	StoreBackend  string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	// Identity provider management API.
	Auth0Domain       string
	Auth0ClientID     string
	Auth0ClientSecret string
	Auth0Audience     string
	Auth0Connection   string

	ImportConcurrency int
	ResetTokenTTL     time.Duration
	ResetLinkBase     string

	// Notification transport: "smtp" or "ses".
	Mailer       string
	SMTPHost     string
	SMTPPort     string
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPUseTLS   bool
	SESFrom      string
}

func Load() *Config {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		host := getEnv("PSQL_HOST", "localhost")
		port := getEnv("PSQL_PORT", "5432")
		user := getEnv("PSQL_USER", "postgres")
		password := getEnv("PSQL_PASSWORD", "postgres")
		dbName := getEnv("PSQL_DB_NAME", "usermgmt")

		u := &url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(user, password),
			Host:   host + ":" + port,
			Path:   dbName,
		}
		q := u.Query()
		q.Set("sslmode", "disable")
		u.RawQuery = q.Encode()
		databaseURL = u.String()
	}

	return &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		StoreBackend:  getEnv("TOKEN_STORE", "postgres"),
		DatabaseURL:   databaseURL,
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DB_NAME", "usermgmt"),

		Auth0Domain:       os.Getenv("AUTH0_SUBDOMAIN") + ".auth0.com",
		Auth0ClientID:     os.Getenv("AUTH0_MGMT_CLIENT_ID"),
		Auth0ClientSecret: os.Getenv("AUTH0_MGMT_CLIENT_SECRET"),
		Auth0Audience:     os.Getenv("AUTH0_AUDIENCE"),
		Auth0Connection:   getEnv("AUTH0_CONNECTION", "Username-Password-Authentication"),

		ImportConcurrency: getEnvInt("IMPORT_CONCURRENCY", 5),
		ResetTokenTTL:     getEnvDuration("RESET_TOKEN_TTL", 24*time.Hour),
		ResetLinkBase:     getEnv("RESET_LINK_BASE", "http://localhost:8080"),

		Mailer:       getEnv("MAILER", "smtp"),
		SMTPHost:     getEnv("SMTP_HOST", "localhost"),
		SMTPPort:     getEnv("SMTP_PORT", "587"),
		SMTPUser:     os.Getenv("SMTP_USER"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     getEnv("SMTP_FROM", "ordertaking-noreply@imscorporate.com"),
		SMTPUseTLS:   getEnv("SMTP_USE_TLS", "false") == "true",
		SESFrom:      getEnv("SES_FROM", "ordertaking-noreply@imscorporate.com"),
	}
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
