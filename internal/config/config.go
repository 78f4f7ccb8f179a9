package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	DBDSN         string
	Environment   string
	Port          string
	JWTSecret     string
	CreditAPIURL  string
	SendgridKey   string
	EmailFrom     string
	EmailFromName string
	AdminEmail    string
	TelegramToken string
	AdminChatID   string
	MigrationsDir string
}

func Load() (*Config, error) {
	// Load .env when present; plain environment variables otherwise.
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		DBDSN:         os.Getenv("DB_DSN"),
		Environment:   os.Getenv("ENV"),
		Port:          os.Getenv("PORT"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		CreditAPIURL:  os.Getenv("CREDIT_API_URL"),
		SendgridKey:   os.Getenv("SENDGRID_API_KEY"),
		EmailFrom:     os.Getenv("EMAIL_FROM"),
		EmailFromName: os.Getenv("EMAIL_FROM_NAME"),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		TelegramToken: os.Getenv("TELEGRAM_TOKEN"),
		AdminChatID:   os.Getenv("ADMIN_CHAT_ID"),
		MigrationsDir: os.Getenv("MIGRATIONS_DIR"),
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.MigrationsDir == "" {
		cfg.MigrationsDir = "migrations"
	}
	if cfg.EmailFromName == "" {
		cfg.EmailFromName = "Brightline Tutoring"
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("DB_DSN is required but not set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but not set")
	}
	if cfg.CreditAPIURL == "" {
		return nil, fmt.Errorf("CREDIT_API_URL is required but not set")
	}

	return cfg, nil
}
