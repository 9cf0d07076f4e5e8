package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/afromart/gate"
	"github.com/afromart/gate/internal/config"
	"github.com/afromart/gate/mail"
)

// processEnv is everything the server reads from the environment.
type processEnv struct {
	DatabaseURL   string   `env:"DATABASE_URL"`
	RedisURL      string   `env:"REDIS_URL"`
	SecretKey     string   `env:"SECRET_KEY"`
	OldSecretKeys []string `env:"SECRET_KEY_FALLBACKS" envSeparator:","`
	HTTPAddr      string   `env:"HTTP_ADDR" envDefault:":8080"`
	Production    bool     `env:"PRODUCTION" envDefault:"false"`
	PublicBaseURL string   `env:"PUBLIC_BASE_URL"`
	AllowedHosts  []string `env:"ALLOWED_HOSTS" envSeparator:","`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`

	MailFrom         string        `env:"MAIL_FROM"`
	MailWorkers      int           `env:"MAIL_WORKERS" envDefault:"2"`
	MailQueueSize    int           `env:"MAIL_QUEUE_SIZE" envDefault:"64"`
	MailDrainTimeout time.Duration `env:"MAIL_DRAIN_TIMEOUT" envDefault:"10s"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

func loadEnv() (processEnv, error) {
	if err := config.LoadDotenv(".env"); err != nil {
		return processEnv{}, err
	}
	var pe processEnv
	if err := config.ParseEnv(&pe); err != nil {
		return processEnv{}, err
	}
	if pe.Production {
		if pe.SecretKey == "" {
			return processEnv{}, errors.New("SECRET_KEY is required in production")
		}
		if pe.DatabaseURL == "" || pe.RedisURL == "" {
			return processEnv{}, errors.New("DATABASE_URL and REDIS_URL are required in production")
		}
		if pe.SMTPHost == "" {
			return processEnv{}, errors.New("SMTP_HOST is required in production")
		}
		if pe.PublicBaseURL == "" {
			return processEnv{}, errors.New("PUBLIC_BASE_URL is required in production")
		}
	}
	return pe, nil
}

// engineConfig applies the environment on top of the defaults. A missing
// secret outside production is replaced with a random one, which signs
// everybody out on restart.
func (pe processEnv) engineConfig() (gate.Config, error) {
	cfg := gate.DefaultConfig()
	cfg.Cookie.Secure = pe.Production
	cfg.Mail.BaseURL = pe.PublicBaseURL
	if len(pe.AllowedHosts) > 0 {
		cfg.Mail.AllowedHosts = pe.AllowedHosts
	}
	if pe.MailFrom != "" {
		cfg.Mail.From = pe.MailFrom
	}

	if pe.SecretKey != "" {
		cfg.JWT.Secret = []byte(pe.SecretKey)
	} else {
		secret := make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return gate.Config{}, fmt.Errorf("generate secret: %w", err)
		}
		cfg.JWT.Secret = secret
	}
	for _, old := range pe.OldSecretKeys {
		if old != "" {
			cfg.JWT.FallbackSecrets = append(cfg.JWT.FallbackSecrets, []byte(old))
		}
	}

	if err := cfg.Validate(); err != nil {
		return gate.Config{}, err
	}
	return cfg, nil
}

func (pe processEnv) smtpConfig() mail.SMTPConfig {
	return mail.SMTPConfig{
		Host:     pe.SMTPHost,
		Port:     pe.SMTPPort,
		Username: pe.SMTPUsername,
		Password: pe.SMTPPassword,
	}
}
