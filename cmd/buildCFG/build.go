package buildCFG

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"

	"templegames/internal/mailer"
)

type ServerConfig struct {
	Port      string
	JWTSecret string
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
		log.Warn().Msg("server.port not set, defaulting to 8080")
	}

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = cfg.GetString("server.jwt_secret")
	}

	return ServerConfig{Port: port, JWTSecret: secret}
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	masterDSN := os.Getenv("DATABASE_URL")
	if masterDSN == "" {
		masterDSN = cfg.GetString("db.master_dsn")
	}
	if masterDSN == "" {
		return "", nil, nil, fmt.Errorf("db.master_dsn is not configured")
	}

	slaveDSNs := cfg.GetStringSlice("db.slave_dsns")

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("db.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("db.max_idle_conns"),
		ConnMaxLifetime: time.Duration(cfg.GetInt("db.conn_max_lifetime_seconds")) * time.Second,
	}

	log.Info().Int("slaves", len(slaveDSNs)).Msg("DB config built")
	return masterDSN, slaveDSNs, opts, nil
}

func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (RabbitConfig, error) {
	url := os.Getenv("RABBITMQ_URL")
	if url == "" {
		url = cfg.GetString("rabbit.url")
	}
	if url == "" {
		return RabbitConfig{}, fmt.Errorf("rabbit.url is not configured")
	}

	rc := RabbitConfig{
		Url:      url,
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
	}
	if rc.Exchange == "" || rc.Queue == "" {
		return RabbitConfig{}, fmt.Errorf("rabbit.exchange and rabbit.queue must be configured")
	}

	log.Info().Str("exchange", rc.Exchange).Str("queue", rc.Queue).Msg("RabbitMQ config built")
	return rc, nil
}

func BuildSMTPConfig(cfg *config.Config) mailer.Config {
	password := os.Getenv("SMTP_PASSWORD")
	if password == "" {
		password = cfg.GetString("smtp.password")
	}
	return mailer.Config{
		Host:     cfg.GetString("smtp.host"),
		Port:     cfg.GetString("smtp.port"),
		From:     cfg.GetString("smtp.from"),
		Password: password,
	}
}
