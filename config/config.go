package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config configuración del servidor
type Config struct {
	Port        string
	Environment string
	CORSOrigins string

	Database DatabaseConfig
	Auth     AuthConfig

	// RedisURL activa la blacklist compartida de tokens
	RedisURL string

	SeedAdminEmail    string
	SeedAdminPassword string
}

// DatabaseConfig configuración del pool de pgx
type DatabaseConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// AuthConfig configuración para emitir tokens
type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

func defaults(v *viper.Viper) {
	v.SetDefault("PORT", "3000")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("DB_MAX_CONNS", 30)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("DB_MAX_CONN_LIFETIME", time.Hour)
	v.SetDefault("DB_MAX_CONN_IDLE_TIME", 30*time.Minute)
	v.SetDefault("ACCESS_TOKEN_TTL", 15*time.Minute)
	v.SetDefault("REFRESH_TOKEN_TTL", 7*24*time.Hour)
}

// Load lee los archivos .env (si existen) y las variables de entorno
func Load(envFiles ...string) (*Config, error) {
	// Si no hay .env se usan las variables de entorno ya definidas
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	defaults(v)

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Port:        v.GetString("PORT"),
		Environment: v.GetString("ENVIRONMENT"),
		CORSOrigins: v.GetString("CORS_ORIGINS"),
		RedisURL:    v.GetString("REDIS_URL"),
		Database: DatabaseConfig{
			URL:             v.GetString("DATABASE_URL"),
			MaxConns:        v.GetInt32("DB_MAX_CONNS"),
			MinConns:        v.GetInt32("DB_MIN_CONNS"),
			MaxConnLifetime: v.GetDuration("DB_MAX_CONN_LIFETIME"),
			MaxConnIdleTime: v.GetDuration("DB_MAX_CONN_IDLE_TIME"),
		},
		Auth: AuthConfig{
			JWTSecret:       v.GetString("JWT_SECRET"),
			AccessTokenTTL:  v.GetDuration("ACCESS_TOKEN_TTL"),
			RefreshTokenTTL: v.GetDuration("REFRESH_TOKEN_TTL"),
		},
		SeedAdminEmail:    v.GetString("SEED_ADMIN_EMAIL"),
		SeedAdminPassword: v.GetString("SEED_ADMIN_PASSWORD"),
	}

	if cfg.Database.URL == "" {
		return nil, errors.New("invalid config, DATABASE_URL must be set")
	}
	if len(cfg.Auth.JWTSecret) < 32 {
		return nil, errors.New("invalid config, JWT_SECRET must be at least 32 characters")
	}
	if cfg.Database.MinConns > cfg.Database.MaxConns {
		return nil, errors.Errorf("invalid config, DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)",
			cfg.Database.MinConns, cfg.Database.MaxConns)
	}
	return cfg, nil
}

// IsProduction indica si el servidor corre en producción
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
