package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lizet96/frontdesk/config"
	"github.com/lizet96/frontdesk/logger"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB pool de conexiones global
var DB *pgxpool.Pool

// ConnectDB crea el pool y verifica que la base de datos responda
func ConnectDB(cfg config.DatabaseConfig) error {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return errors.Wrap(err, "failed to parse database url")
	}
	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	// Protocolo simple para poder usar el pool detrás de pgbouncer
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	DB, err = pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return errors.Wrap(err, "failed to create connection pool")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var version string
	if err := DB.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return errors.Wrap(err, "failed to ping database")
	}

	logger.API.WithField("version", version).Info("Connected to database")
	return nil
}

// CloseDB cierra el pool
func CloseDB() {
	if DB != nil {
		DB.Close()
		logger.API.Info("Connection pool closed")
	}
}

// GetDB obtiene el pool
func GetDB() *pgxpool.Pool {
	return DB
}

// OpenGorm monta gorm sobre el pool para que el ORM y las consultas directas
// de pgx compartan las mismas conexiones.
func OpenGorm(pool *pgxpool.Pool) (*gorm.DB, error) {
	sqlDB := stdlib.OpenDBFromPool(pool)
	return Open(postgres.New(postgres.Config{Conn: sqlDB}))
}

// Open abre gorm sobre cualquier dialector con la configuración del proyecto
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger: gormlogger.New(logger.API, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to open gorm")
	}
	return db, nil
}
