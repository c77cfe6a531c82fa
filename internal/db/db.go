package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

// InitDB opens and pings the database for driver ("mysql" or "postgres").
func InitDB(ctx context.Context, driver, dbURL string, logger zerolog.Logger) (*sql.DB, error) {
	driverName, dsn, err := driverDSN(driver, dbURL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database not responding: %w", err)
	}

	logger.Info().Str("driver", driver).Msg("Connected to database")
	return db, nil
}

func driverDSN(driver, dbURL string) (string, string, error) {
	switch driver {
	case "mysql":
		cfg, err := mysql.ParseDSN(dbURL)
		if err != nil {
			return "", "", fmt.Errorf("invalid mysql DSN: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		return "mysql", cfg.FormatDSN(), nil
	case "postgres":
		return "pgx", dbURL, nil
	}
	return "", "", fmt.Errorf("unsupported database driver %q", driver)
}

func RunMigrations(ctx context.Context, db *sql.DB, driver string, logger zerolog.Logger) error {
	var queries []string
	switch driver {
	case "mysql":
		queries = mysqlMigrations
	case "postgres":
		queries = postgresMigrations
	default:
		return fmt.Errorf("no migrations for driver %q", driver)
	}

	for _, q := range queries {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	logger.Info().Int("statements", len(queries)).Msg("Migrations completed")
	return nil
}

var mysqlMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(254) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		first_name VARCHAR(150) NOT NULL DEFAULT '',
		last_name VARCHAR(150) NOT NULL DEFAULT '',
		phone_number VARCHAR(17) NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'customer',
		is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		is_phone_verified BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		province VARCHAR(50) NOT NULL DEFAULT '',
		district VARCHAR(50) NOT NULL DEFAULT '',
		municipality VARCHAR(50) NOT NULL DEFAULT '',
		ward_no INT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		last_login DATETIME(6) NULL,
		UNIQUE KEY uq_users_email (email),
		UNIQUE KEY uq_users_phone (phone_number),
		INDEX idx_users_created_at (created_at)
	);`,
	`CREATE TABLE IF NOT EXISTS user_profile (
		user_id BIGINT PRIMARY KEY,
		avatar VARCHAR(255) NOT NULL DEFAULT '',
		date_of_birth DATE NULL,
		company_name VARCHAR(100) NOT NULL DEFAULT '',
		pan_vat_number VARCHAR(50) NOT NULL DEFAULT '',
		seller_license VARCHAR(50) NOT NULL DEFAULT '',
		facebook_url VARCHAR(200) NOT NULL DEFAULT '',
		twitter_url VARCHAR(200) NOT NULL DEFAULT '',
		receive_marketing_emails BOOLEAN NOT NULL DEFAULT TRUE,
		receive_sms_notifications BOOLEAN NOT NULL DEFAULT TRUE,
		FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	);`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		entity_type VARCHAR(50),
		entity_id BIGINT,
		action VARCHAR(50),
		details TEXT,
		created_at DATETIME(6) DEFAULT CURRENT_TIMESTAMP(6),
		INDEX idx_audit_entity (entity_type, entity_id)
	);`,
}

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email VARCHAR(254) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		first_name VARCHAR(150) NOT NULL DEFAULT '',
		last_name VARCHAR(150) NOT NULL DEFAULT '',
		phone_number VARCHAR(17) NULL,
		role VARCHAR(20) NOT NULL DEFAULT 'customer',
		is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		is_phone_verified BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		province VARCHAR(50) NOT NULL DEFAULT '',
		district VARCHAR(50) NOT NULL DEFAULT '',
		municipality VARCHAR(50) NOT NULL DEFAULT '',
		ward_no INT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		last_login TIMESTAMPTZ NULL,
		CONSTRAINT uq_users_email UNIQUE (email),
		CONSTRAINT uq_users_phone UNIQUE (phone_number)
	);`,
	`CREATE INDEX IF NOT EXISTS idx_users_created_at ON users (created_at);`,
	`CREATE TABLE IF NOT EXISTS user_profile (
		user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		avatar VARCHAR(255) NOT NULL DEFAULT '',
		date_of_birth DATE NULL,
		company_name VARCHAR(100) NOT NULL DEFAULT '',
		pan_vat_number VARCHAR(50) NOT NULL DEFAULT '',
		seller_license VARCHAR(50) NOT NULL DEFAULT '',
		facebook_url VARCHAR(200) NOT NULL DEFAULT '',
		twitter_url VARCHAR(200) NOT NULL DEFAULT '',
		receive_marketing_emails BOOLEAN NOT NULL DEFAULT TRUE,
		receive_sms_notifications BOOLEAN NOT NULL DEFAULT TRUE
	);`,
	`CREATE TABLE IF NOT EXISTS audit_logs (
		id BIGSERIAL PRIMARY KEY,
		entity_type VARCHAR(50),
		entity_id BIGINT,
		action VARCHAR(50),
		details TEXT,
		created_at TIMESTAMPTZ DEFAULT NOW()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_logs (entity_type, entity_id);`,
}
