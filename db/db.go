package db

import (
	"fmt"
	"log/slog"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MohamedNourTN/clinicback/sections/models"
)

// DB wraps the gorm database instance.
type DB struct {
	*gorm.DB
}

// Config holds database configuration
type Config struct {
	DatabaseURL string
	Debug       bool
}

// NewConfig creates a database config from environment variables
func NewConfig() *Config {
	return &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Debug:       os.Getenv("DB_DEBUG") == "true",
	}
}

// Connect establishes a connection to the PostgreSQL database.
func Connect(databaseURL string) (*DB, error) {
	return ConnectWithConfig(&Config{
		DatabaseURL: databaseURL,
		Debug:       os.Getenv("DB_DEBUG") == "true",
	})
}

// ConnectWithConfig establishes a connection to the PostgreSQL database.
func ConnectWithConfig(cfg *Config) (*DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}

	gormConfig := &gorm.Config{TranslateError: true}
	if cfg.Debug {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("Database connection established")
	return &DB{DB: db}, nil
}

// Migrate runs schema migration for all models and creates the partial
// unique index backing the one-active-subscription-per-tenant invariant.
func (db *DB) Migrate() error {
	if err := db.AutoMigrate(
		&models.Tenant{},
		&models.Clinic{},
		&models.User{},
		&models.UserClinic{},
		&models.SubscriptionPlan{},
		&models.TenantSubscription{},
		&models.StripeTransaction{},
		&models.WebhookEvent{},
		&models.Permission{},
		&models.Role{},
		&models.RoleAudit{},
	); err != nil {
		return fmt.Errorf("failed to migrate models: %w", err)
	}

	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_tenant_active_subscription
		 ON tenant_subscriptions (tenant_id)
		 WHERE status IN ('active', 'trialing', 'past_due') AND deleted_at IS NULL`,
	).Error; err != nil {
		return fmt.Errorf("failed to create active subscription index: %w", err)
	}

	slog.Info("Database schema migrated")
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying DB: %w", err)
	}
	return sqlDB.Close()
}
