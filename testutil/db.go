package testutil

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MohamedNourTN/clinicback/sections/models"
)

// SetupTestDB creates an in-memory SQLite database with the full schema,
// including the partial unique index backing the one-active-subscription
// invariant.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to connect test database: %v", err)
	}

	err = db.AutoMigrate(
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
	)
	if err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	err = db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_tenant_active_subscription
		 ON tenant_subscriptions (tenant_id)
		 WHERE status IN ('active', 'trialing', 'past_due') AND deleted_at IS NULL`,
	).Error
	if err != nil {
		t.Fatalf("Failed to create active subscription index: %v", err)
	}

	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			sqlDB.Close()
		}
	})

	return db
}
