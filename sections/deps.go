package sections

import (
	"github.com/MohamedNourTN/clinicback/common"
	"github.com/MohamedNourTN/clinicback/db"
	"github.com/MohamedNourTN/clinicback/storage"
)

// Dependencies holds all shared dependencies for handlers
type Dependencies struct {
	Config *common.Config
	DB     *db.DB
	Redis  *storage.RedisClient
	Locks  *storage.LockManager
}

// NewDependencies creates a new Dependencies instance
func NewDependencies(cfg *common.Config, database *db.DB, redis *storage.RedisClient, locks *storage.LockManager) *Dependencies {
	return &Dependencies{
		Config: cfg,
		DB:     database,
		Redis:  redis,
		Locks:  locks,
	}
}
