package helpers

import (
	"testing"

	"gorm.io/gorm"

	"github.com/andrescamacho/fleetcore/internal/infrastructure/database"
)

// NewTestDB creates an isolated in-memory SQLite store with the full schema
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewTestConnection()
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}
