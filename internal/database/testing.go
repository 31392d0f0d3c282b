package database

import (
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// OpenTest opens an in-memory SQLite database with the full schema. SQLite
// accepts the vector column's declared type but the <-> operator does not
// exist there, so vector search stays untested at this level.
func OpenTest(t *testing.T) *DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	db, err := New(gormDB)
	if err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	return db
}
