// Package testutil opens throwaway databases for package tests.
package testutil

import (
	"strings"
	"testing"

	"github.com/photoflow/studio_backend/config"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dsnReplacer = strings.NewReplacer("/", "_", " ", "_", "#", "_")

// OpenDB installs a fresh in-memory sqlite database as the global DB and
// migrates the given models. The database lives until the test ends.
func OpenDB(t testing.TB, models ...interface{}) *gorm.DB {
	t.Helper()
	dsn := "file:" + dsnReplacer.Replace(t.Name()) + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("failed to connect test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// One connection keeps the shared in-memory database alive and
	// serializes writers the way row locks do on MySQL.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	if err := config.UseDB(db); err != nil {
		t.Fatalf("failed to install db plugins: %v", err)
	}
	return db
}
