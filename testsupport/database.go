package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/karloscodes/webprofiler/profiler"
)

// SetupTestStorage opens a GORM profile storage on a SQLite file in a
// temporary directory. The connection is closed when the test ends.
func SetupTestStorage(t *testing.T) *profiler.GormStorage {
	t.Helper()

	db, err := profiler.OpenDB(profiler.SQLiteDriver{}, filepath.Join(t.TempDir(), "profiles.db"), nil)
	if err != nil {
		t.Fatalf("testsupport: failed to open test database: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})

	s, err := profiler.NewGormStorage(db)
	if err != nil {
		t.Fatalf("testsupport: failed to migrate profiles: %v", err)
	}
	return s
}
