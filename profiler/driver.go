package profiler

import (
	"fmt"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/karloscodes/webprofiler"
)

// Driver opens the database a GormStorage lives in.
type Driver interface {
	// Name returns the driver name ("sqlite", "postgres").
	Name() string

	// Open returns a GORM dialector for dsn.
	Open(dsn string) gorm.Dialector

	// AfterConnect runs driver-specific setup on a fresh connection.
	AfterConnect(db *gorm.DB) error
}

// SQLiteDriver opens SQLite databases in WAL mode.
type SQLiteDriver struct {
	BusyTimeoutMS int
}

func (SQLiteDriver) Name() string { return "sqlite" }

func (SQLiteDriver) Open(dsn string) gorm.Dialector {
	if dsn != ":memory:" && !strings.Contains(dsn, "?") {
		dsn += "?_txlock=immediate"
	}
	return sqlite.Open(dsn)
}

func (d SQLiteDriver) AfterConnect(db *gorm.DB) error {
	timeout := d.BusyTimeoutMS
	if timeout <= 0 {
		timeout = 5000
	}
	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", timeout),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			return fmt.Errorf("sqlite: apply pragma %s: %w", pragma, err)
		}
	}
	return nil
}

// PostgresDriver opens PostgreSQL databases.
type PostgresDriver struct{}

func (PostgresDriver) Name() string { return "postgres" }

func (PostgresDriver) Open(dsn string) gorm.Dialector { return postgres.Open(dsn) }

func (PostgresDriver) AfterConnect(*gorm.DB) error { return nil }

// DriverFor returns the driver registered under name.
func DriverFor(name string) (Driver, error) {
	switch name {
	case "sqlite":
		return SQLiteDriver{}, nil
	case "postgres":
		return PostgresDriver{}, nil
	default:
		return nil, fmt.Errorf("profiler: unknown storage driver %q", name)
	}
}

// OpenDB connects through d and runs its setup.
func OpenDB(d Driver, dsn string, logger webprofiler.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = webprofiler.NopLogger{}
	}
	db, err := gorm.Open(d.Open(dsn), &gorm.Config{Logger: NewGormLogger(logger)})
	if err != nil {
		return nil, fmt.Errorf("profiler: open %s: %w", d.Name(), err)
	}
	if err := d.AfterConnect(db); err != nil {
		return nil, err
	}
	return db, nil
}

// OpenStorage returns the storage named by driver: "memory" keeps at most
// maxProfiles in process, anything else goes through DriverFor. The returned
// close function releases the database connection.
func OpenStorage(driver, dsn string, maxProfiles int, logger webprofiler.Logger) (Storage, func() error, error) {
	if driver == "" || driver == "memory" {
		return NewMemoryStorage(maxProfiles), func() error { return nil }, nil
	}

	d, err := DriverFor(driver)
	if err != nil {
		return nil, nil, err
	}
	db, err := OpenDB(d, dsn, logger)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	s, err := NewGormStorage(db)
	if err != nil {
		_ = closeDB()
		return nil, nil, err
	}
	return s, closeDB, nil
}
