package profiler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/karloscodes/webprofiler"
)

// GormStorage stores profiles in any GORM supported database.
type GormStorage struct {
	db *gorm.DB
}

// NewGormStorage migrates the profiles table and returns the store.
func NewGormStorage(db *gorm.DB) (*GormStorage, error) {
	if db == nil {
		return nil, errors.New("profiler: database is required")
	}
	if err := db.AutoMigrate(&Profile{}); err != nil {
		return nil, fmt.Errorf("profiler: migrate: %w", err)
	}
	return &GormStorage{db: db}, nil
}

// Write implements Storage.
func (s *GormStorage) Write(ctx context.Context, p *Profile) error {
	if p == nil || p.Token == "" {
		return errors.New("profiler: profile without token")
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(p).Error
	if err != nil {
		return fmt.Errorf("profiler: write %s: %w", p.Token, err)
	}
	return nil
}

// Read implements Storage.
func (s *GormStorage) Read(ctx context.Context, token string) (*Profile, error) {
	var p Profile
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profiler: read %s: %w", token, err)
	}
	return &p, nil
}

// Find implements Storage.
func (s *GormStorage) Find(ctx context.Context, limit int) ([]*Profile, error) {
	q := s.db.WithContext(ctx).Order("profiled_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*Profile
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("profiler: find: %w", err)
	}
	return out, nil
}

// Purge implements Storage.
func (s *GormStorage) Purge(ctx context.Context) error {
	err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&Profile{}).Error
	if err != nil {
		return fmt.Errorf("profiler: purge: %w", err)
	}
	return nil
}

var _ Storage = (*GormStorage)(nil)

// gormLogger forwards GORM messages to a webprofiler.Logger.
type gormLogger struct {
	logger        webprofiler.Logger
	level         gormlogger.LogLevel
	slowThreshold time.Duration
}

// NewGormLogger adapts l to GORM's logger interface.
func NewGormLogger(l webprofiler.Logger) gormlogger.Interface {
	return &gormLogger{
		logger:        l,
		level:         gormlogger.Warn,
		slowThreshold: 200 * time.Millisecond,
	}
}

func (g *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *g
	next.level = level
	return &next
}

func (g *gormLogger) Info(_ context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Info {
		g.logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (g *gormLogger) Warn(_ context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Warn {
		g.logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (g *gormLogger) Error(_ context.Context, msg string, data ...any) {
	if g.level >= gormlogger.Error {
		g.logger.Error(fmt.Sprintf(msg, data...))
	}
}

func (g *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && g.level >= gormlogger.Error:
		g.logger.Error("profiler query failed", "sql", sql, "rows", rows, "duration", elapsed, "error", err)
	case elapsed > g.slowThreshold && g.level >= gormlogger.Warn:
		g.logger.Warn("slow profiler query", "sql", sql, "rows", rows, "duration", elapsed)
	case g.level >= gormlogger.Info:
		g.logger.Debug("profiler query", "sql", sql, "rows", rows, "duration", elapsed)
	}
}
