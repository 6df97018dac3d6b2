// Package profiler collects a profile for each response and persists it
// once the request terminates. Storage is pluggable: in memory or any GORM
// supported database.
package profiler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/karloscodes/webprofiler/kernel"
)

// ErrProfileNotFound is returned by Storage.Read for unknown tokens.
var ErrProfileNotFound = errors.New("profiler: profile not found")

// Profile is what the profiler records about one request.
type Profile struct {
	Token      string                  `gorm:"primaryKey;size:64" json:"token"`
	Method     string                  `gorm:"size:16" json:"method"`
	URL        string                  `json:"url"`
	IP         string                  `gorm:"size:64" json:"ip"`
	StatusCode int                     `json:"status_code"`
	Time       time.Time               `gorm:"column:profiled_at;index" json:"time"`
	Duration   time.Duration           `json:"duration"`
	Listeners  []kernel.CalledListener `gorm:"serializer:json" json:"listeners,omitempty"`
}

// TableName specifies the table name for GORM.
func (Profile) TableName() string {
	return "profiler_profiles"
}

// Storage persists profiles.
type Storage interface {
	// Write stores p, replacing any profile with the same token.
	Write(ctx context.Context, p *Profile) error

	// Read returns the profile for token or ErrProfileNotFound.
	Read(ctx context.Context, token string) (*Profile, error)

	// Find returns up to limit profiles, newest first. limit <= 0 means all.
	Find(ctx context.Context, limit int) ([]*Profile, error)

	// Purge removes every profile.
	Purge(ctx context.Context) error
}

// MemoryStorage keeps profiles in memory with FIFO eviction once
// maxProfiles is exceeded. It is safe for concurrent use.
type MemoryStorage struct {
	mu          sync.RWMutex
	profiles    map[string]*Profile
	order       []string
	maxProfiles int
}

// NewMemoryStorage creates a memory store. maxProfiles <= 0 means unlimited.
func NewMemoryStorage(maxProfiles int) *MemoryStorage {
	return &MemoryStorage{
		profiles:    make(map[string]*Profile),
		maxProfiles: maxProfiles,
	}
}

// Write implements Storage.
func (s *MemoryStorage) Write(_ context.Context, p *Profile) error {
	if p == nil || p.Token == "" {
		return errors.New("profiler: profile without token")
	}

	cp := *p
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.profiles[p.Token]; !exists {
		s.order = append(s.order, p.Token)
	}
	s.profiles[p.Token] = &cp

	for s.maxProfiles > 0 && len(s.order) > s.maxProfiles {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.profiles, oldest)
	}
	return nil
}

// Read implements Storage.
func (s *MemoryStorage) Read(_ context.Context, token string) (*Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[token]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

// Find implements Storage.
func (s *MemoryStorage) Find(_ context.Context, limit int) ([]*Profile, error) {
	s.mu.RLock()
	out := make([]*Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		cp := *p
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Time.After(out[j].Time) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Purge implements Storage.
func (s *MemoryStorage) Purge(_ context.Context) error {
	s.mu.Lock()
	s.profiles = make(map[string]*Profile)
	s.order = nil
	s.mu.Unlock()
	return nil
}

var _ Storage = (*MemoryStorage)(nil)
