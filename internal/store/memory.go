package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"usermgmt/internal/models"
)

// MemoryStore keeps records in a mutex-guarded map. Used in tests and as the
// reference implementation of the state machine.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]*models.ResetTokenRecord
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		records: make(map[string]*models.ResetTokenRecord),
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the clock. Test hook.
func (s *MemoryStore) SetNow(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

func (s *MemoryStore) Issue(_ context.Context, user models.TargetUser) (*models.ResetTokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	rec := &models.ResetTokenRecord{
		Token:          uuid.NewString(),
		Email:          user.Email,
		GeneratedAt:    now,
		ExpiresAt:      now.Add(s.ttl),
		Used:           false,
		ExternalUserID: user.ExternalUserID,
	}
	s.records[rec.Token] = rec

	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) Validate(_ context.Context, token string) (Validation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[token]
	if !ok || rec.Used {
		return Validation{State: StateNotFound}, nil
	}
	cp := *rec
	if cp.Expired(s.now()) {
		return Validation{State: StateExpired, Record: &cp}, nil
	}
	return Validation{State: StateValid, Record: &cp}, nil
}

func (s *MemoryStore) Finalize(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[token]
	if !ok || rec.Used {
		return false, nil
	}
	now := s.now()
	rec.Used = true
	rec.UsedAt = &now
	return true, nil
}
