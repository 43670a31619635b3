package store

import (
	"context"
	"sort"
	"sync"

	"github.com/cropscan/apiserver/types"
	"github.com/google/uuid"
)

// MemoryUserRepository keeps users in process memory.
// It backs the memory store backend and tests.
type MemoryUserRepository struct {
	mu    sync.RWMutex
	users []types.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{}
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, ErrNotFound
}

func (r *MemoryUserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return types.User{}, ErrDuplicate
		}
	}
	user.ID = uuid.NewString()
	r.users = append(r.users, user)
	return user, nil
}

// CountByEmail reports how many stored users share the given email.
func (r *MemoryUserRepository) CountByEmail(email string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, user := range r.users {
		if user.Email == email {
			n++
		}
	}
	return n
}

// MemoryScanRepository keeps scan history in process memory.
type MemoryScanRepository struct {
	mu    sync.RWMutex
	scans []types.ScanHistory
}

func NewMemoryScanRepository() *MemoryScanRepository {
	return &MemoryScanRepository{}
}

func (r *MemoryScanRepository) ListRecent(_ context.Context, limit int) ([]types.ScanHistory, error) {
	r.mu.RLock()
	scans := make([]types.ScanHistory, len(r.scans))
	copy(scans, r.scans)
	r.mu.RUnlock()

	// Later inserts win ties, matching the id tiebreak of the database backends.
	for i, j := 0, len(scans)-1; i < j; i, j = i+1, j-1 {
		scans[i], scans[j] = scans[j], scans[i]
	}
	sort.SliceStable(scans, func(i, j int) bool {
		return scans[i].CreatedAt.After(scans[j].CreatedAt)
	})

	if limit >= 0 && len(scans) > limit {
		scans = scans[:limit]
	}
	return scans, nil
}

func (r *MemoryScanRepository) Create(_ context.Context, scan types.ScanHistory) (types.ScanHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	scan.ID = uuid.NewString()
	r.scans = append(r.scans, scan)
	return scan, nil
}

func (r *MemoryScanRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.scans)), nil
}

func (r *MemoryScanRepository) DeleteAll(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scans = nil
	return nil
}
