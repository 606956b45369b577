package repotest

import (
	"context"
	"sync"

	"github.com/lbaudin/androfleet/internal/models"
	"github.com/lbaudin/androfleet/internal/service/servicecore"
)

// FakeAdminRepo is a map-backed AdminUserRepository.
type FakeAdminRepo struct {
	mu    sync.Mutex
	seq   uint
	Users map[string]*models.AdminUser
}

func NewFakeAdminRepo() *FakeAdminRepo {
	return &FakeAdminRepo{Users: make(map[string]*models.AdminUser)}
}

func (f *FakeAdminRepo) ByUsername(_ context.Context, username string) (*models.AdminUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.Users[username]
	if !ok {
		return nil, servicecore.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *FakeAdminRepo) Upsert(_ context.Context, u *models.AdminUser) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.Users[u.Username]; ok {
		existing.PasswordHash = u.PasswordHash
		u.ID = existing.ID
		return nil
	}
	f.seq++
	u.ID = f.seq
	cp := *u
	f.Users[u.Username] = &cp
	return nil
}
