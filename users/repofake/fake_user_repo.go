package fakeuserrepo

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/gatekeeper-id/gatekeeper/users"
)

var _ users.Repo = (*FakeUserRepo)(nil)

type FakeUserRepo struct {
	lock  sync.RWMutex
	users map[string]*users.User
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{users: make(map[string]*users.User)}
}

// Upsert seeds a user, assigning an id when absent.
func (r *FakeUserRepo) Upsert(user *users.User) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	r.users[user.ID] = user
}

func (r *FakeUserRepo) GetByID(_ context.Context, id string) (*users.User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	cp := *user
	return &cp, nil
}

func (r *FakeUserRepo) GetByLogin(_ context.Context, login string) (*users.User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	for _, user := range r.users {
		if user.Username == login || user.Email == login {
			cp := *user
			return &cp, nil
		}
	}
	return nil, users.ErrNotFound
}
