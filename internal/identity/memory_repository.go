package identity

import (
	"context"
	"maps"
	"strings"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	users   map[string]User
	byEmail map[string]string
	byAddr  map[string]string
}

// NewMemoryRepository builds an in-memory user store.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		users:   make(map[string]User),
		byEmail: make(map[string]string),
		byAddr:  make(map[string]string),
	}
}

func (r *memoryRepository) Create(_ context.Context, user User) error {
	email := strings.ToLower(user.Email)
	addr := strings.ToLower(user.Address)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byEmail[email]; exists {
		return ErrEmailTaken
	}
	if _, exists := r.byAddr[addr]; exists {
		return ErrAddressTaken
	}
	user.Address = addr
	r.users[user.ID] = clone(user)
	r.byEmail[email] = user.ID
	r.byAddr[addr] = user.ID
	return nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return clone(user), nil
}

func (r *memoryRepository) FindByAddress(_ context.Context, address string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAddr[strings.ToLower(address)]
	if !ok {
		return User{}, ErrNotFound
	}
	return clone(r.users[id]), nil
}

func (r *memoryRepository) Update(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.users[user.ID]
	if !ok {
		return ErrNotFound
	}
	// Identity columns are immutable.
	user.Address, user.Email, user.PartnerID, user.CreatedAt = current.Address, current.Email, current.PartnerID, current.CreatedAt
	r.users[user.ID] = clone(user)
	return nil
}

func clone(user User) User {
	user.AcceptedTerms = maps.Clone(user.AcceptedTerms)
	if user.DeployRequestedAt != nil {
		at := *user.DeployRequestedAt
		user.DeployRequestedAt = &at
	}
	return user
}
