package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/user"
	"github.com/stencilcms/stencil/ports"
)

// UserStore is an in-memory implementation of ports.UserStore.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]user.User // by ID
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]user.User)}
}

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return user.User{}, ports.ErrNotFound
	}
	return u, nil
}

// GetByEmail retrieves a user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return user.User{}, ports.ErrNotFound
}

// List returns users ordered by most recent update, plus a total.
func (s *UserStore) List(ctx context.Context, page, perPage int) ([]user.User, int, error) {
	page, perPage = document.NormalizePage(page, perPage)

	s.mu.RLock()
	all := make([]user.User, 0, len(s.users))
	for _, u := range s.users {
		all = append(all, u)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].UpdatedAt.Equal(all[j].UpdatedAt) {
			return all[i].UpdatedAt.After(all[j].UpdatedAt)
		}
		return all[i].ID < all[j].ID
	})
	total := len(all)
	p := document.Page{TotalItems: total, CurrentPage: page, PerPage: perPage}
	return paginate(all, p.Offset(), perPage), total, nil
}

// Create stores a new user. Email must be unique.
func (s *UserStore) Create(ctx context.Context, u user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return ports.ErrDuplicate
	}
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return ports.ErrDuplicate
		}
	}
	s.users[u.ID] = u
	return nil
}

// Update modifies an existing user.
func (s *UserStore) Update(ctx context.Context, u user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return ports.ErrNotFound
	}
	for id, existing := range s.users {
		if id != u.ID && existing.Email == u.Email {
			return ports.ErrDuplicate
		}
	}
	s.users[u.ID] = u
	return nil
}

// Delete removes a user.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.users, id)
	return nil
}

// RoleStore is an in-memory implementation of ports.RoleStore.
type RoleStore struct {
	mu    sync.RWMutex
	roles map[string]user.Role // by name
}

// NewRoleStore creates a new in-memory role store.
func NewRoleStore() *RoleStore {
	return &RoleStore{roles: make(map[string]user.Role)}
}

// Get retrieves a role by name.
func (s *RoleStore) Get(ctx context.Context, name string) (user.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.roles[name]
	if !ok {
		return user.Role{}, ports.ErrNotFound
	}
	return r, nil
}

// List returns all roles ordered by name.
func (s *RoleStore) List(ctx context.Context) ([]user.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]user.Role, 0, len(s.roles))
	for _, r := range s.roles {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	return all, nil
}

// Create stores a new role.
func (s *RoleStore) Create(ctx context.Context, r user.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[r.Name]; ok {
		return ports.ErrDuplicate
	}
	s.roles[r.Name] = r
	return nil
}

// Update modifies a role's scopes.
func (s *RoleStore) Update(ctx context.Context, r user.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[r.Name]; !ok {
		return ports.ErrNotFound
	}
	s.roles[r.Name] = r
	return nil
}

// Delete removes a role.
func (s *RoleStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[name]; !ok {
		return ports.ErrNotFound
	}
	delete(s.roles, name)
	return nil
}

// Ensure interface compliance.
var (
	_ ports.UserStore = (*UserStore)(nil)
	_ ports.RoleStore = (*RoleStore)(nil)
)
