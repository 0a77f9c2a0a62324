package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/stencilcms/stencil/domain/user"
	"github.com/stencilcms/stencil/ports"
)

// RoleStore implements ports.RoleStore with SQLite.
type RoleStore struct {
	db *DB
}

// NewRoleStore creates a SQLite-backed role store.
func NewRoleStore(db *DB) *RoleStore {
	return &RoleStore{db: db}
}

// Get retrieves a role by name.
func (s *RoleStore) Get(ctx context.Context, name string) (user.Role, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT name, scopes, created_at, updated_at FROM roles WHERE name = ?
	`, name)

	r, err := scanRole(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.Role{}, ErrNotFound
		}
		return user.Role{}, fmt.Errorf("get role: %w", err)
	}
	return r, nil
}

// List returns all roles ordered by name.
func (s *RoleStore) List(ctx context.Context) ([]user.Role, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, scopes, created_at, updated_at FROM roles ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var roles []user.Role
	for rows.Next() {
		r, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, r)
	}
	return roles, rows.Err()
}

// Create stores a new role.
func (s *RoleStore) Create(ctx context.Context, r user.Role) error {
	scopes, err := encodeStrings(r.Scopes)
	if err != nil {
		return fmt.Errorf("encode role scopes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO roles (name, scopes, created_at, updated_at) VALUES (?, ?, ?, ?)
	`, r.Name, scopes, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create role: %w", err)
	}
	return nil
}

// Update modifies a role's scopes.
func (s *RoleStore) Update(ctx context.Context, r user.Role) error {
	scopes, err := encodeStrings(r.Scopes)
	if err != nil {
		return fmt.Errorf("encode role scopes: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE roles SET scopes = ?, updated_at = ? WHERE name = ?
	`, scopes, r.UpdatedAt, r.Name)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a role.
func (s *RoleStore) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM roles WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanRole(row rowScanner) (user.Role, error) {
	var r user.Role
	var scopes string
	if err := row.Scan(&r.Name, &scopes, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return user.Role{}, err
	}
	var err error
	if r.Scopes, err = decodeStrings(scopes); err != nil {
		return user.Role{}, fmt.Errorf("decode role scopes: %w", err)
	}
	return r, nil
}

// Ensure interface compliance.
var _ ports.RoleStore = (*RoleStore)(nil)
