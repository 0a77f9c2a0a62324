package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/user"
	"github.com/stencilcms/stencil/ports"
)

// UserStore implements ports.UserStore with SQLite. String slices
// (roles, scopes, api keys) are stored as JSON arrays.
type UserStore struct {
	db *DB
}

// NewUserStore creates a SQLite-backed user store.
func NewUserStore(db *DB) *UserStore {
	return &UserStore{db: db}
}

const userColumns = "id, email, first_name, last_name, password_hash, roles, scopes, api_keys, created_at, updated_at"

// Get retrieves a user by ID.
func (s *UserStore) Get(ctx context.Context, id string) (user.User, error) {
	return s.getBy(ctx, "id", id)
}

// GetByEmail retrieves a user by email.
func (s *UserStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return s.getBy(ctx, "email", email)
}

func (s *UserStore) getBy(ctx context.Context, column, value string) (user.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+userColumns+` FROM users WHERE `+column+` = ?
	`, value)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, ErrNotFound
		}
		return user.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// List returns users ordered by most recent update, plus a total.
func (s *UserStore) List(ctx context.Context, page, perPage int) ([]user.User, int, error) {
	page, perPage = document.NormalizePage(page, perPage)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	p := document.Page{TotalItems: total, CurrentPage: page, PerPage: perPage}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+userColumns+` FROM users
		ORDER BY updated_at DESC, id LIMIT ? OFFSET ?
	`, perPage, p.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// Create stores a new user.
func (s *UserStore) Create(ctx context.Context, u user.User) error {
	roles, scopes, keys, err := encodeUserLists(u)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, first_name, last_name, password_hash, roles, scopes, api_keys, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.FirstName, u.LastName, u.PasswordHash, roles, scopes, keys, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update modifies an existing user.
func (s *UserStore) Update(ctx context.Context, u user.User) error {
	roles, scopes, keys, err := encodeUserLists(u)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET email = ?, first_name = ?, last_name = ?, password_hash = ?,
		    roles = ?, scopes = ?, api_keys = ?, updated_at = ?
		WHERE id = ?
	`, u.Email, u.FirstName, u.LastName, u.PasswordHash, roles, scopes, keys, u.UpdatedAt, u.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a user.
func (s *UserStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func encodeUserLists(u user.User) (roles, scopes, keys string, err error) {
	if roles, err = encodeStrings(u.Roles); err != nil {
		return "", "", "", fmt.Errorf("encode roles: %w", err)
	}
	if scopes, err = encodeStrings(u.Scopes); err != nil {
		return "", "", "", fmt.Errorf("encode scopes: %w", err)
	}
	if keys, err = encodeStrings(u.APIKeys); err != nil {
		return "", "", "", fmt.Errorf("encode api keys: %w", err)
	}
	return roles, scopes, keys, nil
}

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	var roles, scopes, keys string
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.PasswordHash,
		&roles, &scopes, &keys, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return user.User{}, err
	}
	if u.Roles, err = decodeStrings(roles); err != nil {
		return user.User{}, fmt.Errorf("decode roles: %w", err)
	}
	if u.Scopes, err = decodeStrings(scopes); err != nil {
		return user.User{}, fmt.Errorf("decode scopes: %w", err)
	}
	if u.APIKeys, err = decodeStrings(keys); err != nil {
		return user.User{}, fmt.Errorf("decode api keys: %w", err)
	}
	return u, nil
}

func encodeStrings(list []string) (string, error) {
	if list == nil {
		list = []string{}
	}
	raw, err := json.Marshal(list)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func decodeStrings(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list, nil
}

// Ensure interface compliance.
var _ ports.UserStore = (*UserStore)(nil)
