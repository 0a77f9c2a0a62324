package app

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/stencilcms/stencil/domain/document"
	"github.com/stencilcms/stencil/domain/user"
	"github.com/stencilcms/stencil/domain/webhook"
	"github.com/stencilcms/stencil/ports"
)

// ErrInvalidCredentials is returned for a failed login. It is
// deliberately the same for unknown email and wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// SessionTTL is how long issued session tokens stay valid.
const SessionTTL = 24 * time.Hour

// UserService manages accounts, sessions, and API keys.
type UserService struct {
	users    ports.UserStore
	roles    ports.RoleStore
	hasher   ports.Hasher
	tokens   ports.TokenAuthority
	mail     ports.EmailSender
	notifier Notifier
	clock    ports.Clock
	idgen    ports.IDGenerator
	logger   zerolog.Logger

	sessionTTL time.Duration
	keyPrefix  string
}

// UserOptions tunes session and API key issuance. Zero values fall back
// to defaults.
type UserOptions struct {
	SessionTTL time.Duration
	KeyPrefix  string
}

// NewUserService creates a user service with default options.
func NewUserService(
	users ports.UserStore,
	roles ports.RoleStore,
	hasher ports.Hasher,
	tokens ports.TokenAuthority,
	mail ports.EmailSender,
	notifier Notifier,
	clock ports.Clock,
	idgen ports.IDGenerator,
	logger zerolog.Logger,
) *UserService {
	return NewUserServiceWithOptions(users, roles, hasher, tokens, mail, notifier, clock, idgen, logger, UserOptions{})
}

// NewUserServiceWithOptions creates a user service.
func NewUserServiceWithOptions(
	users ports.UserStore,
	roles ports.RoleStore,
	hasher ports.Hasher,
	tokens ports.TokenAuthority,
	mail ports.EmailSender,
	notifier Notifier,
	clock ports.Clock,
	idgen ports.IDGenerator,
	logger zerolog.Logger,
	opts UserOptions,
) *UserService {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = SessionTTL
	}
	return &UserService{
		users:      users,
		roles:      roles,
		hasher:     hasher,
		tokens:     tokens,
		mail:       mail,
		notifier:   notifier,
		clock:      clock,
		idgen:      idgen,
		logger:     logger,
		sessionTTL: opts.SessionTTL,
		keyPrefix:  opts.KeyPrefix,
	}
}

// UpdateUserInput is a partial user update. Nil pointers mean "leave
// unchanged".
type UpdateUserInput struct {
	FirstName *string
	LastName  *string
	Password  *string
	Roles     *[]string
	Scopes    *[]string
}

// Get retrieves a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (user.User, error) {
	return s.users.Get(ctx, id)
}

// GetByEmail retrieves a user by email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return s.users.GetByEmail(ctx, email)
}

// List returns users plus pagination metadata.
func (s *UserService) List(ctx context.Context, page, perPage int) ([]user.User, document.Page, error) {
	page, perPage = document.NormalizePage(page, perPage)
	users, total, err := s.users.List(ctx, page, perPage)
	if err != nil {
		return nil, document.Page{}, wrapStoreErr("list users", err)
	}
	return users, document.Page{TotalItems: total, CurrentPage: page, PerPage: perPage}, nil
}

// Create registers a new account. The welcome mail goes out after the
// user is stored, fire-and-forget; delivery failure never unwinds the
// account.
func (s *UserService) Create(ctx context.Context, req user.CreateRequest) (user.User, error) {
	if result := user.ValidateCreate(req); !result.Valid {
		return user.User{}, &ValidationError{Errors: result.Errors}
	}

	if _, err := s.users.GetByEmail(ctx, req.Email); err == nil {
		return user.User{}, ErrConflict
	} else if !errors.Is(err, ErrNotFound) {
		return user.User{}, wrapStoreErr("check email", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return user.User{}, wrapStoreErr("hash password", err)
	}

	now := s.clock.Now().UTC()
	u := user.User{
		ID:           s.idgen.New(),
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
		Roles:        req.Roles,
		Scopes:       req.Scopes,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, ErrConflict) {
			return user.User{}, ErrConflict
		}
		return user.User{}, wrapStoreErr("create user", err)
	}

	s.logger.Info().Str("user_id", u.ID).Str("email", u.Email).Msg("user created")

	go func(to, name string) {
		if err := s.mail.SendWelcome(context.Background(), to, name); err != nil {
			s.logger.Warn().Err(err).Str("email", to).Msg("welcome mail failed")
		}
	}(u.Email, u.FullName())

	s.notifier.Notify(ctx, webhook.Event{
		ID:        webhook.GenerateEventID(),
		Type:      webhook.EventUserCreated,
		UserID:    u.ID,
		Timestamp: now,
		Data:      map[string]any{"userId": u.ID, "email": u.Email},
	})
	return u, nil
}

// Update applies a partial update to a user.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (user.User, error) {
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if in.FirstName != nil {
		u.FirstName = *in.FirstName
	}
	if in.LastName != nil {
		u.LastName = *in.LastName
	}
	if in.Roles != nil {
		u.Roles = *in.Roles
	}
	if in.Scopes != nil {
		u.Scopes = *in.Scopes
	}
	if in.Password != nil {
		if result := user.ValidateCreate(user.CreateRequest{
			Email: u.Email, FirstName: u.FirstName, Password: *in.Password,
		}); !result.Valid {
			if msg, ok := result.Errors["password"]; ok {
				return user.User{}, NewValidationError("password", msg)
			}
		}
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return user.User{}, wrapStoreErr("hash password", err)
		}
		u.PasswordHash = hash
	}

	u.UpdatedAt = s.clock.Now().UTC()
	if err := s.users.Update(ctx, u); err != nil {
		return user.User{}, wrapStoreErr("update user", err)
	}
	return u, nil
}

// Remove deletes a user. Returns false when the user does not exist.
func (s *UserService) Remove(ctx context.Context, id string) (bool, error) {
	err := s.users.Delete(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapStoreErr("delete user", err)
	}
	s.logger.Info().Str("user_id", id).Msg("user removed")
	return true, nil
}

// Login verifies credentials and issues a session token.
func (s *UserService) Login(ctx context.Context, email, password string) (string, user.User, error) {
	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return "", user.User{}, ErrInvalidCredentials
	}
	if err != nil {
		return "", user.User{}, wrapStoreErr("get user", err)
	}
	if !s.hasher.Compare(u.PasswordHash, password) {
		return "", user.User{}, ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(ports.Claims{UserID: u.ID, Email: u.Email}, s.sessionTTL)
	if err != nil {
		return "", user.User{}, wrapStoreErr("issue token", err)
	}
	s.logger.Info().Str("user_id", u.ID).Msg("user logged in")
	return token, u, nil
}

// VerifyToken resolves a session token to its user.
func (s *UserService) VerifyToken(ctx context.Context, token string) (user.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return user.User{}, ErrInvalidCredentials
	}
	return s.users.Get(ctx, claims.UserID)
}

// EffectiveScopes returns the union of a user's own scopes and the
// scopes of all held roles.
func (s *UserService) EffectiveScopes(ctx context.Context, u user.User) ([]string, error) {
	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, wrapStoreErr("list roles", err)
	}
	return user.EffectiveScopes(u, roles), nil
}

// CreateAPIKey issues a new API key for a user. The raw key is returned
// exactly once; only its hash is stored.
func (s *UserService) CreateAPIKey(ctx context.Context, userID string) (string, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return "", err
	}

	raw := user.GenerateAPIKey(s.keyPrefix)
	hash, err := s.hasher.Hash(raw)
	if err != nil {
		return "", wrapStoreErr("hash api key", err)
	}

	u.APIKeys = append(u.APIKeys, string(hash))
	u.UpdatedAt = s.clock.Now().UTC()
	if err := s.users.Update(ctx, u); err != nil {
		return "", wrapStoreErr("store api key", err)
	}
	s.logger.Info().Str("user_id", userID).Msg("api key created")
	return raw, nil
}

// RevokeAPIKey removes the key at the given index. Returns false when
// the index is out of range.
func (s *UserService) RevokeAPIKey(ctx context.Context, userID string, index int) (bool, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if index < 0 || index >= len(u.APIKeys) {
		return false, nil
	}

	u.APIKeys = append(u.APIKeys[:index], u.APIKeys[index+1:]...)
	u.UpdatedAt = s.clock.Now().UTC()
	if err := s.users.Update(ctx, u); err != nil {
		return false, wrapStoreErr("revoke api key", err)
	}
	s.logger.Info().Str("user_id", userID).Int("index", index).Msg("api key revoked")
	return true, nil
}

// AuthenticateAPIKey resolves a raw API key to its user by comparing it
// against every stored key hash. Admin user counts keep this cheap.
func (s *UserService) AuthenticateAPIKey(ctx context.Context, raw string) (user.User, error) {
	page := 1
	for {
		users, total, err := s.users.List(ctx, page, 100)
		if err != nil {
			return user.User{}, wrapStoreErr("list users", err)
		}
		for _, u := range users {
			for _, hash := range u.APIKeys {
				if s.hasher.Compare([]byte(hash), raw) {
					return u, nil
				}
			}
		}
		if page*100 >= total {
			return user.User{}, ErrInvalidCredentials
		}
		page++
	}
}

// Roles

// ListRoles returns all roles.
func (s *UserService) ListRoles(ctx context.Context) ([]user.Role, error) {
	return s.roles.List(ctx)
}

// CreateRole stores a named scope bundle.
func (s *UserService) CreateRole(ctx context.Context, name string, scopes []string) (user.Role, error) {
	if name == "" {
		return user.Role{}, NewValidationError("name", "Role name is required")
	}
	now := s.clock.Now().UTC()
	r := user.Role{Name: name, Scopes: scopes, CreatedAt: now, UpdatedAt: now}
	if err := s.roles.Create(ctx, r); err != nil {
		if errors.Is(err, ErrConflict) {
			return user.Role{}, ErrConflict
		}
		return user.Role{}, wrapStoreErr("create role", err)
	}
	return r, nil
}

// UpdateRole replaces a role's scopes.
func (s *UserService) UpdateRole(ctx context.Context, name string, scopes []string) (user.Role, error) {
	r, err := s.roles.Get(ctx, name)
	if err != nil {
		return user.Role{}, err
	}
	r.Scopes = scopes
	r.UpdatedAt = s.clock.Now().UTC()
	if err := s.roles.Update(ctx, r); err != nil {
		return user.Role{}, wrapStoreErr("update role", err)
	}
	return r, nil
}

// RemoveRole deletes a role. Returns false when it does not exist.
func (s *UserService) RemoveRole(ctx context.Context, name string) (bool, error) {
	err := s.roles.Delete(ctx, name)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapStoreErr("delete role", err)
	}
	return true, nil
}
