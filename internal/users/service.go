package users

import (
	"context"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/meridian-hr/meridian-hr/internal/events"
	"github.com/meridian-hr/meridian-hr/internal/permcache"
	"github.com/meridian-hr/meridian-hr/internal/shared"
)

// RepositoryPort defines data access methods for accounts.
type RepositoryPort interface {
	CreateUser(ctx context.Context, input CreateUserInput, passwordHash string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context, page, perPage int) ([]User, int, error)
	UpdateUser(ctx context.Context, id string, input UpdateUserInput, newHash string) (User, error)
	DeactivateUser(ctx context.Context, id string) error
}

// RoleReader reads role names for a principal. Satisfied by rbac.Service.
type RoleReader interface {
	RoleNames(ctx context.Context, userID string) ([]string, error)
}

// Service handles account business logic.
type Service struct {
	repo      RepositoryPort
	roles     RoleReader
	publisher *events.Publisher
	cache     *permcache.Cache
	audit     *shared.AuditLogger
	logger    *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, roles RoleReader, publisher *events.Publisher, cache *permcache.Cache, audit *shared.AuditLogger, logger *slog.Logger) *Service {
	return &Service{repo: repo, roles: roles, publisher: publisher, cache: cache, audit: audit, logger: logger}
}

// Create creates an account with a bcrypt-hashed credential. Used for
// both self-service sign-up and admin creation; sign-up callers must
// not be able to set IsSuperuser.
func (s *Service) Create(ctx context.Context, input CreateUserInput) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, input, string(hash))
}

// SignUp creates a regular account regardless of what the caller asked for.
func (s *Service) SignUp(ctx context.Context, input CreateUserInput) (User, error) {
	input.IsSuperuser = false
	return s.Create(ctx, input)
}

// Get returns an account with its role names.
func (s *Service) Get(ctx context.Context, id string) (User, error) {
	user, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if s.roles != nil {
		names, err := s.roles.RoleNames(ctx, id)
		if err != nil {
			s.warn("resolve role names", id, err)
		} else {
			user.Roles = names
		}
	}
	return user, nil
}

// List returns a page of accounts.
func (s *Service) List(ctx context.Context, page, perPage int) ([]User, shared.Pagination, error) {
	users, total, err := s.repo.ListUsers(ctx, page, perPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(page, perPage, total), nil
}

// Update applies profile changes, rehashing the credential when a new
// password is supplied.
func (s *Service) Update(ctx context.Context, actorID, id string, input UpdateUserInput) (User, error) {
	var newHash string
	if input.Password != nil && *input.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, err
		}
		newHash = string(hash)
	}
	user, err := s.repo.UpdateUser(ctx, id, input, newHash)
	if err != nil {
		return User{}, err
	}
	s.recordAudit(ctx, actorID, "user.update", id, map[string]any{"password_changed": newHash != ""})
	return user, nil
}

// Deactivate flips the account inactive, drops its cache entries and
// publishes user.deactivated. The account row is kept.
func (s *Service) Deactivate(ctx context.Context, actorID, id string) error {
	if err := s.repo.DeactivateUser(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.warn("cache invalidate on deactivate", id, err)
	}
	s.publisher.PublishBestEffort(ctx, events.NewUserDeactivated(id))
	s.recordAudit(ctx, actorID, "user.deactivate", id, nil)
	return nil
}

func (s *Service) recordAudit(ctx context.Context, actorID, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{ActorID: actorID, Action: action, Entity: "user", EntityID: entityID, Meta: meta}); err != nil {
		s.warn("audit record", entityID, err)
	}
}

func (s *Service) warn(msg, userID string, err error) {
	if s.logger != nil {
		s.logger.Warn(msg, slog.String("user_id", userID), slog.Any("error", err))
	}
}
