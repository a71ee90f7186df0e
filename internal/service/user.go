// Package service contains the business logic layer.
//
// Services orchestrate repositories, the meta store and storage. They
// validate input, enforce the download pack rules and translate database
// errors into domain errors.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"time"

	"github.com/DukeRupert/packs/internal/domain"
	"github.com/DukeRupert/packs/internal/repository"
)

const (
	// SessionTokenBytes is the number of random bytes in a session token.
	// Tokens are hex-encoded to 64 characters.
	SessionTokenBytes = 32

	// SessionDuration is how long a session issued by packsctl stays valid.
	SessionDuration = 7 * 24 * time.Hour
)

// UserService resolves members from session cookies and payment provider
// identifiers. Accounts themselves are managed by the membership site.
//
// This interface lets the auth middleware and the webhook handler be
// tested with hand-written mocks.
type UserService interface {
	// GetByID loads a member.
	// Returns domain.ENOTFOUND if the user does not exist.
	GetByID(ctx context.Context, id int64) (*domain.User, error)

	// GetBySessionToken resolves the raw cookie value. Only its SHA-256
	// hash is stored.
	// Returns domain.EUNAUTHORIZED if the token is invalid or expired.
	GetBySessionToken(ctx context.Context, token string) (*domain.User, error)

	// GetByStripeCustomerID finds the member billed as customerID.
	// Returns domain.ENOTFOUND for unknown customers.
	GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error)

	// CreateSession issues a raw session token for the user, valid for
	// SessionDuration. The token is returned once and cannot be recovered.
	CreateSession(ctx context.Context, userID int64) (string, error)

	// DeleteExpiredSessions removes expired sessions.
	DeleteExpiredSessions(ctx context.Context) error
}

type userService struct {
	queries *repository.Queries
	logger  *slog.Logger
}

// NewUserService creates a new UserService.
func NewUserService(queries *repository.Queries, logger *slog.Logger) UserService {
	return &userService{
		queries: queries,
		logger:  logger,
	}
}

func (s *userService) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	const op = "user.get_by_id"

	u, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id)
		}
		return nil, domain.Internal(err, op, "failed to load user")
	}
	return repoUserToDomain(u), nil
}

func (s *userService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	const op = "user.get_by_session"

	if len(token) != SessionTokenBytes*2 {
		return nil, domain.Unauthorized(op, "Invalid or expired session")
	}

	u, err := s.queries.GetUserBySessionToken(ctx, hashSessionToken(token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid or expired session")
		}
		return nil, domain.Internal(err, op, "failed to load session")
	}
	return repoUserToDomain(u), nil
}

func (s *userService) GetByStripeCustomerID(ctx context.Context, customerID string) (*domain.User, error) {
	const op = "user.get_by_stripe_customer"

	if customerID == "" {
		return nil, domain.Invalid(op, "customer ID is required")
	}

	u, err := s.queries.GetUserByStripeCustomerID(ctx, domain.ToNullString(customerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Errorf(domain.ENOTFOUND, op, "no member for customer %s", customerID)
		}
		return nil, domain.Internal(err, op, "failed to load user")
	}
	return repoUserToDomain(u), nil
}

func (s *userService) CreateSession(ctx context.Context, userID int64) (string, error) {
	const op = "user.create_session"

	b := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", domain.Internal(err, op, "failed to generate session token")
	}
	token := hex.EncodeToString(b)

	err := s.queries.CreateSession(ctx, repository.CreateSessionParams{
		TokenHash: hashSessionToken(token),
		UserID:    userID,
		ExpiresAt: time.Now().Add(SessionDuration),
	})
	if err != nil {
		return "", domain.Internal(err, op, "failed to create session")
	}

	s.logger.Info("session created", "user_id", userID)
	return token, nil
}

func (s *userService) DeleteExpiredSessions(ctx context.Context) error {
	const op = "user.delete_expired_sessions"

	if err := s.queries.DeleteExpiredSessions(ctx); err != nil {
		return domain.Internal(err, op, "failed to delete expired sessions")
	}
	s.logger.Info("expired sessions cleaned up")
	return nil
}

// hashSessionToken returns the SHA-256 hex digest stored in sessions.
func hashSessionToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

func repoUserToDomain(u repository.User) *domain.User {
	return &domain.User{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: domain.NullStringValue(u.FirstName),
		LastName:  domain.NullStringValue(u.LastName),
		CreatedAt: u.CreatedAt,
	}
}
