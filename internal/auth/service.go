package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/safevault/safevault/internal/sanitize"
	"github.com/safevault/safevault/internal/shared"
)

// Service wraps registration and authentication business rules.
type Service struct {
	repo Repository
}

// NewService constructs a new Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Register hashes the password and creates the account. The plaintext is
// hashed, never sanitized: it is not rendered or queried as structured
// text. No session is issued; registration and login are decoupled.
// Inputs are re-checked here so the store is guarded even when a caller
// skips the handler-level screening.
func (s *Service) Register(ctx context.Context, reg Registration) (*User, error) {
	if !sanitize.IsInputSafe(reg.Username) || !sanitize.IsInputSafe(reg.Email) || !sanitize.IsInputSafe(reg.Password) {
		return nil, shared.ErrUnsafeInput
	}
	if reg.Username == "" || reg.Email == "" || reg.Password == "" {
		return nil, shared.ErrValidation
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.CreateUser(ctx, reg.Username, reg.Email, string(hash))
}

// Authenticate validates email/password credentials. Every failure,
// unknown account included, returns shared.ErrInvalidLogin so callers
// cannot enumerate accounts.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	user, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidLogin
	}
	if !user.IsActive {
		return nil, shared.ErrInvalidLogin
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidLogin
	}
	return user, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
