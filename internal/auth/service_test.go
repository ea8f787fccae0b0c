package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/safevault/safevault/internal/shared"
)

type memoryRepo struct {
	byEmail    map[string]*User
	byUsername map[string]*User
	sessions   map[string]int64
	nextID     int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		byEmail:    make(map[string]*User),
		byUsername: make(map[string]*User),
		sessions:   make(map[string]int64),
	}
}

func (r *memoryRepo) FindByEmail(ctx context.Context, email string) (*User, error) {
	user, ok := r.byEmail[email]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return user, nil
}

func (r *memoryRepo) CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error) {
	if _, ok := r.byUsername[username]; ok {
		return nil, shared.ErrDuplicateUsername
	}
	if _, ok := r.byEmail[email]; ok {
		return nil, shared.ErrDuplicateEmail
	}
	r.nextID++
	user := &User{ID: r.nextID, Username: username, Email: email, PasswordHash: passwordHash, IsActive: true}
	r.byEmail[email] = user
	r.byUsername[username] = user
	return user, nil
}

func (r *memoryRepo) CreateSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	r.sessions[id] = userID
	return nil
}

func (r *memoryRepo) DeleteSession(ctx context.Context, id string) error {
	delete(r.sessions, id)
	return nil
}

func TestRegisterStoresVerifiableHash(t *testing.T) {
	repo := newMemoryRepo()
	service := NewService(repo)

	user, err := service.Register(context.Background(), Registration{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "Password123!",
	})
	require.NoError(t, err)
	require.NotEmpty(t, user.PasswordHash)
	require.NotEqual(t, "Password123!", user.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("Password123!")))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	repo := newMemoryRepo()
	service := NewService(repo)

	_, err := service.Register(context.Background(), Registration{Username: "alice", Email: "alice@example.com", Password: "Password123!"})
	require.NoError(t, err)

	_, err = service.Register(context.Background(), Registration{Username: "other", Email: "alice@example.com", Password: "Password123!"})
	require.ErrorIs(t, err, shared.ErrDuplicateEmail)
	require.Len(t, repo.byEmail, 1)
}

func TestRegisterGuardsAgainstUnsafeInput(t *testing.T) {
	repo := newMemoryRepo()
	service := NewService(repo)

	_, err := service.Register(context.Background(), Registration{
		Username: "alice'; DROP TABLE users--",
		Email:    "alice@example.com",
		Password: "Password123!",
	})
	require.ErrorIs(t, err, shared.ErrUnsafeInput)
	require.Empty(t, repo.byEmail)
}

func TestRegisterGuardsAgainstMissingFields(t *testing.T) {
	repo := newMemoryRepo()
	service := NewService(repo)

	cases := map[string]Registration{
		"no username": {Email: "alice@example.com", Password: "Password123!"},
		"no email":    {Username: "alice", Password: "Password123!"},
		"no password": {Username: "alice", Email: "alice@example.com"},
	}
	for name, reg := range cases {
		_, err := service.Register(context.Background(), reg)
		require.ErrorIs(t, err, shared.ErrValidation, name)
	}
	require.Empty(t, repo.byEmail)
}

func TestAuthenticateSuccess(t *testing.T) {
	repo := newMemoryRepo()
	service := NewService(repo)

	_, err := service.Register(context.Background(), Registration{Username: "alice", Email: "alice@example.com", Password: "Password123!"})
	require.NoError(t, err)

	user, err := service.Authenticate(context.Background(), "alice@example.com", "Password123!")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", user.Email)
}

func TestAuthenticateFailuresAreIndistinguishable(t *testing.T) {
	repo := newMemoryRepo()
	service := NewService(repo)

	_, err := service.Register(context.Background(), Registration{Username: "alice", Email: "alice@example.com", Password: "Password123!"})
	require.NoError(t, err)

	inactive, err := service.Register(context.Background(), Registration{Username: "bob", Email: "bob@example.com", Password: "Password123!"})
	require.NoError(t, err)
	inactive.IsActive = false

	cases := map[string]struct {
		email    string
		password string
	}{
		"unknown account":  {"ghost@example.com", "Password123!"},
		"wrong password":   {"alice@example.com", "WrongPassword!"},
		"inactive account": {"bob@example.com", "Password123!"},
	}
	for name, tc := range cases {
		_, err := service.Authenticate(context.Background(), tc.email, tc.password)
		require.ErrorIs(t, err, shared.ErrInvalidLogin, name)
	}
}
