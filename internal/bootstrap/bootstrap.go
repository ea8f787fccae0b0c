// Package bootstrap provisions the well-known administrative role and
// account at process start.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/safevault/safevault/internal/auth"
	"github.com/safevault/safevault/internal/rbac"
	"github.com/safevault/safevault/internal/shared"
)

// AccountStore is the slice of the credential store bootstrap needs.
type AccountStore interface {
	FindByEmail(ctx context.Context, email string) (*auth.User, error)
	CreateUser(ctx context.Context, username, email, passwordHash string) (*auth.User, error)
}

// Params groups bootstrap dependencies. AdminPassword is a provisioning
// secret supplied through configuration, never a literal.
type Params struct {
	Logger        *slog.Logger
	Accounts      AccountStore
	Roles         rbac.Store
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// Run ensures the Admin role and the administrative account exist.
// Idempotent: a second run creates nothing and never resets an existing
// admin's password.
func Run(ctx context.Context, p Params) error {
	if p.AdminPassword == "" {
		return errors.New("bootstrap: admin password must be provided")
	}

	// Read before write: a normal boot against a provisioned database
	// touches nothing.
	role, err := p.Roles.GetRoleByName(ctx, rbac.AdminRole)
	if errors.Is(err, rbac.ErrNotFound) {
		role, err = p.Roles.EnsureRole(ctx, rbac.AdminRole, "Full administrative access")
	}
	if err != nil {
		return fmt.Errorf("bootstrap: ensure role: %w", err)
	}

	existing, err := p.Accounts.FindByEmail(ctx, p.AdminEmail)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("bootstrap: find admin: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(p.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("bootstrap: hash admin password: %w", err)
	}

	user, err := p.Accounts.CreateUser(ctx, p.AdminUsername, p.AdminEmail, string(hash))
	if err != nil {
		return fmt.Errorf("bootstrap: create admin: %w", err)
	}
	if err := p.Roles.AssignRole(ctx, user.ID, role.ID); err != nil {
		return fmt.Errorf("bootstrap: assign role: %w", err)
	}

	if p.Logger != nil {
		p.Logger.Info("admin account provisioned", slog.String("email", p.AdminEmail))
	}
	return nil
}
