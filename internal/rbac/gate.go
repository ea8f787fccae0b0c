package rbac

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/safevault/safevault/internal/shared"
)

// Decision is the outcome of an authorization check over a protected
// resource.
type Decision int

const (
	// DecisionLogin means the request carries no authenticated principal.
	DecisionLogin Decision = iota
	// DecisionDenied means the principal is authenticated but lacks the
	// required role.
	DecisionDenied
	// DecisionAllow means the resource may be served.
	DecisionAllow
)

// Decide computes the gate outcome from explicit inputs. It is a pure
// function of (principal, required role, granted roles): no ambient
// request state is consulted, so the check is testable in isolation.
// The three outcomes are mutually exclusive and exhaustive.
func Decide(principal, required string, granted []string) Decision {
	if principal == "" {
		return DecisionLogin
	}
	for _, role := range granted {
		if strings.EqualFold(role, required) {
			return DecisionAllow
		}
	}
	return DecisionDenied
}

// RoleSource resolves the role set of a principal.
type RoleSource interface {
	UserRoles(ctx context.Context, userID int64) ([]string, error)
}

// Gate guards protected resources. It keeps no state of its own: every
// request recomputes the decision from the session and the role store.
type Gate struct {
	Roles      RoleSource
	Logger     *slog.Logger
	LoginPath  string
	DeniedPath string
}

// Require gates the wrapped handler behind the given role. Anonymous
// requests are redirected to the login page, authenticated requests
// without the role to the access-denied page.
func (g Gate) Require(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := g.currentPrincipal(r)

			var granted []string
			if principal != "" {
				userID, err := strconv.ParseInt(principal, 10, 64)
				if err != nil {
					if g.Logger != nil {
						g.Logger.Error("gate parse principal", slog.String("value", principal))
					}
					http.Redirect(w, r, g.loginPath(), http.StatusSeeOther)
					return
				}
				granted, err = g.Roles.UserRoles(r.Context(), userID)
				if err != nil {
					if g.Logger != nil {
						g.Logger.Error("gate role lookup", slog.Any("error", err))
					}
					http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
					return
				}
			}

			switch Decide(principal, role, granted) {
			case DecisionAllow:
				next.ServeHTTP(w, r)
			case DecisionLogin:
				http.Redirect(w, r, g.loginPath(), http.StatusSeeOther)
			case DecisionDenied:
				http.Redirect(w, r, g.deniedPath(), http.StatusSeeOther)
			}
		})
	}
}

func (g Gate) currentPrincipal(r *http.Request) string {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return ""
	}
	return strings.TrimSpace(sess.User())
}

func (g Gate) loginPath() string {
	if g.LoginPath != "" {
		return g.LoginPath
	}
	return "/auth/login"
}

func (g Gate) deniedPath() string {
	if g.DeniedPath != "" {
		return g.DeniedPath
	}
	return "/denied"
}
