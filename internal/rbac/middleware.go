package rbac

import (
	"log/slog"
	"net/http"

	"github.com/folio-cms/folio/internal/platform/httpx"
)

// Middleware wires authorization checks in front of HTTP handlers.
type Middleware struct {
	Authorizer Authorizer
	Logger     *slog.Logger
}

// Require blocks the request unless the current actor may perform the
// coarse action on the resource.
func (m Middleware) Require(resource string, action Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			if m.Authorizer != nil && m.Authorizer.Allows(r.Context(), actor, resource, action, nil) {
				next.ServeHTTP(w, r)
				return
			}
			m.deny(w, r, actor, resource, action)
		})
	}
}

// RequireAuthenticated blocks guests.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !ActorFromContext(r.Context()).Authenticated() {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, actor *Actor, resource string, action Action) {
	if m.Logger != nil {
		var userID int64
		if actor != nil {
			userID = actor.ID
		}
		m.Logger.Info("rbac denied",
			slog.String("resource", resource),
			slog.String("action", string(action)),
			slog.Int64("user_id", userID),
			slog.String("path", r.URL.Path),
		)
	}
	httpx.RespondError(w, &ForbiddenError{Resource: resource, Action: action})
}
