package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	"github.com/folio-cms/folio/internal/observability"
	"github.com/folio-cms/folio/internal/platform/httpx"
	"github.com/folio-cms/folio/internal/rbac"
	"github.com/folio-cms/folio/internal/shared"
)

// SessionLoader resolves the session behind a request.
type SessionLoader interface {
	Load(ctx context.Context, r *http.Request) (*shared.Session, error)
}

// ActorLoader turns a session's user into an authorization actor.
// A nil actor with a nil error means the user no longer exists.
type ActorLoader interface {
	LoadActor(ctx context.Context, userID int64) (*rbac.Actor, error)
}

// MiddlewareConfig aggregates dependencies shared by the middleware stack.
type MiddlewareConfig struct {
	Logger   *slog.Logger
	Config   *Config
	Sessions SessionLoader
	Actors   ActorLoader
	Metrics  *observability.Metrics
}

// MiddlewareStack installs the Folio middleware chain.
func MiddlewareStack(cfg MiddlewareConfig) []func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           cfg.Config != nil && cfg.Config.IsProduction(),
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         cfg.Config == nil || !cfg.Config.IsProduction(),
	})

	timeout := 30 * time.Second
	if cfg.Config != nil && cfg.Config.AppRequestTimeout > 0 {
		timeout = cfg.Config.AppRequestTimeout
	}
	perMinute := 120
	if cfg.Config != nil {
		perMinute = cfg.Config.RateLimitPerMinute
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.RealIP,
		middleware.RequestID,
		middleware.Recoverer,
		middleware.Timeout(timeout),
		func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if err := secureMiddleware.Process(w, r); err != nil {
					cfg.Logger.Warn("secure headers blocked request", slog.Any("error", err))
					httpx.Problem(w, http.StatusBadRequest, "Bad Request", "")
					return
				}
				next.ServeHTTP(w, r)
			})
		},
		middleware.Compress(5),
	}
	if perMinute > 0 {
		middlewares = append(middlewares, httprate.Limit(perMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "")
			}),
		))
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, cfg.Metrics.Middleware)
	}
	if cfg.Sessions != nil && cfg.Actors != nil {
		middlewares = append(middlewares, ActorMiddleware(cfg.Sessions, cfg.Actors, cfg.Logger))
	}
	return middlewares
}

// ActorMiddleware attaches the signed-in actor to the request context.
// Requests without a valid session continue as guests.
func ActorMiddleware(sessions SessionLoader, actors ActorLoader, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess, err := sessions.Load(ctx, r)
			if err != nil {
				logger.Error("failed to load session", slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			if sess == nil {
				next.ServeHTTP(w, r)
				return
			}
			actor, err := actors.LoadActor(ctx, sess.UserID)
			if err != nil {
				logger.Error("failed to load actor", slog.Int64("user_id", sess.UserID), slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			ctx = shared.ContextWithSession(ctx, sess)
			if actor != nil {
				ctx = rbac.ContextWithActor(ctx, actor)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserResolver checks that an account is still live.
type UserResolver interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// liveActorLoader only builds actors for accounts that are not soft deleted.
type liveActorLoader struct {
	users UserResolver
	rbac  ActorLoader
}

// NewActorLoader composes the account check with the permission core.
func NewActorLoader(users UserResolver, core ActorLoader) ActorLoader {
	return liveActorLoader{users: users, rbac: core}
}

func (l liveActorLoader) LoadActor(ctx context.Context, userID int64) (*rbac.Actor, error) {
	ok, err := l.users.Exists(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return l.rbac.LoadActor(ctx, userID)
}
