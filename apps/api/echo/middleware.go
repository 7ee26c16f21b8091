package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/trezcool/shule/core/auth"
	"github.com/trezcool/shule/core/session"
	"github.com/trezcool/shule/core/user"
)

var (
	contextSessionKey = "session"
	contextUserKey    = "user"
)

// sessionMiddleware authenticates requests with the session cookie and stores the session & user in the context.
func sessionMiddleware(svc *auth.Service, cookieName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			cookie, err := ctx.Cookie(cookieName)
			if err != nil || cookie.Value == "" {
				return errUnauthorized
			}
			sess, usr, err := svc.Authenticate(ctx.Request().Context(), cookie.Value)
			if err != nil {
				switch err {
				case auth.ErrUnauthenticated:
					return errUnauthorized
				case auth.ErrAccountDeactivated:
					return errAccountDeactivated
				case auth.ErrSchoolUnavailable:
					return errSchoolUnavailable
				}
				return errors.Wrap(err, "authenticating session")
			}
			ctx.Set(contextSessionKey, sess)
			ctx.Set(contextUserKey, usr)
			return next(ctx)
		}
	}
}

// roleMiddleware only lets users having one of roles through. Must run after sessionMiddleware.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := getContextUser(ctx)
			if err != nil {
				return err
			}
			if usr.HasAnyRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// authRateLimiter limits the unauthenticated auth endpoints per client IP.
func (s *Server) authRateLimiter() echo.MiddlewareFunc {
	conf := s.deps.Conf.Server
	if conf.LoginRateLimit <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}

	burst := conf.LoginRateBurst
	if burst <= 0 {
		burst = 1
	}
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(conf.LoginRateLimit),
		Burst:     burst,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, "cannot identify client")
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			return errTooManyRequests
		},
	})
}

func getContextSession(ctx echo.Context) (session.Session, error) {
	if sess, ok := ctx.Get(contextSessionKey).(session.Session); ok {
		return sess, nil
	}
	return session.Session{}, errUnauthorized
}

func getContextUser(ctx echo.Context) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}
	return user.User{}, errUnauthorized
}
