package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/session"
	"github.com/trezcool/shule/core/user"
)

type (
	dashboardApi struct {
		deps ServerDeps
	}

	DashboardResponse struct {
		Dashboard        string      `json:"dashboard"`
		User             interface{} `json:"user"`
		SessionExpiresIn int64       `json:"session_expires_in"` // seconds
	}
)

func registerDashboardAPI(g *echo.Group, sessionMw echo.MiddlewareFunc, deps ServerDeps) {
	api := dashboardApi{deps: deps}

	g.GET("/me", api.me, sessionMw)

	dg := g.Group("/dashboard", sessionMw)
	dg.GET("/student", api.dashboard(user.DashboardStudent), roleMiddleware(user.RoleStudent))
	dg.GET("/teacher", api.dashboard(user.DashboardTeacher), roleMiddleware(user.RoleTeacher))
	dg.GET("/admin", api.dashboard(user.DashboardAdmin), roleMiddleware(user.RoleAdministrator, user.RoleSystemAdmin))
	dg.GET("/system", api.dashboard(user.DashboardSystem), roleMiddleware(user.RoleSystemAdmin))
}

func (api *dashboardApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx)
	if err != nil {
		return err
	}
	return api.render(ctx, user.DashboardPath(usr.Role), usr)
}

func (api *dashboardApi) dashboard(path string) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := getContextUser(ctx)
		if err != nil {
			return err
		}
		return api.render(ctx, path, usr)
	}
}

func (api *dashboardApi) render(ctx echo.Context, path string, usr user.User) error {
	sess, err := getContextSession(ctx)
	if err != nil {
		return err
	}
	ttl, err := api.deps.AuthSvc.SessionTTL(ctx.Request().Context(), sess.ID)
	if err != nil {
		if err == session.ErrNotFound {
			return errUnauthorized
		}
		return errors.Wrap(err, "getting session ttl")
	}
	return ctx.JSON(http.StatusOK, DashboardResponse{
		Dashboard:        path,
		User:             user.PublicView(usr),
		SessionExpiresIn: int64(ttl / time.Second),
	})
}
