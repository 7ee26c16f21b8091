package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trezcool/shule/core/auth"
	"github.com/trezcool/shule/core/user"
)

type (
	authApi struct {
		deps    ServerDeps
		metrics *metrics
	}

	LoginResponse struct {
		Success      bool        `json:"success"`
		Message      string      `json:"message"`
		OTPRequired  bool        `json:"otp_required,omitempty"`
		OTPSessionID string      `json:"otp_session_id,omitempty"`
		UserID       string      `json:"user_id,omitempty"`
		Dashboard    string      `json:"dashboard,omitempty"`
		User         interface{} `json:"user,omitempty"`
	}
)

func registerAuthAPI(g *echo.Group, limiter echo.MiddlewareFunc, deps ServerDeps, m *metrics) {
	api := authApi{deps: deps, metrics: m}

	ag := g.Group("/auth")
	ag.POST("/login", api.login, limiter)
	ag.POST("/otp/verify", api.verifyOTP, limiter)
	ag.POST("/otp/resend", api.resendOTP, limiter)
	ag.POST("/logout", api.logout)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var req auth.LoginRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	res, err := api.deps.AuthSvc.Login(ctx.Request().Context(), req)
	api.count(api.metrics.logins, res, err)
	if err != nil {
		return err
	}
	return api.respond(ctx, res)
}

func (api *authApi) verifyOTP(ctx echo.Context) error {
	var req auth.VerifyOTPRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to VerifyOTPRequest")
	}
	res, err := api.deps.AuthSvc.VerifyOTP(ctx.Request().Context(), req)
	api.count(api.metrics.otpVerifications, res, err)
	if err != nil {
		return err
	}
	return api.respond(ctx, res)
}

func (api *authApi) resendOTP(ctx echo.Context) error {
	var req auth.ResendOTPRequest
	if err := ctx.Bind(&req); err != nil {
		return errors.Wrap(err, "binding to ResendOTPRequest")
	}
	res, err := api.deps.AuthSvc.ResendOTP(ctx.Request().Context(), req)
	api.count(api.metrics.otpResends, res, err)
	if err != nil {
		return err
	}
	return api.respond(ctx, res)
}

func (api *authApi) logout(ctx echo.Context) error {
	cookie, err := ctx.Cookie(api.deps.Conf.Session.CookieName)
	if err != nil || cookie.Value == "" {
		return errUnauthorized
	}
	if err = api.deps.AuthSvc.Logout(ctx.Request().Context(), cookie.Value); err != nil {
		return err
	}
	api.metrics.logouts.Inc()
	api.clearSessionCookie(ctx)
	return ctx.JSON(http.StatusOK, LoginResponse{Success: true, Message: "logged out"})
}

// Helpers

func (api *authApi) respond(ctx echo.Context, res auth.Result) error {
	resp := LoginResponse{Success: res.Success, Message: res.Message}

	switch {
	case res.OTPRequired:
		resp.OTPRequired = true
		resp.OTPSessionID = res.OTPSessionID
		resp.UserID = res.User.ID
	case res.Success:
		api.setSessionCookie(ctx, res.SessionID)
		resp.UserID = res.User.ID
		resp.Dashboard = user.DashboardPath(res.User.Role)
		resp.User = user.PublicView(res.User)
	}
	return ctx.JSON(res.Status, resp)
}

func (api *authApi) count(vec *prometheus.CounterVec, res auth.Result, err error) {
	switch {
	case err != nil:
		if _, ok := errors.Cause(err).(validator.ValidationErrors); ok {
			vec.WithLabelValues(outcomeInvalid, strconv.Itoa(http.StatusBadRequest)).Inc()
		} else {
			vec.WithLabelValues(outcomeError, strconv.Itoa(http.StatusInternalServerError)).Inc()
		}
	case res.OTPRequired:
		vec.WithLabelValues(outcomeOTPRequired, strconv.Itoa(res.Status)).Inc()
	case res.Success:
		vec.WithLabelValues(outcomeSuccess, strconv.Itoa(res.Status)).Inc()
	default:
		vec.WithLabelValues(outcomeRejected, strconv.Itoa(res.Status)).Inc()
	}
}

func (api *authApi) setSessionCookie(ctx echo.Context, sessionID string) {
	ttl := api.deps.Conf.Session.LoginTTL
	ctx.SetCookie(&http.Cookie{
		Name:     api.deps.Conf.Session.CookieName,
		Value:    sessionID,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   !api.deps.Conf.Debug,
		SameSite: http.SameSiteLaxMode,
	})
}

func (api *authApi) clearSessionCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     api.deps.Conf.Session.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !api.deps.Conf.Debug,
		SameSite: http.SameSiteLaxMode,
	})
}
