// Package auth coordinates password logins, one-time code step-up for system admins
// and the promotion of a validated login to a persisted session.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
	"net/http"
	"net/mail"
	"regexp"
	"strconv"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/session"
	"github.com/trezcool/shule/core/user"
)

// Result messages
const (
	MsgLoginSuccessful    = "login successful"
	MsgOTPRequired        = "otp required"
	MsgInvalidCredentials = "invalid credentials"
	MsgSchoolUnavailable  = "school unavailable"
	MsgAccountDeactivated = "account deactivated"
	MsgOTPExpired         = "otp expired or invalid"
	MsgInvalidOTP         = "invalid otp"
	MsgTooManyAttempts    = "too many attempts"
)

const (
	otpDigits       = 6
	otpTemplateName = "otp_verification"
)

var (
	ErrUnauthenticated    = errors.New("user not authenticated")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrSchoolUnavailable  = errors.New("school unavailable")

	otpTag   = "otp"
	otpText  = "{0} must be a 6 digit code"
	otpRegex = regexp.MustCompile(`^[0-9]{6}$`)

	otpMax = big.NewInt(1_000_000)

	generateOTP        = GenerateOTP             // mockable
	checkDummyPassword = user.CheckDummyPassword // mockable
)

type (
	Deps struct {
		Conf     *core.Config
		Logger   core.Logger
		Users    *user.Service
		Schools  *school.Service
		Sessions session.Store
		MailSvc  core.EmailService
		Validate *validator.Validate
	}

	Service struct {
		deps Deps
	}

	// Result is the outcome of a login step. Business failures are reported here;
	// malformed input and infrastructure failures are returned as errors.
	Result struct {
		Success      bool
		Message      string
		Status       int
		OTPRequired  bool
		OTPSessionID string
		SessionID    string
		User         user.User
	}

	LoginRequest struct {
		TenantID string `json:"tenant_id" validate:"required"`
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	VerifyOTPRequest struct {
		TenantID     string `json:"tenant_id" validate:"required"`
		UserID       string `json:"user_id" validate:"required"`
		OTPSessionID string `json:"otp_session_id" validate:"required"`
		OTP          string `json:"otp" validate:"required,otp"`
	}

	ResendOTPRequest struct {
		TenantID     string `json:"tenant_id" validate:"required"`
		UserID       string `json:"user_id" validate:"required"`
		OTPSessionID string `json:"otp_session_id" validate:"required"`
	}

	OTPEmailData struct {
		Name     string
		Code     string
		ValidFor int // minutes
	}
)

func NewService(deps Deps) *Service {
	return &Service{deps: deps}
}

func failure(msg string, status int) Result {
	return Result{Message: msg, Status: status}
}

// Login checks the credentials of a user of a school.
// System admins get an otp_verification session and a code by email instead of a login session.
func (svc *Service) Login(ctx context.Context, req LoginRequest) (Result, error) {
	req.TenantID = core.CleanString(req.TenantID)
	req.Username = core.CleanString(req.Username, true /* lower */)
	if err := svc.deps.Validate.Struct(req); err != nil {
		return Result{}, err
	}

	sch, err := svc.deps.Schools.Resolve(ctx, req.TenantID)
	if err != nil {
		if err == school.ErrNotFound {
			return failure(MsgInvalidCredentials, http.StatusUnauthorized), nil
		}
		return Result{}, errors.Wrap(err, "resolving school")
	}
	if !sch.IsActive {
		return failure(MsgSchoolUnavailable, http.StatusForbidden), nil
	}

	usr, err := svc.deps.Users.GetByUsernameOrEmail(ctx, sch.ID, req.Username)
	if err != nil {
		if err == user.ErrNotFound {
			_ = checkDummyPassword(req.Password)
			return failure(MsgInvalidCredentials, http.StatusUnauthorized), nil
		}
		return Result{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(req.Password); err != nil {
		return failure(MsgInvalidCredentials, http.StatusUnauthorized), nil
	}
	if !usr.IsActive {
		return failure(MsgAccountDeactivated, http.StatusForbidden), nil
	}

	if usr.RequiresOTP() {
		return svc.issueOTP(ctx, usr)
	}
	return svc.startSession(ctx, usr)
}

// VerifyOTP consumes a pending otp_verification session and starts a login session.
// A session is consumed at most once, even under concurrent verifications.
func (svc *Service) VerifyOTP(ctx context.Context, req VerifyOTPRequest) (Result, error) {
	req.TenantID = core.CleanString(req.TenantID)
	req.UserID = core.CleanString(req.UserID)
	req.OTPSessionID = core.CleanString(req.OTPSessionID)
	if err := svc.deps.Validate.Struct(req); err != nil {
		return Result{}, err
	}

	sess, res, err := svc.pendingOTP(ctx, req.TenantID, req.UserID, req.OTPSessionID)
	if err != nil || !res.Success {
		return res, err
	}

	if !otpEqual(sess.OTP, req.OTP) {
		sess.Attempts++
		if sess.Attempts >= svc.deps.Conf.Session.MaxOTPAttempts {
			if _, err = svc.deps.Sessions.Destroy(ctx, sess.ID); err != nil {
				return Result{}, errors.Wrap(err, "destroying otp session")
			}
			svc.deps.Logger.Warn("otp attempts exhausted", map[string]interface{}{
				"tenant_id": sess.TenantID,
				"user_id":   sess.UserID,
			})
			return failure(MsgTooManyAttempts, http.StatusTooManyRequests), nil
		}
		if err = svc.deps.Sessions.Update(ctx, sess); err != nil {
			if err == session.ErrNotFound {
				return failure(MsgOTPExpired, http.StatusUnauthorized), nil
			}
			return Result{}, errors.Wrap(err, "updating otp session")
		}
		return failure(MsgInvalidOTP, http.StatusUnauthorized), nil
	}

	// only the caller that actually removes the session may proceed
	destroyed, err := svc.deps.Sessions.Destroy(ctx, sess.ID)
	if err != nil {
		return Result{}, errors.Wrap(err, "destroying otp session")
	}
	if !destroyed {
		return failure(MsgOTPExpired, http.StatusUnauthorized), nil
	}

	usr, res, err := svc.activeUser(ctx, sess.TenantID, sess.UserID)
	if err != nil || !res.Success {
		return res, err
	}
	return svc.startSession(ctx, usr)
}

// ResendOTP replaces a pending otp_verification session with a new one and emails a new code.
func (svc *Service) ResendOTP(ctx context.Context, req ResendOTPRequest) (Result, error) {
	req.TenantID = core.CleanString(req.TenantID)
	req.UserID = core.CleanString(req.UserID)
	req.OTPSessionID = core.CleanString(req.OTPSessionID)
	if err := svc.deps.Validate.Struct(req); err != nil {
		return Result{}, err
	}

	sess, res, err := svc.pendingOTP(ctx, req.TenantID, req.UserID, req.OTPSessionID)
	if err != nil || !res.Success {
		return res, err
	}

	destroyed, err := svc.deps.Sessions.Destroy(ctx, sess.ID)
	if err != nil {
		return Result{}, errors.Wrap(err, "destroying otp session")
	}
	if !destroyed {
		return failure(MsgOTPExpired, http.StatusUnauthorized), nil
	}

	usr, res, err := svc.activeUser(ctx, sess.TenantID, sess.UserID)
	if err != nil || !res.Success {
		return res, err
	}
	return svc.issueOTP(ctx, usr)
}

// Authenticate resolves a login session ID (cookie value) to its session and current user.
func (svc *Service) Authenticate(ctx context.Context, sessionID string) (session.Session, user.User, error) {
	if sessionID == "" {
		return session.Session{}, user.User{}, ErrUnauthenticated
	}

	sess, err := svc.deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		if err == session.ErrNotFound {
			return session.Session{}, user.User{}, ErrUnauthenticated
		}
		return session.Session{}, user.User{}, errors.Wrap(err, "getting session")
	}
	if !sess.IsLogin() {
		return session.Session{}, user.User{}, ErrUnauthenticated
	}

	sch, err := svc.deps.Schools.GetByID(ctx, sess.TenantID)
	if err != nil {
		if err == school.ErrNotFound {
			return session.Session{}, user.User{}, ErrUnauthenticated
		}
		return session.Session{}, user.User{}, errors.Wrap(err, "getting session school")
	}
	if !sch.IsActive {
		return session.Session{}, user.User{}, ErrSchoolUnavailable
	}

	usr, err := svc.deps.Users.GetByID(ctx, sess.TenantID, sess.UserID)
	if err != nil {
		if err == user.ErrNotFound {
			return session.Session{}, user.User{}, ErrUnauthenticated
		}
		return session.Session{}, user.User{}, errors.Wrap(err, "getting session user")
	}
	if !usr.IsActive {
		return session.Session{}, user.User{}, ErrAccountDeactivated
	}
	return sess, usr, nil
}

// Logout destroys a session. Unknown sessions are ignored.
func (svc *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	_, err := svc.deps.Sessions.Destroy(ctx, sessionID)
	return errors.Wrap(err, "destroying session")
}

// SessionTTL returns how long a session has left to live.
func (svc *Service) SessionTTL(ctx context.Context, sessionID string) (time.Duration, error) {
	return svc.deps.Sessions.TTL(ctx, sessionID)
}

// pendingOTP loads an otp_verification session and checks that it was issued to userID of the school tenantRef.
func (svc *Service) pendingOTP(ctx context.Context, tenantRef, userID, otpSessionID string) (session.Session, Result, error) {
	sch, err := svc.deps.Schools.Resolve(ctx, tenantRef)
	if err != nil {
		if err == school.ErrNotFound {
			return session.Session{}, failure(MsgOTPExpired, http.StatusUnauthorized), nil
		}
		return session.Session{}, Result{}, errors.Wrap(err, "resolving school")
	}
	if !sch.IsActive {
		return session.Session{}, failure(MsgSchoolUnavailable, http.StatusForbidden), nil
	}

	sess, err := svc.deps.Sessions.Get(ctx, otpSessionID)
	if err != nil {
		if err == session.ErrNotFound {
			return session.Session{}, failure(MsgOTPExpired, http.StatusUnauthorized), nil
		}
		return session.Session{}, Result{}, errors.Wrap(err, "getting otp session")
	}
	if !sess.ValidOTPFor(sch.ID, userID) {
		return session.Session{}, failure(MsgOTPExpired, http.StatusUnauthorized), nil
	}
	return sess, Result{Success: true}, nil
}

// activeUser reloads a user and checks it can still log in.
func (svc *Service) activeUser(ctx context.Context, tenantID, userID string) (user.User, Result, error) {
	usr, err := svc.deps.Users.GetByID(ctx, tenantID, userID)
	if err != nil {
		if err == user.ErrNotFound {
			return user.User{}, failure(MsgInvalidCredentials, http.StatusUnauthorized), nil
		}
		return user.User{}, Result{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return user.User{}, failure(MsgAccountDeactivated, http.StatusForbidden), nil
	}
	return usr, Result{Success: true}, nil
}

func (svc *Service) issueOTP(ctx context.Context, usr user.User) (Result, error) {
	if usr.Email == "" {
		return Result{}, errors.Errorf("user %s requires otp but has no email", usr.ID)
	}

	code, err := generateOTP()
	if err != nil {
		return Result{}, errors.Wrap(err, "generating otp")
	}

	ttl := svc.deps.Conf.Session.OTPTTL
	sess, err := svc.deps.Sessions.Create(ctx, session.Session{
		UserID:    usr.ID,
		TenantID:  usr.TenantID,
		Purpose:   session.PurposeOTPVerification,
		OTP:       code,
		Role:      usr.Role,
		Name:      usr.Name,
		CreatedAt: time.Now().UTC(),
	}, ttl)
	if err != nil {
		return Result{}, errors.Wrap(err, "creating otp session")
	}

	svc.deps.MailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Your verification code",
		TemplateName: otpTemplateName,
		TemplateData: OTPEmailData{Name: usr.Name, Code: code, ValidFor: int(ttl / time.Minute)},
	})

	return Result{
		Success:      true,
		Message:      MsgOTPRequired,
		Status:       http.StatusOK,
		OTPRequired:  true,
		OTPSessionID: sess.ID,
		User:         usr,
	}, nil
}

func (svc *Service) startSession(ctx context.Context, usr user.User) (Result, error) {
	sess, err := svc.deps.Sessions.Create(ctx, session.Session{
		UserID:    usr.ID,
		TenantID:  usr.TenantID,
		Purpose:   session.PurposeLogin,
		Role:      usr.Role,
		Name:      usr.Name,
		CreatedAt: time.Now().UTC(),
	}, svc.deps.Conf.Session.LoginTTL)
	if err != nil {
		return Result{}, errors.Wrap(err, "creating login session")
	}

	usr, err = svc.deps.Users.SetLastLogin(ctx, usr)
	if err != nil {
		return Result{}, errors.Wrap(err, "setting lastLogin")
	}

	return Result{
		Success:   true,
		Message:   MsgLoginSuccessful,
		Status:    http.StatusOK,
		SessionID: sess.ID,
		User:      usr,
	}, nil
}

// GenerateOTP returns a uniformly random, zero padded 6 digit code.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// otpEqual compares two codes by numeric value in constant time.
func otpEqual(stored, given string) bool {
	a, errA := strconv.Atoi(stored)
	b, errB := strconv.Atoi(given)
	if errA != nil || errB != nil {
		return false
	}
	return subtle.ConstantTimeEq(int32(a), int32(b)) == 1
}

// InitValidators registers the auth validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(otpTag, func(fl validator.FieldLevel) bool {
		return otpRegex.MatchString(fl.Field().String())
	})
	_ = validate.RegisterTranslation(
		otpTag, translator,
		func(t ut.Translator) error { return t.Add(otpTag, otpText, false) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(otpTag, fe.Field())
			return s
		},
	)
}
