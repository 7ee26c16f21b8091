package user

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	// Repository is tenant scoped: every call names the school it operates on.
	Repository interface {
		CheckUniqueness(ctx context.Context, tenantID, username, email string, excludedIDs ...string) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetLastLogin(ctx context.Context, tenantID, id string, at time.Time) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(ctx context.Context, tenantID, uname, email string, exclIDs ...string) error {
	if err := svc.repo.CheckUniqueness(ctx, tenantID, uname, email, exclIDs...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Create stores a validated NewUser. Callers must run NewUser.Validate first.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		ID:            uuid.NewString(),
		TenantID:      nu.TenantID,
		Name:          nu.Name,
		Username:      nu.Username,
		Email:         nu.Email,
		Role:          nu.Role,
		IsActive:      true,
		CreatedAt:     now,
		UpdatedAt:     now,
		Student:       nu.Student,
		Teacher:       nu.Teacher,
		Administrator: nu.Administrator,
	}
	usr.Normalize()
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, tenantID, id string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{TenantID: tenantID, ID: id})
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, tenantID, login string) (User, error) {
	login = core.CleanString(login, true /* lower */)
	if login == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{TenantID: tenantID, UsernameOrEmail: login})
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := time.Now().UTC()
	if err := svc.repo.SetLastLogin(ctx, usr.TenantID, usr.ID, now); err != nil {
		return User{}, err
	}
	usr.LastLogin = now
	return usr, nil
}

// ResetPassword validates pwd against the password policy and stores its hash.
func (svc *Service) ResetPassword(ctx context.Context, validate *validator.Validate, tenantID, login, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, tenantID, login)
	if err != nil {
		return User{}, err
	}
	if err = NewPasswordReset(usr, pwd, pwd).Validate(validate); err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return User{}, err
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetActive (de)activates an account.
func (svc *Service) SetActive(ctx context.Context, tenantID, login string, active bool) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, tenantID, login)
	if err != nil {
		return User{}, err
	}
	usr.IsActive = active
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}
