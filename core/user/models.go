package user

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/shule/core"
)

// Roles
const (
	RoleStudent       = "student"
	RoleTeacher       = "teacher"
	RoleAdministrator = "administrator"
	RoleSystemAdmin   = "system_admin"
)

var (
	AllRoles = []string{RoleStudent, RoleTeacher, RoleAdministrator, RoleSystemAdmin}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Administrator", Value: RoleAdministrator},
		{Name: "System Admin", Value: RoleSystemAdmin},
	}
)

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type (
	StudentProfile struct {
		AdmissionNumber string `bson:"admission_number" json:"admission_number"`
		ClassName       string `bson:"class_name" json:"class_name"`
		GradeLevel      int    `bson:"grade_level" json:"grade_level"`
		GuardianName    string `bson:"guardian_name" json:"guardian_name"`
		GuardianPhone   string `bson:"guardian_phone" json:"guardian_phone"`
	}

	TeacherProfile struct {
		EmployeeNumber string   `bson:"employee_number" json:"employee_number"`
		Department     string   `bson:"department" json:"department"`
		Subjects       []string `bson:"subjects" json:"subjects"`
		Classes        []string `bson:"classes" json:"classes"`
	}

	AdministratorProfile struct {
		Title       string   `bson:"title" json:"title"`
		Office      string   `bson:"office" json:"office"`
		Permissions []string `bson:"permissions" json:"permissions"`
	}
)

// User is a member of a school (tenant). Only the profile matching Role is carried.
type User struct {
	ID           string    `bson:"_id" json:"id"`
	TenantID     string    `bson:"tenant_id" json:"tenant_id"`
	Name         string    `bson:"name" json:"name"`
	Username     string    `bson:"username" json:"username"`
	Email        string    `bson:"email,omitempty" json:"email"`
	Role         string    `bson:"role" json:"role"`
	IsActive     bool      `bson:"is_active" json:"is_active"`
	PasswordHash []byte    `bson:"password_hash" json:"-"`
	CreatedAt    time.Time `bson:"created_at" json:"created_at"` // UTC
	UpdatedAt    time.Time `bson:"updated_at" json:"updated_at"` // UTC
	LastLogin    time.Time `bson:"last_login" json:"last_login"` // UTC

	Student       *StudentProfile       `bson:"student,omitempty" json:"student,omitempty"`
	Teacher       *TeacherProfile       `bson:"teacher,omitempty" json:"teacher,omitempty"`
	Administrator *AdministratorProfile `bson:"administrator,omitempty" json:"administrator,omitempty"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

var (
	dummyHash     []byte
	dummyHashOnce sync.Once
)

// CheckDummyPassword pays the cost of CheckPassword for logins matching no user,
// so response times do not reveal which usernames exist. It always fails.
func CheckDummyPassword(pwd string) error {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("no-such-user"), bcrypt.DefaultCost)
	})
	if err := bcrypt.CompareHashAndPassword(dummyHash, []byte(pwd)); err != nil {
		return err
	}
	return bcrypt.ErrMismatchedHashAndPassword
}

func (u *User) IsStudent() bool       { return u.Role == RoleStudent }
func (u *User) IsTeacher() bool       { return u.Role == RoleTeacher }
func (u *User) IsAdministrator() bool { return u.Role == RoleAdministrator }
func (u *User) IsSystemAdmin() bool   { return u.Role == RoleSystemAdmin }

// RequiresOTP reports whether a password login must be stepped up with a one-time code.
func (u *User) RequiresOTP() bool { return u.IsSystemAdmin() }

func (u *User) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// Normalize drops the profiles that do not belong to the user's role and
// fills in an empty one for the role when missing.
func (u *User) Normalize() {
	switch u.Role {
	case RoleStudent:
		u.Teacher, u.Administrator = nil, nil
		if u.Student == nil {
			u.Student = new(StudentProfile)
		}
	case RoleTeacher:
		u.Student, u.Administrator = nil, nil
		if u.Teacher == nil {
			u.Teacher = new(TeacherProfile)
		}
	case RoleAdministrator:
		u.Student, u.Teacher = nil, nil
		if u.Administrator == nil {
			u.Administrator = new(AdministratorProfile)
		}
	default:
		u.Student, u.Teacher, u.Administrator = nil, nil, nil
	}
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	TenantID        string `json:"tenant_id" validate:"required"`
	Name            string `json:"name" validate:"required"`
	Username        string `json:"username" validate:"omitempty,min=3,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Role            string `json:"role" validate:"required,userrole"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	Student       *StudentProfile       `json:"student,omitempty"`
	Teacher       *TeacherProfile       `json:"teacher,omitempty"`
	Administrator *AdministratorProfile `json:"administrator,omitempty"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.TenantID = core.CleanString(nu.TenantID)
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(ctx, nu.TenantID, nu.Username, nu.Email)
}

// PasswordReset is the password change requested by an administrator for an existing user.
type PasswordReset struct {
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	usr User
}

func NewPasswordReset(usr User, pwd, pwdConfirm string) PasswordReset {
	return PasswordReset{Password: pwd, PasswordConfirm: pwdConfirm, usr: usr}
}

func (pr PasswordReset) Validate(validate *validator.Validate) error { return validate.Struct(pr) }

// GetFilter selects a single user. TenantID is always required; one of ID or UsernameOrEmail must be set.
type GetFilter struct {
	TenantID        string
	ID              string
	UsernameOrEmail string
}
