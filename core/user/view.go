package user

import "time"

// Dashboard paths
const (
	DashboardStudent = "/student"
	DashboardTeacher = "/teacher"
	DashboardAdmin   = "/admin"
	DashboardSystem  = "/system"
)

type (
	// CommonView holds the fields every role exposes.
	CommonView struct {
		ID        string    `json:"id"`
		TenantID  string    `json:"tenant_id"`
		Name      string    `json:"name"`
		Username  string    `json:"username"`
		Email     string    `json:"email"`
		Role      string    `json:"role"`
		LastLogin time.Time `json:"last_login"`
	}

	StudentView struct {
		CommonView
		AdmissionNumber string `json:"admission_number"`
		ClassName       string `json:"class_name"`
		GradeLevel      int    `json:"grade_level"`
		GuardianName    string `json:"guardian_name"`
	}

	TeacherView struct {
		CommonView
		EmployeeNumber string   `json:"employee_number"`
		Department     string   `json:"department"`
		Subjects       []string `json:"subjects"`
		Classes        []string `json:"classes"`
	}

	AdministratorView struct {
		CommonView
		Title       string   `json:"title"`
		Office      string   `json:"office"`
		Permissions []string `json:"permissions"`
	}

	SystemAdminView struct {
		CommonView
	}
)

// PublicView maps a stored user to the view of its role. Fields of other roles are never included.
func PublicView(usr User) interface{} {
	common := CommonView{
		ID:        usr.ID,
		TenantID:  usr.TenantID,
		Name:      usr.Name,
		Username:  usr.Username,
		Email:     usr.Email,
		Role:      usr.Role,
		LastLogin: usr.LastLogin,
	}

	switch usr.Role {
	case RoleStudent:
		v := StudentView{CommonView: common}
		if p := usr.Student; p != nil {
			v.AdmissionNumber = p.AdmissionNumber
			v.ClassName = p.ClassName
			v.GradeLevel = p.GradeLevel
			v.GuardianName = p.GuardianName
		}
		return v
	case RoleTeacher:
		v := TeacherView{CommonView: common, Subjects: []string{}, Classes: []string{}}
		if p := usr.Teacher; p != nil {
			v.EmployeeNumber = p.EmployeeNumber
			v.Department = p.Department
			v.Subjects = nonNil(p.Subjects)
			v.Classes = nonNil(p.Classes)
		}
		return v
	case RoleAdministrator:
		v := AdministratorView{CommonView: common, Permissions: []string{}}
		if p := usr.Administrator; p != nil {
			v.Title = p.Title
			v.Office = p.Office
			v.Permissions = nonNil(p.Permissions)
		}
		return v
	case RoleSystemAdmin:
		return SystemAdminView{CommonView: common}
	default:
		return common
	}
}

// DashboardPath returns the landing dashboard of a role.
func DashboardPath(role string) string {
	switch role {
	case RoleStudent:
		return DashboardStudent
	case RoleTeacher:
		return DashboardTeacher
	case RoleAdministrator:
		return DashboardAdmin
	case RoleSystemAdmin:
		return DashboardSystem
	default:
		return "/"
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
