package user_test

import (
	"encoding/json"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/user"
)

func viewKeys(t *testing.T, v interface{}) []string {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// fullUser carries every profile, as a corrupted record could.
func fullUser(role string) user.User {
	return user.User{
		ID:           "u1",
		TenantID:     "t1",
		Name:         "Amani",
		Username:     "amani",
		Email:        "amani@test.cd",
		Role:         role,
		IsActive:     true,
		PasswordHash: []byte("hash"),
		LastLogin:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Student:      &user.StudentProfile{AdmissionNumber: "A-1", ClassName: "5B", GradeLevel: 5, GuardianName: "Baba", GuardianPhone: "+243"},
		Teacher:      &user.TeacherProfile{EmployeeNumber: "E-1", Department: "Science", Subjects: []string{"math"}, Classes: []string{"5B"}},
		Administrator: &user.AdministratorProfile{
			Title: "Principal", Office: "A1", Permissions: []string{"users"},
		},
	}
}

func TestPublicView(t *testing.T) {
	common := []string{"email", "id", "last_login", "name", "role", "tenant_id", "username"}
	with := func(extra ...string) []string {
		keys := append(append([]string{}, common...), extra...)
		sort.Strings(keys)
		return keys
	}

	tests := []struct {
		role     string
		wantKeys []string
	}{
		{role: user.RoleStudent, wantKeys: with("admission_number", "class_name", "grade_level", "guardian_name")},
		{role: user.RoleTeacher, wantKeys: with("employee_number", "department", "subjects", "classes")},
		{role: user.RoleAdministrator, wantKeys: with("title", "office", "permissions")},
		{role: user.RoleSystemAdmin, wantKeys: with()},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			assert.Equal(t, tt.wantKeys, viewKeys(t, user.PublicView(fullUser(tt.role))))
		})
	}
}

func TestPublicView_values(t *testing.T) {
	v, ok := user.PublicView(fullUser(user.RoleStudent)).(user.StudentView)
	require.True(t, ok)
	assert.Equal(t, "A-1", v.AdmissionNumber)
	assert.Equal(t, 5, v.GradeLevel)
	assert.Equal(t, "amani", v.Username)

	// missing profile still yields the role's shape
	usr := fullUser(user.RoleTeacher)
	usr.Teacher = nil
	tv, ok := user.PublicView(usr).(user.TeacherView)
	require.True(t, ok)
	assert.Equal(t, []string{}, tv.Subjects)
	assert.Equal(t, []string{}, tv.Classes)
}

func TestDashboardPath(t *testing.T) {
	assert.Equal(t, "/student", user.DashboardPath(user.RoleStudent))
	assert.Equal(t, "/teacher", user.DashboardPath(user.RoleTeacher))
	assert.Equal(t, "/admin", user.DashboardPath(user.RoleAdministrator))
	assert.Equal(t, "/system", user.DashboardPath(user.RoleSystemAdmin))
	assert.Equal(t, "/", user.DashboardPath("lol"))
}

func TestUser_Normalize(t *testing.T) {
	usr := fullUser(user.RoleAdministrator)
	usr.Normalize()
	assert.Nil(t, usr.Student)
	assert.Nil(t, usr.Teacher)
	assert.NotNil(t, usr.Administrator)

	usr = fullUser(user.RoleSystemAdmin)
	usr.Normalize()
	assert.Nil(t, usr.Student)
	assert.Nil(t, usr.Teacher)
	assert.Nil(t, usr.Administrator)
	assert.True(t, usr.RequiresOTP())

	usr = user.User{Role: user.RoleStudent}
	usr.Normalize()
	assert.NotNil(t, usr.Student)
	assert.False(t, usr.RequiresOTP())
}
