package tests

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
)

func Test_dashboardApi_guards(t *testing.T) {
	app := setup(t)
	app.createUser(t, user.User{Name: "Amani", Username: "amani", Role: user.RoleStudent})
	app.createUser(t, user.User{Name: "Mwalimu", Username: "mwalimu", Role: user.RoleTeacher})
	app.createUser(t, user.User{Name: "Mkuu", Username: "mkuu", Role: user.RoleAdministrator})

	student := app.login(t, "amani")
	teacher := app.login(t, "mwalimu")
	admin := app.login(t, "mkuu")
	forged := &http.Cookie{Name: app.conf.Session.CookieName, Value: "forged"}

	unauthorized := marchallObj(t, httpErr{Error: "user not authenticated"})
	forbidden := marchallObj(t, httpErr{Error: "permission denied"})

	tests := []httpTest{
		{name: "me: no cookie", path: "/api/me", wantCode: http.StatusUnauthorized, wantData: unauthorized},
		{name: "me: forged cookie", path: "/api/me", cookie: forged, wantCode: http.StatusUnauthorized, wantData: unauthorized},
		{name: "me: student", path: "/api/me", cookie: student, wantCode: http.StatusOK},
		{name: "student: no cookie", path: "/api/dashboard/student", wantCode: http.StatusUnauthorized, wantData: unauthorized},
		{name: "student: student", path: "/api/dashboard/student", cookie: student, wantCode: http.StatusOK},
		{name: "student: teacher", path: "/api/dashboard/student", cookie: teacher, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "teacher: teacher", path: "/api/dashboard/teacher", cookie: teacher, wantCode: http.StatusOK},
		{name: "teacher: admin", path: "/api/dashboard/teacher", cookie: admin, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "admin: admin", path: "/api/dashboard/admin", cookie: admin, wantCode: http.StatusOK},
		{name: "admin: student", path: "/api/dashboard/admin", cookie: student, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "system: admin", path: "/api/dashboard/system", cookie: admin, wantCode: http.StatusForbidden, wantData: forbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cookies []*http.Cookie
			if tt.cookie != nil {
				cookies = append(cookies, tt.cookie)
			}
			checkCodeAndData(t, tt, app.do(http.MethodGet, tt.path, nil, cookies...))
		})
	}
}

func Test_dashboardApi_me(t *testing.T) {
	app := setup(t)
	app.createUser(t, user.User{
		Name: "Mwalimu", Username: "mwalimu", Email: "mwalimu@test.cd", Role: user.RoleTeacher,
		Teacher: &user.TeacherProfile{EmployeeNumber: "T-7", Department: "Sciences", Subjects: []string{"physics"}},
	})
	cookie := app.login(t, "mwalimu")

	rec := app.do(http.MethodGet, "/api/me", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Dashboard        string                 `json:"dashboard"`
		User             map[string]interface{} `json:"user"`
		SessionExpiresIn int64                  `json:"session_expires_in"`
	}
	unmarshall(t, rec, &resp)
	assert.Equal(t, "/teacher", resp.Dashboard)
	assert.Equal(t, "T-7", resp.User["employee_number"])
	assert.Equal(t, []interface{}{"physics"}, resp.User["subjects"])
	assert.Equal(t, []interface{}{}, resp.User["classes"])
	assert.Equal(t, app.school.ID, resp.User["tenant_id"])
	assert.NotContains(t, resp.User, "admission_number")
	assert.InDelta(t, (24 * time.Hour).Seconds(), resp.SessionExpiresIn, 5)

	// sessions expire server side
	app.mr.FastForward(25 * time.Hour)
	rec = app.do(http.MethodGet, "/api/me", nil, cookie)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func Test_dashboardApi_systemAdminSeesAdmin(t *testing.T) {
	app := setup(t)
	root := app.createUser(t, user.User{Name: "Root", Username: "root", Email: "root@test.cd", Role: user.RoleSystemAdmin})
	cookie := app.otpLogin(t, root)

	for path, want := range map[string]string{
		"/api/dashboard/admin":  "/admin",
		"/api/dashboard/system": "/system",
	} {
		rec := app.do(http.MethodGet, path, nil, cookie)
		require.Equal(t, http.StatusOK, rec.Code, path)
		var resp DashboardResponse
		unmarshall(t, rec, &resp)
		assert.Equal(t, want, resp.Dashboard)
	}
}

func Test_dashboardApi_revokedAccess(t *testing.T) {
	app := setup(t)
	usr := app.createUser(t, user.User{Name: "Amani", Username: "amani", Role: user.RoleStudent})
	cookie := app.login(t, "amani")

	_, err := user.NewService(app.usrRepo).SetActive(context.Background(), usr.TenantID, "amani", false)
	require.NoError(t, err)
	rec := app.do(http.MethodGet, "/api/me", nil, cookie)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})}, rec)

	_, err = user.NewService(app.usrRepo).SetActive(context.Background(), usr.TenantID, "amani", true)
	require.NoError(t, err)
	_, err = school.NewService(app.schRepo).SetActive(context.Background(), app.school.Slug, false)
	require.NoError(t, err)
	rec = app.do(http.MethodGet, "/api/me", nil, cookie)
	checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "school unavailable"})}, rec)
}
