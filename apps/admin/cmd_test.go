package main

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/storage/database/dummy"
	"github.com/trezcool/shule/tests"
)

const strongPwd = "Kq7#vLp2!x"

var (
	usrRepo user.Repository
	schRepo school.Repository
)

func setup(t *testing.T) *commandLine {
	conf := testutil.NewConfig()
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	user.LoadCommonPasswords(testutil.NewLogger(conf))

	// set up DB & repos
	db := dummydb.Open()
	usrRepo = dummydb.NewUserRepository(db)
	schRepo = dummydb.NewSchoolRepository(db)

	// start CLI
	cli := newCommandLine(user.NewService(usrRepo), school.NewService(schRepo), validate)
	cli.out = io.Discard
	return cli
}

type cliTest struct {
	name    string
	args    []string // without program name
	wantErr error
	errTags map[string]string // field -> validation tag
	extra   interface{}
}

type extra struct {
	pwd string
}

func mockPassword(tt cliTest) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		if extra, ok := tt.extra.(extra); ok {
			return []byte(extra.pwd), nil
		}
		return nil, nil
	}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	switch {
	case tt.errTags != nil:
		var vErrs validator.ValidationErrors
		require.ErrorAs(t, err, &vErrs)
		got := make(map[string]string, len(vErrs))
		for _, fe := range vErrs {
			got[fe.Field()] = fe.Tag()
		}
		assert.Equal(t, tt.errTags, got)
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	cli := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "addschool: no args", args: []string{"addschool"}, wantErr: errHelp},
		{name: "adduser: no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "adduser: no login", args: []string{"adduser", "-school", "s", "-name", "n", "-role", "student"}, wantErr: errHelp},
		{name: "adduser: no password", args: []string{"adduser", "-school", "s", "-name", "n", "-role", "student", "-username", "nn"}, wantErr: errHelp},
		{name: "resetpassword: no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "setactive: no args", args: []string{"setactive"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPassword(tt)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
}

func Test_commandLine_addSchool(t *testing.T) {
	cli := setup(t)
	testutil.CreateSchool(t, schRepo, "taken", "Taken", true)

	tests := []cliTest{
		{name: "invalid slug", args: []string{"addschool", "-slug", "Green Hill!", "-name", "Green Hill"}, errTags: map[string]string{"slug": "slug"}},
		{name: "slug taken", args: []string{"addschool", "-slug", "taken", "-name", "Other"}, wantErr: core.NewValidationError(school.ErrSlugExists, core.FieldError{Field: "slug", Error: school.ErrSlugExists.Error()})},
		{name: "ok", args: []string{"addschool", "-slug", "Green-Hill", "-name", " Green Hill "}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	sch, err := schRepo.GetSchool(context.Background(), school.GetFilter{Slug: "green-hill"})
	require.NoError(t, err)
	assert.Equal(t, "Green Hill", sch.Name)
	assert.True(t, sch.IsActive)
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	sch := testutil.CreateSchool(t, schRepo, "green-hill", "Green Hill", true)

	tests := []cliTest{
		{
			name:    "unknown school",
			args:    []string{"adduser", "-school", "nope", "-name", "Amani", "-username", "amani", "-role", user.RoleStudent},
			extra:   extra{pwd: strongPwd},
			wantErr: school.ErrNotFound,
		},
		{
			name:    "invalid role",
			args:    []string{"adduser", "-school", "green-hill", "-name", "Amani", "-username", "amani", "-role", "janitor"},
			extra:   extra{pwd: strongPwd},
			errTags: map[string]string{"role": "userrole"},
		},
		{
			name:    "weak password",
			args:    []string{"adduser", "-school", "green-hill", "-name", "Amani", "-username", "amani", "-role", user.RoleStudent},
			extra:   extra{pwd: "12345678"},
			errTags: map[string]string{"password": "pwdnotallnum"},
		},
		{
			name:    "system admin without email",
			args:    []string{"adduser", "-school", "green-hill", "-name", "Root", "-username", "root", "-role", user.RoleSystemAdmin},
			extra:   extra{pwd: strongPwd},
			errTags: map[string]string{"email": "otp_email"},
		},
		{
			name:  "student",
			args:  []string{"adduser", "-school", "green-hill", "-name", "Amani", "-username", "Amani", "-role", user.RoleStudent},
			extra: extra{pwd: strongPwd},
		},
		{
			name:  "system admin",
			args:  []string{"adduser", "-school", sch.ID, "-name", "Root", "-username", "root", "-email", "Root@Test.cd", "-role", user.RoleSystemAdmin},
			extra: extra{pwd: strongPwd},
		},
		{
			name:    "username taken",
			args:    []string{"adduser", "-school", "green-hill", "-name", "Amani 2", "-username", "amani", "-role", user.RoleStudent},
			extra:   extra{pwd: strongPwd},
			wantErr: core.NewValidationError(user.ErrUsernameExists, core.FieldError{Field: "username", Error: user.ErrUsernameExists.Error()}),
		},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPassword(tt)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}

	ctx := context.Background()
	student, err := usrRepo.GetUser(ctx, user.GetFilter{TenantID: sch.ID, UsernameOrEmail: "amani"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, student.Role)
	assert.True(t, student.IsActive)
	assert.NotNil(t, student.Student)
	assert.NoError(t, student.CheckPassword(strongPwd))

	root, err := usrRepo.GetUser(ctx, user.GetFilter{TenantID: sch.ID, UsernameOrEmail: "root@test.cd"})
	require.NoError(t, err)
	assert.True(t, root.RequiresOTP())
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	sch := testutil.CreateSchool(t, schRepo, "green-hill", "Green Hill", true)
	usr := testutil.CreateUser(t, usrRepo, user.User{
		TenantID: sch.ID, Name: "User", Username: "awe", Email: "awe@test.cd", Role: user.RoleTeacher, IsActive: true,
	}, strongPwd)

	tests := []cliTest{
		{name: "username but no password", args: []string{"resetpassword", "-school", "green-hill", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-school", "green-hill", "-username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "school not found", args: []string{"resetpassword", "-school", "nope", "-username", "awe"}, extra: extra{pwd: "lol"}, wantErr: school.ErrNotFound},
		{name: "weak password", args: []string{"resetpassword", "-school", "green-hill", "-username", "awe"}, extra: extra{pwd: "lol"}, errTags: map[string]string{"password": "pwdminlen"}},
		{name: "reset with username", args: []string{"resetpassword", "-school", "green-hill", "-username", usr.Username}, extra: extra{pwd: "Zx9$mnbv!Q"}},
		{name: "reset with email", args: []string{"resetpassword", "-school", sch.ID, "-username", usr.Email}, extra: extra{pwd: "Tr4!nWave#"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		mockPassword(tt)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			checkErr(t, tt, err)
			if err != nil || tt.wantErr != nil || tt.errTags != nil {
				return
			}
			refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{TenantID: sch.ID, ID: usr.ID})
			require.NoError(t, err)
			assert.False(t, bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash), "failed to update new password")
			assert.NoError(t, refreshedUsr.CheckPassword(tt.extra.(extra).pwd))
			usr = refreshedUsr
		})
	}
}

func Test_commandLine_setActive(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()
	sch := testutil.CreateSchool(t, schRepo, "green-hill", "Green Hill", true)
	usr := testutil.CreateUser(t, usrRepo, user.User{
		TenantID: sch.ID, Name: "User", Username: "awe", Role: user.RoleStudent, IsActive: true,
	}, strongPwd)

	require.NoError(t, cli.run([]string{"admin", "setactive", "-school", "green-hill", "-username", "awe", "-active=false"}))
	got, err := usrRepo.GetUser(ctx, user.GetFilter{TenantID: sch.ID, ID: usr.ID})
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	require.NoError(t, cli.run([]string{"admin", "setactive", "-school", "green-hill", "-username", "awe"}))
	got, err = usrRepo.GetUser(ctx, user.GetFilter{TenantID: sch.ID, ID: usr.ID})
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	require.NoError(t, cli.run([]string{"admin", "setactive", "-school", "green-hill", "-active=false"}))
	gotSch, err := schRepo.GetSchool(ctx, school.GetFilter{ID: sch.ID})
	require.NoError(t, err)
	assert.False(t, gotSch.IsActive)

	assert.Equal(t, user.ErrNotFound, cli.run([]string{"admin", "setactive", "-school", "green-hill", "-username", "nobody"}))
}

func Test_describe(t *testing.T) {
	translator := core.NewTranslator()
	err := core.NewValidationError(user.ErrEmailExists, core.FieldError{Field: "email", Error: user.ErrEmailExists.Error()})
	assert.Equal(t, "email: a user with this email already exists", describe(err, translator))
	assert.Equal(t, "user not found", describe(user.ErrNotFound, translator))
}
