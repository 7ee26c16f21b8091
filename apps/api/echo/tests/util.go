package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"

	. "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/auth"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	"github.com/trezcool/shule/services/email"
	"github.com/trezcool/shule/storage/cache/redis"
	"github.com/trezcool/shule/storage/database/dummy"
	"github.com/trezcool/shule/tests"
)

const pwd = "S3cret!pass"

type testApp struct {
	*Server
	conf    *core.Config
	mr      *miniredis.Miniredis
	usrRepo user.Repository
	schRepo school.Repository
	school  school.School
}

func setup(t *testing.T, configure ...func(conf *core.Config)) *testApp {
	conf := testutil.NewConfig()
	for _, fn := range configure {
		fn(conf)
	}
	logger := testutil.NewLogger(conf)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	auth.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)

	// set up DB & repos
	db := dummydb.Open()
	usrRepo := dummydb.NewUserRepository(db)
	schRepo := dummydb.NewSchoolRepository(db)
	mr, client := testutil.NewRedis(t)

	// set up services
	emailsvc.ResetSentMessages()
	authSvc := auth.NewService(auth.Deps{
		Conf:     conf,
		Logger:   logger,
		Users:    user.NewService(usrRepo),
		Schools:  school.NewService(schRepo),
		Sessions: rediscache.NewSessionStore(client, conf.Session.KeyPrefix),
		MailSvc:  emailsvc.NewConsoleServiceMock(conf, logger),
		Validate: validate,
	})

	// set up server
	srv := NewServer(ServerDeps{
		Conf:       conf,
		Logger:     logger,
		AuthSvc:    authSvc,
		Validate:   validate,
		Translator: translator,
	})

	return &testApp{
		Server:  srv,
		conf:    conf,
		mr:      mr,
		usrRepo: usrRepo,
		schRepo: schRepo,
		school:  testutil.CreateSchool(t, schRepo, "green-hill", "Green Hill", true),
	}
}

func (app *testApp) createUser(t *testing.T, usr user.User) user.User {
	usr.TenantID = app.school.ID
	usr.IsActive = true
	return testutil.CreateUser(t, app.usrRepo, usr, pwd)
}

// do serves one request through the app.
func (app *testApp) do(method, path string, body []byte, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req, rec := newRequest(method, path, body)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	app.ServeHTTP(rec, req)
	return rec
}

// login logs usr in with a password and returns the session cookie.
func (app *testApp) login(t *testing.T, uname string) *http.Cookie {
	rec := app.do(http.MethodPost, "/api/auth/login", marchallObj(t, auth.LoginRequest{TenantID: app.school.Slug, Username: uname, Password: pwd}))
	if rec.Code != http.StatusOK {
		t.Fatalf("login(%s) failed: %d %s", uname, rec.Code, rec.Body.String())
	}
	cookie := sessionCookie(app.conf, rec)
	if cookie == nil {
		t.Fatalf("login(%s) set no session cookie", uname)
	}
	return cookie
}

// otpLogin runs the password and otp steps for usr and returns the session cookie.
func (app *testApp) otpLogin(t *testing.T, usr user.User) *http.Cookie {
	rec := app.do(http.MethodPost, "/api/auth/login", marchallObj(t, auth.LoginRequest{TenantID: app.school.Slug, Username: usr.Username, Password: pwd}))
	var resp LoginResponse
	unmarshall(t, rec, &resp)
	if !resp.OTPRequired {
		t.Fatalf("otpLogin(%s): otp not required: %s", usr.Username, rec.Body.String())
	}

	rec = app.do(http.MethodPost, "/api/auth/otp/verify", marchallObj(t, auth.VerifyOTPRequest{
		TenantID:     app.school.Slug,
		UserID:       usr.ID,
		OTPSessionID: resp.OTPSessionID,
		OTP:          lastOTP(t),
	}))
	cookie := sessionCookie(app.conf, rec)
	if rec.Code != http.StatusOK || cookie == nil {
		t.Fatalf("otpLogin(%s) failed: %d %s", usr.Username, rec.Code, rec.Body.String())
	}
	return cookie
}

func sessionCookie(conf *core.Config, rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == conf.Session.CookieName {
			return c
		}
	}
	return nil
}

// lastOTP returns the code sent in the last email.
func lastOTP(t *testing.T) string {
	msgs := emailsvc.SentMessages()
	if len(msgs) == 0 {
		t.Fatal("no email sent")
	}
	data, ok := msgs[len(msgs)-1].TemplateData.(auth.OTPEmailData)
	if !ok {
		t.Fatalf("unexpected email data %T", msgs[len(msgs)-1].TemplateData)
	}
	return data.Code
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	cookie   *http.Cookie
	wantCode int
	wantData []byte
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	return req, rec
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshall(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("json.Unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
