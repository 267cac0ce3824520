package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/balozi/api/echo"
	"github.com/trezcool/balozi/core"
	"github.com/trezcool/balozi/core/application"
	"github.com/trezcool/balozi/core/chat"
	"github.com/trezcool/balozi/core/event"
	"github.com/trezcool/balozi/core/feed"
	"github.com/trezcool/balozi/core/hours"
	"github.com/trezcool/balozi/core/notification"
	"github.com/trezcool/balozi/core/user"
	calendarsvc "github.com/trezcool/balozi/services/calendar"
	emailsvc "github.com/trezcool/balozi/services/email"
	pushsvc "github.com/trezcool/balozi/services/push"
	realtimesvc "github.com/trezcool/balozi/services/realtime"
	inmemdb "github.com/trezcool/balozi/storage/database/inmem"
	filestore "github.com/trezcool/balozi/storage/files"
)

// testEnv is a fully wired API instance on in-memory backends.
type testEnv struct {
	conf    *core.Config
	app     echoapi.Server
	usrSvc  *user.Service
	appSvc  *application.Service
	hrsSvc  *hours.Service
	evtSvc  *event.Service
	feedSvc *feed.Service
	chatSvc *chat.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	conf := &core.Config{
		TestMode:                  true,
		AppName:                   "Balozi",
		SecretKey:                 []byte("t3st-s3cret"),
		FrontendBaseURL:           "http://localhost:3000",
		AdminEmail:                "admin@test.cd",
		JWTExpirationDelta:        time.Hour,
		JWTRefreshExpirationDelta: 30 * time.Minute,
		PasswordResetTimeoutDelta: 72 * time.Hour,
		Uploads:                   core.UploadsConfig{MaxTranscriptSize: 1 << 20},
	}

	db, err := inmemdb.Open()
	require.NoError(t, err)

	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	emailsvc.ClearSentMessages()
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	broker := realtimesvc.NewBroker()
	t.Cleanup(broker.Close)

	files := filestore.NewInMemStore(conf.Uploads.MaxTranscriptSize)
	notifSvc := notification.NewService(inmemdb.NewNotificationRepository(db), pushsvc.NewMockService())

	env := &testEnv{
		conf:    conf,
		usrSvc:  user.NewService(conf, inmemdb.NewUserRepository(db), mailSvc),
		appSvc:  application.NewService(conf, inmemdb.NewApplicationRepository(db), mailSvc),
		hrsSvc:  hours.NewService(inmemdb.NewHoursRepository(db), notifSvc, nil),
		evtSvc:  event.NewService(inmemdb.NewEventRepository(db), broker, calendarsvc.NewMockService(), nil),
		feedSvc: feed.NewService(inmemdb.NewFeedRepository(db), broker, notifSvc, nil),
		chatSvc: chat.NewService(inmemdb.NewChatRepository(db), broker, notifSvc, nil),
	}
	env.app = echoapi.NewServer(&echoapi.Options{
		Conf:            conf,
		DisableReqLogs:  true,
		Validate:        validate,
		Translator:      translator,
		Files:           files,
		UserSvc:         env.usrSvc,
		ApplicationSvc:  env.appSvc,
		HoursSvc:        env.hrsSvc,
		EventSvc:        env.evtSvc,
		FeedSvc:         env.feedSvc,
		ChatSvc:         env.chatSvc,
		NotificationSvc: notifSvc,
	})
	return env
}

// request performs an in-process request; body (if any) is marshalled to JSON.
func (env *testEnv) request(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buff bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buff).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buff)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.app.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) decode(t *testing.T, rec *httptest.ResponseRecorder, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), into), "body: %s", rec.Body.String())
}

// createUser persists a user directly through the service layer.
func (env *testEnv) createUser(t *testing.T, name, uname, email, pwd string, roles []string) user.User {
	t.Helper()

	usr, err := env.usrSvc.Create(context.Background(), user.NewUser{
		Name:            name,
		Username:        uname,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Roles:           roles,
	})
	require.NoError(t, err)
	return usr
}

func (env *testEnv) token(t *testing.T, usr user.User) string {
	t.Helper()

	token, err := echoapi.GenerateToken(env.conf, echoapi.GetUserClaims(env.conf, usr))
	require.NoError(t, err)
	return token
}

func (env *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	admin := env.createUser(t, "Admin", "theadmin", "theadmin@test.cd", "S3cret!pwd", []string{user.RoleAdmin})
	return env.token(t, admin)
}

func TestHome(t *testing.T) {
	env := newTestEnv(t)

	rec := env.request(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "Karibu")
}
