package echoapi

import (
	"context"
	stdlog "log"
	"net/http"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/balozi/core"
	"github.com/trezcool/balozi/core/application"
	"github.com/trezcool/balozi/core/chat"
	"github.com/trezcool/balozi/core/event"
	"github.com/trezcool/balozi/core/feed"
	"github.com/trezcool/balozi/core/hours"
	"github.com/trezcool/balozi/core/notification"
	"github.com/trezcool/balozi/core/user"
	logsvc "github.com/trezcool/balozi/services/logger"
)

type (
	Options struct {
		Conf           *core.Config
		Logger         core.Logger
		DisableReqLogs bool

		Validate   *validator.Validate
		Translator ut.Translator

		Files core.FileStore

		UserSvc         *user.Service
		ApplicationSvc  *application.Service
		HoursSvc        *hours.Service
		EventSvc        *event.Service
		FeedSvc         *feed.Service
		ChatSvc         *chat.Service
		NotificationSvc *notification.Service
	}

	Server interface {
		http.Handler
		Start()
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo

		// closed by the error handler on unrecoverable errors
		shutdown chan struct{}
	}
)

var _ Server = (*server)(nil)

// translator renders validator.ValidationErrors messages; set once at startup.
var translator ut.Translator

func NewServer(opts *Options) *server {
	if opts.Logger == nil {
		opts.Logger = logsvc.NewStdLogger(stdlog.New(os.Stderr, "", stdlog.LstdFlags))
	}
	s := &server{
		opts:     opts,
		app:      echo.New(),
		shutdown: make(chan struct{}),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf
	translator = s.opts.Translator

	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.opts.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.signalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(appJWTConfig(conf))

	registerApplicationAPI(v1, jwt, s.opts)
	registerUserAPI(v1, jwt, s.opts)
	registerHoursAPI(v1, jwt, s.opts)
	registerEventAPI(v1, jwt, s.opts)
	registerFeedAPI(v1, jwt, s.opts)
	registerChatAPI(v1, jwt, s.opts)
	registerNotificationAPI(v1, jwt, s.opts)
}

func (s *server) Start() {
	go func() {
		<-s.shutdown
		s.app.Logger.Error("shutdown signal caught, stopping server")
		_ = s.Stop(context.Background())
	}()
	s.app.Logger.Fatal(s.app.Start(s.opts.Conf.Server.Addr()))
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) signalShutdown() {
	defer func() { recover() }() // already closed
	close(s.shutdown)
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Karibu! This is the Balozi API.")
}
