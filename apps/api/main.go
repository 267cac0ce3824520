package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trezcool/balozi/api/echo"
	"github.com/trezcool/balozi/core"
	"github.com/trezcool/balozi/core/application"
	"github.com/trezcool/balozi/core/chat"
	"github.com/trezcool/balozi/core/event"
	"github.com/trezcool/balozi/core/feed"
	"github.com/trezcool/balozi/core/hours"
	"github.com/trezcool/balozi/core/notification"
	"github.com/trezcool/balozi/core/user"
	"github.com/trezcool/balozi/services/calendar"
	"github.com/trezcool/balozi/services/email"
	"github.com/trezcool/balozi/services/logger"
	"github.com/trezcool/balozi/services/push"
	"github.com/trezcool/balozi/services/realtime"
	"github.com/trezcool/balozi/storage/database"
	"github.com/trezcool/balozi/storage/database/pg"
	"github.com/trezcool/balozi/storage/files"
)

func main() {
	conf := core.NewConfig()
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	var logger core.Logger
	if conf.Debug || conf.RollbarToken == "" {
		logger = logsvc.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer func() { _ = db.Close() }()

	// set up validation
	validate, translator := core.NewValidator()
	user.RegisterValidators(validate, translator)

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	var pushSvc core.PushService = pushsvc.NewConsoleService() // TODO: FCM adapter once mobile lands
	var calendarSvc core.CalendarService
	if conf.Debug {
		calendarSvc = calendarsvc.NewConsoleService()
	}

	broker := realtimesvc.NewBroker()
	defer broker.Close()

	files, err := filestore.NewLocalStore(conf)
	if err != nil {
		logger.Fatal("setting up file store", err)
	}

	notifSvc := notification.NewService(pgrepos.NewNotificationRepository(db), pushSvc)
	usrSvc := user.NewService(conf, pgrepos.NewUserRepository(db), mailSvc)
	appSvc := application.NewService(conf, pgrepos.NewApplicationRepository(db), mailSvc)
	hoursSvc := hours.NewService(pgrepos.NewHoursRepository(db), notifSvc, logger)
	eventSvc := event.NewService(pgrepos.NewEventRepository(db), broker, calendarSvc, logger)
	feedSvc := feed.NewService(pgrepos.NewFeedRepository(db), broker, notifSvc, logger)
	chatSvc := chat.NewService(pgrepos.NewChatRepository(db), broker, notifSvc, logger)

	// start API server
	app := echoapi.NewServer(&echoapi.Options{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		Translator:      translator,
		Files:           files,
		UserSvc:         usrSvc,
		ApplicationSvc:  appSvc,
		HoursSvc:        hoursSvc,
		EventSvc:        eventSvc,
		FeedSvc:         feedSvc,
		ChatSvc:         chatSvc,
		NotificationSvc: notifSvc,
	})

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			logger.Error("stopping server", err)
		}
	}()

	app.Start()
}
