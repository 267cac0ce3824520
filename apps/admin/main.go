package main

import (
	"log"
	"os"

	"github.com/trezcool/balozi/core"
	"github.com/trezcool/balozi/core/hours"
	"github.com/trezcool/balozi/core/notification"
	"github.com/trezcool/balozi/core/user"
	"github.com/trezcool/balozi/services/email"
	"github.com/trezcool/balozi/services/logger"
	"github.com/trezcool/balozi/services/push"
	"github.com/trezcool/balozi/storage/database"
	"github.com/trezcool/balozi/storage/database/pg"
)

var logger *log.Logger

func main() {
	defer os.Exit(0)

	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(err)
	}
	defer func() { _ = db.Close() }()

	mailSvc := emailsvc.NewConsoleService(conf)
	notifSvc := notification.NewService(pgrepos.NewNotificationRepository(db), pushsvc.NewConsoleService())

	// start CLI
	cli := commandLine{
		conf:     conf,
		db:       db,
		usrSvc:   user.NewService(conf, pgrepos.NewUserRepository(db), mailSvc),
		hoursSvc: hours.NewService(pgrepos.NewHoursRepository(db), notifSvc, logsvc.NewStdLogger(logger)),
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}
