package main

import (
	"log"
	"os"

	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/activity"
	"github.com/trezcool/shule/core/assignment"
	"github.com/trezcool/shule/core/messaging"
	"github.com/trezcool/shule/core/school"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	"github.com/trezcool/shule/services/filestore"
	logsvc "github.com/trezcool/shule/services/logger"
	totpsvc "github.com/trezcool/shule/services/totp"
	"github.com/trezcool/shule/storage/database"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lshortfile)

	var logger core.Logger
	if core.Conf.Debug {
		logger = logsvc.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, core.Conf)
	}

	if err := run(logger); err != nil {
		logger.Fatal("starting api", err)
	}
}

func run(logger core.Logger) error {
	// set up DB
	if err := database.CreateIfNotExist(core.Conf); err != nil {
		return err
	}
	sqlDB, err := database.Open(core.Conf)
	if err != nil {
		return err
	}
	defer sqlDB.Close()
	if err = database.Migrate(sqlDB); err != nil {
		return err
	}
	db := sqlx.NewDb(sqlDB, core.Conf.Database.Engine)

	// set up services
	var mailSvc core.EmailService
	if core.Conf.Debug {
		mailSvc = emailsvc.NewConsoleService()
	} else {
		mailSvc = emailsvc.NewSendgridService(logger)
	}
	fileStore, err := filestore.NewLocalStorage(core.Conf.UploadDir)
	if err != nil {
		return err
	}

	usrSvc := user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, totpsvc.NewService())
	activitySvc := activity.NewService(sqlxrepos.NewActivityRepository(db), logger)
	schoolSvc := school.NewService(sqlxrepos.NewSchoolRepository(db), usrSvc, activitySvc)
	assignmentSvc := assignment.NewService(sqlxrepos.NewAssignmentRepository(db), schoolSvc, activitySvc)
	messagingSvc := messaging.NewService(sqlxrepos.NewMessageRepository(db), usrSvc, schoolSvc, activitySvc)

	// start API server
	app := echoapi.NewServer(
		&echoapi.Options{
			Address:       core.Conf.Server.Address(),
			Logger:        logger,
			FileStore:     fileStore,
			UserSvc:       usrSvc,
			SchoolSvc:     schoolSvc,
			AssignmentSvc: assignmentSvc,
			MessagingSvc:  messagingSvc,
			ActivitySvc:   activitySvc,
		},
	)
	app.Start()
	return nil
}
