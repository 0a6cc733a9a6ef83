package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/jobify/jobify/core"
	"github.com/jobify/jobify/core/account"
	emailsvc "github.com/jobify/jobify/services/email"
	logsvc "github.com/jobify/jobify/services/logger"
	"github.com/jobify/jobify/storage/database"
	inmemdb "github.com/jobify/jobify/storage/database/inmem"
	sqlxrepos "github.com/jobify/jobify/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	cli := commandLine{}

	// set up DB
	var repo account.Repository
	if conf.Database.Engine == "" || conf.Database.Engine == "inmem" {
		repo = inmemdb.NewAccountRepository(inmemdb.Open())
	} else {
		db, err := database.Open(conf)
		if err != nil {
			logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
		}
		defer func() { _ = db.Close() }()
		if err = database.Ping(db.DB); err != nil {
			logger.Fatal(fmt.Sprintf("connecting to database: %v", err), err)
		}
		cli.db = db.DB
		repo = sqlxrepos.NewAccountRepository(db)
	}

	// start CLI
	cli.accSvc = account.NewService(repo, emailsvc.NewConsoleService(conf, logger), validate, conf)
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		os.Exit(1)
	}
}
