package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	echoapi "github.com/jobify/jobify/apps/api/echo"
	"github.com/jobify/jobify/core"
	"github.com/jobify/jobify/core/account"
	"github.com/jobify/jobify/core/application"
	"github.com/jobify/jobify/core/session"
	"github.com/jobify/jobify/core/wizard"
	emailsvc "github.com/jobify/jobify/services/email"
	logsvc "github.com/jobify/jobify/services/logger"
	"github.com/jobify/jobify/storage/database"
	inmemdb "github.com/jobify/jobify/storage/database/inmem"
	sqlxrepos "github.com/jobify/jobify/storage/database/sqlx"
	redisstore "github.com/jobify/jobify/storage/redis"
)

type (
	repositories struct {
		accounts     account.Repository
		applications application.Repository
		close        func() error
	}

	stores struct {
		revocations session.RevocationList
		drafts      wizard.SnapshotStore
		close       func() error
	}
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	dbLogger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	dbLogger.Enable(!conf.Debug)

	// set up DB
	repos, err := setUpRepositories(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = repos.close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up session & draft stores
	sto, err := setUpStores(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up stores: %v", err), err)
	}
	defer func() {
		if err = sto.close(); err != nil {
			dbLogger.Error("Failed to close stores", err)
		}
	}()

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	wizard.InitValidators(validate, translator)

	if err = core.ParseEmailTemplates(conf); err != nil {
		logger.Fatal(fmt.Sprintf("parsing email templates: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	accSvc := account.NewService(repos.accounts, mailSvc, validate, conf)
	appSvc := application.NewService(repos.applications, mailSvc, wizard.NewValidator(validate, translator))

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:           conf,
			Logger:         logger,
			AccountSvc:     accSvc,
			ApplicationSvc: appSvc,
			Revocations:    sto.revocations,
			Drafts:         sto.drafts,
			Validate:       validate,
			Translator:     translator,
			HTTPClient:     &http.Client{Timeout: conf.SubmitTimeout},
		},
	)

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

// setUpRepositories uses postgres unless database.engine is "inmem" (or empty).
func setUpRepositories(conf *core.Config) (repositories, error) {
	if conf.Database.Engine == "" || conf.Database.Engine == "inmem" {
		db := inmemdb.Open()
		return repositories{
			accounts:     inmemdb.NewAccountRepository(db),
			applications: inmemdb.NewApplicationRepository(db),
			close:        func() error { return nil },
		}, nil
	}

	db, err := setUpDB(conf)
	if err != nil {
		return repositories{}, err
	}
	return repositories{
		accounts:     sqlxrepos.NewAccountRepository(db),
		applications: sqlxrepos.NewApplicationRepository(db),
		close:        db.Close,
	}, nil
}

func setUpDB(conf *core.Config) (*sqlx.DB, error) {
	if err := database.CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := database.Open(conf)
	if err != nil {
		return nil, err
	}

	if err = database.Migrate(db.DB); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// setUpStores uses redis when redis.url is set, process memory otherwise.
func setUpStores(conf *core.Config) (stores, error) {
	if conf.Redis.URL == "" {
		return stores{
			revocations: inmemdb.NewRevocationList(),
			drafts:      inmemdb.NewSnapshotStore(),
			close:       func() error { return nil },
		}, nil
	}

	client, err := redisstore.Open(context.Background(), conf.Redis.URL)
	if err != nil {
		return stores{}, errors.Wrap(err, "connecting to redis")
	}
	return stores{
		revocations: redisstore.NewRevocationList(client),
		drafts:      redisstore.NewSnapshotStore(client, conf.Redis.DraftTTL),
		close:       client.Close,
	}, nil
}
