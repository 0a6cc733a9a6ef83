package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/jobify/jobify/core"
	"github.com/jobify/jobify/core/account"
	"github.com/jobify/jobify/core/application"
	"github.com/jobify/jobify/core/session"
	"github.com/jobify/jobify/core/wizard"
)

type (
	ServerDeps struct {
		Conf           *core.Config
		Logger         core.Logger
		AccountSvc     *account.Service
		ApplicationSvc *application.Service
		Revocations    session.RevocationList
		Drafts         wizard.SnapshotStore
		Gate           *session.Gate // defaults to session.NewGate()
		Validate       *validator.Validate
		Translator     ut.Translator
		HTTPClient     *http.Client // used by the remote applications submitter
		DisableReqLogs bool
	}

	Server interface {
		http.Handler
		Start()
		Shutdown(ctx context.Context) error
		Close() error
		Errors() <-chan error
		ShutdownSignal() <-chan os.Signal
	}

	server struct {
		deps     ServerDeps
		app      *echo.Echo
		auth     *tokenAuth
		errors   chan error
		shutdown chan os.Signal
	}
)

var _ Server = (*server)(nil)

func NewServer(deps ServerDeps) Server {
	if deps.Gate == nil {
		deps.Gate = session.NewGate()
	}
	s := &server{
		deps:     deps,
		app:      echo.New(),
		auth:     newTokenAuth(deps.Conf, deps.Revocations),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}
	s.app.Use(gateMiddleware(s.deps.Gate, s.auth))

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.signalShutdown)
	s.app.Debug = conf.Debug

	registerPages(s.app)

	api := s.app.Group("/api")
	registerAuthAPI(api, s.deps.AccountSvc, s.auth, s.deps.Gate, s.deps.Validate)
	registerWizardAPI(api, newWizardRegistry(
		wizard.DefaultSteps(),
		wizard.NewValidator(s.deps.Validate, s.deps.Translator),
		s.deps.Drafts,
		conf.SubmitTimeout,
		conf.Redis.DraftTTL,
		newSubmitterFunc(s.deps.ApplicationSvc, conf.ApplicationsEndpoint, s.deps.HTTPClient),
	))
	registerApplicationAPI(api, s.deps.ApplicationSvc)
}

func (s *server) Start() {
	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

func (s *server) Shutdown(ctx context.Context) error {
	signal.Stop(s.shutdown)
	return s.app.Shutdown(ctx)
}

func (s *server) Close() error {
	return s.app.Close()
}

func (s *server) Errors() <-chan error {
	return s.errors
}

func (s *server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

func (s *server) signalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}
