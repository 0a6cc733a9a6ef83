package echoapi

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jobify/jobify/core"
	"github.com/jobify/jobify/core/application"
	"github.com/jobify/jobify/core/session"
	"github.com/jobify/jobify/core/wizard"
	submittersvc "github.com/jobify/jobify/services/submitter"
)

type tokenCtxKey struct{}

// wizardRegistry holds one live Wizard per principal. Snapshots outlive the process in the store.
// A Wizard idle for longer than idleTTL is dropped and rebuilt from its snapshot on next use.
type wizardRegistry struct {
	mu      sync.Mutex
	wizards map[string]*liveWizard

	steps     []wizard.Step
	validator *wizard.Validator
	store     wizard.SnapshotStore
	timeout   time.Duration
	idleTTL   time.Duration
	newSub    func(p session.Principal) wizard.Submitter
	now       func() time.Time // mockable
}

type liveWizard struct {
	w        *wizard.Wizard
	lastUsed time.Time
}

func newWizardRegistry(steps []wizard.Step, v *wizard.Validator, store wizard.SnapshotStore, timeout, idleTTL time.Duration, newSub func(p session.Principal) wizard.Submitter) *wizardRegistry {
	return &wizardRegistry{
		wizards:   make(map[string]*liveWizard),
		steps:     steps,
		validator: v,
		store:     store,
		timeout:   timeout,
		idleTTL:   idleTTL,
		newSub:    newSub,
		now:       time.Now,
	}
}

// evictIdle drops idle wizards, except those with a submit in flight. reg.mu must be held.
func (reg *wizardRegistry) evictIdle(now time.Time) {
	if reg.idleTTL <= 0 {
		return
	}
	for id, lw := range reg.wizards {
		if now.Sub(lw.lastUsed) > reg.idleTTL && !lw.w.Submitting() {
			delete(reg.wizards, id)
		}
	}
}

func (reg *wizardRegistry) get(ctx context.Context, p session.Principal) (*wizard.Wizard, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	now := reg.now()
	reg.evictIdle(now)
	if lw, ok := reg.wizards[p.ID]; ok {
		lw.lastUsed = now
		return lw.w, nil
	}

	opts := []wizard.Option{wizard.WithSubmitTimeout(reg.timeout)}
	snap, err := reg.store.LoadSnapshot(ctx, p.ID)
	switch errors.Cause(err) {
	case nil:
		opts = append(opts, wizard.WithSnapshot(snap))
	case wizard.ErrNoSnapshot:
	default:
		return nil, errors.Wrap(err, "loading wizard snapshot")
	}

	w, err := wizard.New(reg.steps, reg.validator, reg.newSub(p), opts...)
	if err != nil {
		return nil, errors.Wrap(err, "creating wizard")
	}
	reg.wizards[p.ID] = &liveWizard{w: w, lastUsed: now}
	return w, nil
}

func (reg *wizardRegistry) save(ctx context.Context, p session.Principal, w *wizard.Wizard) error {
	return errors.Wrap(reg.store.SaveSnapshot(ctx, p.ID, w.Snapshot()), "saving wizard snapshot")
}

func (reg *wizardRegistry) discard(ctx context.Context, p session.Principal) error {
	return errors.Wrap(reg.store.DeleteSnapshot(ctx, p.ID), "deleting wizard snapshot")
}

type wizardApi struct {
	reg *wizardRegistry
}

func registerWizardAPI(g *echo.Group, reg *wizardRegistry) {
	api := wizardApi{reg: reg}

	wg := g.Group("/wizard", authRequired, rolesMiddleware(session.RoleTutor))
	wg.GET("", api.state)
	wg.DELETE("", api.reset)
	wg.POST("/next", api.next)
	wg.POST("/previous", api.previous)
	wg.POST("/jump", api.jump)
	wg.POST("/submit", api.submit)
	wg.PUT("/attachments/:field", api.attach)
	wg.DELETE("/attachments/:field", api.removeAttachment)
}

// newSubmitterFunc stores submissions with appSvc, or posts them to endpoint when set.
func newSubmitterFunc(appSvc *application.Service, endpoint string, client *http.Client) func(p session.Principal) wizard.Submitter {
	return func(p session.Principal) wizard.Submitter {
		if endpoint == "" {
			return appSvc.SubmitterFor(p.ID)
		}
		return wizard.SubmitterFunc(func(ctx context.Context, sub wizard.Submission) error {
			token, _ := ctx.Value(tokenCtxKey{}).(string)
			return submittersvc.NewHTTPSubmitter(endpoint, token, client).Submit(ctx, sub)
		})
	}
}

func (api *wizardApi) principalWizard(ctx echo.Context) (session.Principal, *wizard.Wizard, error) {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return session.Principal{}, nil, err
	}
	w, err := api.reg.get(ctx.Request().Context(), p)
	if err != nil {
		return session.Principal{}, nil, err
	}
	return p, w, nil
}

// transition runs fn with the decoded request values, then persists and renders the Wizard.
func (api *wizardApi) transition(ctx echo.Context, fn func(w *wizard.Wizard, req TransitionRequest, values wizard.Values) error) error {
	p, w, err := api.principalWizard(ctx)
	if err != nil {
		return err
	}

	var data TransitionRequest
	if ctx.Request().ContentLength != 0 {
		if err = ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to TransitionRequest")
		}
	}
	values, err := data.values(w.State().Step.Section)
	if err != nil {
		return err
	}

	if err = fn(w, data, values); err != nil {
		return err
	}
	if err = api.reg.save(ctx.Request().Context(), p, w); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, w.State())
}

// Handlers

func (api *wizardApi) state(ctx echo.Context) error {
	_, w, err := api.principalWizard(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, w.State())
}

func (api *wizardApi) reset(ctx echo.Context) error {
	p, w, err := api.principalWizard(ctx)
	if err != nil {
		return err
	}
	if err = w.Reset(); err != nil {
		return err
	}
	if err = api.reg.discard(ctx.Request().Context(), p); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, w.State())
}

func (api *wizardApi) next(ctx echo.Context) error {
	return api.transition(ctx, func(w *wizard.Wizard, _ TransitionRequest, values wizard.Values) error {
		return w.Next(values)
	})
}

func (api *wizardApi) previous(ctx echo.Context) error {
	return api.transition(ctx, func(w *wizard.Wizard, _ TransitionRequest, values wizard.Values) error {
		return w.Previous(values)
	})
}

func (api *wizardApi) jump(ctx echo.Context) error {
	return api.transition(ctx, func(w *wizard.Wizard, req TransitionRequest, values wizard.Values) error {
		return w.JumpTo(req.Step, values)
	})
}

func (api *wizardApi) submit(ctx echo.Context) error {
	p, w, err := api.principalWizard(ctx)
	if err != nil {
		return err
	}

	var data TransitionRequest
	if ctx.Request().ContentLength != 0 {
		if err = ctx.Bind(&data); err != nil {
			return errors.Wrap(err, "binding to TransitionRequest")
		}
	}
	values, err := data.values(w.State().Step.Section)
	if err != nil {
		return err
	}

	reqCtx := context.WithValue(ctx.Request().Context(), tokenCtxKey{}, getContextToken(ctx))
	if err = w.Submit(reqCtx, values); err != nil {
		// keep what was merged before the submitter failed
		if serr := api.reg.save(ctx.Request().Context(), p, w); serr != nil {
			ctx.Logger().Errorf("%+v", serr)
		}
		return err
	}
	if err = api.reg.discard(ctx.Request().Context(), p); err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, w.State())
}

func (api *wizardApi) attach(ctx echo.Context) error {
	p, w, err := api.principalWizard(ctx)
	if err != nil {
		return err
	}

	field := wizard.AttachmentField(ctx.Param("field"))
	fh, err := ctx.FormFile("file")
	if err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "file", Error: "a file is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()
	// one byte over the limit is enough for Attach to reject it
	data, err := io.ReadAll(io.LimitReader(f, wizard.MaxAttachmentSize+1))
	if err != nil {
		return errors.Wrap(err, "reading uploaded file")
	}

	if err = w.Attach(wizard.Attachment{Field: field, Filename: fh.Filename, Data: data}); err != nil {
		return err
	}
	if err = api.reg.save(ctx.Request().Context(), p, w); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, w.State())
}

func (api *wizardApi) removeAttachment(ctx echo.Context) error {
	p, w, err := api.principalWizard(ctx)
	if err != nil {
		return err
	}
	if err = w.RemoveAttachment(wizard.AttachmentField(ctx.Param("field"))); err != nil {
		return err
	}
	if err = api.reg.save(ctx.Request().Context(), p, w); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, w.State())
}
