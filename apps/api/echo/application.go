package echoapi

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/jobify/jobify/core"
	"github.com/jobify/jobify/core/application"
	"github.com/jobify/jobify/core/session"
	"github.com/jobify/jobify/core/wizard"
	submittersvc "github.com/jobify/jobify/services/submitter"
)

type applicationApi struct {
	svc *application.Service
}

func registerApplicationAPI(g *echo.Group, svc *application.Service) {
	api := applicationApi{svc: svc}

	appGroup := g.Group("/applications", authRequired)
	appGroup.POST("", api.submit, rolesMiddleware(session.RoleTutor))
	appGroup.GET("", api.list, rolesMiddleware(session.RoleAdmin, session.RoleSchool))
	appGroup.GET("/:id", api.retrieve)
	appGroup.GET("/:id/attachments/:field", api.attachment)
}

// bindSubmission reads a Draft from a JSON body, or a multipart body laid out like the HTTP submitter's.
// Document descriptors are taken from the uploaded files only, so a JSON body carries none.
func bindSubmission(ctx echo.Context) (wizard.Submission, error) {
	var sub wizard.Submission

	if !strings.HasPrefix(ctx.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		if err := ctx.Bind(&sub.Draft); err != nil {
			return sub, errors.Wrap(err, "binding to Draft")
		}
		sub.Draft.Documents = wizard.Documents{}
		return sub, nil
	}

	form, err := ctx.MultipartForm()
	if err != nil {
		return sub, echo.NewHTTPError(http.StatusBadRequest, "malformed multipart body").SetInternal(err)
	}
	raw := ctx.FormValue(submittersvc.DraftField)
	if raw == "" {
		return sub, core.NewValidationError(
			errors.New("missing draft"), core.FieldError{Field: submittersvc.DraftField, Error: "this field is required"},
		)
	}
	if err = json.Unmarshal([]byte(raw), &sub.Draft); err != nil {
		return sub, echo.NewHTTPError(http.StatusBadRequest, "malformed draft").SetInternal(err)
	}
	sub.Draft.Documents = wizard.Documents{}

	for _, field := range wizard.AttachmentFields {
		fhs := form.File[string(field)]
		if len(fhs) == 0 {
			continue
		}
		a, err := readAttachment(field, fhs[0])
		if err != nil {
			return sub, err
		}
		switch field {
		case wizard.FieldPPPhoto:
			sub.Draft.PPPhoto = a.Filename
		case wizard.FieldIdentityPhoto:
			sub.Draft.IdentityPhoto = a.Filename
		}
		sub.Attachments = append(sub.Attachments, a)
	}
	return sub, nil
}

func readAttachment(field wizard.AttachmentField, fh *multipart.FileHeader) (wizard.Attachment, error) {
	f, err := fh.Open()
	if err != nil {
		return wizard.Attachment{}, errors.Wrap(err, "opening uploaded file")
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, wizard.MaxAttachmentSize+1))
	if err != nil {
		return wizard.Attachment{}, errors.Wrap(err, "reading uploaded file")
	}
	return wizard.NewAttachment(field, fh.Filename, data)
}

// visible loads the :id application when the principal may see it. Tutors only see their own.
func (api *applicationApi) visible(ctx echo.Context) (application.Application, error) {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return application.Application{}, err
	}
	app, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return application.Application{}, err
	}
	switch {
	case p.HasAnyRole(session.RoleAdmin, session.RoleSchool):
		return app, nil
	case p.Role == session.RoleTutor && app.AccountID == p.ID:
		return app, nil
	default:
		return application.Application{}, errHttpNotFound
	}
}

// Handlers

func (api *applicationApi) submit(ctx echo.Context) error {
	p, err := getContextPrincipal(ctx)
	if err != nil {
		return err
	}
	sub, err := bindSubmission(ctx)
	if err != nil {
		return err
	}

	app, err := api.svc.Submit(ctx.Request().Context(), p.ID, sub)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, app)
}

func (api *applicationApi) list(ctx echo.Context) error {
	apps, err := api.svc.List(ctx.Request().Context(), bindQueryFilter(ctx))
	if err != nil {
		return errors.Wrap(err, "listing applications")
	}
	if apps == nil {
		apps = []application.Application{}
	}
	return ctx.JSON(http.StatusOK, apps)
}

func (api *applicationApi) retrieve(ctx echo.Context) error {
	app, err := api.visible(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, app)
}

func (api *applicationApi) attachment(ctx echo.Context) error {
	app, err := api.visible(ctx)
	if err != nil {
		return err
	}
	a, err := api.svc.GetAttachment(ctx.Request().Context(), app.ID, wizard.AttachmentField(ctx.Param("field")))
	if err != nil {
		return err
	}
	ctx.Response().Header().Set(echo.HeaderContentDisposition, `inline; filename="`+strings.ReplaceAll(a.Filename, `"`, "")+`"`)
	return ctx.Blob(http.StatusOK, a.ContentType, a.Data)
}
