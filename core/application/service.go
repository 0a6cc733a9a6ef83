package application

import (
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jobify/jobify/core"
	"github.com/jobify/jobify/core/wizard"
)

var (
	// errors
	ErrNotFound       = errors.New("application not found")
	ErrAlreadyApplied = errors.New("an application with this email already exists")
)

type (
	Repository interface {
		CreateApplication(ctx context.Context, app Application, files []wizard.Attachment) (Application, error)
		GetApplicationByID(ctx context.Context, id string) (Application, error)
		GetApplicationByEmail(ctx context.Context, email string) (Application, error)
		GetAttachment(ctx context.Context, appID string, field wizard.AttachmentField) (wizard.Attachment, error)
		FilterApplications(ctx context.Context, filter QueryFilter) ([]Application, error)
	}

	Service struct {
		repo      Repository
		mailSvc   core.EmailService
		validator *wizard.Validator
	}
)

func NewService(repo Repository, mailSvc core.EmailService, v *wizard.Validator) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, validator: v}
}

func alreadyAppliedError() error {
	return core.NewValidationError(ErrAlreadyApplied, core.FieldError{Field: "email", Error: ErrAlreadyApplied.Error()})
}

// Submit stores a complete Draft on behalf of accountID and emails a confirmation to the applicant.
func (svc *Service) Submit(ctx context.Context, accountID string, sub wizard.Submission) (Application, error) {
	if err := svc.validator.Draft(sub.Draft); err != nil {
		return Application{}, err
	}

	email := core.CleanString(sub.Draft.Email, true /* lower */)
	_, err := svc.repo.GetApplicationByEmail(ctx, email)
	switch errors.Cause(err) {
	case nil:
		return Application{}, alreadyAppliedError()
	case ErrNotFound:
	default:
		return Application{}, errors.Wrap(err, "checking application email")
	}

	app := Application{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		FullName:    core.CleanString(sub.Draft.FullName),
		Email:       email,
		Draft:       sub.Draft,
		Attachments: make([]AttachmentMeta, 0, len(sub.Attachments)),
		SubmittedAt: time.Now().UTC(),
	}
	for _, a := range sub.Attachments {
		app.Attachments = append(app.Attachments, metaOf(a))
	}

	app, err = svc.repo.CreateApplication(ctx, app, sub.Attachments)
	if err != nil {
		if errors.Cause(err) == ErrAlreadyApplied {
			return Application{}, alreadyAppliedError()
		}
		return Application{}, errors.Wrap(err, "creating application")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: app.FullName, Address: app.Email}},
		Subject:      "We received your application",
		TemplateName: "application_received",
		TemplateData: struct {
			FullName      string
			JobPreference string
		}{
			FullName:      app.FullName,
			JobPreference: app.Draft.JobPreference,
		},
	})
	return app, nil
}

// SubmitterFor returns a wizard.Submitter storing drafts on behalf of accountID.
func (svc *Service) SubmitterFor(accountID string) wizard.Submitter {
	return wizard.SubmitterFunc(func(ctx context.Context, sub wizard.Submission) error {
		_, err := svc.Submit(ctx, accountID, sub)
		return err
	})
}

func (svc *Service) Get(ctx context.Context, id string) (Application, error) {
	return svc.repo.GetApplicationByID(ctx, id)
}

func (svc *Service) GetAttachment(ctx context.Context, id string, field wizard.AttachmentField) (wizard.Attachment, error) {
	if !field.IsValid() {
		return wizard.Attachment{}, ErrNotFound
	}
	return svc.repo.GetAttachment(ctx, id, field)
}

// List returns applications matching filter, most recent first.
func (svc *Service) List(ctx context.Context, filter QueryFilter) ([]Application, error) {
	filter.Search = strings.ToLower(core.CleanString(filter.Search))
	filter.JobPreference = core.CleanString(filter.JobPreference)
	return svc.repo.FilterApplications(ctx, filter)
}
