package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/jobify/jobify/core/application"
	"github.com/jobify/jobify/core/wizard"
	"github.com/jobify/jobify/storage/database"
)

const applicationColumns = "id, account_id, full_name, email, job_preference, draft, submitted_at"

type (
	dbApplication struct {
		ID            string    `db:"id"`
		AccountID     string    `db:"account_id"`
		FullName      string    `db:"full_name"`
		Email         string    `db:"email"`
		JobPreference string    `db:"job_preference"`
		Draft         []byte    `db:"draft"`
		SubmittedAt   time.Time `db:"submitted_at"`
	}

	dbAttachment struct {
		ApplicationID string `db:"application_id"`
		Field         string `db:"field"`
		Filename      string `db:"filename"`
		ContentType   string `db:"content_type"`
		Size          int    `db:"size"`
		Data          []byte `db:"data"`
	}
)

func (a dbApplication) toApplication(atts []dbAttachment) (application.Application, error) {
	app := application.Application{
		ID:          a.ID,
		AccountID:   a.AccountID,
		FullName:    a.FullName,
		Email:       a.Email,
		SubmittedAt: a.SubmittedAt.UTC(),
		Attachments: make([]application.AttachmentMeta, 0, len(atts)),
	}
	if err := json.Unmarshal(a.Draft, &app.Draft); err != nil {
		return application.Application{}, errors.Wrap(err, "decoding draft")
	}
	for _, at := range atts {
		app.Attachments = append(app.Attachments, application.AttachmentMeta{
			Field:       wizard.AttachmentField(at.Field),
			Filename:    at.Filename,
			ContentType: at.ContentType,
			Size:        at.Size,
		})
	}
	return app, nil
}

type applicationRepository struct {
	db *sqlx.DB
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *sqlx.DB) application.Repository {
	return &applicationRepository{db: db}
}

func (repo *applicationRepository) CreateApplication(ctx context.Context, app application.Application, files []wizard.Attachment) (application.Application, error) {
	draft, err := json.Marshal(app.Draft)
	if err != nil {
		return application.Application{}, errors.Wrap(err, "encoding draft")
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return application.Application{}, errors.Wrap(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	q := `INSERT INTO application (` + applicationColumns + `)
		VALUES (:id, :account_id, :full_name, :email, :job_preference, :draft, :submitted_at)`
	_, err = tx.NamedExecContext(ctx, q, dbApplication{
		ID:            app.ID,
		AccountID:     app.AccountID,
		FullName:      app.FullName,
		Email:         app.Email,
		JobPreference: app.Draft.JobPreference,
		Draft:         draft,
		SubmittedAt:   app.SubmittedAt,
	})
	if err != nil {
		if database.IsUniqueViolation(err) {
			return application.Application{}, application.ErrAlreadyApplied
		}
		return application.Application{}, errors.Wrap(err, "inserting application")
	}

	for _, f := range files {
		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO application_attachment (application_id, field, filename, content_type, size, data)
			VALUES (:application_id, :field, :filename, :content_type, :size, :data)`,
			dbAttachment{
				ApplicationID: app.ID,
				Field:         string(f.Field),
				Filename:      f.Filename,
				ContentType:   f.ContentType,
				Size:          f.Size(),
				Data:          f.Data,
			})
		if err != nil {
			return application.Application{}, errors.Wrap(err, "inserting attachment")
		}
	}

	if err = tx.Commit(); err != nil {
		return application.Application{}, errors.Wrap(err, "committing application")
	}
	return app, nil
}

func (repo *applicationRepository) get(ctx context.Context, where string, arg interface{}) (application.Application, error) {
	var a dbApplication
	err := repo.db.GetContext(ctx, &a, `SELECT `+applicationColumns+` FROM application WHERE `+where, arg)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return application.Application{}, application.ErrNotFound
		}
		return application.Application{}, errors.Wrap(err, "selecting application")
	}
	atts, err := repo.attachmentMetas(ctx, a.ID)
	if err != nil {
		return application.Application{}, err
	}
	return a.toApplication(atts)
}

func (repo *applicationRepository) attachmentMetas(ctx context.Context, appID string) ([]dbAttachment, error) {
	var atts []dbAttachment
	err := repo.db.SelectContext(ctx, &atts,
		`SELECT application_id, field, filename, content_type, size FROM application_attachment
		WHERE application_id = $1 ORDER BY field DESC`, appID)
	return atts, errors.Wrap(err, "selecting attachments")
}

func (repo *applicationRepository) GetApplicationByID(ctx context.Context, id string) (application.Application, error) {
	return repo.get(ctx, "id = $1", id)
}

func (repo *applicationRepository) GetApplicationByEmail(ctx context.Context, email string) (application.Application, error) {
	return repo.get(ctx, "email = $1", email)
}

func (repo *applicationRepository) GetAttachment(ctx context.Context, appID string, field wizard.AttachmentField) (wizard.Attachment, error) {
	var at dbAttachment
	err := repo.db.GetContext(ctx, &at,
		`SELECT application_id, field, filename, content_type, size, data FROM application_attachment
		WHERE application_id = $1 AND field = $2`, appID, string(field))
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return wizard.Attachment{}, application.ErrNotFound
		}
		return wizard.Attachment{}, errors.Wrap(err, "selecting attachment")
	}
	return wizard.Attachment{
		Field:       wizard.AttachmentField(at.Field),
		Filename:    at.Filename,
		ContentType: at.ContentType,
		Data:        at.Data,
	}, nil
}

func (repo *applicationRepository) FilterApplications(ctx context.Context, filter application.QueryFilter) ([]application.Application, error) {
	where, args := filterClause(filter)
	var rows []dbApplication
	q := `SELECT ` + applicationColumns + ` FROM application` + where + ` ORDER BY submitted_at DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting applications")
	}

	apps := make([]application.Application, 0, len(rows))
	for _, row := range rows {
		atts, err := repo.attachmentMetas(ctx, row.ID)
		if err != nil {
			return nil, err
		}
		app, err := row.toApplication(atts)
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// filterClause builds the WHERE clause of a listing with positional args.
func filterClause(filter application.QueryFilter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if filter.AccountID != "" {
		conds = append(conds, "account_id = "+arg(filter.AccountID))
	}
	if filter.JobPreference != "" {
		conds = append(conds, "LOWER(job_preference) = LOWER("+arg(filter.JobPreference)+")")
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		conds = append(conds, "(LOWER(full_name) LIKE "+p+" OR email LIKE "+p+")")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
