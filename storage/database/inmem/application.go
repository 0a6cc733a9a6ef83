package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/jobify/jobify/core/application"
	"github.com/jobify/jobify/core/wizard"
)

type applicationRepository struct {
	db *applicationTable
}

var _ application.Repository = (*applicationRepository)(nil) // interface compliance check

func NewApplicationRepository(db *DB) application.Repository {
	return &applicationRepository{db: db.application}
}

func (repo *applicationRepository) CreateApplication(_ context.Context, app application.Application, files []wizard.Attachment) (application.Application, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, a := range repo.db.table {
		if a.Email == app.Email {
			return application.Application{}, application.ErrAlreadyApplied
		}
	}
	stored := make(map[wizard.AttachmentField]wizard.Attachment, len(files))
	for _, f := range files {
		f.Data = append([]byte(nil), f.Data...)
		stored[f.Field] = f
	}
	repo.db.table[app.ID] = &app
	repo.db.files[app.ID] = stored
	return app, nil
}

func (repo *applicationRepository) GetApplicationByID(_ context.Context, id string) (application.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if app, ok := repo.db.table[id]; ok {
		return *app, nil
	}
	return application.Application{}, application.ErrNotFound
}

func (repo *applicationRepository) GetApplicationByEmail(_ context.Context, email string) (application.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, app := range repo.db.table {
		if app.Email == email {
			return *app, nil
		}
	}
	return application.Application{}, application.ErrNotFound
}

func (repo *applicationRepository) GetAttachment(_ context.Context, appID string, field wizard.AttachmentField) (wizard.Attachment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if f, ok := repo.db.files[appID][field]; ok {
		return f, nil
	}
	return wizard.Attachment{}, application.ErrNotFound
}

func (repo *applicationRepository) FilterApplications(_ context.Context, filter application.QueryFilter) ([]application.Application, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	apps := make([]application.Application, 0, len(repo.db.table))
	for _, app := range repo.db.table {
		if filter.AccountID != "" && app.AccountID != filter.AccountID {
			continue
		}
		if filter.JobPreference != "" && !strings.EqualFold(app.Draft.JobPreference, filter.JobPreference) {
			continue
		}
		if filter.Search != "" &&
			!strings.Contains(strings.ToLower(app.FullName), filter.Search) &&
			!strings.Contains(app.Email, filter.Search) {
			continue
		}
		apps = append(apps, *app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].SubmittedAt.After(apps[j].SubmittedAt) })
	return apps, nil
}
