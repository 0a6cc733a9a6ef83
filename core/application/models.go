package application

import (
	"time"

	"github.com/jobify/jobify/core/wizard"
)

// Application is a submitted wizard Draft.
type Application struct {
	ID          string           `json:"id"`
	AccountID   string           `json:"account_id"`
	FullName    string           `json:"full_name"`
	Email       string           `json:"email"`
	Draft       wizard.Draft     `json:"draft"`
	Attachments []AttachmentMeta `json:"attachments"`
	SubmittedAt time.Time        `json:"submitted_at"` // UTC
}

// AttachmentMeta describes a stored attachment. Payloads are fetched separately.
type AttachmentMeta struct {
	Field       wizard.AttachmentField `json:"field"`
	Filename    string                 `json:"filename"`
	ContentType string                 `json:"content_type"`
	Size        int                    `json:"size"`
}

func metaOf(a wizard.Attachment) AttachmentMeta {
	return AttachmentMeta{Field: a.Field, Filename: a.Filename, ContentType: a.ContentType, Size: a.Size()}
}

// QueryFilter narrows a listing. Zero fields do not filter.
type QueryFilter struct {
	AccountID     string
	JobPreference string
	Search        string // matched against full name and email
}
