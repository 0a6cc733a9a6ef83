package wizard

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/jobify/jobify/core"
)

// Attachment fields
const (
	FieldPPPhoto       AttachmentField = "ppPhoto"
	FieldIdentityPhoto AttachmentField = "identityPhoto"
)

// MaxAttachmentSize is the largest accepted payload, in bytes.
const MaxAttachmentSize = 2 << 20

var (
	AttachmentFields = []AttachmentField{FieldPPPhoto, FieldIdentityPhoto}

	errInvalidAttachment = errors.New("invalid attachment")
	msgUnknownField      = "unknown attachment field"
	msgEmptyFile         = "the file is empty"
	msgFileTooLarge      = fmt.Sprintf("the file must not exceed %d MB", MaxAttachmentSize>>20)
	msgNotAnImage        = "the file must be an image"
)

type AttachmentField string

func (f AttachmentField) IsValid() bool {
	for _, fld := range AttachmentFields {
		if f == fld {
			return true
		}
	}
	return false
}

// Attachment is a file held in memory next to the Draft. Only its Filename is part of the Draft.
type Attachment struct {
	Field       AttachmentField `json:"field"`
	Filename    string          `json:"filename"`
	ContentType string          `json:"contentType"`
	Data        []byte          `json:"-"`
}

func (a Attachment) Size() int { return len(a.Data) }

// NewAttachment checks data is a non-empty image within MaxAttachmentSize and sniffs its content type.
func NewAttachment(field AttachmentField, filename string, data []byte) (Attachment, error) {
	a := Attachment{Field: field, Filename: filename, Data: data}
	if err := a.check(); err != nil {
		return Attachment{}, err
	}
	return a, nil
}

func (a *Attachment) check() error {
	fail := func(msg string) error {
		return core.NewValidationError(errInvalidAttachment, core.FieldError{Field: string(a.Field), Error: msg})
	}
	if !a.Field.IsValid() {
		return fail(msgUnknownField)
	}
	if len(a.Data) == 0 {
		return fail(msgEmptyFile)
	}
	if len(a.Data) > MaxAttachmentSize {
		return fail(msgFileTooLarge)
	}
	ct := http.DetectContentType(a.Data)
	if !strings.HasPrefix(ct, "image/") {
		return fail(msgNotAnImage)
	}
	a.ContentType = ct
	a.Filename = core.CleanString(a.Filename)
	if a.Filename == "" {
		a.Filename = string(a.Field)
	}
	return nil
}

func setDescriptor(d *Draft, f AttachmentField, name string) {
	switch f {
	case FieldPPPhoto:
		d.PPPhoto = name
	case FieldIdentityPhoto:
		d.IdentityPhoto = name
	}
}
