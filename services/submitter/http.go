package submittersvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"

	"github.com/pkg/errors"

	"github.com/jobify/jobify/core"
	"github.com/jobify/jobify/core/wizard"
)

// DraftField is the multipart field holding the flattened Draft JSON.
const DraftField = "draft"

var errRejected = errors.New("the application was rejected")

// HTTPSubmitter posts submissions to a remote applications endpoint as multipart/form-data:
// the Draft JSON under DraftField and one file part per attachment, named after its field.
type HTTPSubmitter struct {
	endpoint string
	token    string
	client   *http.Client
}

var _ wizard.Submitter = (*HTTPSubmitter)(nil)

// NewHTTPSubmitter authenticates requests with the bearer token when set. A nil client means http.DefaultClient.
func NewHTTPSubmitter(endpoint, token string, client *http.Client) *HTTPSubmitter {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPSubmitter{endpoint: endpoint, token: token, client: client}
}

func (s *HTTPSubmitter) Submit(ctx context.Context, sub wizard.Submission) error {
	body, contentType, err := EncodeSubmission(sub)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, body)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	res, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "posting application")
	}
	defer func() { _ = res.Body.Close() }()

	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	case res.StatusCode == http.StatusBadRequest:
		return decodeRejection(res.Body)
	default:
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return errors.Errorf("posting application - status: %d - body: %s", res.StatusCode, bytes.TrimSpace(msg))
	}
}

// EncodeSubmission writes sub as a multipart body and returns it with its content type.
func EncodeSubmission(sub wizard.Submission) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	draft, err := json.Marshal(sub.Draft)
	if err != nil {
		return nil, "", errors.Wrap(err, "encoding draft")
	}
	part, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name=%q`, DraftField)},
		"Content-Type":        {"application/json"},
	})
	if err != nil {
		return nil, "", errors.Wrap(err, "creating draft part")
	}
	if _, err = part.Write(draft); err != nil {
		return nil, "", errors.Wrap(err, "writing draft part")
	}

	for _, a := range sub.Attachments {
		part, err = w.CreatePart(textproto.MIMEHeader{
			"Content-Disposition": {fmt.Sprintf(`form-data; name=%q; filename=%q`, a.Field, a.Filename)},
			"Content-Type":        {a.ContentType},
		})
		if err != nil {
			return nil, "", errors.Wrap(err, "creating attachment part")
		}
		if _, err = part.Write(a.Data); err != nil {
			return nil, "", errors.Wrap(err, "writing attachment part")
		}
	}

	if err = w.Close(); err != nil {
		return nil, "", errors.Wrap(err, "closing multipart body")
	}
	return &buf, w.FormDataContentType(), nil
}

// decodeRejection turns a 400 body, either {"error": msg} or {field: msg}, into a *core.ValidationError.
func decodeRejection(r io.Reader) error {
	var body map[string]interface{}
	if err := json.NewDecoder(io.LimitReader(r, 1<<20)).Decode(&body); err != nil {
		return core.NewValidationError(errRejected)
	}

	if msg, ok := body["error"].(string); ok && len(body) == 1 {
		return core.NewValidationError(errors.New(msg))
	}

	flds := make([]core.FieldError, 0, len(body))
	for fld, msg := range body {
		if s, ok := msg.(string); ok {
			flds = append(flds, core.FieldError{Field: fld, Error: s})
		}
	}
	sort.Slice(flds, func(i, j int) bool { return flds[i].Field < flds[j].Field })
	return core.NewValidationError(errRejected, flds...)
}
