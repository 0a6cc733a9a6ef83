package echoapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os/signal"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobify/jobify/core"
	"github.com/jobify/jobify/core/account"
	"github.com/jobify/jobify/core/application"
	"github.com/jobify/jobify/core/session"
	"github.com/jobify/jobify/core/wizard"
	emailsvc "github.com/jobify/jobify/services/email"
	inmemdb "github.com/jobify/jobify/storage/database/inmem"
	testutil "github.com/jobify/jobify/tests"
)

type testEnv struct {
	srv      *server
	accounts account.Repository
	apps     application.Repository
	drafts   wizard.SnapshotStore
	mailSvc  *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T, mods ...func(conf *core.Config)) testEnv {
	t.Helper()

	conf := testutil.NewConfig()
	for _, mod := range mods {
		mod(conf)
	}
	logger := testutil.NewLogger()
	validate, translator := testutil.NewValidate()

	// set up DB & repos
	db := inmemdb.Open()
	accRepo := inmemdb.NewAccountRepository(db)
	appRepo := inmemdb.NewApplicationRepository(db)
	drafts := inmemdb.NewSnapshotStore()

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)

	// set up server
	srv := NewServer(ServerDeps{
		Conf:           conf,
		Logger:         logger,
		AccountSvc:     account.NewService(accRepo, mailSvc, validate, conf),
		ApplicationSvc: application.NewService(appRepo, mailSvc, wizard.NewValidator(validate, translator)),
		Revocations:    inmemdb.NewRevocationList(),
		Drafts:         drafts,
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	}).(*server)
	t.Cleanup(func() { signal.Stop(srv.shutdown) })

	return testEnv{srv: srv, accounts: accRepo, apps: appRepo, drafts: drafts, mailSvc: mailSvc}
}

func (env testEnv) createAccount(t *testing.T, name, email string, role session.Role) account.Account {
	t.Helper()
	return testutil.CreateAccount(t, env.accounts, name, email, testutil.Password, role, true)
}

func (env testEnv) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	env.srv.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) *http.Request {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func newRequest(method, path string, data ...[]byte) *http.Request {
	return newAuthRequest(method, path, "", data...)
}

// newUploadRequest builds a multipart request with a single file part.
func newUploadRequest(t *testing.T, method, path, token, part, filename string, data []byte) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	fw, err := w.CreateFormFile(part, filename)
	require.NoError(t, err, "CreateFormFile()")
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func getToken(t *testing.T, env testEnv, acc account.Account) string {
	t.Helper()
	token, err := env.srv.auth.GenerateToken(env.srv.auth.newClaims(acc.Principal()))
	require.NoError(t, err, "GenerateToken()")
	return token
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	require.NoError(t, err, "json.Marshal()")
	return data
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, tt.wantCode, rec.Code, "code; body %s", rec.Body.String())
	if tt.wantData != nil {
		assert.JSONEq(t, string(tt.wantData), rec.Body.String())
	}
}

// fieldKeys returns the sorted keys of a field error response.
func fieldKeys(t *testing.T, rec *httptest.ResponseRecorder) []string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), "body %s", rec.Body.String())
	keys := make([]string, 0, len(body))
	for k := range body {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func signInLocation(path string) string {
	return session.SignInPath + "?" + url.Values{session.CallbackParam: {path}}.Encode()
}

// verificationToken extracts the token from the last verification email.
func verificationToken(t *testing.T, mailSvc *emailsvc.ConsoleServiceMock) string {
	t.Helper()
	msgs := mailSvc.SentMessages()
	require.NotEmpty(t, msgs, "no email sent")
	txt := msgs[len(msgs)-1].TextContent
	idx := strings.Index(txt, "http://jobify.test"+session.VerifyPath+"?")
	require.GreaterOrEqual(t, idx, 0, "no verify URL in %q", txt)
	u, err := url.Parse(strings.Fields(txt[idx:])[0])
	require.NoError(t, err)
	return u.Query().Get("token")
}
