package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobify/jobify/core"
	"github.com/jobify/jobify/core/session"
	"github.com/jobify/jobify/core/wizard"
	submittersvc "github.com/jobify/jobify/services/submitter"
	inmemdb "github.com/jobify/jobify/storage/database/inmem"
	testutil "github.com/jobify/jobify/tests"
)

func transition(t *testing.T, section wizard.Section, values interface{}) []byte {
	t.Helper()
	return marshalObj(t, TransitionRequest{Section: section, Values: marshalObj(t, values)})
}

func decodeState(t *testing.T, rec *httptest.ResponseRecorder) wizard.State {
	t.Helper()
	var state wizard.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state), "body %s", rec.Body.String())
	return state
}

// fillWizard walks every step of draft up to the documents step and uploads both photos.
func fillWizard(t *testing.T, env testEnv, token string, draft wizard.Draft) {
	t.Helper()

	for _, step := range wizard.DefaultSteps()[:len(wizard.DefaultSteps())-1] {
		values, err := draft.Values(step.Section)
		require.NoError(t, err)
		rec := env.serve(newAuthRequest(http.MethodPost, "/api/wizard/next", token, transition(t, step.Section, values)))
		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", step.Section, rec.Body.String())
	}
	for _, field := range wizard.AttachmentFields {
		rec := env.serve(newUploadRequest(t, http.MethodPut, "/api/wizard/attachments/"+string(field), token, "file", string(field)+".png", testutil.PNG))
		require.Equal(t, http.StatusOK, rec.Code, "%s: %s", field, rec.Body.String())
	}
}

func Test_wizardApi_flow(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	tutor := env.createAccount(t, "Tutor", "tutor@test.cd", session.RoleTutor)
	token := getToken(t, env, tutor)
	draft := testutil.ValidDraft("amina@test.cd")

	rec := env.serve(newAuthRequest(http.MethodGet, "/api/wizard", token))
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeState(t, rec)
	assert.Equal(t, 0, state.Cursor)
	assert.Equal(t, wizard.SectionPersonalInfo, state.Step.Section)
	assert.False(t, state.Ready)

	t.Run("invalid step", func(t *testing.T) {
		rec := env.serve(newAuthRequest(http.MethodPost, "/api/wizard/next", token,
			transition(t, wizard.SectionPersonalInfo, wizard.PersonalInfo{FullName: "A", Email: "lol"})))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, []string{"address", "email", "fullName", "jobPreference", "phone"}, fieldKeys(t, rec))
	})

	t.Run("section mismatch", func(t *testing.T) {
		rec := env.serve(newAuthRequest(http.MethodPost, "/api/wizard/next", token, transition(t, wizard.SectionEducation, draft.Education)))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: wizard.ErrSectionMismatch.Error()})}, rec)
	})

	t.Run("unknown section", func(t *testing.T) {
		rec := env.serve(newAuthRequest(http.MethodPost, "/api/wizard/next", token, transition(t, "hobbies", draft.Education)))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: wizard.ErrUnknownSection.Error()})}, rec)
	})

	t.Run("malformed values", func(t *testing.T) {
		body := []byte(`{"values": {"fullName": 42}}`)
		rec := env.serve(newAuthRequest(http.MethodPost, "/api/wizard/next", token, body))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: "malformed values"})}, rec)
	})

	t.Run("submit before last step", func(t *testing.T) {
		rec := env.serve(newAuthRequest(http.MethodPost, "/api/wizard/submit", token))
		checkCodeAndData(t, httpTest{wantCode: http.StatusBadRequest, wantData: marshalObj(t, httpErr{Error: wizard.ErrNotLastStep.Error()})}, rec)
	})

	fillWizard(t, env, token, draft)

	rec = env.serve(newAuthRequest(http.MethodGet, "/api/wizard", token))
	state = decodeState(t, rec)
	assert.Equal(t, len(wizard.DefaultSteps())-1, state.Cursor)
	assert.True(t, state.IsLastStep)
	assert.True(t, state.Ready)
	assert.Equal(t, "ppPhoto.png", state.Draft.PPPhoto)
	assert.Len(t, state.Attachments, 2)

	snap, err := env.drafts.LoadSnapshot(ctx, tutor.ID)
	require.NoError(t, err, "progress is saved")
	assert.Equal(t, state.Cursor, snap.Cursor)
	assert.Equal(t, state.Draft, snap.Draft)

	env.mailSvc.Reset()
	rec = env.serve(newAuthRequest(http.MethodPost, "/api/wizard/submit", token))
	require.Equal(t, http.StatusCreated, rec.Code, "body %s", rec.Body.String())
	state = decodeState(t, rec)
	assert.Equal(t, 0, state.Cursor, "starts over")
	assert.Equal(t, wizard.Draft{}, state.Draft)

	app, err := env.apps.GetApplicationByEmail(ctx, "amina@test.cd")
	require.NoError(t, err)
	assert.Equal(t, tutor.ID, app.AccountID)
	assert.Len(t, app.Attachments, 2)
	photo, err := env.apps.GetAttachment(ctx, app.ID, wizard.FieldPPPhoto)
	require.NoError(t, err)
	assert.Equal(t, testutil.PNG, photo.Data)

	msgs := env.mailSvc.SentMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "amina@test.cd", msgs[0].To[0].Address)

	_, err = env.drafts.LoadSnapshot(ctx, tutor.ID)
	assert.Equal(t, wizard.ErrNoSnapshot, err, "snapshot discarded")
}

func Test_wizardApi_navigation(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	tutor := env.createAccount(t, "Tutor", "tutor@test.cd", session.RoleTutor)
	token := getToken(t, env, tutor)
	draft := testutil.ValidDraft("amina@test.cd")

	rec := env.serve(newAuthRequest(http.MethodPost, "/api/wizard/jump", token, marshalObj(t, TransitionRequest{
		Values: marshalObj(t, wizard.PersonalInfo{FullName: "Half typed"}),
		Step:   3,
	})))
	require.Equal(t, http.StatusOK, rec.Code, "body %s", rec.Body.String())
	state := decodeState(t, rec)
	assert.Equal(t, 3, state.Cursor, "jumps do not validate")
	assert.Equal(t, "Half typed", state.Draft.FullName)

	rec = env.serve(newAuthRequest(http.MethodPost, "/api/wizard/previous", token, transition(t, wizard.SectionStatement, draft.Statement)))
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeState(t, rec)
	assert.Equal(t, 2, state.Cursor)
	assert.Equal(t, draft.StatementOfPurpose, state.Draft.StatementOfPurpose, "values kept going back")

	rec = env.serve(newAuthRequest(http.MethodPost, "/api/wizard/jump", token, marshalObj(t, TransitionRequest{Step: 99})))
	assert.Equal(t, len(wizard.DefaultSteps())-1, decodeState(t, rec).Cursor, "clamped")

	t.Run("attachments", func(t *testing.T) {
		tests := []struct {
			name     string
			field    string
			data     []byte
			wantCode int
			wantData []byte
		}{
			{
				name: "unknown field", field: "cv", data: testutil.PNG, wantCode: http.StatusBadRequest,
				wantData: marshalObj(t, map[string]string{"cv": "unknown attachment field"}),
			},
			{
				name: "not an image", field: "ppPhoto", data: []byte("%PDF-1.4 not a photo"), wantCode: http.StatusBadRequest,
				wantData: marshalObj(t, map[string]string{"ppPhoto": "the file must be an image"}),
			},
			{name: "image", field: "ppPhoto", data: testutil.PNG, wantCode: http.StatusOK},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := env.serve(newUploadRequest(t, http.MethodPut, "/api/wizard/attachments/"+tt.field, token, "file", "me.png", tt.data))
				checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)
			})
		}

		rec := env.serve(newAuthRequest(http.MethodDelete, "/api/wizard/attachments/ppPhoto", token))
		require.Equal(t, http.StatusOK, rec.Code)
		state := decodeState(t, rec)
		assert.Empty(t, state.Draft.PPPhoto)
		assert.Empty(t, state.Attachments)
	})

	rec = env.serve(newAuthRequest(http.MethodDelete, "/api/wizard", token))
	require.Equal(t, http.StatusOK, rec.Code)
	state = decodeState(t, rec)
	assert.Equal(t, 0, state.Cursor)
	assert.Equal(t, wizard.Draft{}, state.Draft)
	_, err := env.drafts.LoadSnapshot(ctx, tutor.ID)
	assert.Equal(t, wizard.ErrNoSnapshot, err)
}

func Test_wizardApi_resumesSnapshot(t *testing.T) {
	env := setup(t)
	tutor := env.createAccount(t, "Tutor", "tutor@test.cd", session.RoleTutor)
	draft := testutil.ValidDraft("amina@test.cd")

	saved := wizard.Snapshot{Cursor: 2, Draft: wizard.Draft{PersonalInfo: draft.PersonalInfo, Education: draft.Education}}
	require.NoError(t, env.drafts.SaveSnapshot(context.Background(), tutor.ID, saved))

	rec := env.serve(newAuthRequest(http.MethodGet, "/api/wizard", getToken(t, env, tutor)))
	require.Equal(t, http.StatusOK, rec.Code)
	state := decodeState(t, rec)
	assert.Equal(t, 2, state.Cursor)
	assert.Equal(t, draft.FullName, state.Draft.FullName)
}

func Test_wizardApi_remoteSubmitter(t *testing.T) {
	type received struct {
		auth  string
		draft wizard.Draft
		files []string
	}

	tests := []struct {
		name     string
		status   int
		body     string
		wantCode int
		wantData []byte
	}{
		{name: "accepted", status: http.StatusCreated, body: `{}`, wantCode: http.StatusCreated},
		{
			name: "rejected", status: http.StatusBadRequest, body: `{"email": "an application with this email already exists"}`,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"email": "an application with this email already exists"}`),
		},
		{name: "remote failure", status: http.StatusInternalServerError, body: `oops`, wantCode: http.StatusBadGateway, wantData: marshalObj(t, httpErr{Error: errSubmitRetry})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make(chan received, 1)
			remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var rcv received
				rcv.auth = r.Header.Get("Authorization")
				if err := r.ParseMultipartForm(32 << 20); err == nil {
					_ = json.Unmarshal([]byte(r.FormValue(submittersvc.DraftField)), &rcv.draft)
					for field := range r.MultipartForm.File {
						rcv.files = append(rcv.files, field)
					}
				}
				got <- rcv
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer remote.Close()

			env := setup(t, func(conf *core.Config) { conf.ApplicationsEndpoint = remote.URL })
			tutor := env.createAccount(t, "Tutor", "tutor@test.cd", session.RoleTutor)
			token := getToken(t, env, tutor)
			fillWizard(t, env, token, testutil.ValidDraft("amina@test.cd"))

			rec := env.serve(newAuthRequest(http.MethodPost, "/api/wizard/submit", token))
			checkCodeAndData(t, httpTest{wantCode: tt.wantCode, wantData: tt.wantData}, rec)

			rcv := <-got
			assert.Equal(t, "Bearer "+token, rcv.auth, "forwards the session token")
			assert.Equal(t, "amina@test.cd", rcv.draft.Email)
			assert.ElementsMatch(t, []string{"ppPhoto", "identityPhoto"}, rcv.files)

			if tt.wantCode != http.StatusCreated {
				// nothing is lost on failure
				rec = env.serve(newAuthRequest(http.MethodGet, "/api/wizard", token))
				state := decodeState(t, rec)
				assert.True(t, state.IsLastStep)
				assert.Equal(t, "amina@test.cd", state.Draft.Email)
				assert.Len(t, state.Attachments, 2)
			}
		})
	}
}

func Test_wizardApi_submitInFlight(t *testing.T) {
	arrived := make(chan struct{})
	release := make(chan struct{})
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(arrived)
		<-release
		w.WriteHeader(http.StatusCreated)
	}))
	defer remote.Close()

	env := setup(t, func(conf *core.Config) {
		conf.ApplicationsEndpoint = remote.URL
		conf.SubmitTimeout = 5 * time.Second
	})
	tutor := env.createAccount(t, "Tutor", "tutor@test.cd", session.RoleTutor)
	token := getToken(t, env, tutor)
	fillWizard(t, env, token, testutil.ValidDraft("amina@test.cd"))

	done := make(chan int)
	go func() {
		done <- env.serve(newAuthRequest(http.MethodPost, "/api/wizard/submit", token)).Code
	}()
	<-arrived

	conflict := marshalObj(t, httpErr{Error: wizard.ErrSubmitInFlight.Error()})
	for _, path := range []string{"/api/wizard/submit", "/api/wizard/previous", "/api/wizard/next"} {
		rec := env.serve(newAuthRequest(http.MethodPost, path, token))
		checkCodeAndData(t, httpTest{wantCode: http.StatusConflict, wantData: conflict}, rec)
	}
	rec := env.serve(newAuthRequest(http.MethodDelete, "/api/wizard", token))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.serve(newAuthRequest(http.MethodGet, "/api/wizard", token))
	assert.True(t, decodeState(t, rec).Submitting)

	close(release)
	assert.Equal(t, http.StatusCreated, <-done)
}

func Test_wizardRegistry_evictsIdle(t *testing.T) {
	ctx := context.Background()
	validate, translator := testutil.NewValidate()
	store := inmemdb.NewSnapshotStore()
	ttl := time.Hour
	reg := newWizardRegistry(
		wizard.DefaultSteps(), wizard.NewValidator(validate, translator), store, time.Second, ttl,
		func(session.Principal) wizard.Submitter {
			return wizard.SubmitterFunc(func(context.Context, wizard.Submission) error { return nil })
		},
	)
	clock := time.Now()
	reg.now = func() time.Time { return clock }

	amina := session.Principal{ID: "amina", Role: session.RoleTutor}
	joseph := session.Principal{ID: "joseph", Role: session.RoleTutor}

	w, err := reg.get(ctx, amina)
	require.NoError(t, err)
	require.NoError(t, w.Next(testutil.ValidDraft("amina@test.cd").PersonalInfo))
	require.NoError(t, reg.save(ctx, amina, w))

	clock = clock.Add(ttl / 2)
	got, err := reg.get(ctx, amina)
	require.NoError(t, err)
	assert.Same(t, w, got, "used within the ttl")

	clock = clock.Add(ttl + time.Minute)
	jw, err := reg.get(ctx, joseph)
	require.NoError(t, err)
	require.NoError(t, jw.Next(testutil.ValidDraft("joseph@test.cd").PersonalInfo))
	require.NoError(t, reg.save(ctx, joseph, jw))
	assert.Len(t, reg.wizards, 1, "amina was idle past the ttl")

	t.Run("rebuilt from snapshot", func(t *testing.T) {
		got, err := reg.get(ctx, amina)
		require.NoError(t, err)
		assert.NotSame(t, w, got)
		assert.Equal(t, 1, got.Cursor())
		assert.Equal(t, "Amina Diallo", got.Draft().FullName)
	})

	t.Run("expired snapshot", func(t *testing.T) {
		// the store dropped joseph's draft after the same ttl
		require.NoError(t, store.DeleteSnapshot(ctx, joseph.ID))
		clock = clock.Add(2 * ttl)

		got, err := reg.get(ctx, joseph)
		require.NoError(t, err)
		assert.NotSame(t, jw, got)
		assert.Equal(t, 0, got.Cursor())
		assert.Equal(t, wizard.Draft{}, got.Draft())
	})
}
