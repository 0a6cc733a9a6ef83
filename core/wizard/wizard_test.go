package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobify/jobify/core"
)

var pngData = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

func newTestValidator() *Validator {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	return NewValidator(validate, translator)
}

type recordingSubmitter struct {
	mu    sync.Mutex
	calls []Submission
	err   error
}

func (s *recordingSubmitter) Submit(_ context.Context, sub Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sub)
	return s.err
}

func (s *recordingSubmitter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func validPersonalInfo() PersonalInfo {
	return PersonalInfo{
		FullName:      "Amina Diallo",
		Email:         "amina@test.cd",
		Phone:         "243810000000",
		Address:       "12 Avenue du Port, Kinshasa",
		JobPreference: "Mathematics teacher",
	}
}

func validEducation() Education {
	return Education{Degree: "BSc Mathematics", Institution: "UNIKIN", YearOfGraduation: "2015"}
}

func validSkills() Skills {
	return Skills{
		TeachingSkills:      TeachingSkills{LessonPlanning: true},
		CulturalKnowledge:   CulturalKnowledge{FluencyInLanguages: true, LanguageDetails: "French, Lingala"},
		InterpersonalSkills: InterpersonalSkills{Patience: true},
	}
}

func validStatement() Statement {
	return Statement{StatementOfPurpose: "I have taught mathematics for six years and want to keep doing so."}
}

func validReferences() ReferenceList {
	return ReferenceList{References: [2]Reference{
		{Name: "J. Kabila", Title: "Head teacher", Organization: "Lycee Bosangani", ContactInfo: "jk@test.cd"},
		{Name: "M. Tshala", Title: "Dean", Organization: "UNIKIN", ContactInfo: "+243820000000"},
	}}
}

func validCertifications() CertificationList {
	return CertificationList{Certifications: [2]Certification{
		{CertificationName: "TEFL", CertifyingOrganization: "British Council", YearOfCertification: "2017"},
		{CertificationName: "CAPES", CertifyingOrganization: "EPSP", YearOfCertification: "2016"},
	}}
}

func threeSteps() []Step {
	return []Step{
		{Name: "personal-info", Section: SectionPersonalInfo},
		{Name: "education", Section: SectionEducation},
		{Name: "skills", Section: SectionSkills},
	}
}

func newTestWizard(t *testing.T, steps []Step, sub Submitter, opts ...Option) *Wizard {
	w, err := New(steps, newTestValidator(), sub, opts...)
	require.NoError(t, err)
	return w
}

func fieldMap(t *testing.T, err error) map[string]string {
	vErr, ok := core.AsValidationError(err)
	require.True(t, ok, "want *core.ValidationError, got %v", err)
	return vErr.FieldMap()
}

func TestNew(t *testing.T) {
	v := newTestValidator()
	sub := &recordingSubmitter{}

	tests := []struct {
		name    string
		steps   []Step
		v       *Validator
		sub     Submitter
		wantErr bool
	}{
		{name: "no steps", steps: nil, v: v, sub: sub, wantErr: true},
		{name: "unknown section", steps: []Step{{Section: "hobbies"}}, v: v, sub: sub, wantErr: true},
		{
			name:  "duplicate section",
			steps: []Step{{Section: SectionEducation}, {Section: SectionEducation}}, v: v, sub: sub, wantErr: true,
		},
		{name: "no validator", steps: DefaultSteps(), sub: sub, wantErr: true},
		{name: "no submitter", steps: DefaultSteps(), v: v, wantErr: true},
		{name: "single step", steps: []Step{{Section: SectionStatement}}, v: v, sub: sub},
		{name: "default steps", steps: DefaultSteps(), v: v, sub: sub},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, err := New(tt.steps, tt.v, tt.sub)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, w)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 0, w.Cursor())
			assert.Equal(t, Draft{}, w.Draft())
		})
	}
}

func TestWizard_threeStepScenario(t *testing.T) {
	w := newTestWizard(t, threeSteps(), &recordingSubmitter{})

	// valid personal info -> step 1
	require.NoError(t, w.Next(validPersonalInfo()))
	assert.Equal(t, 1, w.Cursor())
	assert.Equal(t, validPersonalInfo(), w.Draft().PersonalInfo)

	// education typed then back -> kept
	require.NoError(t, w.Previous(validEducation()))
	assert.Equal(t, 0, w.Cursor())
	assert.Equal(t, validEducation(), w.Draft().Education)

	// next again -> nothing lost or duplicated
	before := w.Draft()
	require.NoError(t, w.Next(before.PersonalInfo))
	assert.Equal(t, 1, w.Cursor())
	assert.Equal(t, before, w.Draft())
}

func TestWizard_Next(t *testing.T) {
	t.Run("invalid values keep state", func(t *testing.T) {
		w := newTestWizard(t, threeSteps(), &recordingSubmitter{})

		invalid := validPersonalInfo()
		invalid.Email = "not-an-email"
		invalid.Phone = "call me"
		err := w.Next(invalid)

		flds := fieldMap(t, err)
		assert.Len(t, flds, 2)
		assert.Contains(t, flds, "email")
		assert.Equal(t, "enter a valid phone number (digits only)", flds["phone"])
		assert.Equal(t, 0, w.Cursor())
		assert.Equal(t, Draft{}, w.Draft())
	})

	t.Run("only the current step is validated", func(t *testing.T) {
		w := newTestWizard(t, threeSteps(), &recordingSubmitter{})
		require.NoError(t, w.JumpTo(1, nil))

		// personal info is still empty, education alone is valid
		require.NoError(t, w.Next(validEducation()))
		assert.Equal(t, 2, w.Cursor())
	})

	t.Run("nil values validate the committed step", func(t *testing.T) {
		w := newTestWizard(t, threeSteps(), &recordingSubmitter{})
		assert.Error(t, w.Next(nil))
		assert.Equal(t, 0, w.Cursor())

		require.NoError(t, w.JumpTo(0, validPersonalInfo()))
		require.NoError(t, w.Next(nil))
		assert.Equal(t, 1, w.Cursor())
	})

	t.Run("clamped on the last step", func(t *testing.T) {
		w := newTestWizard(t, threeSteps(), &recordingSubmitter{})
		require.NoError(t, w.JumpTo(2, nil))
		require.NoError(t, w.Next(validSkills()))
		assert.Equal(t, 2, w.Cursor())
	})

	t.Run("values of another step", func(t *testing.T) {
		w := newTestWizard(t, threeSteps(), &recordingSubmitter{})
		err := w.Next(validEducation())
		assert.True(t, errors.Is(err, ErrSectionMismatch), err)
		assert.Equal(t, 0, w.Cursor())
		assert.Equal(t, Draft{}, w.Draft())
	})
}

func TestWizard_Previous(t *testing.T) {
	w := newTestWizard(t, threeSteps(), &recordingSubmitter{})

	// clamped to 0 and merged without validation
	invalid := PersonalInfo{FullName: "A"}
	require.NoError(t, w.Previous(invalid))
	assert.Equal(t, 0, w.Cursor())
	assert.Equal(t, invalid, w.Draft().PersonalInfo)

	require.NoError(t, w.JumpTo(2, nil))
	require.NoError(t, w.Previous(Skills{}))
	assert.Equal(t, 1, w.Cursor())
}

func TestWizard_PreviousThenNextIsIdempotent(t *testing.T) {
	w := newTestWizard(t, threeSteps(), &recordingSubmitter{})
	require.NoError(t, w.Next(validPersonalInfo()))
	require.NoError(t, w.Next(validEducation()))
	require.Equal(t, 2, w.Cursor())

	before := w.Draft()
	require.NoError(t, w.Previous(before.Skills))
	require.NoError(t, w.Next(before.Education))

	assert.Equal(t, 2, w.Cursor())
	assert.Equal(t, before, w.Draft())
}

func TestWizard_JumpTo(t *testing.T) {
	tests := []struct {
		name       string
		n          int
		wantCursor int
	}{
		{name: "in range", n: 1, wantCursor: 1},
		{name: "last", n: 2, wantCursor: 2},
		{name: "below range", n: -3, wantCursor: 0},
		{name: "above range", n: 42, wantCursor: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := newTestWizard(t, threeSteps(), &recordingSubmitter{})

			invalid := PersonalInfo{Email: "nope"}
			require.NoError(t, w.JumpTo(tt.n, invalid), "jumping never validates")
			assert.Equal(t, tt.wantCursor, w.Cursor())
			assert.Equal(t, invalid, w.Draft().PersonalInfo)
		})
	}
}

func TestWizard_Submit(t *testing.T) {
	t.Run("not on the last step", func(t *testing.T) {
		sub := &recordingSubmitter{}
		w := newTestWizard(t, threeSteps(), sub)
		assert.Equal(t, ErrNotLastStep, w.Submit(context.Background(), validPersonalInfo()))
		assert.Zero(t, sub.count())
	})

	t.Run("invalid draft is rejected and kept", func(t *testing.T) {
		sub := &recordingSubmitter{}
		w := newTestWizard(t, threeSteps(), sub)
		require.NoError(t, w.Next(validPersonalInfo()))
		require.NoError(t, w.JumpTo(2, Education{YearOfGraduation: "15"}))
		before := w.Draft()

		err := w.Submit(context.Background(), nil)
		flds := fieldMap(t, err)
		assert.Contains(t, flds, "yearOfGraduation")
		assert.Contains(t, flds, "teachingSkills")
		assert.Contains(t, flds, "culturalKnowledge")
		assert.Contains(t, flds, "interPersonalSkills")
		assert.NotContains(t, flds, "email")

		assert.Zero(t, sub.count(), "no submission fired")
		assert.Equal(t, 2, w.Cursor())
		assert.Equal(t, before, w.Draft())
	})

	t.Run("invalid last step values are not merged", func(t *testing.T) {
		sub := &recordingSubmitter{}
		w := newTestWizard(t, threeSteps(), sub)
		require.NoError(t, w.JumpTo(0, validPersonalInfo()))
		require.NoError(t, w.JumpTo(2, nil))
		require.NoError(t, w.JumpTo(2, validSkills()))

		assert.Error(t, w.Submit(context.Background(), Skills{}))
		assert.Equal(t, validSkills(), w.Draft().Skills)
		assert.Zero(t, sub.count())
	})

	t.Run("success resets", func(t *testing.T) {
		sub := &recordingSubmitter{}
		w := newTestWizard(t, threeSteps(), sub)
		require.NoError(t, w.Next(validPersonalInfo()))
		require.NoError(t, w.Next(validEducation()))

		require.NoError(t, w.Submit(context.Background(), validSkills()))

		require.Equal(t, 1, sub.count())
		got := sub.calls[0].Draft
		assert.Equal(t, validPersonalInfo(), got.PersonalInfo)
		assert.Equal(t, validEducation(), got.Education)
		assert.Equal(t, validSkills(), got.Skills)

		assert.Equal(t, 0, w.Cursor())
		assert.Equal(t, Draft{}, w.Draft())
	})

	t.Run("success restores defaults", func(t *testing.T) {
		defaults := Draft{PersonalInfo: PersonalInfo{JobPreference: "Tutor"}}
		w := newTestWizard(t, []Step{{Section: SectionStatement}}, &recordingSubmitter{}, WithDefaults(defaults))
		assert.Equal(t, defaults, w.Draft())

		require.NoError(t, w.Submit(context.Background(), validStatement()))
		assert.Equal(t, defaults, w.Draft())
	})

	t.Run("submitter failure keeps state for retry", func(t *testing.T) {
		sub := &recordingSubmitter{err: errors.New("connection refused")}
		w := newTestWizard(t, threeSteps(), sub)
		require.NoError(t, w.Next(validPersonalInfo()))
		require.NoError(t, w.Next(validEducation()))

		err := w.Submit(context.Background(), validSkills())
		var sErr *SubmissionError
		require.True(t, errors.As(err, &sErr), err)
		assert.EqualError(t, sErr.Err, "connection refused")
		assert.Equal(t, 2, w.Cursor())
		assert.Equal(t, validSkills(), w.Draft().Skills, "last step values are kept")
		assert.False(t, w.Submitting())

		// retry without re-entering anything
		sub.err = nil
		require.NoError(t, w.Submit(context.Background(), nil))
		assert.Equal(t, 2, sub.count())
		assert.Equal(t, sub.calls[0].Draft, sub.calls[1].Draft)
		assert.Equal(t, 0, w.Cursor())
	})

	t.Run("submitter validation errors pass through", func(t *testing.T) {
		dup := core.NewValidationError(errors.New("duplicate"), core.FieldError{Field: "email", Error: "already applied"})
		sub := &recordingSubmitter{err: dup}
		w := newTestWizard(t, []Step{{Section: SectionStatement}}, sub)

		err := w.Submit(context.Background(), validStatement())
		assert.Equal(t, dup, err)
		assert.Equal(t, validStatement(), w.Draft().Statement)
	})

	t.Run("submit timeout", func(t *testing.T) {
		sub := SubmitterFunc(func(ctx context.Context, _ Submission) error {
			<-ctx.Done()
			return ctx.Err()
		})
		w := newTestWizard(t, []Step{{Section: SectionStatement}}, sub, WithSubmitTimeout(10*time.Millisecond))

		err := w.Submit(context.Background(), validStatement())
		assert.True(t, errors.Is(err, context.DeadlineExceeded), err)
		assert.Equal(t, validStatement(), w.Draft().Statement)
	})
}

func TestWizard_SubmitInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	sub := SubmitterFunc(func(context.Context, Submission) error {
		close(started)
		<-release
		return nil
	})
	w := newTestWizard(t, []Step{{Section: SectionPersonalInfo}}, sub)

	done := make(chan error, 1)
	go func() { done <- w.Submit(context.Background(), validPersonalInfo()) }()
	<-started

	assert.True(t, w.Submitting())
	assert.Equal(t, ErrSubmitInFlight, w.Submit(context.Background(), nil))
	assert.Equal(t, ErrSubmitInFlight, w.Next(nil))
	assert.Equal(t, ErrSubmitInFlight, w.Previous(nil))
	assert.Equal(t, ErrSubmitInFlight, w.JumpTo(0, nil))
	assert.Equal(t, ErrSubmitInFlight, w.Reset())
	assert.Equal(t, ErrSubmitInFlight, w.Attach(Attachment{Field: FieldPPPhoto, Filename: "me.png", Data: pngData}))
	assert.Equal(t, ErrSubmitInFlight, w.RemoveAttachment(FieldPPPhoto))

	close(release)
	require.NoError(t, <-done)
	assert.False(t, w.Submitting())
	assert.Equal(t, Draft{}, w.Draft())
}

func TestWizard_Ready(t *testing.T) {
	w := newTestWizard(t, threeSteps(), &recordingSubmitter{})
	assert.False(t, w.Ready())

	require.NoError(t, w.Next(validPersonalInfo()))
	require.NoError(t, w.Next(validEducation()))
	assert.True(t, w.Ready())

	// the last step is the one being typed, it does not gate submission
	require.NoError(t, w.JumpTo(2, Skills{}))
	assert.True(t, w.Ready())

	// committing an invalid earlier step disables submission
	require.NoError(t, w.JumpTo(1, Skills{}))
	require.NoError(t, w.JumpTo(2, Education{YearOfGraduation: "1066"}))
	assert.False(t, w.Ready())
	assert.False(t, w.State().Ready)
}

func TestWizard_conditionalFieldIsCleared(t *testing.T) {
	w := newTestWizard(t, threeSteps(), &recordingSubmitter{})
	require.NoError(t, w.JumpTo(2, nil))

	skills := validSkills()
	require.NoError(t, w.JumpTo(2, skills))
	assert.Equal(t, "French, Lingala", w.Draft().CulturalKnowledge.LanguageDetails)

	skills.CulturalKnowledge.FluencyInLanguages = false
	skills.CulturalKnowledge.AbilityToTeachCulturalValuesAndPerspectives = true
	require.NoError(t, w.JumpTo(2, skills))
	assert.Empty(t, w.Draft().CulturalKnowledge.LanguageDetails)

	// checked again without details is invalid
	skills.CulturalKnowledge.FluencyInLanguages = true
	skills.CulturalKnowledge.LanguageDetails = ""
	err := w.Next(skills)
	assert.Equal(t, map[string]string{"culturalKnowledge.languageDetails": "this field is required"}, fieldMap(t, err))
}

func TestWizard_attachments(t *testing.T) {
	steps := []Step{{Section: SectionStatement}, {Section: SectionDocuments}}

	t.Run("attach and remove", func(t *testing.T) {
		w := newTestWizard(t, steps, &recordingSubmitter{})

		require.NoError(t, w.Attach(Attachment{Field: FieldPPPhoto, Filename: " me.png ", Data: pngData}))
		assert.Equal(t, "me.png", w.Draft().PPPhoto)
		atts := w.State().Attachments
		require.Len(t, atts, 1)
		assert.Equal(t, "image/png", atts[0].ContentType)

		require.NoError(t, w.RemoveAttachment(FieldPPPhoto))
		assert.Empty(t, w.Draft().PPPhoto)
		assert.Empty(t, w.State().Attachments)
	})

	t.Run("invalid payloads", func(t *testing.T) {
		tests := []struct {
			name  string
			att   Attachment
			field string
		}{
			{name: "unknown field", att: Attachment{Field: "cv", Data: pngData}, field: "cv"},
			{name: "empty", att: Attachment{Field: FieldPPPhoto}, field: "ppPhoto"},
			{name: "too large", att: Attachment{Field: FieldIdentityPhoto, Data: make([]byte, MaxAttachmentSize+1)}, field: "identityPhoto"},
			{name: "not an image", att: Attachment{Field: FieldPPPhoto, Data: []byte("%PDF-1.4 hello")}, field: "ppPhoto"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := newTestWizard(t, steps, &recordingSubmitter{})
				assert.Contains(t, fieldMap(t, w.Attach(tt.att)), tt.field)
				assert.Equal(t, Documents{}, w.Draft().Documents)
			})
		}
	})

	t.Run("descriptors follow payloads", func(t *testing.T) {
		w := newTestWizard(t, steps, &recordingSubmitter{})
		require.NoError(t, w.JumpTo(1, nil))

		err := w.Next(Documents{PPPhoto: "fake.png", IdentityPhoto: "fake.png"})
		flds := fieldMap(t, err)
		assert.Contains(t, flds, "ppPhoto")
		assert.Contains(t, flds, "identityPhoto")
	})

	t.Run("submitted with the draft", func(t *testing.T) {
		sub := &recordingSubmitter{}
		w := newTestWizard(t, steps, sub)
		require.NoError(t, w.Next(validStatement()))
		require.NoError(t, w.Attach(Attachment{Field: FieldIdentityPhoto, Filename: "id.png", Data: pngData}))
		require.NoError(t, w.Attach(Attachment{Field: FieldPPPhoto, Filename: "me.png", Data: pngData}))

		require.NoError(t, w.Submit(context.Background(), nil))
		require.Equal(t, 1, sub.count())

		got := sub.calls[0]
		assert.Equal(t, Documents{PPPhoto: "me.png", IdentityPhoto: "id.png"}, got.Draft.Documents)
		require.Len(t, got.Attachments, 2)
		assert.Equal(t, FieldPPPhoto, got.Attachments[0].Field)
		assert.Equal(t, FieldIdentityPhoto, got.Attachments[1].Field)
		assert.Empty(t, w.State().Attachments)
	})
}

func TestWizard_referencesAreFixedLength(t *testing.T) {
	steps := []Step{{Section: SectionReferences}}
	sub := &recordingSubmitter{}
	w := newTestWizard(t, steps, sub)

	refs := validReferences()
	refs.References[1] = Reference{}
	err := w.Submit(context.Background(), refs)

	assert.Equal(t, map[string]string{
		"references[1].organization": "this field is required",
		"references[1].contactInfo":  "this field is required",
	}, fieldMap(t, err))
	assert.Len(t, w.Draft().References, 2)
	assert.Zero(t, sub.count())
}

func TestWizard_snapshot(t *testing.T) {
	w := newTestWizard(t, DefaultSteps(), &recordingSubmitter{})
	require.NoError(t, w.Next(validPersonalInfo()))
	require.NoError(t, w.Next(validEducation()))
	require.NoError(t, w.Attach(Attachment{Field: FieldPPPhoto, Filename: "me.png", Data: pngData}))
	snap := w.Snapshot()
	assert.Equal(t, 2, snap.Cursor)

	restored := newTestWizard(t, DefaultSteps(), &recordingSubmitter{}, WithSnapshot(snap))
	assert.Equal(t, 2, restored.Cursor())
	assert.Equal(t, validPersonalInfo(), restored.Draft().PersonalInfo)
	assert.Empty(t, restored.Draft().PPPhoto, "payloads are not persisted")

	// cursor of a longer form is clamped
	short := newTestWizard(t, threeSteps()[:1], &recordingSubmitter{}, WithSnapshot(Snapshot{Cursor: 5}))
	assert.Equal(t, 0, short.Cursor())
}

func TestWizard_Reset(t *testing.T) {
	w := newTestWizard(t, threeSteps(), &recordingSubmitter{})
	require.NoError(t, w.Next(validPersonalInfo()))
	require.NoError(t, w.Reset())
	assert.Equal(t, 0, w.Cursor())
	assert.Equal(t, Draft{}, w.Draft())
}
