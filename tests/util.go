package testutil

import (
	"context"
	"io"
	"log"
	"net/mail"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jobify/jobify/core"
	"github.com/jobify/jobify/core/account"
	"github.com/jobify/jobify/core/session"
	"github.com/jobify/jobify/core/wizard"
	logsvc "github.com/jobify/jobify/services/logger"
)

// Password satisfies the password policy.
const Password = "L3tM3!n-Plz"

// NewValidate returns a validator set up with every custom validator and translation of the app.
func NewValidate() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)
	wizard.InitValidators(validate, translator)
	return validate, translator
}

// NewLogger returns a silent logger with rollbar disabled.
func NewLogger() core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), core.NewTestConfig())
	logger.Enable(false)
	return logger
}

// NewConfig returns a test config with email templates parsed.
func NewConfig() *core.Config {
	conf := core.NewTestConfig()
	conf.DefaultFromEmail = mail.Address{Name: "Jobify", Address: "noreply@jobify.test"}
	conf.FrontendBaseURL = "http://jobify.test"
	if err := core.ParseEmailTemplates(conf); err != nil {
		panic(err)
	}
	return conf
}

// CreateAccount stores an Account straight in repo, bypassing the password policy.
func CreateAccount(t *testing.T, repo account.Repository, name, email, pwd string, role session.Role, verified bool) account.Account {
	t.Helper()

	now := time.Now().UTC()
	acc := account.Account{
		ID:         uuid.NewString(),
		Name:       name,
		Email:      email,
		Role:       role,
		IsVerified: verified,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if pwd != "" {
		require.NoError(t, acc.SetPassword(pwd), "SetPassword()")
	}
	acc, err := repo.CreateAccount(context.Background(), acc)
	require.NoError(t, err, "CreateAccount()")
	return acc
}

// ValidDraft returns a Draft that passes every section validation.
func ValidDraft(email string) wizard.Draft {
	var d wizard.Draft
	d.PersonalInfo = wizard.PersonalInfo{
		FullName:      "Amina Diallo",
		Email:         email,
		Phone:         "+243810000000",
		Address:       "12 Av. de la Paix, Kinshasa",
		JobPreference: "Mathematics",
	}
	d.Education = wizard.Education{Degree: "BSc Mathematics", Institution: "UNIKIN", YearOfGraduation: "2015"}
	d.Skills = wizard.Skills{
		TeachingSkills:      wizard.TeachingSkills{LessonPlanning: true},
		CulturalKnowledge:   wizard.CulturalKnowledge{FluencyInLanguages: true, LanguageDetails: "French, Lingala"},
		InterpersonalSkills: wizard.InterpersonalSkills{Patience: true},
	}
	d.Statement = wizard.Statement{StatementOfPurpose: "I have taught mathematics for six years and want to keep doing so."}
	d.ReferenceList = wizard.ReferenceList{References: [2]wizard.Reference{
		{Name: "J. Kabila", Title: "Head teacher", Organization: "Lycee Bosangani", ContactInfo: "jk@test.cd"},
		{Name: "M. Tshala", Title: "Dean", Organization: "UNIKIN", ContactInfo: "+243820000000"},
	}}
	d.CertificationList = wizard.CertificationList{Certifications: [2]wizard.Certification{
		{CertificationName: "TEFL", CertifyingOrganization: "British Council", YearOfCertification: "2017"},
		{CertificationName: "CAPES", CertifyingOrganization: "EPSP", YearOfCertification: "2016"},
	}}
	d.Documents = wizard.Documents{PPPhoto: "me.png", IdentityPhoto: "id.png"}
	return d
}

// PNG is the smallest valid PNG image.
var PNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4,
	0x89, 0x00, 0x00, 0x00, 0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae,
	0x42, 0x60, 0x82,
}
