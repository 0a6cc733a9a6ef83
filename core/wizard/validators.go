package wizard

import (
	"regexp"
	"strconv"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/jobify/jobify/core"
)

var (
	phoneTag   = "phone"
	phoneText  = "enter a valid phone number (digits only)"
	phoneRegex = regexp.MustCompile(`^\+?[0-9]{6,15}$`)

	yearTag     = "year"
	yearText    = "enter a valid year"
	yearRegex   = regexp.MustCompile(`^[0-9]{4}$`)
	minYear     = 1950
	NowFunc     = time.Now // mockable
	atLeastTag  = "atleastone"
	atLeastText = "select at least one option"

	requiredTag = "required"

	errInvalidStep  = errors.New("please correct the highlighted fields")
	errInvalidDraft = errors.New("the application is incomplete")
)

// InitValidators registers the application form validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(phoneTag, phoneValidation)
	core.RegisterCustomTranslation(validate, translator, phoneTag, phoneText)

	_ = validate.RegisterValidation(yearTag, yearValidation)
	core.RegisterCustomTranslation(validate, translator, yearTag, yearText)

	validate.RegisterStructValidation(skillsStructValidation, Skills{})
	core.RegisterCustomTranslation(validate, translator, atLeastTag, atLeastText)
}

// Validator validates Draft sections.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// NewValidator expects validate to be set up by core.InitValidators and InitValidators.
func NewValidator(validate *validator.Validate, translator ut.Translator) *Validator {
	return &Validator{validate: validate, translator: translator}
}

// Section validates the values of a single section.
func (v *Validator) Section(values Values) error {
	flds, err := v.fieldErrors(values)
	if err != nil {
		return err
	}
	if len(flds) > 0 {
		return core.NewValidationError(errInvalidStep, flds...)
	}
	return nil
}

// Draft validates every listed section of d and reports all invalid fields at once.
func (v *Validator) Draft(d Draft, sections ...Section) error {
	if len(sections) == 0 {
		sections = AllSections
	}
	var all []core.FieldError
	for _, s := range sections {
		values, err := d.Values(s)
		if err != nil {
			return err
		}
		flds, err := v.fieldErrors(values)
		if err != nil {
			return err
		}
		all = append(all, flds...)
	}
	if len(all) > 0 {
		return core.NewValidationError(errInvalidDraft, all...)
	}
	return nil
}

func (v *Validator) fieldErrors(values Values) ([]core.FieldError, error) {
	if values == nil {
		return nil, nil
	}
	err := v.validate.Struct(values)
	if err == nil {
		return nil, nil
	}
	flds, err := core.FieldErrors(err, v.translator)
	if err != nil {
		return nil, errors.Wrapf(err, "validating %s", values.Section())
	}
	return flds, nil
}

// Custom Validators

func phoneValidation(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

// yearValidation accepts 4 digit years from minYear up to next year.
func yearValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if !yearRegex.MatchString(val) {
		return false
	}
	year, _ := strconv.Atoi(val)
	return year >= minYear && year <= NowFunc().Year()+1
}

// skillsStructValidation requires one checked option per skill category,
// and language details when language fluency is checked.
func skillsStructValidation(sl validator.StructLevel) {
	skills := sl.Current().Interface().(Skills)

	ts := skills.TeachingSkills
	if !(ts.ClassroomManagement || ts.LessonPlanning || ts.CurriculumDevelopment || ts.AssessmentTechniques) {
		sl.ReportError(ts, "teachingSkills", "TeachingSkills", atLeastTag, "")
	}

	ck := skills.CulturalKnowledge
	if !(ck.KnowledgeOfSpecificCulturesOrTraditions || ck.AbilityToTeachCulturalValuesAndPerspectives || ck.FluencyInLanguages) {
		sl.ReportError(ck, "culturalKnowledge", "CulturalKnowledge", atLeastTag, "")
	}
	if ck.FluencyInLanguages && core.CleanString(ck.LanguageDetails) == "" {
		sl.ReportError(ck.LanguageDetails, "culturalKnowledge.languageDetails", "LanguageDetails", requiredTag, "")
	}

	is := skills.InterpersonalSkills
	if !(is.CommunicationSkills || is.Empathy || is.Patience || is.CulturalSensitivity) {
		sl.ReportError(is, "interPersonalSkills", "InterpersonalSkills", atLeastTag, "")
	}
}
