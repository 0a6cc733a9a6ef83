package wizard

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Section keys
const (
	SectionPersonalInfo   Section = "personalInfo"
	SectionEducation      Section = "education"
	SectionSkills         Section = "skills"
	SectionStatement      Section = "statementOfPurpose"
	SectionReferences     Section = "references"
	SectionCertifications Section = "certifications"
	SectionDocuments      Section = "documents"
)

var (
	AllSections = []Section{
		SectionPersonalInfo,
		SectionEducation,
		SectionSkills,
		SectionStatement,
		SectionReferences,
		SectionCertifications,
		SectionDocuments,
	}

	ErrUnknownSection = errors.New("unknown section")
)

// Section identifies one independently validated part of the Draft.
type Section string

func (s Section) IsValid() bool {
	for _, sec := range AllSections {
		if s == sec {
			return true
		}
	}
	return false
}

// Values are the field values of a single Section.
// It is implemented by the section types of this package only.
type Values interface {
	Section() Section
	mergeInto(d *Draft)
}

type (
	PersonalInfo struct {
		FullName      string `json:"fullName" validate:"min=2"`
		Email         string `json:"email" validate:"required,email"`
		Phone         string `json:"phone" validate:"required,phone"`
		Address       string `json:"address" validate:"required"`
		JobPreference string `json:"jobPreference" validate:"required"`
	}

	Education struct {
		Degree           string `json:"degree"`
		Institution      string `json:"institution"`
		YearOfGraduation string `json:"yearOfGraduation" validate:"omitempty,year"`
	}

	TeachingSkills struct {
		ClassroomManagement   bool   `json:"classroomManagement"`
		LessonPlanning        bool   `json:"lessonPlanning"`
		CurriculumDevelopment bool   `json:"curriculumDevelopment"`
		AssessmentTechniques  bool   `json:"assessmentTechniques"`
		OtherTeachingSkills   string `json:"otherTeachingSkills"`
	}

	CulturalKnowledge struct {
		KnowledgeOfSpecificCulturesOrTraditions     bool   `json:"knowledgeOfSpecificCulturesOrTraditions"`
		AbilityToTeachCulturalValuesAndPerspectives bool   `json:"abilityToTeachCulturalValuesAndPerspectives"`
		FluencyInLanguages                          bool   `json:"fluencyInLanguages"`
		LanguageDetails                             string `json:"languageDetails"`
		OtherCulturalKnowledge                      string `json:"otherCulturalKnowledge"`
	}

	InterpersonalSkills struct {
		CommunicationSkills      bool   `json:"communicationSkills"`
		Empathy                  bool   `json:"empathy"`
		Patience                 bool   `json:"patience"`
		CulturalSensitivity      bool   `json:"culturalSensitivity"`
		OtherInterpersonalSkills string `json:"otherInterpersonalSkills"`
	}

	Skills struct {
		TeachingSkills      TeachingSkills      `json:"teachingSkills"`
		CulturalKnowledge   CulturalKnowledge   `json:"culturalKnowledge"`
		InterpersonalSkills InterpersonalSkills `json:"interPersonalSkills"`
	}

	Statement struct {
		StatementOfPurpose string `json:"statementOfPurpose" validate:"min=50"`
	}

	Reference struct {
		Name         string `json:"name"`
		Title        string `json:"title"`
		Organization string `json:"organization" validate:"required"`
		ContactInfo  string `json:"contactInfo" validate:"required"`
	}

	ReferenceList struct {
		References [2]Reference `json:"references" validate:"dive"`
	}

	Certification struct {
		CertificationName      string `json:"certificationName"`
		CertifyingOrganization string `json:"certifyingOrganization" validate:"required"`
		YearOfCertification    string `json:"yearOfCertification" validate:"required,year"`
	}

	CertificationList struct {
		Certifications [2]Certification `json:"certifications" validate:"dive"`
	}

	// Documents holds the attachment descriptors. Payloads never enter the Draft.
	Documents struct {
		PPPhoto       string `json:"ppPhoto" validate:"required"`
		IdentityPhoto string `json:"identityPhoto" validate:"required"`
	}
)

func (PersonalInfo) Section() Section      { return SectionPersonalInfo }
func (Education) Section() Section         { return SectionEducation }
func (Skills) Section() Section            { return SectionSkills }
func (Statement) Section() Section         { return SectionStatement }
func (ReferenceList) Section() Section     { return SectionReferences }
func (CertificationList) Section() Section { return SectionCertifications }
func (Documents) Section() Section         { return SectionDocuments }

func (v PersonalInfo) mergeInto(d *Draft)      { d.PersonalInfo = v }
func (v Education) mergeInto(d *Draft)         { d.Education = v }
func (v Skills) mergeInto(d *Draft)            { d.Skills = v }
func (v Statement) mergeInto(d *Draft)         { d.Statement = v }
func (v ReferenceList) mergeInto(d *Draft)     { d.ReferenceList = v }
func (v CertificationList) mergeInto(d *Draft) { d.CertificationList = v }
func (v Documents) mergeInto(d *Draft)         { d.Documents = v }

// Draft is the accumulated application. Its JSON form is the flattened union of all sections.
type Draft struct {
	PersonalInfo
	Education
	Skills
	Statement
	ReferenceList
	CertificationList
	Documents
}

// Values returns the committed values of section s.
func (d Draft) Values(s Section) (Values, error) {
	switch s {
	case SectionPersonalInfo:
		return d.PersonalInfo, nil
	case SectionEducation:
		return d.Education, nil
	case SectionSkills:
		return d.Skills, nil
	case SectionStatement:
		return d.Statement, nil
	case SectionReferences:
		return d.ReferenceList, nil
	case SectionCertifications:
		return d.CertificationList, nil
	case SectionDocuments:
		return d.Documents, nil
	default:
		return nil, errors.Wrap(ErrUnknownSection, string(s))
	}
}

// Merge returns a copy of d with values written over their section.
func (d Draft) Merge(values Values) Draft {
	if values != nil {
		values.mergeInto(&d)
	}
	d.normalize()
	return d
}

// normalize blanks fields whose controlling checkbox is unchecked.
func (d *Draft) normalize() {
	if !d.CulturalKnowledge.FluencyInLanguages {
		d.CulturalKnowledge.LanguageDetails = ""
	}
}

// DecodeValues decodes the JSON field values of section s.
func DecodeValues(s Section, data []byte) (Values, error) {
	var (
		values Values
		err    error
	)
	switch s {
	case SectionPersonalInfo:
		var v PersonalInfo
		err = json.Unmarshal(data, &v)
		values = v
	case SectionEducation:
		var v Education
		err = json.Unmarshal(data, &v)
		values = v
	case SectionSkills:
		var v Skills
		err = json.Unmarshal(data, &v)
		values = v
	case SectionStatement:
		var v Statement
		err = json.Unmarshal(data, &v)
		values = v
	case SectionReferences:
		var v ReferenceList
		err = json.Unmarshal(data, &v)
		values = v
	case SectionCertifications:
		var v CertificationList
		err = json.Unmarshal(data, &v)
		values = v
	case SectionDocuments:
		var v Documents
		err = json.Unmarshal(data, &v)
		values = v
	default:
		return nil, errors.Wrap(ErrUnknownSection, string(s))
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decoding %s values", s)
	}
	return values, nil
}
