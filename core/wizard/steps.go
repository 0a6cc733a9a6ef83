package wizard

import "github.com/pkg/errors"

var (
	errNoSteps          = errors.New("wizard needs at least one step")
	errDuplicateSection = errors.New("section used by more than one step")
)

// Step is one page of the application form.
type Step struct {
	Name    string  `json:"name"`
	Title   string  `json:"title"`
	Section Section `json:"section"`
}

func DefaultSteps() []Step {
	return []Step{
		{Name: "personal-info", Title: "Personal Information", Section: SectionPersonalInfo},
		{Name: "education", Title: "Education", Section: SectionEducation},
		{Name: "skills", Title: "Skills & Abilities", Section: SectionSkills},
		{Name: "statement", Title: "Statement of Purpose", Section: SectionStatement},
		{Name: "references", Title: "References", Section: SectionReferences},
		{Name: "certifications", Title: "Certifications", Section: SectionCertifications},
		{Name: "documents", Title: "Photos", Section: SectionDocuments},
	}
}

func checkSteps(steps []Step) error {
	if len(steps) == 0 {
		return errNoSteps
	}
	seen := make(map[Section]bool, len(steps))
	for _, s := range steps {
		if !s.Section.IsValid() {
			return errors.Wrap(ErrUnknownSection, string(s.Section))
		}
		if seen[s.Section] {
			return errors.Wrap(errDuplicateSection, string(s.Section))
		}
		seen[s.Section] = true
	}
	return nil
}

// Sections lists the sections covered by steps, in order.
func Sections(steps []Step) []Section {
	sections := make([]Section, 0, len(steps))
	for _, s := range steps {
		sections = append(sections, s.Section)
	}
	return sections
}
