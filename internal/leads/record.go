package leads

import (
	"fmt"
	"strings"
)

// Field names as posted by the lead form.
const (
	FieldFullName            = "fullName"
	FieldEmail               = "email"
	FieldCountry             = "country"
	FieldCountryOther        = "countryOther"
	FieldPhone               = "phone"
	FieldEducationLevel      = "educationLevel"
	FieldEducationLevelOther = "educationLevelOther"
	FieldStudyArea           = "studyArea"
	FieldGraduationYear      = "graduationYear"
	FieldIsCurrentlyWorking  = "isCurrentlyWorking"
	FieldWorkArea            = "workArea"
	FieldYearsExperience     = "yearsExperience"
	FieldPreviousWork        = "previousWork"
	FieldFinancialSituation  = "financialSituation"
	FieldUSAInterests        = "usaInterests"
	FieldUSAInterestsOther   = "usaInterestsOther"
	FieldEnglishLevel        = "englishLevel"
	FieldHowDidYouFind       = "howDidYouFind"
	FieldHowDidYouFindOther  = "howDidYouFindOther"
	FieldContactPreference   = "contactPreference"
	FieldWhatsappContact     = "whatsappContact"
	FieldAdditionalMessage   = "additionalMessage"
	FieldProgramType         = "programType"
	FieldProgramTypeOther    = "programTypeOther"
	FieldMainQuestions       = "mainQuestions"
	FieldInvestmentCapacity  = "investmentCapacity"
)

// OtherOption is the option that unlocks a companion free-text field.
const OtherOption = "Outro"

// Option values the relay formats specially.
const (
	WorkingNow           = "Sim, trabalho atualmente"
	SeekingOpportunities = "Não, estou buscando oportunidades"
	ContactWhatsApp      = "WhatsApp"
)

// Record is the aggregated lead form submission. It carries the superset of
// both form variants; fields outside the active variant stay empty.
type Record struct {
	FullName            string   `json:"fullName"`
	Email               string   `json:"email"`
	Country             string   `json:"country"`
	CountryOther        string   `json:"countryOther,omitempty"`
	Phone               string   `json:"phone,omitempty"`
	EducationLevel      string   `json:"educationLevel"`
	EducationLevelOther string   `json:"educationLevelOther,omitempty"`
	StudyArea           string   `json:"studyArea"`
	GraduationYear      string   `json:"graduationYear"`
	IsCurrentlyWorking  string   `json:"isCurrentlyWorking"`
	WorkArea            string   `json:"workArea,omitempty"`
	YearsExperience     string   `json:"yearsExperience,omitempty"`
	PreviousWork        string   `json:"previousWork,omitempty"`
	FinancialSituation  string   `json:"financialSituation,omitempty"`
	USAInterests        []string `json:"usaInterests,omitempty"`
	USAInterestsOther   string   `json:"usaInterestsOther,omitempty"`
	EnglishLevel        string   `json:"englishLevel"`
	HowDidYouFind       string   `json:"howDidYouFind"`
	HowDidYouFindOther  string   `json:"howDidYouFindOther,omitempty"`
	ContactPreference   string   `json:"contactPreference"`
	WhatsappContact     string   `json:"whatsappContact,omitempty"`
	AdditionalMessage   string   `json:"additionalMessage,omitempty"`
	ProgramType         string   `json:"programType,omitempty"`
	ProgramTypeOther    string   `json:"programTypeOther,omitempty"`
	MainQuestions       string   `json:"mainQuestions,omitempty"`
	InvestmentCapacity  string   `json:"investmentCapacity,omitempty"`
}

func (r *Record) text(name string) *string {
	switch name {
	case FieldFullName:
		return &r.FullName
	case FieldEmail:
		return &r.Email
	case FieldCountry:
		return &r.Country
	case FieldCountryOther:
		return &r.CountryOther
	case FieldPhone:
		return &r.Phone
	case FieldEducationLevel:
		return &r.EducationLevel
	case FieldEducationLevelOther:
		return &r.EducationLevelOther
	case FieldStudyArea:
		return &r.StudyArea
	case FieldGraduationYear:
		return &r.GraduationYear
	case FieldIsCurrentlyWorking:
		return &r.IsCurrentlyWorking
	case FieldWorkArea:
		return &r.WorkArea
	case FieldYearsExperience:
		return &r.YearsExperience
	case FieldPreviousWork:
		return &r.PreviousWork
	case FieldFinancialSituation:
		return &r.FinancialSituation
	case FieldUSAInterestsOther:
		return &r.USAInterestsOther
	case FieldEnglishLevel:
		return &r.EnglishLevel
	case FieldHowDidYouFind:
		return &r.HowDidYouFind
	case FieldHowDidYouFindOther:
		return &r.HowDidYouFindOther
	case FieldContactPreference:
		return &r.ContactPreference
	case FieldWhatsappContact:
		return &r.WhatsappContact
	case FieldAdditionalMessage:
		return &r.AdditionalMessage
	case FieldProgramType:
		return &r.ProgramType
	case FieldProgramTypeOther:
		return &r.ProgramTypeOther
	case FieldMainQuestions:
		return &r.MainQuestions
	case FieldInvestmentCapacity:
		return &r.InvestmentCapacity
	}
	return nil
}

func (r *Record) list(name string) *[]string {
	if name == FieldUSAInterests {
		return &r.USAInterests
	}
	return nil
}

// Known reports whether name is a Record field.
func Known(name string) bool {
	var r Record
	return r.text(name) != nil || r.list(name) != nil
}

// IsList reports whether name holds a set of tags rather than a single value.
func IsList(name string) bool {
	var r Record
	return r.list(name) != nil
}

// Value returns a single-valued field. List fields are joined with ", ".
func (r *Record) Value(name string) string {
	if p := r.text(name); p != nil {
		return *p
	}
	if p := r.list(name); p != nil {
		return strings.Join(*p, ", ")
	}
	return ""
}

// Values returns a list field, or a single-valued field as a one-element
// slice when it is set.
func (r *Record) Values(name string) []string {
	if p := r.list(name); p != nil {
		return append([]string(nil), (*p)...)
	}
	if p := r.text(name); p != nil && *p != "" {
		return []string{*p}
	}
	return nil
}

// Set assigns a single-valued field.
func (r *Record) Set(name, value string) error {
	p := r.text(name)
	if p == nil {
		if r.list(name) != nil {
			return fmt.Errorf("leads: set %s: %w", name, ErrListField)
		}
		return fmt.Errorf("leads: set %s: %w", name, ErrUnknownField)
	}
	*p = value
	return nil
}

// SetList replaces a list field.
func (r *Record) SetList(name string, values []string) error {
	p := r.list(name)
	if p == nil {
		if r.text(name) != nil {
			return fmt.Errorf("leads: set %s: %w", name, ErrNotListField)
		}
		return fmt.Errorf("leads: set %s: %w", name, ErrUnknownField)
	}
	*p = append([]string(nil), values...)
	return nil
}

// Toggle adds value to a list field when absent and removes it otherwise.
func (r *Record) Toggle(name, value string) error {
	current := r.Values(name)
	next := make([]string, 0, len(current)+1)
	found := false
	for _, v := range current {
		if v == value {
			found = true
			continue
		}
		next = append(next, v)
	}
	if !found {
		next = append(next, value)
	}
	return r.SetList(name, next)
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.USAInterests = append([]string(nil), r.USAInterests...)
	return &out
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

// Submission is the lead relay request body: the record fields plus the
// bot-verification token.
type Submission struct {
	Record
	TurnstileToken string `json:"turnstileToken"`
}
