package validator

import (
	"regexp"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
)

// Field names used in issues and field scores.
const (
	FieldTitle          = "title"
	FieldCompany        = "company"
	FieldLocation       = "location"
	FieldDescription    = "description"
	FieldApplicationURL = "application_url"
	FieldSalaryMin      = "salary_min"
	FieldSalaryMax      = "salary_max"
	FieldSalaryRange    = "salary_range"
	FieldRemote         = "remote_friendly"
	FieldCompanyURL     = "company_url"
)

// FieldRule constrains one posting field. Zero bounds are not checked.
type FieldRule struct {
	Field     string
	Required  bool
	MinLength int
	MaxLength int
	Min       float64
	Max       float64
	Pattern   *regexp.Regexp
	// Weight is the field's share of the completeness score.
	Weight float64
	// Impact is the accuracy cost of a violation.
	Impact     float64
	Suggestion string
}

var urlPattern = regexp.MustCompile(`^https?://[^\s/$.?#].[^\s]*$`)

// DefaultRules are the stock field constraints. Weights sum to 1.
func DefaultRules() []FieldRule {
	return []FieldRule{
		{Field: FieldTitle, Required: true, MinLength: 5, MaxLength: 200, Weight: 0.25, Impact: 0.2,
			Suggestion: "use the role name as the title, e.g. \"Backend Engineer\""},
		{Field: FieldCompany, Required: true, MinLength: 2, MaxLength: 200, Weight: 0.2, Impact: 0.2,
			Suggestion: "check the company selector of the source template"},
		{Field: FieldDescription, Required: true, MinLength: 100, MaxLength: 50000, Weight: 0.25, Impact: 0.15,
			Suggestion: "extract the full description, not only the listing snippet"},
		{Field: FieldLocation, MinLength: 2, MaxLength: 200, Weight: 0.1, Impact: 0.05,
			Suggestion: "state a city and region or mark the posting as remote"},
		{Field: FieldApplicationURL, Pattern: urlPattern, Weight: 0.1, Impact: 0.1,
			Suggestion: "resolve the application link to an absolute http(s) URL"},
		{Field: FieldSalaryMin, Min: 1000, Max: 2000000, Weight: 0.05, Impact: 0.1,
			Suggestion: "express salary as an annual amount"},
		{Field: FieldSalaryMax, Min: 1000, Max: 2000000, Weight: 0.05, Impact: 0.1,
			Suggestion: "express salary as an annual amount"},
	}
}

type fieldValue struct {
	text    string
	number  *float64
	numeric bool
}

func valueOf(p *domain.ParsedJobPosting, field string) fieldValue {
	switch field {
	case FieldTitle:
		return fieldValue{text: p.Title}
	case FieldCompany:
		return fieldValue{text: p.Company}
	case FieldLocation:
		return fieldValue{text: p.Location}
	case FieldDescription:
		return fieldValue{text: p.Description}
	case FieldApplicationURL:
		return fieldValue{text: p.ApplicationURL}
	case FieldCompanyURL:
		return fieldValue{text: p.CompanyURL}
	case FieldSalaryMin:
		return fieldValue{number: p.SalaryMin, numeric: true}
	case FieldSalaryMax:
		return fieldValue{number: p.SalaryMax, numeric: true}
	}
	return fieldValue{}
}

// industryBand is the usual annual USD salary range of an industry.
type industryBand struct {
	name     string
	keywords []string
	min, max float64
}

var industryBands = []industryBand{
	{"technology", []string{"engineer", "developer", "software", "devops", "programmer", "sre", "architect", "data scientist"}, 50000, 250000},
	{"healthcare", []string{"nurse", "physician", "medical", "pharmacist", "clinical", "therapist"}, 35000, 300000},
	{"finance", []string{"accountant", "auditor", "finance", "financial", "banking", "analyst"}, 45000, 200000},
	{"sales", []string{"sales", "marketing", "account executive", "business development"}, 35000, 180000},
	{"education", []string{"teacher", "tutor", "professor", "instructor"}, 30000, 120000},
	{"hospitality", []string{"cashier", "barista", "server", "retail", "waiter", "housekeeper"}, 20000, 60000},
}
