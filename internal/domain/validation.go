package domain

// Severity ranks a validation issue.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Severities lists every severity from least to most serious.
var Severities = []Severity{SeverityInfo, SeverityWarning, SeverityError, SeverityCritical}

// ValidationIssue is one finding of the validator.
type ValidationIssue struct {
	Field       string   `json:"field"`
	Severity    Severity `json:"severity"`
	Message     string   `json:"message"`
	Suggestion  string   `json:"suggestion,omitempty"`
	ImpactScore float64  `json:"impact_score"`
}
