package domain

import (
	"slices"
	"strings"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
)

// JobType is the employment arrangement of a posting.
type JobType string

const (
	JobTypeFullTime   JobType = "full-time"
	JobTypePartTime   JobType = "part-time"
	JobTypeContract   JobType = "contract"
	JobTypeTemporary  JobType = "temporary"
	JobTypeInternship JobType = "internship"
	JobTypeUnknown    JobType = "unknown"
)

// ExperienceLevel is the seniority a posting asks for.
type ExperienceLevel string

const (
	ExperienceEntry     ExperienceLevel = "entry"
	ExperienceMid       ExperienceLevel = "mid"
	ExperienceSenior    ExperienceLevel = "senior"
	ExperienceExecutive ExperienceLevel = "executive"
	ExperienceUnknown   ExperienceLevel = "unknown"
)

// MinValidConfidence is the extraction confidence below which a posting is not
// considered usable.
const MinValidConfidence = 0.5

// ParsedJobPosting is the typed record produced by the parser and enriched by
// the quality scorer. Once accepted it belongs to the persistence layer.
type ParsedJobPosting struct {
	Title           string             `json:"title"`
	Company         string             `json:"company"`
	Location        string             `json:"location"`
	Description     string             `json:"description"`
	Requirements    string             `json:"requirements,omitempty"`
	SalaryMin       *float64           `json:"salary_min,omitempty"`
	SalaryMax       *float64           `json:"salary_max,omitempty"`
	SalaryCurrency  string             `json:"salary_currency,omitempty"`
	JobType         JobType            `json:"job_type"`
	ExperienceLevel ExperienceLevel    `json:"experience_level"`
	PostedDate      *time.Time         `json:"posted_date,omitempty"`
	ApplicationURL  string             `json:"application_url,omitempty"`
	CompanyURL      string             `json:"company_url,omitempty"`
	RemoteFriendly  bool               `json:"remote_friendly"`
	Benefits        mapset.Set[string] `json:"benefits"`
	Skills          mapset.Set[string] `json:"skills"`
	Tags            mapset.Set[string] `json:"tags"`
	SourceURL       string             `json:"source_url"`
	SourcePlatform  string             `json:"source_platform"`
	RawMetadata     map[string]string  `json:"raw_metadata,omitempty"`
	ConfidenceScore float64            `json:"confidence_score"`
	Fingerprint     string             `json:"fingerprint"`
	QualityScore    float64            `json:"quality_score"`
	SpamScore       float64            `json:"spam_score"`
	QualityGrade    string             `json:"quality_grade"`
}

// NewPosting returns an empty posting with initialized sets and metadata.
func NewPosting(sourceURL, platform string) *ParsedJobPosting {
	return &ParsedJobPosting{
		JobType:         JobTypeUnknown,
		ExperienceLevel: ExperienceUnknown,
		Benefits:        mapset.NewSet[string](),
		Skills:          mapset.NewSet[string](),
		Tags:            mapset.NewSet[string](),
		SourceURL:       sourceURL,
		SourcePlatform:  platform,
		RawMetadata:     make(map[string]string),
	}
}

// IsValid reports whether the posting carries the minimum an index needs.
func (p *ParsedJobPosting) IsValid() bool {
	return strings.TrimSpace(p.Title) != "" &&
		strings.TrimSpace(p.Company) != "" &&
		p.ConfidenceScore >= MinValidConfidence
}

// HasSalary reports whether at least one salary bound was extracted.
func (p *ParsedJobPosting) HasSalary() bool {
	return p.SalaryMin != nil || p.SalaryMax != nil
}

// SetSalary stores a salary range, ordering the bounds.
func (p *ParsedJobPosting) SetSalary(min, max *float64, currency string) {
	if min != nil && max != nil && *min > *max {
		min, max = max, min
	}
	p.SalaryMin, p.SalaryMax = min, max
	p.SalaryCurrency = currency
}

// SetConfidence stores the extraction confidence clamped to [0,1].
func (p *ParsedJobPosting) SetConfidence(v float64) {
	p.ConfidenceScore = Clamp(v, 0, 1)
}

// SetSpamScore stores the spam score clamped to [0,1].
func (p *ParsedJobPosting) SetSpamScore(v float64) {
	p.SpamScore = Clamp(v, 0, 1)
}

// SetQualityScore stores the quality score clamped to [0,100].
func (p *ParsedJobPosting) SetQualityScore(v float64) {
	p.QualityScore = Clamp(v, 0, 100)
}

// SortedSet returns the members of s in lexical order; nil-safe.
func SortedSet(s mapset.Set[string]) []string {
	if s == nil {
		return []string{}
	}
	out := s.ToSlice()
	slices.Sort(out)
	return out
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
