package validator

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/pkg/utils"
)

// Config tunes admission.
type Config struct {
	ValidThreshold  float64 `mapstructure:"valid_threshold"`
	CriticalPenalty float64 `mapstructure:"critical_penalty"`
	ErrorPenalty    float64 `mapstructure:"error_penalty"`
	MinOverlap      float64 `mapstructure:"min_overlap"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{ValidThreshold: 0.6, CriticalPenalty: 0.5, ErrorPenalty: 0.7, MinOverlap: 0.3}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ValidThreshold <= 0 {
		c.ValidThreshold = d.ValidThreshold
	}
	if c.CriticalPenalty <= 0 || c.CriticalPenalty > 1 {
		c.CriticalPenalty = d.CriticalPenalty
	}
	if c.ErrorPenalty < 0.7 || c.ErrorPenalty > 1 {
		c.ErrorPenalty = d.ErrorPenalty
	}
	if c.MinOverlap <= 0 {
		c.MinOverlap = d.MinOverlap
	}
	return c
}

// Result is the outcome of validating one posting.
type Result struct {
	IsValid           bool                     `json:"is_valid"`
	QualityScore      float64                  `json:"quality_score"`
	CompletenessScore float64                  `json:"completeness_score"`
	AccuracyScore     float64                  `json:"accuracy_score"`
	Issues            []domain.ValidationIssue `json:"issues"`
	FieldScores       map[string]float64       `json:"field_scores"`
	Recommendations   []string                 `json:"recommendations,omitempty"`
}

// Count returns the number of issues with severity sev.
func (r Result) Count(sev domain.Severity) int {
	n := 0
	for _, is := range r.Issues {
		if is.Severity == sev {
			n++
		}
	}
	return n
}

// BatchReport aggregates a batch of results.
type BatchReport struct {
	Total          int                     `json:"total"`
	Valid          int                     `json:"valid"`
	ValidationRate float64                 `json:"validation_rate"`
	SeverityCounts map[domain.Severity]int `json:"severity_counts"`
	AverageQuality float64                 `json:"average_quality"`
	Results        []Result                `json:"results"`
}

// Option customizes a Validator.
type Option func(*Validator)

// WithRules replaces the field rules.
func WithRules(rules []FieldRule) Option {
	return func(v *Validator) { v.rules = rules }
}

// Validator decides whether postings are fit for persistence.
type Validator struct {
	cfg    Config
	rules  []FieldRule
	logger *zap.Logger
}

// New creates a validator.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Validator {
	v := &Validator{cfg: cfg.withDefaults(), rules: DefaultRules(), logger: logger.Named("validator")}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks p. It never modifies p.
func (v *Validator) Validate(p *domain.ParsedJobPosting) Result {
	res := Result{FieldScores: make(map[string]float64, len(v.rules))}

	var weighted, totalWeight float64
	for _, rule := range v.rules {
		score, issue := checkField(p, rule)
		res.FieldScores[rule.Field] = score
		weighted += rule.Weight * score
		totalWeight += rule.Weight
		if issue != nil {
			res.Issues = append(res.Issues, *issue)
		}
	}
	if totalWeight > 0 {
		res.CompletenessScore = weighted / totalWeight
	}

	res.Issues = append(res.Issues, v.crossField(p)...)
	res.Issues = append(res.Issues, industry(p)...)
	res.Issues = append(res.Issues, dataQuality(p)...)

	impact := 0.0
	for _, is := range res.Issues {
		impact += is.ImpactScore
	}
	res.AccuracyScore = domain.Clamp(1-impact, 0, 1)

	q := 0.6*res.CompletenessScore + 0.4*res.AccuracyScore
	if res.Count(domain.SeverityCritical) > 0 {
		q *= v.cfg.CriticalPenalty
	}
	q *= math.Pow(v.cfg.ErrorPenalty, float64(res.Count(domain.SeverityError)))
	res.QualityScore = domain.Clamp(q, 0, 1)
	res.IsValid = res.Count(domain.SeverityCritical) == 0 && res.QualityScore >= v.cfg.ValidThreshold
	res.Recommendations = recommendations(p, res.Issues)

	if !res.IsValid {
		v.logger.Debug("posting rejected",
			zap.String("title", p.Title),
			zap.Float64("quality", res.QualityScore),
			zap.Int("issues", len(res.Issues)))
	}
	return res
}

// ValidateBatch validates every posting and aggregates the outcome.
func (v *Validator) ValidateBatch(postings []*domain.ParsedJobPosting) BatchReport {
	rep := BatchReport{
		Total:          len(postings),
		SeverityCounts: make(map[domain.Severity]int, len(domain.Severities)),
		Results:        make([]Result, 0, len(postings)),
	}
	for _, sev := range domain.Severities {
		rep.SeverityCounts[sev] = 0
	}
	var quality float64
	for _, p := range postings {
		r := v.Validate(p)
		rep.Results = append(rep.Results, r)
		if r.IsValid {
			rep.Valid++
		}
		quality += r.QualityScore
		for _, is := range r.Issues {
			rep.SeverityCounts[is.Severity]++
		}
	}
	if rep.Total > 0 {
		rep.ValidationRate = float64(rep.Valid) / float64(rep.Total)
		rep.AverageQuality = quality / float64(rep.Total)
	}
	return rep
}

func checkField(p *domain.ParsedJobPosting, rule FieldRule) (float64, *domain.ValidationIssue) {
	val := valueOf(p, rule.Field)
	missing := val.numeric && val.number == nil || !val.numeric && strings.TrimSpace(val.text) == ""
	if missing {
		if rule.Required {
			return 0, &domain.ValidationIssue{
				Field:       rule.Field,
				Severity:    domain.SeverityCritical,
				Message:     fmt.Sprintf("required field %s is missing", rule.Field),
				Suggestion:  rule.Suggestion,
				ImpactScore: 1,
			}
		}
		return 0, nil
	}

	var problem string
	if val.numeric {
		n := *val.number
		switch {
		case rule.Min > 0 && n < rule.Min:
			problem = fmt.Sprintf("%s %.0f is below %.0f", rule.Field, n, rule.Min)
		case rule.Max > 0 && n > rule.Max:
			problem = fmt.Sprintf("%s %.0f is above %.0f", rule.Field, n, rule.Max)
		}
	} else {
		length := utf8.RuneCountInString(strings.TrimSpace(val.text))
		switch {
		case rule.MinLength > 0 && length < rule.MinLength:
			problem = fmt.Sprintf("%s is shorter than %d characters", rule.Field, rule.MinLength)
		case rule.MaxLength > 0 && length > rule.MaxLength:
			problem = fmt.Sprintf("%s is longer than %d characters", rule.Field, rule.MaxLength)
		case rule.Pattern != nil && !rule.Pattern.MatchString(strings.TrimSpace(val.text)):
			problem = fmt.Sprintf("%s has an unexpected format", rule.Field)
		}
	}
	if problem == "" {
		return 1, nil
	}
	return domain.Clamp(1-rule.Impact, 0, 1), &domain.ValidationIssue{
		Field:       rule.Field,
		Severity:    domain.SeverityWarning,
		Message:     problem,
		Suggestion:  rule.Suggestion,
		ImpactScore: rule.Impact,
	}
}

var remoteIndicators = regexp.MustCompile(`(?i)\b(remote|anywhere|work from home|wfh|distributed|telecommute|home[- ]based)\b`)

var stopwords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true, "our": true, "you": true,
	"job": true, "role": true, "position": true, "senior": true, "junior": true,
}

func (v *Validator) crossField(p *domain.ParsedJobPosting) []domain.ValidationIssue {
	var issues []domain.ValidationIssue
	if p.SalaryMin != nil && p.SalaryMax != nil && *p.SalaryMin > *p.SalaryMax {
		issues = append(issues, domain.ValidationIssue{
			Field:       FieldSalaryRange,
			Severity:    domain.SeverityError,
			Message:     fmt.Sprintf("salary minimum %.0f exceeds maximum %.0f", *p.SalaryMin, *p.SalaryMax),
			Suggestion:  "swap the salary bounds or check the salary parser",
			ImpactScore: 0.5,
		})
	}
	if p.RemoteFriendly && strings.TrimSpace(p.Location) != "" && !remoteIndicators.MatchString(p.Location) {
		issues = append(issues, domain.ValidationIssue{
			Field:       FieldRemote,
			Severity:    domain.SeverityInfo,
			Message:     "posting is marked remote but the location names no remote option",
			Suggestion:  "confirm the remote flag or add \"Remote\" to the location",
			ImpactScore: 0.05,
		})
	}
	if p.Description != "" {
		if overlap, ok := titleOverlap(p.Title, p.Description); ok && overlap < v.cfg.MinOverlap {
			issues = append(issues, domain.ValidationIssue{
				Field:       FieldDescription,
				Severity:    domain.SeverityInfo,
				Message:     fmt.Sprintf("only %.0f%% of title words appear in the description", overlap*100),
				Suggestion:  "check that title and description come from the same posting",
				ImpactScore: 0.05,
			})
		}
	}
	return issues
}

// titleOverlap is the share of significant title words found in the
// description. ok is false when the title has no significant words.
func titleOverlap(title, description string) (float64, bool) {
	desc := make(map[string]bool)
	for _, w := range words(description) {
		desc[w] = true
	}
	var total, hits int
	for _, w := range words(title) {
		if len(w) < 3 || stopwords[w] {
			continue
		}
		total++
		if desc[w] {
			hits++
		}
	}
	if total == 0 {
		return 0, false
	}
	return float64(hits) / float64(total), true
}

var wordRe = regexp.MustCompile(`[\p{L}\p{N}]+`)

func words(s string) []string {
	return wordRe.FindAllString(strings.ToLower(s), -1)
}

func industry(p *domain.ParsedJobPosting) []domain.ValidationIssue {
	if !p.HasSalary() || (p.SalaryCurrency != "" && p.SalaryCurrency != "USD") {
		return nil
	}
	band, ok := inferIndustry(p.Title)
	if !ok {
		return nil
	}
	var issues []domain.ValidationIssue
	if hi := salaryHigh(p); hi > band.max*1.5 {
		issues = append(issues, domain.ValidationIssue{
			Field:       FieldSalaryMax,
			Severity:    domain.SeverityWarning,
			Message:     fmt.Sprintf("salary %.0f is far above the usual %s range", hi, band.name),
			Suggestion:  "check for an extra digit or a non-annual figure",
			ImpactScore: 0.15,
		})
	}
	if lo := salaryLow(p); lo < band.min*0.7 {
		issues = append(issues, domain.ValidationIssue{
			Field:       FieldSalaryMin,
			Severity:    domain.SeverityWarning,
			Message:     fmt.Sprintf("salary %.0f is far below the usual %s range", lo, band.name),
			Suggestion:  "check whether the figure is hourly or monthly",
			ImpactScore: 0.15,
		})
	}
	return issues
}

func inferIndustry(title string) (industryBand, bool) {
	lower := " " + strings.Join(words(title), " ") + " "
	for _, b := range industryBands {
		for _, kw := range b.keywords {
			if strings.Contains(lower, " "+kw+" ") {
				return b, true
			}
		}
	}
	return industryBand{}, false
}

func salaryHigh(p *domain.ParsedJobPosting) float64 {
	switch {
	case p.SalaryMin != nil && p.SalaryMax != nil:
		return max(*p.SalaryMin, *p.SalaryMax)
	case p.SalaryMax != nil:
		return *p.SalaryMax
	}
	return *p.SalaryMin
}

func salaryLow(p *domain.ParsedJobPosting) float64 {
	switch {
	case p.SalaryMin != nil && p.SalaryMax != nil:
		return min(*p.SalaryMin, *p.SalaryMax)
	case p.SalaryMin != nil:
		return *p.SalaryMin
	}
	return *p.SalaryMax
}

var (
	placeholderRe = regexp.MustCompile(`(?i)(lorem ipsum|\btbd\b|\bto be determined\b|(^|\s)n/a($|\s)|\bplaceholder\b|\binsert [a-z ]+ here\b|\bxxx+\b)`)
	encodingRe    = regexp.MustCompile("â€|Ã[\u0080-\u00bf]|Â\u00a0|\ufffd")
	markupRe      = regexp.MustCompile(`(?i)</?[a-z][a-z0-9]*(\s[^<>]*)?/?>|&(amp|lt|gt|nbsp|quot|#\d+);`)
	sentenceRe    = regexp.MustCompile(`[^.!?]+`)
)

func dataQuality(p *domain.ParsedJobPosting) []domain.ValidationIssue {
	var issues []domain.ValidationIssue
	texts := []struct{ field, text string }{
		{FieldTitle, p.Title},
		{FieldCompany, p.Company},
		{FieldLocation, p.Location},
		{FieldDescription, p.Description},
	}
	for _, t := range texts {
		if t.text == "" {
			continue
		}
		if placeholderRe.MatchString(t.text) {
			issues = append(issues, domain.ValidationIssue{
				Field: t.field, Severity: domain.SeverityWarning,
				Message:     fmt.Sprintf("%s contains placeholder text", t.field),
				Suggestion:  "skip postings that are not filled in yet",
				ImpactScore: 0.2,
			})
		}
		if encodingRe.MatchString(t.text) {
			issues = append(issues, domain.ValidationIssue{
				Field: t.field, Severity: domain.SeverityWarning,
				Message:     fmt.Sprintf("%s contains mis-decoded characters", t.field),
				Suggestion:  "decode the page with its declared charset",
				ImpactScore: 0.15,
			})
		}
		if markupRe.MatchString(t.text) {
			issues = append(issues, domain.ValidationIssue{
				Field: t.field, Severity: domain.SeverityWarning,
				Message:     fmt.Sprintf("%s contains residual markup", t.field),
				Suggestion:  "extract element text instead of inner HTML",
				ImpactScore: 0.1,
			})
		}
	}
	if repeatedSentences(p.Description) {
		issues = append(issues, domain.ValidationIssue{
			Field: FieldDescription, Severity: domain.SeverityWarning,
			Message:     "description repeats the same sentence several times",
			Suggestion:  "check that the listing container is not matched more than once",
			ImpactScore: 0.1,
		})
	}
	if p.ApplicationURL != "" && utils.IsShortenedURL(p.ApplicationURL) {
		issues = append(issues, domain.ValidationIssue{
			Field: FieldApplicationURL, Severity: domain.SeverityWarning,
			Message:     "application link goes through a URL shortener",
			Suggestion:  "follow the redirect and store the final URL",
			ImpactScore: 0.2,
		})
	}
	return issues
}

// repeatedSentences reports a sentence of four or more words occurring at
// least three times.
func repeatedSentences(text string) bool {
	seen := make(map[string]int)
	for _, s := range sentenceRe.FindAllString(text, -1) {
		w := words(s)
		if len(w) < 4 {
			continue
		}
		key := strings.Join(w, " ")
		seen[key]++
		if seen[key] >= 3 {
			return true
		}
	}
	return false
}

func recommendations(p *domain.ParsedJobPosting, issues []domain.ValidationIssue) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, is := range issues {
		if is.Severity == domain.SeverityCritical || is.Severity == domain.SeverityError {
			add(is.Suggestion)
		}
	}
	for _, is := range issues {
		add(is.Suggestion)
	}
	if !p.HasSalary() {
		add("add a salary range; postings with pay information rank higher")
	}
	if p.PostedDate == nil {
		add("capture the posting date so freshness can be scored")
	}
	return out
}
