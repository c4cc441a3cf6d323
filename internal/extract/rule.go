package extract

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/antchfx/xpath"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
)

// Method selects how an ExtractionRule reads its value.
type Method string

const (
	MethodCSS       Method = "css"
	MethodXPath     Method = "xpath"
	MethodRegex     Method = "regex"
	MethodAttribute Method = "attribute"
)

// Field names a posting attribute a template can extract.
type Field string

const (
	FieldTitle           Field = "title"
	FieldCompany         Field = "company"
	FieldLocation        Field = "location"
	FieldDescription     Field = "description"
	FieldRequirements    Field = "requirements"
	FieldSalary          Field = "salary"
	FieldJobType         Field = "job_type"
	FieldExperienceLevel Field = "experience_level"
	FieldPostedDate      Field = "posted_date"
	FieldApplicationURL  Field = "application_url"
	FieldCompanyURL      Field = "company_url"
	FieldBenefits        Field = "benefits"
	FieldSkills          Field = "skills"
)

// Fields lists every extractable field in extraction order.
var Fields = []Field{
	FieldTitle, FieldCompany, FieldLocation, FieldDescription, FieldRequirements,
	FieldSalary, FieldJobType, FieldExperienceLevel, FieldPostedDate,
	FieldApplicationURL, FieldCompanyURL, FieldBenefits, FieldSkills,
}

// ExtractionRule is one step of a field's fallback chain.
//
// CSS and XPath rules read the text of the first matching node, or the named
// Attribute when set. Regex rules match against the container text. Attribute
// rules read Attribute from the first node matching Pattern, or from the
// container itself when Pattern is empty. Filter is an optional regex applied
// to the result; its first capture group is kept when present.
type ExtractionRule struct {
	Method    Method `yaml:"method"`
	Pattern   string `yaml:"pattern"`
	Attribute string `yaml:"attribute,omitempty"`
	Filter    string `yaml:"filter,omitempty"`
	Priority  int    `yaml:"priority"`
}

// CSS builds a CSS rule.
func CSS(priority int, selector string) ExtractionRule {
	return ExtractionRule{Method: MethodCSS, Pattern: selector, Priority: priority}
}

// Attr builds an attribute rule.
func Attr(priority int, selector, attribute string) ExtractionRule {
	return ExtractionRule{Method: MethodAttribute, Pattern: selector, Attribute: attribute, Priority: priority}
}

// XPath builds an XPath rule.
func XPath(priority int, expr string) ExtractionRule {
	return ExtractionRule{Method: MethodXPath, Pattern: expr, Priority: priority}
}

// Regex builds a regex rule over the container text.
func Regex(priority int, pattern string) ExtractionRule {
	return ExtractionRule{Method: MethodRegex, Pattern: pattern, Priority: priority}
}

// Validate compiles the rule's selector, expression and filter.
func (r ExtractionRule) Validate() error {
	switch r.Method {
	case MethodCSS:
		if _, err := cascadia.ParseGroup(r.Pattern); err != nil {
			return fmt.Errorf("css %q: %w", r.Pattern, err)
		}
	case MethodAttribute:
		if r.Attribute == "" {
			return fmt.Errorf("attribute rule %q has no attribute name", r.Pattern)
		}
		if r.Pattern != "" {
			if _, err := cascadia.ParseGroup(r.Pattern); err != nil {
				return fmt.Errorf("css %q: %w", r.Pattern, err)
			}
		}
	case MethodXPath:
		if _, err := xpath.Compile(r.Pattern); err != nil {
			return fmt.Errorf("xpath %q: %w", r.Pattern, err)
		}
	case MethodRegex:
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return fmt.Errorf("regex %q: %w", r.Pattern, err)
		}
	default:
		return fmt.Errorf("unknown extraction method %q", r.Method)
	}
	if r.Filter != "" {
		if _, err := regexp.Compile(r.Filter); err != nil {
			return fmt.Errorf("filter %q: %w", r.Filter, err)
		}
	}
	return nil
}

// SortRules orders rules by ascending priority, keeping declaration order for ties.
func SortRules(rules []ExtractionRule) []ExtractionRule {
	out := slices.Clone(rules)
	slices.SortStableFunc(out, func(a, b ExtractionRule) int {
		return cmp.Compare(a.Priority, b.Priority)
	})
	return out
}

// Template is the extraction profile of one source.
type Template struct {
	Source           string                     `yaml:"source"`
	ReadySelector    string                     `yaml:"ready_selector"`
	ListingSelector  string                     `yaml:"listing_selector"`
	LoadMoreSelector string                     `yaml:"load_more_selector,omitempty"`
	Fields           map[Field][]ExtractionRule `yaml:"fields"`
}

// Rules returns the field's rules in evaluation order.
func (t *Template) Rules(f Field) []ExtractionRule {
	return SortRules(t.Fields[f])
}

// Validate checks selectors and every rule. Failures wrap domain.ErrConfiguration.
func (t *Template) Validate() error {
	if strings.TrimSpace(t.Source) == "" {
		return domain.ConfigError("template has no source")
	}
	for _, sel := range []string{t.ReadySelector, t.ListingSelector, t.LoadMoreSelector} {
		if sel == "" {
			continue
		}
		if _, err := cascadia.ParseGroup(sel); err != nil {
			return domain.ConfigError("template %s: selector %q: %v", t.Source, sel, err)
		}
	}
	for field, rules := range t.Fields {
		for _, r := range rules {
			if err := r.Validate(); err != nil {
				return domain.ConfigError("template %s: field %s: %v", t.Source, field, err)
			}
		}
	}
	return nil
}

func (t *Template) clone() *Template {
	c := *t
	c.Fields = make(map[Field][]ExtractionRule, len(t.Fields))
	for f, rules := range t.Fields {
		c.Fields[f] = slices.Clone(rules)
	}
	return &c
}
