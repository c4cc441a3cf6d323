package extract

import (
	"strings"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
)

// GenericSource is the fallback template used for unknown sources and for
// fields a source template leaves empty.
const GenericSource = "generic"

// GenericListingSelector matches common job-card markup on unknown sites.
const GenericListingSelector = ".job-listing, .job-card, .job-item, .job-result, " +
	"[class*='job-card'], [class*='jobCard'], article.job, li.job, [itemtype*='JobPosting']"

// TemplateStore supplies extraction templates by source name.
type TemplateStore interface {
	Lookup(source string) (*Template, bool)
	Sources() []string
}

// Resolve returns the template for source with every field and selector the
// source leaves empty filled from the generic template. Unknown sources get
// the generic template under their own name.
func Resolve(store TemplateStore, source string) (*Template, error) {
	source = strings.ToLower(strings.TrimSpace(source))
	if source == "" {
		return nil, domain.ConfigError("empty source")
	}
	generic, ok := store.Lookup(GenericSource)
	if !ok {
		generic = genericTemplate()
	}

	t, ok := store.Lookup(source)
	if !ok {
		t = &Template{Source: source}
	}
	merged := t.clone()
	merged.Source = source
	if merged.ReadySelector == "" {
		merged.ReadySelector = generic.ReadySelector
	}
	if merged.ListingSelector == "" {
		merged.ListingSelector = generic.ListingSelector
	}
	for f, rules := range generic.Fields {
		if len(merged.Fields[f]) == 0 {
			merged.Fields[f] = append([]ExtractionRule(nil), rules...)
		}
	}
	if err := merged.Validate(); err != nil {
		return nil, err
	}
	return merged, nil
}

// BuiltinStore is the immutable table of known source templates.
type BuiltinStore struct {
	templates map[string]*Template
}

// NewBuiltinStore returns templates for linkedin, indeed, glassdoor and generic.
func NewBuiltinStore() *BuiltinStore {
	s := &BuiltinStore{templates: make(map[string]*Template)}
	for _, t := range []*Template{linkedinTemplate(), indeedTemplate(), glassdoorTemplate(), genericTemplate()} {
		s.templates[t.Source] = t
	}
	return s
}

// Lookup returns a copy of the named template.
func (s *BuiltinStore) Lookup(source string) (*Template, bool) {
	t, ok := s.templates[strings.ToLower(source)]
	if !ok {
		return nil, false
	}
	return t.clone(), true
}

func (s *BuiltinStore) Sources() []string {
	out := make([]string, 0, len(s.templates))
	for name := range s.templates {
		out = append(out, name)
	}
	return out
}

const salaryPattern = `((?:[$£€₹¥]|\b(?:USD|EUR|GBP|CAD|AUD|INR)\b)\s?\d[\d,.]*\s?[kK]?` +
	`(?:\s?(?:-|–|to)\s?(?:[$£€₹¥])?\s?\d[\d,.]*\s?[kK]?)?` +
	`(?:\s?(?:per|/|an|a)\s?(?:year|yr|annum|hour|hr|month|mo|week))?)`

const relativeDatePattern = `(?i)(\d+\+?\s+(?:minute|hour|day|week|month)s?\s+ago|yesterday|today|just (?:now|posted))`

func genericTemplate() *Template {
	return &Template{
		Source:          GenericSource,
		ReadySelector:   "body",
		ListingSelector: GenericListingSelector,
		Fields: map[Field][]ExtractionRule{
			FieldTitle: {
				CSS(1, "[itemprop='title']"),
				CSS(2, ".job-title, .jobTitle, [class*='job-title']"),
				CSS(3, "h1"),
				CSS(4, "h2, h3"),
				XPath(5, "//title"),
			},
			FieldCompany: {
				CSS(1, "[itemprop='hiringOrganization'] [itemprop='name']"),
				CSS(2, ".company-name, .companyName, .company, [class*='company-name']"),
				Attr(3, "[data-company]", "data-company"),
				Attr(4, "meta[property='og:site_name']", "content"),
			},
			FieldLocation: {
				CSS(1, "[itemprop='jobLocation']"),
				CSS(2, ".job-location, .location, [class*='location']"),
			},
			FieldDescription: {
				CSS(1, "[itemprop='description']"),
				CSS(2, ".job-description, #job-description, .description, [class*='description']"),
				CSS(3, "article"),
				CSS(4, "main"),
			},
			FieldRequirements: {
				CSS(1, ".requirements, .qualifications, [class*='requirement']"),
			},
			FieldSalary: {
				CSS(1, "[itemprop='baseSalary']"),
				CSS(2, ".salary, .compensation, [class*='salary']"),
				Regex(3, salaryPattern),
			},
			FieldJobType: {
				CSS(1, "[itemprop='employmentType']"),
				CSS(2, ".job-type, .employment-type, [class*='job-type']"),
			},
			FieldExperienceLevel: {
				CSS(1, ".experience-level, .seniority, [class*='experience']"),
			},
			FieldPostedDate: {
				Attr(1, "time[datetime]", "datetime"),
				Attr(2, "[itemprop='datePosted']", "content"),
				CSS(3, ".posted-date, .date, time, [class*='posted']"),
				Regex(4, relativeDatePattern),
			},
			FieldApplicationURL: {
				Attr(1, "a.apply, a.apply-button, a[class*='apply']", "href"),
				Attr(2, "a[href*='apply']", "href"),
				Attr(3, "a[href]", "href"),
			},
			FieldCompanyURL: {
				Attr(1, "[itemprop='hiringOrganization'] a[href], a.company-link, .company a[href]", "href"),
			},
			FieldBenefits: {
				CSS(1, ".benefits, [class*='benefit']"),
			},
			FieldSkills: {
				CSS(1, ".skills, .tags, [class*='skill']"),
			},
		},
	}
}

func linkedinTemplate() *Template {
	return &Template{
		Source:           "linkedin",
		ReadySelector:    ".jobs-search__results-list, .job-view-layout, .top-card-layout",
		ListingSelector:  ".jobs-search__results-list > li, .job-search-card, .base-card",
		LoadMoreSelector: "button.infinite-scroller__show-more-button",
		Fields: map[Field][]ExtractionRule{
			FieldTitle: {
				CSS(1, ".base-search-card__title"),
				CSS(2, ".top-card-layout__title, .topcard__title"),
			},
			FieldCompany: {
				CSS(1, ".base-search-card__subtitle"),
				CSS(2, ".topcard__org-name-link, .top-card-layout__second-subline a"),
			},
			FieldLocation: {
				CSS(1, ".job-search-card__location"),
				CSS(2, ".topcard__flavor--bullet"),
			},
			FieldDescription: {
				CSS(1, ".show-more-less-html__markup"),
				CSS(2, ".description__text"),
			},
			FieldSalary: {
				CSS(1, ".job-search-card__salary-info"),
				CSS(2, ".compensation__salary"),
			},
			FieldPostedDate: {
				Attr(1, "time", "datetime"),
				CSS(2, "time.job-search-card__listdate, time.job-search-card__listdate--new"),
			},
			FieldApplicationURL: {
				Attr(1, "a.base-card__full-link", "href"),
			},
			FieldCompanyURL: {
				Attr(1, ".base-search-card__subtitle a", "href"),
			},
			FieldExperienceLevel: {
				XPath(1, "//h3[contains(@class,'description__job-criteria-subheader')][contains(.,'Seniority')]/following-sibling::span"),
			},
			FieldJobType: {
				XPath(1, "//h3[contains(@class,'description__job-criteria-subheader')][contains(.,'Employment')]/following-sibling::span"),
			},
		},
	}
}

func indeedTemplate() *Template {
	return &Template{
		Source:          "indeed",
		ReadySelector:   "#mosaic-provider-jobcards, .jobsearch-ResultsList, #jobDescriptionText",
		ListingSelector: ".job_seen_beacon, .jobsearch-SerpJobCard, .result",
		Fields: map[Field][]ExtractionRule{
			FieldTitle: {
				Attr(1, "h2.jobTitle span[title]", "title"),
				CSS(2, "h2.jobTitle, .jobTitle"),
				CSS(3, ".jobsearch-JobInfoHeader-title"),
			},
			FieldCompany: {
				CSS(1, "[data-testid='company-name']"),
				CSS(2, ".companyName, .company"),
			},
			FieldLocation: {
				CSS(1, "[data-testid='text-location']"),
				CSS(2, ".companyLocation, .location"),
			},
			FieldDescription: {
				CSS(1, "#jobDescriptionText"),
				CSS(2, ".job-snippet"),
			},
			FieldSalary: {
				CSS(1, ".salary-snippet-container, .salaryOnly"),
				CSS(2, "[data-testid='attribute_snippet_testid']"),
			},
			FieldPostedDate: {
				CSS(1, "[data-testid='myJobsStateDate'], span.date, .date"),
			},
			FieldApplicationURL: {
				Attr(1, "h2.jobTitle a", "href"),
				Attr(2, "a.jcs-JobTitle", "href"),
			},
			FieldJobType: {
				Regex(1, `(?i)\b(full[- ]time|part[- ]time|contract|temporary|internship)\b`),
			},
		},
	}
}

func glassdoorTemplate() *Template {
	return &Template{
		Source:           "glassdoor",
		ReadySelector:    "[data-test='jobListing'], .JobsList_jobsList__lqjTr, #JobDescriptionContainer",
		ListingSelector:  "li.react-job-listing, [data-test='jobListing']",
		LoadMoreSelector: "[data-test='load-more']",
		Fields: map[Field][]ExtractionRule{
			FieldTitle: {
				CSS(1, "[data-test='job-title']"),
				CSS(2, ".job-title, .JobCard_jobTitle__GLyJ1"),
			},
			FieldCompany: {
				CSS(1, "[data-test='employer-name']"),
				CSS(2, ".EmployerProfile_compactEmployerName__LE242, .employer-name"),
			},
			FieldLocation: {
				CSS(1, "[data-test='emp-location']"),
				CSS(2, ".location, .JobCard_location__rCz3x"),
			},
			FieldDescription: {
				CSS(1, "#JobDescriptionContainer, .jobDescriptionContent"),
				CSS(2, "[class*='JobDetails_jobDescription']"),
			},
			FieldSalary: {
				CSS(1, "[data-test='detailSalary']"),
				CSS(2, ".salary-estimate, [class*='salaryEstimate']"),
			},
			FieldPostedDate: {
				CSS(1, "[data-test='job-age']"),
			},
			FieldApplicationURL: {
				Attr(1, "a[data-test='job-link']", "href"),
				Attr(2, "a.jobLink", "href"),
			},
		},
	}
}
