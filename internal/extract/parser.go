package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/pkg/utils"
)

// RawRecord is one posting container handed over by the crawl engine.
type RawRecord struct {
	Source    string
	SourceURL string
	// HTML is the outer HTML of the container, or the whole page.
	HTML     string
	FullPage bool
	Metadata map[string]string
}

// Weights are the per-field contributions to the confidence score.
type Weights struct {
	Title          float64 `mapstructure:"title"`
	Company        float64 `mapstructure:"company"`
	Location       float64 `mapstructure:"location"`
	Description    float64 `mapstructure:"description"`
	Salary         float64 `mapstructure:"salary"`
	ApplicationURL float64 `mapstructure:"application_url"`
}

// DefaultWeights sums to 1.0.
func DefaultWeights() Weights {
	return Weights{Title: 0.30, Company: 0.25, Location: 0.15, Description: 0.15, Salary: 0.10, ApplicationURL: 0.05}
}

// Confidence is the weighted share of populated fields, capped at 1.
func Confidence(p *domain.ParsedJobPosting, w Weights) float64 {
	score := 0.0
	if p.Title != "" {
		score += w.Title
	}
	if p.Company != "" {
		score += w.Company
	}
	if p.Location != "" {
		score += w.Location
	}
	if p.Description != "" {
		score += w.Description
	}
	if p.HasSalary() {
		score += w.Salary
	}
	if p.ApplicationURL != "" {
		score += w.ApplicationURL
	}
	return domain.Clamp(score, 0, 1)
}

// ParserOption customizes a Parser.
type ParserOption func(*Parser)

// WithWeights overrides the confidence weights.
func WithWeights(w Weights) ParserOption {
	return func(p *Parser) { p.weights = w }
}

// WithNow overrides the clock used for relative dates.
func WithNow(now func() time.Time) ParserOption {
	return func(p *Parser) { p.now = now }
}

// Parser turns raw posting markup into ParsedJobPosting values using the
// templates of a TemplateStore.
type Parser struct {
	store   TemplateStore
	weights Weights
	now     func() time.Time
	logger  *zap.Logger

	mu        sync.Mutex
	templates map[string]*Template
	regexes   map[string]*regexp.Regexp
	xpaths    map[string]*xpath.Expr
}

// NewParser creates a parser reading templates from store.
func NewParser(store TemplateStore, logger *zap.Logger, opts ...ParserOption) *Parser {
	p := &Parser{
		store:     store,
		weights:   DefaultWeights(),
		now:       time.Now,
		logger:    logger.Named("parser"),
		templates: make(map[string]*Template),
		regexes:   make(map[string]*regexp.Regexp),
		xpaths:    make(map[string]*xpath.Expr),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Template returns the resolved template for source.
func (p *Parser) Template(source string) (*Template, error) {
	key := strings.ToLower(strings.TrimSpace(source))
	p.mu.Lock()
	t, ok := p.templates[key]
	p.mu.Unlock()
	if ok {
		return t, nil
	}
	t, err := Resolve(p.store, key)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.templates[key] = t
	p.mu.Unlock()
	return t, nil
}

// Parse extracts a posting from rec. Fields whose rules all miss stay empty;
// an error wrapping domain.ErrParsing is returned only when the markup is
// unreadable or holds no posting field at all.
func (p *Parser) Parse(rec RawRecord) (*domain.ParsedJobPosting, error) {
	tmpl, err := p.Template(rec.Source)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rec.HTML))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParsing, err)
	}
	doc.Find("script, style, noscript").Remove()
	c := newContainer(doc, rec.FullPage)

	values := make(map[Field]string, len(Fields))
	for _, f := range Fields {
		if v := p.extractField(c, tmpl.Rules(f)); v != "" {
			values[f] = v
		}
	}

	posting := p.build(rec, values)
	if posting.Title == "" && posting.Company == "" && posting.Description == "" {
		return nil, fmt.Errorf("%w: no posting fields in %s record", domain.ErrParsing, tmpl.Source)
	}
	return posting, nil
}

func (p *Parser) build(rec RawRecord, v map[Field]string) *domain.ParsedJobPosting {
	posting := domain.NewPosting(rec.SourceURL, strings.ToLower(rec.Source))
	for k, val := range rec.Metadata {
		posting.RawMetadata[k] = val
	}

	posting.Title = truncate(v[FieldTitle], 200)
	posting.Company = truncate(v[FieldCompany], 200)
	posting.Location = truncate(v[FieldLocation], 200)
	posting.Description = v[FieldDescription]
	posting.Requirements = v[FieldRequirements]

	if raw := v[FieldSalary]; raw != "" {
		posting.RawMetadata["raw_salary"] = raw
		if lo, hi, cur, ok := ParseSalary(raw); ok {
			posting.SetSalary(lo, hi, cur)
		}
	}

	posting.JobType = InferJobType(v[FieldJobType])
	if posting.JobType == domain.JobTypeUnknown {
		posting.JobType = InferJobType(posting.Title + " " + posting.Description)
	}
	posting.ExperienceLevel = InferExperienceLevel(v[FieldExperienceLevel])
	if posting.ExperienceLevel == domain.ExperienceUnknown {
		posting.ExperienceLevel = InferExperienceLevel(posting.Title)
	}

	if raw := v[FieldPostedDate]; raw != "" {
		posting.RawMetadata["raw_posted_date"] = raw
		if t, ok := ParseDate(raw, p.now()); ok {
			posting.PostedDate = &t
		}
	}

	base, _ := url.Parse(rec.SourceURL)
	posting.ApplicationURL = resolveLink(base, v[FieldApplicationURL])
	if posting.ApplicationURL == "" && rec.FullPage {
		posting.ApplicationURL = rec.SourceURL
	}
	posting.CompanyURL = resolveLink(base, v[FieldCompanyURL])

	posting.RemoteFriendly = IsRemote(posting.Location, posting.Title, v[FieldJobType])

	for _, s := range splitList(v[FieldSkills]) {
		posting.Skills.Add(s)
	}
	posting.Skills = posting.Skills.Union(ScanSkills(posting.Title + " " + posting.Description + " " + posting.Requirements))
	for _, b := range splitList(v[FieldBenefits]) {
		posting.Benefits.Add(b)
	}
	posting.Benefits = posting.Benefits.Union(ScanBenefits(posting.Description + " " + v[FieldBenefits]))

	if posting.RemoteFriendly {
		posting.Tags.Add("remote")
	}
	if posting.JobType != domain.JobTypeUnknown {
		posting.Tags.Add(string(posting.JobType))
	}
	if posting.ExperienceLevel != domain.ExperienceUnknown {
		posting.Tags.Add(string(posting.ExperienceLevel))
	}

	posting.SetConfidence(Confidence(posting, p.weights))
	return posting
}

func (p *Parser) extractField(c *container, rules []ExtractionRule) string {
	for _, r := range rules {
		v := p.apply(c, r)
		if v != "" && r.Filter != "" {
			v = p.applyRegex(r.Filter, v)
		}
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func (p *Parser) apply(c *container, r ExtractionRule) string {
	switch r.Method {
	case MethodCSS:
		return c.css(r.Pattern, r.Attribute)
	case MethodAttribute:
		if r.Pattern == "" {
			v, _ := c.root.Attr(r.Attribute)
			return strings.TrimSpace(v)
		}
		return c.css(r.Pattern, r.Attribute)
	case MethodXPath:
		expr, err := p.compileXPath(r.Pattern)
		if err != nil {
			p.logger.Debug("xpath rule skipped", zap.String("pattern", r.Pattern), zap.Error(err))
			return ""
		}
		return c.xpath(expr, r.Attribute)
	case MethodRegex:
		return p.applyRegex(r.Pattern, c.text())
	}
	return ""
}

func (p *Parser) applyRegex(pattern, text string) string {
	re, err := p.compileRegex(pattern)
	if err != nil {
		p.logger.Debug("regex rule skipped", zap.String("pattern", pattern), zap.Error(err))
		return ""
	}
	m := re.FindStringSubmatch(text)
	switch {
	case m == nil:
		return ""
	case len(m) > 1:
		return m[1]
	default:
		return m[0]
	}
}

func (p *Parser) compileRegex(pattern string) (*regexp.Regexp, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if re, ok := p.regexes[pattern]; ok {
		return re, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	p.regexes[pattern] = re
	return re, nil
}

func (p *Parser) compileXPath(pattern string) (*xpath.Expr, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if expr, ok := p.xpaths[pattern]; ok {
		return expr, nil
	}
	expr, err := xpath.Compile(pattern)
	if err != nil {
		return nil, err
	}
	p.xpaths[pattern] = expr
	return expr, nil
}

// container is the parsed markup a record's rules run against.
type container struct {
	root     *goquery.Selection
	textOnce sync.Once
	rendered string
}

func newContainer(doc *goquery.Document, fullPage bool) *container {
	root := doc.Selection
	if !fullPage {
		if children := doc.Find("body").Children(); children.Length() == 1 {
			root = children
		}
	}
	return &container{root: root}
}

func (c *container) text() string {
	c.textOnce.Do(func() { c.rendered = cleanText(c.root.Text()) })
	return c.rendered
}

func (c *container) css(selector, attr string) string {
	matches := c.root.Find(selector)
	if matches.Length() == 0 {
		matches = c.root.Filter(selector)
	}
	var out string
	matches.EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if attr != "" {
			v, _ := s.Attr(attr)
			out = strings.TrimSpace(v)
		} else {
			out = cleanText(s.Text())
		}
		return out == ""
	})
	return out
}

func (c *container) xpath(expr *xpath.Expr, attr string) string {
	if len(c.root.Nodes) == 0 {
		return ""
	}
	for _, n := range htmlquery.QuerySelectorAll(c.root.Nodes[0], expr) {
		var v string
		if attr != "" {
			v = htmlquery.SelectAttr(n, attr)
		} else {
			v = htmlquery.InnerText(n)
		}
		if v = cleanText(v); v != "" {
			return v
		}
	}
	return ""
}

func resolveLink(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return ""
	}
	abs, err := utils.ToAbsoluteURL(base, href)
	if err != nil {
		return ""
	}
	return abs
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
