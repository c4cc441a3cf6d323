package extract

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
)

var parseNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func newTestParser(store TemplateStore) *Parser {
	if store == nil {
		store = NewBuiltinStore()
	}
	return NewParser(store, zap.NewNop(), WithNow(func() time.Time { return parseNow }))
}

const detailPage = `<html><head><title>Careers | Acme</title></head><body>
<main>
  <h1 class="job-title">Senior Backend Engineer</h1>
  <div class="company-name">Acme Corp</div>
  <span class="location">Remote - US</span>
  <span class="salary">$140,000 - $170,000 a year</span>
  <span class="job-type">Full-time</span>
  <time datetime="2024-03-14">Yesterday</time>
  <div class="job-description">
    <p>We build payment infrastructure in Golang and PostgreSQL on AWS.</p>
    <p>Benefits include health insurance, equity and a learning budget.</p>
  </div>
  <a class="apply" href="/jobs/42/apply">Apply now</a>
  <a class="company-link" href="https://acme.example">About Acme</a>
  <script>var tracking = "Junior";</script>
</main>
</body></html>`

func TestParser_ParseDetailPage(t *testing.T) {
	p := newTestParser(nil)
	posting, err := p.Parse(RawRecord{
		Source:    "acme",
		SourceURL: "https://careers.acme.example/jobs/42",
		HTML:      detailPage,
		FullPage:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, "Senior Backend Engineer", posting.Title)
	assert.Equal(t, "Acme Corp", posting.Company)
	assert.Equal(t, "Remote - US", posting.Location)
	assert.Contains(t, posting.Description, "payment infrastructure")
	require.True(t, posting.HasSalary())
	assert.Equal(t, 140000.0, *posting.SalaryMin)
	assert.Equal(t, 170000.0, *posting.SalaryMax)
	assert.Equal(t, "USD", posting.SalaryCurrency)
	assert.Equal(t, domain.JobTypeFullTime, posting.JobType)
	assert.Equal(t, domain.ExperienceSenior, posting.ExperienceLevel)
	require.NotNil(t, posting.PostedDate)
	assert.Equal(t, "2024-03-14", posting.PostedDate.Format("2006-01-02"))
	assert.Equal(t, "https://careers.acme.example/jobs/42/apply", posting.ApplicationURL)
	assert.Equal(t, "https://acme.example", posting.CompanyURL)
	assert.True(t, posting.RemoteFriendly)
	assert.True(t, posting.Skills.Contains("golang", "postgresql", "aws"))
	assert.True(t, posting.Benefits.Contains("health insurance", "equity", "learning budget"))
	assert.True(t, posting.Tags.Contains("remote", "full-time", "senior"))
	assert.Equal(t, "acme", posting.SourcePlatform)
	assert.InDelta(t, 1.0, posting.ConfidenceScore, 1e-9)
	assert.True(t, posting.IsValid())
}

const linkedinCard = `<li>
  <div class="base-card">
    <a class="base-card__full-link" href="https://www.linkedin.com/jobs/view/123"></a>
    <h3 class="base-search-card__title">Data Engineer</h3>
    <h4 class="base-search-card__subtitle"><a href="https://www.linkedin.com/company/globex">Globex</a></h4>
    <span class="job-search-card__location">Berlin, Germany</span>
    <time class="job-search-card__listdate" datetime="2024-03-10">5 days ago</time>
  </div>
</li>`

func TestParser_ParseLinkedInCard(t *testing.T) {
	p := newTestParser(nil)
	posting, err := p.Parse(RawRecord{Source: "linkedin", SourceURL: "https://www.linkedin.com/jobs/search", HTML: linkedinCard})
	require.NoError(t, err)

	assert.Equal(t, "Data Engineer", posting.Title)
	assert.Equal(t, "Globex", posting.Company)
	assert.Equal(t, "Berlin, Germany", posting.Location)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/123", posting.ApplicationURL)
	assert.Equal(t, "https://www.linkedin.com/company/globex", posting.CompanyURL)
	require.NotNil(t, posting.PostedDate)
	assert.Equal(t, 10, posting.PostedDate.Day())
	assert.False(t, posting.RemoteFriendly)
	// title .30 + company .25 + location .15 + application url .05
	assert.InDelta(t, 0.75, posting.ConfidenceScore, 1e-9)
}

func TestParser_PriorityOrderAndFallback(t *testing.T) {
	store, err := ParseFileStore([]byte(`
templates:
  board:
    fields:
      title:
        - method: css
          pattern: ".missing"
          priority: 1
        - method: xpath
          pattern: "//span[@data-role='title']"
          priority: 3
        - method: css
          pattern: "h2"
          priority: 2
          filter: "^Job: (.+)$"
      company:
        - method: attribute
          pattern: ""
          attribute: data-company
          priority: 1
      salary:
        - method: regex
          pattern: "Pay: ([^|]+)"
          priority: 1
`), NewBuiltinStore())
	require.NoError(t, err)
	p := newTestParser(store)

	posting, err := p.Parse(RawRecord{
		Source: "board",
		HTML: `<div class="card" data-company="Initech">
			<h2>Job: Platform Engineer</h2>
			<span data-role="title">Ignored Title</span>
			<p>Pay: 90k-110k GBP | Hybrid</p>
		</div>`,
	})
	require.NoError(t, err)
	assert.Equal(t, "Platform Engineer", posting.Title)
	assert.Equal(t, "Initech", posting.Company)
	assert.Equal(t, 90000.0, *posting.SalaryMin)
	assert.Equal(t, 110000.0, *posting.SalaryMax)
	assert.Equal(t, "GBP", posting.SalaryCurrency)

	// filter miss falls through to the xpath rule
	posting, err = p.Parse(RawRecord{
		Source: "board",
		HTML:   `<div data-company="Initech"><h2>Platform Engineer</h2><span data-role="title">SRE</span></div>`,
	})
	require.NoError(t, err)
	assert.Equal(t, "SRE", posting.Title)
}

func TestParser_EmptyRecord(t *testing.T) {
	p := newTestParser(nil)
	_, err := p.Parse(RawRecord{Source: "generic", HTML: `<div><img src="x.png"></div>`})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrParsing))
}

func TestParser_UnknownSourceUsesGenericRules(t *testing.T) {
	p := newTestParser(nil)
	posting, err := p.Parse(RawRecord{
		Source: "somewhere",
		HTML:   `<article class="job-card"><h2>QA Analyst (Contract)</h2><span class="company">Umbrella</span><p class="description">Manual testing.</p></article>`,
	})
	require.NoError(t, err)
	assert.Equal(t, "QA Analyst (Contract)", posting.Title)
	assert.Equal(t, "Umbrella", posting.Company)
	assert.Equal(t, domain.JobTypeContract, posting.JobType)
}

func TestConfidence_Capped(t *testing.T) {
	posting := domain.NewPosting("", "")
	posting.Title, posting.Company, posting.Location, posting.Description = "t", "c", "l", "d"
	posting.ApplicationURL = "u"
	v := 1.0
	posting.SalaryMin = &v
	w := Weights{Title: 0.5, Company: 0.5, Location: 0.5, Description: 0.5, Salary: 0.5, ApplicationURL: 0.5}
	assert.Equal(t, 1.0, Confidence(posting, w))
	assert.InDelta(t, 1.0, Confidence(posting, DefaultWeights()), 1e-9)
}

func TestInference(t *testing.T) {
	assert.Equal(t, domain.JobTypePartTime, InferJobType("Part time barista"))
	assert.Equal(t, domain.JobTypeInternship, InferJobType("Summer Internship 2024"))
	assert.Equal(t, domain.JobTypeUnknown, InferJobType("Engineer"))

	assert.Equal(t, domain.ExperienceSenior, InferExperienceLevel("Sr. Go Developer"))
	assert.Equal(t, domain.ExperienceEntry, InferExperienceLevel("Junior Analyst"))
	assert.Equal(t, domain.ExperienceExecutive, InferExperienceLevel("VP of Engineering"))
	assert.Equal(t, domain.ExperienceMid, InferExperienceLevel("Mid-level Designer"))

	assert.True(t, IsRemote("Anywhere"))
	assert.False(t, IsRemote("London", "Office manager"))

	skills := ScanSkills("Java and JavaScript, some C++ and Node.js")
	assert.True(t, skills.Contains("java", "javascript", "c++", "node.js"))
	assert.False(t, ScanSkills("Javanese cuisine").Contains("java"))
}
