package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
)

const cleanDescription = "Acme Corp is looking for a backend engineer to build the services behind our logistics platform. " +
	"You will design APIs, tune PostgreSQL queries and own deployments. " +
	"We value engineers who write clear code and review each other's work carefully."

func salary(lo, hi float64) (*float64, *float64) { return &lo, &hi }

func goodPosting() *domain.ParsedJobPosting {
	p := domain.NewPosting("https://acme.example/jobs/1", "generic")
	p.Title = "Senior Backend Engineer"
	p.Company = "Acme Corp"
	p.Location = "Austin, TX"
	p.Description = cleanDescription
	p.ApplicationURL = "https://acme.example/jobs/1/apply"
	p.SalaryMin, p.SalaryMax = salary(120000, 150000)
	p.SalaryCurrency = "USD"
	return p
}

func newValidator() *Validator { return New(DefaultConfig(), zap.NewNop()) }

func issuesFor(r Result, field string, sev domain.Severity) []domain.ValidationIssue {
	var out []domain.ValidationIssue
	for _, is := range r.Issues {
		if is.Field == field && is.Severity == sev {
			out = append(out, is)
		}
	}
	return out
}

func TestValidate_CleanPosting(t *testing.T) {
	r := newValidator().Validate(goodPosting())
	assert.True(t, r.IsValid)
	assert.Empty(t, r.Issues)
	assert.Equal(t, 1.0, r.CompletenessScore)
	assert.Equal(t, 1.0, r.AccuracyScore)
	assert.InDelta(t, 1.0, r.QualityScore, 1e-9)
	assert.Equal(t, 1.0, r.FieldScores[FieldTitle])
}

func TestValidate_ReversedSalaryIsOneError(t *testing.T) {
	minimal := domain.NewPosting("https://x.example", "generic")
	minimal.Title = "Backend Engineer"

	remote := goodPosting()
	remote.RemoteFriendly = true

	for name, p := range map[string]*domain.ParsedJobPosting{
		"complete": goodPosting(),
		"minimal":  minimal,
		"remote":   remote,
	} {
		t.Run(name, func(t *testing.T) {
			p.SalaryMin, p.SalaryMax = salary(80000, 60000)
			r := newValidator().Validate(p)

			assert.Equal(t, 1, r.Count(domain.SeverityError))
			errs := issuesFor(r, FieldSalaryRange, domain.SeverityError)
			require.Len(t, errs, 1)
			assert.Equal(t, 0.5, errs[0].ImpactScore)
			assert.False(t, r.IsValid)
		})
	}
}

func TestValidate_MissingRequiredFieldIsCritical(t *testing.T) {
	p := goodPosting()
	p.Title = "  "
	r := newValidator().Validate(p)

	crit := issuesFor(r, FieldTitle, domain.SeverityCritical)
	require.Len(t, crit, 1)
	assert.Zero(t, r.FieldScores[FieldTitle])
	assert.False(t, r.IsValid)
	assert.InDelta(t, 0.75, r.CompletenessScore, 1e-9)
	assert.InDelta(t, (0.6*0.75+0.4*r.AccuracyScore)*0.5, r.QualityScore, 1e-9)
	assert.Contains(t, r.Recommendations, crit[0].Suggestion)
}

func TestValidate_FieldConstraintWarnings(t *testing.T) {
	p := goodPosting()
	p.Title = "Dev"
	p.ApplicationURL = "apply-now"
	r := newValidator().Validate(p)

	require.Len(t, issuesFor(r, FieldTitle, domain.SeverityWarning), 1)
	require.Len(t, issuesFor(r, FieldApplicationURL, domain.SeverityWarning), 1)
	assert.InDelta(t, 0.8, r.FieldScores[FieldTitle], 1e-9)
	assert.InDelta(t, 0.9, r.FieldScores[FieldApplicationURL], 1e-9)
	assert.Zero(t, r.Count(domain.SeverityCritical))
}

func TestValidate_CrossFieldInfo(t *testing.T) {
	p := goodPosting()
	p.RemoteFriendly = true
	p.Title = "Senior Payroll Specialist"
	r := newValidator().Validate(p)

	assert.Len(t, issuesFor(r, FieldRemote, domain.SeverityInfo), 1)
	assert.Len(t, issuesFor(r, FieldDescription, domain.SeverityInfo), 1, "title words missing from the description")
	assert.True(t, r.IsValid, "info findings do not block admission")

	p.Location = "Remote (US)"
	r = newValidator().Validate(p)
	assert.Empty(t, issuesFor(r, FieldRemote, domain.SeverityInfo))
}

func TestValidate_IndustrySalaryBands(t *testing.T) {
	p := goodPosting()
	p.Title = "Software Engineer"
	p.SalaryMin, p.SalaryMax = salary(400000, 500000)
	r := newValidator().Validate(p)
	assert.Len(t, issuesFor(r, FieldSalaryMax, domain.SeverityWarning), 1)

	p = goodPosting()
	p.Title = "Barista"
	p.SalaryMin, p.SalaryMax = salary(10000, 12000)
	r = newValidator().Validate(p)
	assert.Len(t, issuesFor(r, FieldSalaryMin, domain.SeverityWarning), 1)

	p.SalaryCurrency = "EUR"
	r = newValidator().Validate(p)
	assert.Empty(t, issuesFor(r, FieldSalaryMin, domain.SeverityWarning), "bands are USD")
}

func TestValidate_DataQuality(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *domain.ParsedJobPosting)
		field  string
	}{
		{"placeholder", func(p *domain.ParsedJobPosting) { p.Company = "TBD" }, FieldCompany},
		{"lorem ipsum", func(p *domain.ParsedJobPosting) { p.Description += " Lorem ipsum dolor sit amet." }, FieldDescription},
		{"encoding", func(p *domain.ParsedJobPosting) { p.Description = "Weâ€™re hiring. " + p.Description }, FieldDescription},
		{"markup", func(p *domain.ParsedJobPosting) { p.Description = "<p>" + p.Description + "</p>" }, FieldDescription},
		{"repeats", func(p *domain.ParsedJobPosting) {
			p.Description += " We ship code every day. We ship code every day. We ship code every day."
		}, FieldDescription},
		{"shortener", func(p *domain.ParsedJobPosting) { p.ApplicationURL = "https://bit.ly/3xyz" }, FieldApplicationURL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := goodPosting()
			tt.mutate(p)
			r := newValidator().Validate(p)
			assert.NotEmpty(t, issuesFor(r, tt.field, domain.SeverityWarning))
			assert.Less(t, r.AccuracyScore, 1.0)
		})
	}
}

func TestValidateBatch(t *testing.T) {
	bad := goodPosting()
	bad.Company = ""
	reversed := goodPosting()
	reversed.SalaryMin, reversed.SalaryMax = salary(80000, 60000)

	rep := newValidator().ValidateBatch([]*domain.ParsedJobPosting{goodPosting(), bad, reversed, goodPosting()})
	assert.Equal(t, 4, rep.Total)
	assert.Equal(t, 2, rep.Valid)
	assert.InDelta(t, 0.5, rep.ValidationRate, 1e-9)
	assert.Equal(t, 1, rep.SeverityCounts[domain.SeverityCritical])
	assert.Equal(t, 1, rep.SeverityCounts[domain.SeverityError])
	assert.Contains(t, rep.SeverityCounts, domain.SeverityInfo)
	assert.Len(t, rep.Results, 4)
	assert.Greater(t, rep.AverageQuality, 0.0)

	empty := newValidator().ValidateBatch(nil)
	assert.Zero(t, empty.ValidationRate)
}

func TestValidate_Recommendations(t *testing.T) {
	p := goodPosting()
	p.SalaryMin, p.SalaryMax = nil, nil
	r := newValidator().Validate(p)
	assert.Contains(t, r.Recommendations, "add a salary range; postings with pay information rank higher")
	assert.True(t, r.IsValid)
}
