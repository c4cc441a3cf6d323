package quality

import (
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/pkg/utils"
)

// Component names used as Report.Components keys.
const (
	ComponentTitle       = "title"
	ComponentDescription = "description"
	ComponentCompany     = "company"
	ComponentSalary      = "salary"
	ComponentLocation    = "location"
	ComponentFreshness   = "freshness"
)

// Report is the quality assessment of one posting.
type Report struct {
	// Components are 0-100 scores per component.
	Components  map[string]float64 `json:"components"`
	Base        float64            `json:"base"`
	Spam        float64            `json:"spam"`
	SpamSignals []string           `json:"spam_signals,omitempty"`
	Score       float64            `json:"score"`
	Grade       string             `json:"grade"`
}

// Score grades p without modifying it.
func (s *Scorer) Score(p *domain.ParsedJobPosting) Report {
	w := s.cfg.Components
	r := Report{
		Components: map[string]float64{
			ComponentTitle:       scoreTitle(p.Title),
			ComponentDescription: scoreDescription(p.Description),
			ComponentCompany:     scoreCompany(p),
			ComponentSalary:      scoreSalary(p),
			ComponentLocation:    scoreLocation(p),
			ComponentFreshness:   scoreFreshness(p.PostedDate, s.now()),
		},
	}
	total := w.Title + w.Description + w.Company + w.Salary + w.Location + w.Freshness
	if total > 0 {
		r.Base = (w.Title*r.Components[ComponentTitle] +
			w.Description*r.Components[ComponentDescription] +
			w.Company*r.Components[ComponentCompany] +
			w.Salary*r.Components[ComponentSalary] +
			w.Location*r.Components[ComponentLocation] +
			w.Freshness*r.Components[ComponentFreshness]) / total
	}

	r.Spam, r.SpamSignals = SpamScore(p)
	r.Score = r.Base
	if r.Spam > s.cfg.SpamThreshold {
		r.Score = r.Base * (1 - r.Spam)
	}
	r.Score = domain.Clamp(r.Score, 0, 100)
	r.Grade = Grade(r.Score)
	return r
}

var gradeLadder = []struct {
	min   float64
	grade string
}{
	{90, "A+"}, {85, "A"}, {80, "A-"},
	{75, "B+"}, {70, "B"}, {65, "B-"},
	{60, "C+"}, {55, "C"}, {50, "C-"},
	{40, "D"},
}

// Grade maps a 0-100 score to a letter grade.
func Grade(score float64) string {
	for _, g := range gradeLadder {
		if score >= g.min {
			return g.grade
		}
	}
	return "F"
}

func scoreTitle(title string) float64 {
	title = strings.TrimSpace(title)
	n := utf8.RuneCountInString(title)
	var s float64
	switch {
	case n == 0:
		return 0
	case n < 5:
		s = 25
	case n < 10:
		s = 60
	case n <= 80:
		s = 100
	case n <= 120:
		s = 75
	default:
		s = 50
	}
	if upperRatio(title, 8) > 0.6 {
		s -= 30
	}
	if strings.ContainsAny(title, "!$") {
		s -= 20
	}
	return domain.Clamp(s, 0, 100)
}

var structureKeywords = []string{
	"responsibilities", "requirements", "qualifications", "benefits", "experience", "skills",
}

func scoreDescription(desc string) float64 {
	words := len(strings.Fields(desc))
	var s float64
	switch {
	case words == 0:
		return 0
	case words < 30:
		s = 20
	case words < 100:
		s = 45
	case words < 200:
		s = 65
	case words <= 1500:
		s = 85
	default:
		s = 70
	}
	lower := strings.ToLower(desc)
	for _, kw := range structureKeywords {
		if strings.Contains(lower, kw) {
			s += 5
		}
	}
	return domain.Clamp(s, 0, 100)
}

var placeholderCompanies = map[string]bool{
	"confidential": true, "company": true, "unknown": true, "n a": true,
	"hiring company": true, "private": true, "undisclosed": true,
}

func scoreCompany(p *domain.ParsedJobPosting) float64 {
	name := Simplify(p.Company)
	switch {
	case name == "":
		return 0
	case placeholderCompanies[name]:
		return 20
	}
	s := 70.0
	if p.CompanyURL != "" {
		s += 20
	}
	if strings.Contains(Simplify(p.Description), name) {
		s += 10
	}
	return s
}

// notStatedScore is given to optional facts a posting leaves out, such as pay
// or a posting date. It sits below any well-formed stated value.
const notStatedScore = 60

func scoreSalary(p *domain.ParsedJobPosting) float64 {
	switch {
	case p.SalaryMin != nil && p.SalaryMax != nil:
		lo, hi := *p.SalaryMin, *p.SalaryMax
		if lo <= 0 || hi < lo {
			return 30
		}
		if hi > 3*lo {
			return 70
		}
		return 100
	case p.HasSalary():
		return 70
	}
	return notStatedScore
}

func scoreLocation(p *domain.ParsedJobPosting) float64 {
	loc := strings.TrimSpace(p.Location)
	switch {
	case loc == "":
		if p.RemoteFriendly {
			return 60
		}
		return 0
	case p.RemoteFriendly, strings.Contains(loc, ","):
		return 100
	}
	return 75
}

var freshnessSteps = []struct {
	maxAge time.Duration
	score  float64
}{
	{24 * time.Hour, 100},
	{3 * 24 * time.Hour, 90},
	{7 * 24 * time.Hour, 80},
	{14 * 24 * time.Hour, 60},
	{30 * 24 * time.Hour, 40},
}

func scoreFreshness(posted *time.Time, now time.Time) float64 {
	if posted == nil {
		return notStatedScore
	}
	age := now.Sub(*posted)
	for _, step := range freshnessSteps {
		if age <= step.maxAge {
			return step.score
		}
	}
	return 20
}

type spamSignal struct {
	name   string
	re     *regexp.Regexp
	weight float64
}

var spamSignals = []spamSignal{
	{"guaranteed_income", regexp.MustCompile(`(?i)\bguarantee(d)?\b`), 0.2},
	{"quick_money", regexp.MustCompile(`(?i)\b(make|earn)\s+(up\s+to\s+)?[$£€]\s?\d[\d,]*k?\+?\s*(per|a|an|/|every)\s*(hour|day|week)\b`), 0.25},
	{"no_experience", regexp.MustCompile(`(?i)\bno\s+(prior\s+)?experience(\s+(needed|required|necessary))?\b`), 0.15},
	{"upfront_fee", regexp.MustCompile(`(?i)\b(upfront|registration|training|starter\s+kit)\s+(fee|payment|cost)s?\b`), 0.3},
	{"untraceable_payment", regexp.MustCompile(`(?i)\b(wire\s+transfer|western\s+union|moneygram|gift\s+cards?)\b`), 0.3},
	{"get_rich", regexp.MustCompile(`(?i)\b(get\s+rich|easy\s+money|fast\s+cash|cash\s+daily|unlimited\s+(income|earnings?)|be\s+your\s+own\s+boss|financial\s+freedom)\b`), 0.2},
	{"urgency", regexp.MustCompile(`(?i)\b(act\s+now|limited\s+(spots|positions)|apply\s+immediately|urgent(ly)?\s+hiring)\b`), 0.1},
	{"mlm", regexp.MustCompile(`(?i)\b(mlm|multi[-\s]level\s+marketing|network\s+marketing|pyramid)\b`), 0.25},
	{"private_contact", regexp.MustCompile(`(?i)\b(whatsapp|telegram)\s+(me|us)\b`), 0.15},
	{"excess_punctuation", regexp.MustCompile(`[!?]{3,}|\${2,}`), 0.1},
}

var shortenerRe = func() *regexp.Regexp {
	hosts := utils.ShortenerHosts()
	for i, h := range hosts {
		hosts[i] = regexp.QuoteMeta(h)
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(hosts, "|") + `)/\S+`)
}()

// SpamScore scans p for scam indicators and returns a score in [0,1] with the
// names of the signals found.
func SpamScore(p *domain.ParsedJobPosting) (float64, []string) {
	text := p.Title + "\n" + p.Description + "\n" + p.Requirements
	var score float64
	var found []string
	for _, sig := range spamSignals {
		if sig.re.MatchString(text) {
			score += sig.weight
			found = append(found, sig.name)
		}
	}
	if strings.Count(text, "!") > 5 {
		score += 0.1
		found = append(found, "exclamation_marks")
	}
	if upperRatio(text, 30) > 0.3 {
		score += 0.15
		found = append(found, "caps_ratio")
	}
	if shortenerRe.MatchString(text) || utils.IsShortenedURL(p.ApplicationURL) {
		score += 0.2
		found = append(found, "link_shortener")
	}
	return domain.Clamp(score, 0, 1), found
}

// upperRatio is the share of upper-case letters in s, or 0 when s has fewer
// than minLetters letters.
func upperRatio(s string, minLetters int) float64 {
	var letters, upper int
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters < minLetters {
		return 0
	}
	return float64(upper) / float64(letters)
}
