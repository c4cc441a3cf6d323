package extract

import (
	"regexp"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"golang.org/x/text/unicode/norm"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/domain"
)

var (
	jobTypePatterns = []struct {
		re  *regexp.Regexp
		typ domain.JobType
	}{
		{regexp.MustCompile(`(?i)\bintern(ship)?\b`), domain.JobTypeInternship},
		{regexp.MustCompile(`(?i)\b(contract|contractor|freelance|c2c)\b`), domain.JobTypeContract},
		{regexp.MustCompile(`(?i)\b(temporary|temp|seasonal)\b`), domain.JobTypeTemporary},
		{regexp.MustCompile(`(?i)\bpart[- ]?time\b`), domain.JobTypePartTime},
		{regexp.MustCompile(`(?i)\b(full[- ]?time|permanent)\b`), domain.JobTypeFullTime},
	}

	experiencePatterns = []struct {
		re    *regexp.Regexp
		level domain.ExperienceLevel
	}{
		{regexp.MustCompile(`(?i)\b(director|vp|vice president|head of|chief|cto|cio|ceo|executive)\b`), domain.ExperienceExecutive},
		{regexp.MustCompile(`(?i)\b(senior|sr\.?|lead|principal|staff|architect|mid-senior)\b`), domain.ExperienceSenior},
		{regexp.MustCompile(`(?i)\b(junior|jr\.?|entry[- ]level|entry|graduate|intern|trainee|associate)\b`), domain.ExperienceEntry},
		{regexp.MustCompile(`(?i)\b(mid[- ]level|intermediate|mid)\b`), domain.ExperienceMid},
	}

	remoteRe = regexp.MustCompile(`(?i)\b(remote|work from home|wfh|anywhere|distributed|telecommute)\b`)
)

var skillVocabulary = []string{
	"golang", "python", "java", "javascript", "typescript", "ruby", "php", "rust",
	"c++", "c#", "scala", "kotlin", "swift", "react", "angular", "vue", "node.js",
	"django", "flask", "spring", "rails", "kubernetes", "docker", "terraform",
	"aws", "gcp", "azure", "sql", "postgresql", "mysql", "mongodb", "redis",
	"kafka", "rabbitmq", "graphql", "grpc", "linux", "git", "ci/cd",
	"machine learning", "pytorch", "tensorflow", "spark", "airflow", "elasticsearch",
}

var benefitVocabulary = map[string]string{
	"health insurance":   "health insurance",
	"medical":            "health insurance",
	"dental":             "dental",
	"vision":             "vision",
	"401k":               "401k",
	"401(k)":             "401k",
	"pension":            "pension",
	"paid time off":      "paid time off",
	"pto":                "paid time off",
	"unlimited vacation": "paid time off",
	"parental leave":     "parental leave",
	"equity":             "equity",
	"stock options":      "equity",
	"bonus":              "bonus",
	"flexible hours":     "flexible hours",
	"remote work":        "remote work",
	"learning budget":    "learning budget",
	"gym":                "wellness",
	"wellness":           "wellness",
}

// cleanText normalizes unicode and collapses whitespace.
func cleanText(s string) string {
	return strings.Join(strings.Fields(norm.NFKC.String(s)), " ")
}

// InferJobType maps free text to a job type.
func InferJobType(text string) domain.JobType {
	for _, p := range jobTypePatterns {
		if p.re.MatchString(text) {
			return p.typ
		}
	}
	return domain.JobTypeUnknown
}

// InferExperienceLevel maps free text, usually a title, to a seniority.
func InferExperienceLevel(text string) domain.ExperienceLevel {
	for _, p := range experiencePatterns {
		if p.re.MatchString(text) {
			return p.level
		}
	}
	return domain.ExperienceUnknown
}

// IsRemote reports whether any of texts advertises remote work.
func IsRemote(texts ...string) bool {
	for _, t := range texts {
		if remoteRe.MatchString(t) {
			return true
		}
	}
	return false
}

// ScanSkills returns known skill names mentioned in text.
func ScanSkills(text string) mapset.Set[string] {
	return scanVocabulary(text, skillVocabulary, nil)
}

// ScanBenefits returns canonical benefit names mentioned in text.
func ScanBenefits(text string) mapset.Set[string] {
	keys := make([]string, 0, len(benefitVocabulary))
	for k := range benefitVocabulary {
		keys = append(keys, k)
	}
	return scanVocabulary(text, keys, benefitVocabulary)
}

func scanVocabulary(text string, terms []string, canonical map[string]string) mapset.Set[string] {
	found := mapset.NewSet[string]()
	lower := " " + strings.ToLower(text) + " "
	for _, term := range terms {
		if containsTerm(lower, term) {
			if c, ok := canonical[term]; ok {
				term = c
			}
			found.Add(term)
		}
	}
	return found
}

// containsTerm matches term at word boundaries; terms may contain symbols.
func containsTerm(padded, term string) bool {
	for idx := 0; ; {
		i := strings.Index(padded[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		if !isWordByte(padded[start-1]) && (end >= len(padded) || !isWordByte(padded[end])) {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// splitList splits a comma, bullet or newline separated list.
func splitList(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == '•' || r == '\n' || r == '|' || r == ';' || r == '·'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" && len(f) <= 60 {
			out = append(out, strings.ToLower(f))
		}
	}
	return out
}
