package request

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/crawler"
	"github.com/remotehive-dev/remotehive-dev-06-sept--sub003/internal/pipeline"
)

type SubmitCrawlRequest struct {
	Source  string            `json:"source"`
	URLs    []string          `json:"urls"`
	Options crawler.Overrides `json:"options"`
}

// Job checks the request and turns it into a pipeline job.
func (r SubmitCrawlRequest) Job() (pipeline.Job, error) {
	if strings.TrimSpace(r.Source) == "" {
		return pipeline.Job{}, fmt.Errorf("source is required")
	}
	if len(r.URLs) == 0 {
		return pipeline.Job{}, fmt.Errorf("urls list cannot be empty")
	}
	for _, u := range r.URLs {
		parsed, err := url.ParseRequestURI(u)
		if err != nil || parsed.Host == "" {
			return pipeline.Job{}, fmt.Errorf("invalid url in list: %s", u)
		}
	}
	return pipeline.Job{Source: r.Source, URLs: r.URLs, Options: r.Options}, nil
}
