package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy of the crawl pipeline. Callers classify with errors.Is.
var (
	ErrNetwork           = errors.New("network error")
	ErrTimeout           = errors.New("timeout")
	ErrCaptcha           = errors.New("captcha detected")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrParsing           = errors.New("parsing error")
	ErrValidation        = errors.New("validation failure")
	ErrConfiguration     = errors.New("configuration error")
)

// ErrorKind is a stable label for an error class, used in stats, metrics and
// failure records.
type ErrorKind string

const (
	KindNetwork       ErrorKind = "network"
	KindTimeout       ErrorKind = "timeout"
	KindCaptcha       ErrorKind = "captcha"
	KindRateLimit     ErrorKind = "rate_limit"
	KindParsing       ErrorKind = "parsing"
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindUnknown       ErrorKind = "unknown"
)

var kindSentinels = map[ErrorKind]error{
	KindNetwork:       ErrNetwork,
	KindTimeout:       ErrTimeout,
	KindCaptcha:       ErrCaptcha,
	KindRateLimit:     ErrRateLimitExceeded,
	KindParsing:       ErrParsing,
	KindValidation:    ErrValidation,
	KindConfiguration: ErrConfiguration,
}

// CrawlError describes a failure scoped to one URL.
type CrawlError struct {
	Kind       ErrorKind
	URL        string
	Attempts   int
	StatusCode int
	Err        error
}

func (e *CrawlError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.URL)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CrawlError) Unwrap() error { return e.Err }

// Is matches the sentinel that corresponds to the error's kind.
func (e *CrawlError) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

// KindOf classifies err into an ErrorKind.
func KindOf(err error) ErrorKind {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	for kind, sentinel := range kindSentinels {
		if errors.Is(err, sentinel) {
			return kind
		}
	}
	return KindUnknown
}

// ConfigError builds an error wrapping ErrConfiguration.
func ConfigError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
