package crawler

import (
	"errors"
	"fmt"
)

// ErrRobotsDisallowed marks a URL skipped because robots.txt forbids it.
// A robots skip is neither a success nor a failure.
var ErrRobotsDisallowed = errors.New("robots.txt disallows url")

// ConfigError reports invalid or missing configuration. It is fatal: the
// engine refuses to start a run when construction surfaces one.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// NewConfigError builds a ConfigError for the given field.
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

// IsConfigError reports whether err is (or wraps) a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// FetchError wraps a failed page fetch. Permanent errors (4xx other than
// 429, malformed responses) are not retried; transient ones are.
type FetchError struct {
	URL        string
	StatusCode int
	Permanent  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsPermanentFetchError reports whether err is a fetch error that must not
// be retried.
func IsPermanentFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Permanent
}
