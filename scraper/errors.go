// scraper/errors.go
package scraper

import "fmt"

// NetworkError is a failed request: a transport error or a non-2xx status.
type NetworkError struct {
	URL    string
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("request %s: status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("request %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ConfigError means a source is wired wrong. Only that source fails.
type ConfigError struct {
	Source string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("source %q misconfigured: %s", e.Source, e.Reason)
}
