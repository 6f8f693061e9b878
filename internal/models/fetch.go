package models

import "fmt"

// FetchErrorKind classifies a failed fetch for retry decisions.
type FetchErrorKind string

const (
	// KindTimeout is a request that exceeded its deadline. Retryable.
	KindTimeout FetchErrorKind = "timeout"
	// KindUnreachable covers DNS, connection refused and other transport
	// failures. Retryable.
	KindUnreachable FetchErrorKind = "unreachable"
	// KindHTTPStatus is a non-2xx response. Retryable unless the status
	// marks the resource as permanently gone.
	KindHTTPStatus FetchErrorKind = "http_status"
	// KindInvalidURL means the URL could not be parsed or uses an
	// unsupported scheme. Never retryable.
	KindInvalidURL FetchErrorKind = "invalid_url"
	// KindEmptyContent means the page fetched but no usable article body
	// was extracted. Retryable; slow origins sometimes serve shells.
	KindEmptyContent FetchErrorKind = "empty_content"
)

// FetchResult is the extracted payload of a successful fetch.
type FetchResult struct {
	Title           string
	ContentMarkdown string
}

// FetchError is a classified fetch failure.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	Detail     string
}

func (e *FetchError) Error() string {
	if e.Kind == KindHTTPStatus {
		return fmt.Sprintf("fetch failed: http %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("fetch failed: %s: %s", e.Kind, e.Detail)
}

// Permanent reports whether retrying can never succeed, letting workers
// dead-letter immediately instead of burning the retry budget.
func (e *FetchError) Permanent() bool {
	if e.Kind == KindInvalidURL {
		return true
	}
	if e.Kind == KindHTTPStatus {
		switch e.StatusCode {
		case 404, 410:
			return true
		}
	}
	return false
}
