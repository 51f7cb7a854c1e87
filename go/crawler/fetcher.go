package crawler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gocolly/colly"
)

// Fetcher returns the body of a listing page. Network failures and non-2xx
// responses are errors.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// FetchError reports a failed page fetch. StatusCode is zero when no response
// was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func statusError(url string, code int) error {
	if code >= 200 && code < 300 {
		return nil
	}
	return &FetchError{URL: url, StatusCode: code, Err: fmt.Errorf("%s", http.StatusText(code))}
}

// CollyFetcher fetches pages with a colly collector.
type CollyFetcher struct {
	Timeout   time.Duration
	UserAgent string
}

func NewCollyFetcher(timeout time.Duration, userAgent string) *CollyFetcher {
	return &CollyFetcher{Timeout: timeout, UserAgent: userAgent}
}

func (f *CollyFetcher) Fetch(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &FetchError{URL: url, Err: err}
	}

	options := []func(*colly.Collector){colly.AllowURLRevisit()}
	if f.UserAgent != "" {
		options = append(options, colly.UserAgent(f.UserAgent))
	}
	c := colly.NewCollector(options...)
	if f.Timeout > 0 {
		c.SetRequestTimeout(f.Timeout)
	}
	// Every status reaches OnResponse and statusError decides; colly alone
	// rejects 203-299. Listing pages can exceed the default 10 MB body cap.
	c.ParseHTTPErrorResponse = true
	c.MaxBodySize = 0

	var body []byte
	var statusCode int
	c.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
		}
	})
	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
	})

	visited := make(chan error, 1)
	go func() { visited <- c.Visit(url) }()
	select {
	case <-ctx.Done():
		// The visit finishes in the background, bounded by the request timeout.
		return "", &FetchError{URL: url, Err: ctx.Err()}
	case err := <-visited:
		if err != nil {
			return "", &FetchError{URL: url, StatusCode: statusCode, Err: err}
		}
	}
	if err := ctx.Err(); err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	if err := statusError(url, statusCode); err != nil {
		return "", err
	}
	return string(body), nil
}
