package crawler

import (
	"context"
	"io"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"github.com/samsarahq/go/oops"
)

// TLSFetcher fetches pages with a browser TLS fingerprint, for listing sites
// that reject Go's default handshake.
type TLSFetcher struct {
	client    tls_client.HttpClient
	userAgent string
}

func NewTLSFetcher(timeoutSeconds int, userAgent string) (*TLSFetcher, error) {
	options := []tls_client.HttpClientOption{
		tls_client.WithTimeoutSeconds(timeoutSeconds),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithCookieJar(tls_client.NewCookieJar()),
	}
	client, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
	if err != nil {
		return nil, oops.Wrapf(err, "create tls client")
	}
	return &TLSFetcher{client: client, userAgent: userAgent}, nil
}

func (f *TLSFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	req.Header = http.Header{
		"Accept":          {"text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"},
		"Accept-Language": {"fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7"},
		http.HeaderOrderKey: {
			"Accept",
			"Accept-Language",
			"User-Agent",
		},
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if err := statusError(url, resp.StatusCode); err != nil {
		return "", err
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &FetchError{URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	return string(body), nil
}
