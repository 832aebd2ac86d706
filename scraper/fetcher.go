package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Page is a fetched product page. FinalURL is the URL after redirects, which
// matters because short links redirect to canonical product pages.
type Page struct {
	FinalURL string
	Body     []byte
}

// Fetcher retrieves product pages. Implementations must be safe for use by
// multiple tracker loops concurrently.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// FetchError describes a failed page fetch. Callers treat it as recoverable:
// the tick is skipped and the loop retries on the next schedule.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// browserHeaders mimics a real browser to reduce the chance the origin serves
// a bot-detection or degraded page.
var browserHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8,application/signed-exchange;v=b3;q=0.7",
	"Accept-Language":           "en-US,en;q=0.9",
	"DNT":                       "1",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
	"Sec-Fetch-Dest":            "document",
	"Sec-Fetch-Mode":            "navigate",
	"Sec-Fetch-Site":            "none",
	"Sec-Fetch-User":            "?1",
	"Cache-Control":             "max-age=0",
	"Sec-Ch-Ua":                 `"Not_A Brand";v="8", "Chromium";v="120", "Google Chrome";v="120"`,
	"Sec-Ch-Ua-Mobile":          "?0",
	"Sec-Ch-Ua-Platform":        `"Windows"`,
}

// HTTPFetcher fetches pages with a plain HTTP client. No retries are made
// here; retry policy lives in the tracker loop.
type HTTPFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
	referer string
}

// NewHTTPFetcher creates a fetcher with the given timeout. minGap spaces out
// outbound requests across all callers so concurrent loops cannot burst
// against the origin.
func NewHTTPFetcher(timeout, minGap time.Duration, referer string) *HTTPFetcher {
	return &HTTPFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		limiter: rate.NewLimiter(rate.Every(minGap), 1),
		referer: referer,
	}
}

// Fetch issues a GET with browser-like headers, follows redirects and returns
// the final URL and body. Any network error, timeout or non-2xx status yields
// a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	for k, v := range browserHeaders {
		req.Header.Set(k, v)
	}
	if f.referer != "" {
		req.Header.Set("Referer", f.referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	return &Page{FinalURL: resp.Request.URL.String(), Body: body}, nil
}
