package scraper

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// BrowserFetcher renders pages in headless Chromium for origins that serve a
// bot wall to plain HTTP clients. It satisfies the same Fetcher contract as
// HTTPFetcher and is selected with FETCH_MODE=browser.
type BrowserFetcher struct {
	browser *rod.Browser
}

// NewBrowserFetcher launches headless Chromium. Uses the system binary when
// running in Docker, auto-detects otherwise.
func NewBrowserFetcher() (*BrowserFetcher, error) {
	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Leakless(false)

	if _, err := os.Stat("/usr/bin/chromium-browser"); err == nil {
		l = l.Bin("/usr/bin/chromium-browser")
		log.Printf("Using system Chromium")
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, err
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, err
	}

	return &BrowserFetcher{browser: browser}, nil
}

// Fetch navigates to the URL, waits for the page to load and returns the
// rendered HTML and final URL.
func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	var page *Page
	err := rod.Try(func() {
		p := f.browser.Context(ctx).MustPage(url)
		defer p.MustClose()

		p.MustSetViewport(1366, 768, 1.0, false)
		p.MustWaitLoad()
		time.Sleep(2 * time.Second)

		html := p.MustHTML()
		info := p.MustInfo()
		page = &Page{FinalURL: info.URL, Body: []byte(html)}
	})
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return page, nil
}

// Close shuts the browser down.
func (f *BrowserFetcher) Close() {
	if f.browser != nil {
		f.browser.Close()
	}
}
