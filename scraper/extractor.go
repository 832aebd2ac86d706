package scraper

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"prodbot/models"
)

// ErrNotFound means no selector strategy (nor the regex fallback, for price)
// matched anything in the document. Absence propagates to the caller; it is
// never replaced by a placeholder value.
var ErrNotFound = errors.New("field not found in document")

const maxDescriptionLen = 500

// priceSelectors is ordered most reliable first: specific known price
// container IDs, then generic price classes. The ordering matters because
// product pages expose several overlapping price-ish elements (list price,
// deal price, struck-through price) and the first match wins.
var priceSelectors = []string{
	"#priceblock_ourprice",
	"#priceblock_dealprice",
	"#priceblock_saleprice",
	".a-price-whole",
	".a-color-price",
	".a-offscreen",
	"#corePrice_desktop",
	"#corePriceDisplay_desktop_feature_div",
	".a-price",
}

var imageSelectors = []string{
	"#ivLargeImage img",
	"#landingImage",
	"#imgBlkFront",
	`img[data-image-index="0"]`,
	".a-dynamic-image",
	"#ebooksImgBlkFront",
	"#img-canvas img",
	"#ppd img",
	"#dp-container img",
	"#imageBlock img",
}

var descriptionSelectors = []string{
	"#productDescription p",
	"#feature-bullets ul",
	".a-list-item",
	"#productDescription",
}

var reviewCountRE = regexp.MustCompile(`[0-9][0-9,]*`)

// Extractor pulls normalized product fields out of parsed documents. All
// extraction is pure with respect to the document: no network access, same
// document in, same result out.
type Extractor struct {
	siteBase *url.URL
	// siteToken is the registrable label of the site host ("amazon" for
	// www.amazon.in), used as the sanity filter for image candidates.
	siteToken string
}

// NewExtractor creates an extractor that resolves relative asset URLs
// against siteBaseURL.
func NewExtractor(siteBaseURL string) (*Extractor, error) {
	base, err := url.Parse(siteBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid site base URL %q: %v", siteBaseURL, err)
	}
	host := strings.TrimPrefix(base.Hostname(), "www.")
	token := host
	if i := strings.IndexByte(host, '.'); i > 0 {
		token = host[:i]
	}
	return &Extractor{siteBase: base, siteToken: strings.ToLower(token)}, nil
}

// Parse parses a fetched page into a queryable document.
func (e *Extractor) Parse(page *Page) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse page %s: %v", page.FinalURL, err)
	}
	return doc, nil
}

// ExtractPrice finds the product price using the selector cascade, falling
// back to a regex scan of the document's visible text for a
// currency-prefixed token. The fallback may produce false positives on pages
// that list several prices; it is a documented last resort.
func (e *Extractor) ExtractPrice(doc *goquery.Document) (float64, error) {
	for _, sel := range priceSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		text := strings.TrimSpace(node.Text())
		if text == "" {
			continue
		}
		return ParsePrice(text)
	}

	if m := currencyTokenRE.FindString(doc.Text()); m != "" {
		return ParsePrice(m)
	}
	return 0, ErrNotFound
}

// ExtractTitle returns the product title, preferring the dedicated title
// element over the page <title> (which carries site suffixes after a colon).
func (e *Extractor) ExtractTitle(doc *goquery.Document) (string, error) {
	if t := strings.TrimSpace(doc.Find("#productTitle").First().Text()); t != "" {
		return t, nil
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		if i := strings.IndexByte(t, ':'); i > 0 {
			t = strings.TrimSpace(t[:i])
		}
		if t != "" {
			return t, nil
		}
	}
	return "", ErrNotFound
}

// ExtractImage returns an absolute URL to the main product image. Candidates
// must survive a sanity filter (site-hosted, image file extension) before
// being accepted; otherwise the cascade continues.
func (e *Extractor) ExtractImage(doc *goquery.Document) (string, error) {
	for _, sel := range imageSelectors {
		node := doc.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		src, ok := node.Attr("src")
		if !ok || strings.TrimSpace(src) == "" {
			continue
		}
		resolved := e.resolveURL(strings.TrimSpace(src))
		if e.looksLikeSiteImage(resolved) {
			return resolved, nil
		}
	}

	// Fallback: any image carrying a gallery index attribute.
	var found string
	doc.Find("img[data-image-index]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if src, ok := s.Attr("src"); ok {
			resolved := e.resolveURL(strings.TrimSpace(src))
			if e.looksLikeSiteImage(resolved) {
				found = resolved
				return false
			}
		}
		return true
	})
	if found != "" {
		return found, nil
	}
	return "", ErrNotFound
}

// ExtractDescription returns the product description, truncated to bound
// payload size.
func (e *Extractor) ExtractDescription(doc *goquery.Document) (string, error) {
	for _, sel := range descriptionSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if text == "" {
			continue
		}
		if runes := []rune(text); len(runes) > maxDescriptionLen {
			text = string(runes[:maxDescriptionLen])
		}
		return text, nil
	}
	return "", ErrNotFound
}

// ExtractRating returns the star rating text, e.g. "4.3 out of 5 stars".
func (e *Extractor) ExtractRating(doc *goquery.Document) (string, error) {
	if t := strings.TrimSpace(doc.Find(".a-icon-star .a-icon-alt").First().Text()); t != "" {
		return t, nil
	}
	return "", ErrNotFound
}

// ExtractReviewCount returns the number of customer reviews.
func (e *Extractor) ExtractReviewCount(doc *goquery.Document) (int, error) {
	text := strings.TrimSpace(doc.Find("#acrCustomerReviewText").First().Text())
	if text == "" {
		return 0, ErrNotFound
	}
	m := reviewCountRE.FindString(text)
	if m == "" {
		return 0, ErrNotFound
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0, ErrNotFound
	}
	return n, nil
}

// ExtractInfo gathers every field for a one-shot product summary. Absent
// fields stay nil.
func (e *Extractor) ExtractInfo(page *Page) (*models.ProductInfo, error) {
	doc, err := e.Parse(page)
	if err != nil {
		return nil, err
	}

	info := &models.ProductInfo{URL: page.FinalURL}
	if title, err := e.ExtractTitle(doc); err == nil {
		info.Title = &title
	}
	if price, err := e.ExtractPrice(doc); err == nil {
		info.Price = &price
	}
	if image, err := e.ExtractImage(doc); err == nil {
		info.Image = &image
	}
	if desc, err := e.ExtractDescription(doc); err == nil {
		info.Description = &desc
	}
	if rating, err := e.ExtractRating(doc); err == nil {
		info.Rating = &rating
	}
	if reviews, err := e.ExtractReviewCount(doc); err == nil {
		info.Reviews = &reviews
	}
	return info, nil
}

// resolveURL makes protocol-relative and root-relative URLs absolute against
// the configured site domain.
func (e *Extractor) resolveURL(raw string) string {
	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}
	if strings.HasPrefix(raw, "/") {
		return e.siteBase.Scheme + "://" + e.siteBase.Host + raw
	}
	return raw
}

// looksLikeSiteImage is a sanity filter, not verification: the candidate must
// mention the site and end in a known image extension.
func (e *Extractor) looksLikeSiteImage(u string) bool {
	lower := strings.ToLower(u)
	if !strings.Contains(lower, e.siteToken) {
		return false
	}
	return strings.Contains(lower, ".jpg") || strings.Contains(lower, ".jpeg") || strings.Contains(lower, ".png")
}
