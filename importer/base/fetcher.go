package base

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
)

const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Fetcher retrieves listing pages for the site importers. Marketplaces
// ship anything from static HTML to fully client-rendered pages behind
// bot checks, so retrieval is a ladder: plain HTTP first, a headless
// browser when the HTTP body fails the caller's validator, and a full
// selenium-driven browser as the last resort.
type Fetcher struct {
	Client           *http.Client
	ChromeDriverPath string
	Logger           zerolog.Logger
}

// NewFetcher creates a Fetcher. An empty chromeDriverPath disables the
// selenium rung.
func NewFetcher(logger zerolog.Logger, chromeDriverPath string) *Fetcher {
	return &Fetcher{
		Client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				ForceAttemptHTTP2:     false,
				TLSNextProto:          make(map[string]func(string, *tls.Conn) http.RoundTripper),
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		ChromeDriverPath: chromeDriverPath,
		Logger:           logger.With().Str("component", "importer_fetch").Logger(),
	}
}

// FetchDocument retrieves url and hands the parsed document to validator,
// climbing the strategy ladder until one strategy yields a document the
// validator accepts.
func (f *Fetcher) FetchDocument(ctx context.Context, url string, validator func(*goquery.Document) bool) (*goquery.Document, error) {
	doc, err := f.FetchDocumentHTTP(ctx, url)
	if err == nil {
		if validator(doc) {
			f.Logger.Debug().Str("url", url).Msg("http fetch succeeded")
			return doc, nil
		}
		f.Logger.Debug().Str("url", url).Msg("http body failed validation, trying headless browser")
	} else {
		f.Logger.Debug().Err(err).Str("url", url).Msg("http fetch failed")
	}

	doc, err = f.FetchDocumentChromeDP(ctx, url)
	if err == nil && validator(doc) {
		f.Logger.Debug().Str("url", url).Msg("chromedp fetch succeeded")
		return doc, nil
	}
	if err != nil {
		f.Logger.Debug().Err(err).Str("url", url).Msg("chromedp fetch failed")
	}

	if f.ChromeDriverPath != "" {
		doc, err = f.FetchDocumentSelenium(ctx, url)
		if err == nil && validator(doc) {
			f.Logger.Debug().Str("url", url).Msg("selenium fetch succeeded")
			return doc, nil
		}
		if err != nil {
			f.Logger.Debug().Err(err).Str("url", url).Msg("selenium fetch failed")
		}
	}

	return nil, fmt.Errorf("all fetch strategies failed for %s", url)
}

// IsValidDocument is the default validator: a real page, not a bot wall.
func IsValidDocument(doc *goquery.Document) bool {
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").Text()))
	if strings.Contains(title, "robot check") ||
		strings.Contains(title, "captcha") ||
		strings.Contains(title, "access denied") {
		return false
	}
	return len(strings.TrimSpace(doc.Find("body").Text())) > 200
}

// FetchDocumentHTTP retrieves url with the plain HTTP client.
func (f *Fetcher) FetchDocumentHTTP(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")
	req.Header.Set("Sec-Fetch-User", "?1")

	res, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code error: %d %s", res.StatusCode, res.Status)
	}
	return goquery.NewDocumentFromReader(res.Body)
}
