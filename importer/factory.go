package importer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/threadswap/threadswap/importer/base"
	"github.com/threadswap/threadswap/importer/depop"
	"github.com/threadswap/threadswap/importer/ebay"
	"github.com/threadswap/threadswap/importer/generic"
)

// ForURL resolves shortened links, then returns the importer for the
// final address. The generic OpenGraph importer accepts anything, so a
// listing URL always finds a handler; pages that turn out not to be
// listings fail at parse time instead.
func ForURL(ctx context.Context, url string, logger zerolog.Logger, chromeDriverPath string) (Importer, string, error) {
	resolvedURL, err := resolveShortenedURL(ctx, &http.Client{Timeout: 15 * time.Second}, url)
	if err != nil {
		logger.Debug().Err(err).Str("url", url).Msg("short link resolution failed, importing as given")
		resolvedURL = url
	}

	fetcher := base.NewFetcher(logger, chromeDriverPath)
	importers := []Importer{
		ebay.New(fetcher),
		depop.New(fetcher),
		generic.New(fetcher),
	}

	for _, imp := range importers {
		if imp.CanImport(resolvedURL) {
			return imp, resolvedURL, nil
		}
	}
	return nil, resolvedURL, fmt.Errorf("no importer for url: %s", resolvedURL)
}

// resolveShortenedURL follows redirects (ebay.us, bit.ly and friends) to
// the listing's real address.
func resolveShortenedURL(ctx context.Context, client *http.Client, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return url, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := client.Do(req)
	if err != nil || resp.StatusCode != http.StatusOK {
		if err == nil {
			resp.Body.Close()
		}
		// Some hosts refuse HEAD; retry the chain with GET.
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return url, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		resp, err = client.Do(req)
		if err != nil {
			return url, err
		}
	}
	defer resp.Body.Close()

	return resp.Request.URL.String(), nil
}
