package generic

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/threadswap/threadswap/importer/base"
	"github.com/threadswap/threadswap/models"
)

// Importer is the catch-all: any page with OpenGraph product tags imports
// well enough to draft from, so sellers are not limited to the sites with
// a dedicated importer.
type Importer struct {
	fetcher *base.Fetcher
}

// New creates the generic importer.
func New(fetcher *base.Fetcher) *Importer {
	return &Importer{fetcher: fetcher}
}

// CanImport accepts everything; this importer is registered last.
func (i *Importer) CanImport(url string) bool {
	return strings.HasPrefix(url, "http")
}

func (i *Importer) ImportListing(ctx context.Context, url string) (*models.ImportedListing, error) {
	doc, err := i.fetcher.FetchDocument(ctx, url, base.IsValidDocument)
	if err != nil {
		return nil, err
	}
	return parseListing(doc, url)
}

func parseListing(doc *goquery.Document, url string) (*models.ImportedListing, error) {
	listing := &models.ImportedListing{
		SourceURL: url,
		Site:      "web",
	}

	listing.Title = base.MetaProperty(doc, "og:title")
	if listing.Title == "" {
		listing.Title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if listing.Title == "" {
		listing.Title = strings.TrimSpace(doc.Find("title").Text())
	}

	listing.Description = base.MetaProperty(doc, "og:description")
	if listing.Description == "" {
		listing.Description = base.MetaName(doc, "description")
	}

	listing.Images = base.OGImages(doc)

	if amount := base.MetaProperty(doc, "product:price:amount"); amount != "" {
		listing.PriceCents, _ = base.ParsePrice(amount)
		listing.Currency = base.MetaProperty(doc, "product:price:currency")
	}
	if listing.PriceCents == 0 {
		if content := doc.Find(`[itemprop="price"]`).First().AttrOr("content", ""); content != "" {
			listing.PriceCents, listing.Currency = base.ParsePrice(content)
		} else {
			listing.PriceCents, listing.Currency = base.ParsePrice(doc.Find(`[itemprop="price"]`).First().Text())
		}
		if c := doc.Find(`[itemprop="priceCurrency"]`).First().AttrOr("content", ""); c != "" {
			listing.Currency = c
		}
	}

	if listing.Title == "" || len(listing.Images) == 0 {
		return nil, fmt.Errorf("page %s does not describe an importable listing", url)
	}
	return listing, nil
}
