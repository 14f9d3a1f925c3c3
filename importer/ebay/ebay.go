package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/threadswap/threadswap/importer/base"
	"github.com/threadswap/threadswap/models"
)

// Importer pulls listings from eBay item pages. eBay embeds the listing
// as JSON-LD, so parsing walks the structured data and only falls back to
// selectors when the script block is missing.
type Importer struct {
	fetcher *base.Fetcher
}

// New creates an eBay importer.
func New(fetcher *base.Fetcher) *Importer {
	return &Importer{fetcher: fetcher}
}

func (i *Importer) CanImport(url string) bool {
	return strings.Contains(url, "ebay.")
}

func (i *Importer) ImportListing(ctx context.Context, url string) (*models.ImportedListing, error) {
	doc, err := i.fetcher.FetchDocument(ctx, url, func(doc *goquery.Document) bool {
		return base.IsValidDocument(doc) &&
			(doc.Find(`script[type="application/ld+json"]`).Length() > 0 || doc.Find("h1").Length() > 0)
	})
	if err != nil {
		return nil, err
	}
	return parseListing(doc, url)
}

func parseListing(doc *goquery.Document, url string) (*models.ImportedListing, error) {
	listing := &models.ImportedListing{
		SourceURL: url,
		Site:      "ebay",
	}

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return true
		}
		if data["@type"] != "Product" {
			return true
		}

		listing.Title = str(data, "name")
		listing.Description = str(data, "description")

		switch img := data["image"].(type) {
		case string:
			listing.Images = append(listing.Images, img)
		case []interface{}:
			for _, v := range img {
				if u, ok := v.(string); ok {
					listing.Images = append(listing.Images, u)
				}
			}
		}

		if brand, ok := data["brand"].(map[string]interface{}); ok {
			listing.Brand = str(brand, "name")
		}

		if offers, ok := data["offers"].(map[string]interface{}); ok {
			listing.PriceCents, listing.Currency = offerPrice(offers)
		}
		return false
	})

	// No JSON-LD product block: read the page the hard way.
	if listing.Title == "" {
		listing.Title = strings.TrimSpace(doc.Find("h1.x-item-title__mainTitle").Text())
		if listing.Title == "" {
			listing.Title = strings.TrimSpace(doc.Find("h1").First().Text())
		}
	}
	if listing.PriceCents == 0 {
		listing.PriceCents, listing.Currency = base.ParsePrice(doc.Find(".x-price-primary").First().Text())
	}
	if len(listing.Images) == 0 {
		listing.Images = base.OGImages(doc)
	}
	if listing.Description == "" {
		listing.Description = base.MetaProperty(doc, "og:description")
	}

	condition := strings.TrimSpace(doc.Find(".x-item-condition-text .ux-textspans").First().Text())
	listing.Condition = normalizeCondition(condition)

	if listing.Title == "" {
		return nil, fmt.Errorf("no listing found on page %s", url)
	}
	return listing, nil
}

// offerPrice reads price and currency from a JSON-LD offers object, which
// carries price as either a string or a number depending on the page.
func offerPrice(offers map[string]interface{}) (int64, string) {
	currency := str(offers, "priceCurrency")
	switch p := offers["price"].(type) {
	case string:
		cents, c := base.ParsePrice(p)
		if currency == "" {
			currency = c
		}
		return cents, currency
	case float64:
		return int64(p*100 + 0.5), currency
	}
	return 0, currency
}

func normalizeCondition(text string) string {
	t := strings.ToLower(text)
	switch {
	case strings.Contains(t, "new with tags"), strings.Contains(t, "brand new"):
		return "new_with_tags"
	case strings.Contains(t, "like new"), strings.Contains(t, "excellent"):
		return "like_new"
	case strings.Contains(t, "good"):
		return "good"
	case t == "":
		return ""
	default:
		return "fair"
	}
}

func str(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
