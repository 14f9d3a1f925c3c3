package depop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/threadswap/threadswap/importer/base"
	"github.com/threadswap/threadswap/models"
)

// Importer pulls listings from Depop product pages: OpenGraph tags for
// the basics, the embedded Next.js state for size and condition, which
// the meta tags never carry.
type Importer struct {
	fetcher *base.Fetcher
}

// New creates a Depop importer.
func New(fetcher *base.Fetcher) *Importer {
	return &Importer{fetcher: fetcher}
}

func (i *Importer) CanImport(url string) bool {
	return strings.Contains(url, "depop.com")
}

func (i *Importer) ImportListing(ctx context.Context, url string) (*models.ImportedListing, error) {
	doc, err := i.fetcher.FetchDocument(ctx, url, func(doc *goquery.Document) bool {
		return base.IsValidDocument(doc) && base.MetaProperty(doc, "og:title") != ""
	})
	if err != nil {
		return nil, err
	}
	return parseListing(doc, url)
}

func parseListing(doc *goquery.Document, url string) (*models.ImportedListing, error) {
	listing := &models.ImportedListing{
		SourceURL: url,
		Site:      "depop",
	}

	listing.Title = base.MetaProperty(doc, "og:title")
	listing.Description = base.MetaProperty(doc, "og:description")
	listing.Images = base.OGImages(doc)

	if amount := base.MetaProperty(doc, "product:price:amount"); amount != "" {
		listing.PriceCents, _ = base.ParsePrice(amount)
		listing.Currency = base.MetaProperty(doc, "product:price:currency")
	}

	if state := nextData(doc); state != nil {
		if p, ok := dig(state, "props", "pageProps", "product").(map[string]interface{}); ok {
			if listing.Title == "" {
				listing.Title = str(p, "description")
			}
			listing.Brand = str(p, "brandName")
			listing.Condition = normalizeCondition(str(p, "condition"))
			if sizes, ok := p["sizes"].([]interface{}); ok && len(sizes) > 0 {
				if sz, ok := sizes[0].(map[string]interface{}); ok {
					listing.Size = str(sz, "size")
				}
			}
			if listing.PriceCents == 0 {
				if price, ok := p["price"].(map[string]interface{}); ok {
					listing.PriceCents, _ = base.ParsePrice(str(price, "priceAmount"))
					listing.Currency = str(price, "currencyName")
				}
			}
		}
	}

	if listing.Title == "" {
		return nil, fmt.Errorf("no listing found on page %s", url)
	}
	return listing, nil
}

// nextData decodes the page's __NEXT_DATA__ script, when present.
func nextData(doc *goquery.Document) map[string]interface{} {
	raw := doc.Find("script#__NEXT_DATA__").First().Text()
	if raw == "" {
		return nil
	}
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil
	}
	return data
}

// dig walks nested JSON objects one key at a time.
func dig(m map[string]interface{}, keys ...string) interface{} {
	var cur interface{} = m
	for _, k := range keys {
		obj, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = obj[k]
	}
	return cur
}

func normalizeCondition(text string) string {
	switch strings.ToLower(text) {
	case "brand_new", "new with tags":
		return "new_with_tags"
	case "like_new", "excellent":
		return "like_new"
	case "good", "used_good":
		return "good"
	case "":
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
