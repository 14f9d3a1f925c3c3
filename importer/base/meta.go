package base

import (
	"math"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MetaProperty returns the content of a <meta property="..."> tag.
func MetaProperty(doc *goquery.Document, property string) string {
	return strings.TrimSpace(doc.Find(`meta[property="` + property + `"]`).First().AttrOr("content", ""))
}

// MetaName returns the content of a <meta name="..."> tag.
func MetaName(doc *goquery.Document, name string) string {
	return strings.TrimSpace(doc.Find(`meta[name="` + name + `"]`).First().AttrOr("content", ""))
}

// OGImages collects every og:image address on the page, deduplicated in
// document order.
func OGImages(doc *goquery.Document) []string {
	var images []string
	seen := make(map[string]bool)
	doc.Find(`meta[property="og:image"]`).Each(func(_ int, s *goquery.Selection) {
		src := strings.TrimSpace(s.AttrOr("content", ""))
		if src != "" && !seen[src] {
			seen[src] = true
			images = append(images, src)
		}
	})
	return images
}

var currencySymbols = map[string]string{
	"$": "USD",
	"£": "GBP",
	"€": "EUR",
	"₹": "INR",
}

// ParsePrice turns a display price like "£12.50", "$5", "12,50 €" or
// "USD 12.00" into minor units plus an ISO currency code. Unparseable
// input yields zero cents and whatever currency hint was found.
func ParsePrice(text string) (cents int64, currency string) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, ""
	}

	for sym, code := range currencySymbols {
		if strings.Contains(s, sym) {
			currency = code
			s = strings.ReplaceAll(s, sym, "")
			break
		}
	}
	if currency == "" {
		up := strings.ToUpper(s)
		for _, code := range []string{"USD", "GBP", "EUR", "INR", "AUD", "CAD"} {
			if strings.Contains(up, code) {
				currency = code
				break
			}
		}
	}

	// Keep digits and separators only.
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	num := b.String()
	if num == "" {
		return 0, currency
	}

	// "12,50" is a decimal comma; "1,250.00" is a thousands comma.
	if strings.Contains(num, ",") && !strings.Contains(num, ".") {
		if idx := strings.LastIndex(num, ","); len(num)-idx-1 == 2 {
			num = num[:idx] + "." + num[idx+1:]
		} else {
			num = strings.ReplaceAll(num, ",", "")
		}
	} else {
		num = strings.ReplaceAll(num, ",", "")
	}

	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, currency
	}
	return int64(math.Round(f * 100)), currency
}
