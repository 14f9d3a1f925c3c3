package ebay

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var itemPage = `<html><head>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"BreadcrumbList"}</script>
<script type="application/ld+json">{
  "@context": "https://schema.org",
  "@type": "Product",
  "name": "Carhartt Detroit Jacket Vintage 90s",
  "description": "Well loved workwear jacket, some fading.",
  "image": ["https://i.ebayimg.com/1.jpg", "https://i.ebayimg.com/2.jpg"],
  "brand": {"@type": "Brand", "name": "Carhartt"},
  "offers": {"@type": "Offer", "price": "85.00", "priceCurrency": "GBP"}
}</script>
</head><body>
<h1 class="x-item-title__mainTitle">Carhartt Detroit Jacket Vintage 90s</h1>
<div class="x-item-condition-text"><span class="ux-textspans">Pre-owned - Good</span></div>
` + "<p>" + strings.Repeat("filler ", 50) + "</p>" + `
</body></html>`

func TestParseListingJSONLD(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(itemPage))
	require.NoError(t, err)

	l, err := parseListing(doc, "https://www.ebay.co.uk/itm/12345")
	require.NoError(t, err)

	assert.Equal(t, "Carhartt Detroit Jacket Vintage 90s", l.Title)
	assert.Equal(t, "Well loved workwear jacket, some fading.", l.Description)
	assert.Equal(t, "Carhartt", l.Brand)
	assert.Equal(t, int64(8500), l.PriceCents)
	assert.Equal(t, "GBP", l.Currency)
	assert.Len(t, l.Images, 2)
	assert.Equal(t, "good", l.Condition)
	assert.Equal(t, "ebay", l.Site)
}

func TestParseListingFallsBackToSelectors(t *testing.T) {
	html := `<html><head>
		<meta property="og:image" content="https://i.ebayimg.com/only.jpg"/>
		<meta property="og:description" content="A plain page listing."/>
	</head><body>
		<h1>Plain Denim Shirt</h1>
		<div class="x-price-primary">US $24.99</div>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	l, err := parseListing(doc, "https://www.ebay.com/itm/999")
	require.NoError(t, err)
	assert.Equal(t, "Plain Denim Shirt", l.Title)
	assert.Equal(t, int64(2499), l.PriceCents)
	assert.Equal(t, "USD", l.Currency)
	assert.Equal(t, []string{"https://i.ebayimg.com/only.jpg"}, l.Images)
}

func TestParseListingNoProduct(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body><p>nothing here</p></body></html>"))
	require.NoError(t, err)

	_, err = parseListing(doc, "https://www.ebay.com/itm/0")
	require.Error(t, err)
}

func TestCanImport(t *testing.T) {
	i := New(nil)
	assert.True(t, i.CanImport("https://www.ebay.com/itm/123"))
	assert.True(t, i.CanImport("https://www.ebay.co.uk/itm/123"))
	assert.False(t, i.CanImport("https://www.depop.com/products/x"))
}
