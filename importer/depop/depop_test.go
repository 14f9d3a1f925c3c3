package depop

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var productPage = `<html><head>
<meta property="og:title" content="Y2K pleated mini skirt"/>
<meta property="og:description" content="Checked pleated skirt, worn twice."/>
<meta property="og:image" content="https://media.depop.com/a.jpg"/>
<meta property="og:image" content="https://media.depop.com/b.jpg"/>
<meta property="product:price:amount" content="18.00"/>
<meta property="product:price:currency" content="GBP"/>
</head><body>
<script id="__NEXT_DATA__" type="application/json">{
  "props": {"pageProps": {"product": {
    "description": "Y2K pleated mini skirt",
    "brandName": "Topshop",
    "condition": "used_good",
    "sizes": [{"size": "UK 10"}],
    "price": {"priceAmount": "18.00", "currencyName": "GBP"}
  }}}
}</script>
` + "<p>" + strings.Repeat("filler ", 50) + "</p>" + `
</body></html>`

func TestParseListing(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(productPage))
	require.NoError(t, err)

	l, err := parseListing(doc, "https://www.depop.com/products/skirt-1")
	require.NoError(t, err)

	assert.Equal(t, "Y2K pleated mini skirt", l.Title)
	assert.Equal(t, "Checked pleated skirt, worn twice.", l.Description)
	assert.Equal(t, "Topshop", l.Brand)
	assert.Equal(t, "good", l.Condition)
	assert.Equal(t, "UK 10", l.Size)
	assert.Equal(t, int64(1800), l.PriceCents)
	assert.Equal(t, "GBP", l.Currency)
	assert.Len(t, l.Images, 2)
	assert.Equal(t, "depop", l.Site)
}

func TestParseListingWithoutNextData(t *testing.T) {
	html := `<html><head>
		<meta property="og:title" content="Band tee"/>
		<meta property="og:image" content="https://media.depop.com/tee.jpg"/>
		<meta property="product:price:amount" content="9.50"/>
		<meta property="product:price:currency" content="USD"/>
	</head><body><p>page</p></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	l, err := parseListing(doc, "https://www.depop.com/products/tee")
	require.NoError(t, err)
	assert.Equal(t, "Band tee", l.Title)
	assert.Equal(t, int64(950), l.PriceCents)
	assert.Equal(t, "USD", l.Currency)
	assert.Empty(t, l.Size)
}

func TestParseListingMissingTitle(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html><body></body></html>"))
	require.NoError(t, err)

	_, err = parseListing(doc, "https://www.depop.com/products/x")
	require.Error(t, err)
}
