package generic

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListingOpenGraph(t *testing.T) {
	html := `<html><head>
		<meta property="og:title" content="Hand-knit Alpaca Sweater"/>
		<meta property="og:description" content="Cream alpaca wool, size M."/>
		<meta property="og:image" content="https://shop.example/sweater.jpg"/>
		<meta property="product:price:amount" content="45.00"/>
		<meta property="product:price:currency" content="EUR"/>
	</head><body><p>shop page</p></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	l, err := parseListing(doc, "https://shop.example/p/sweater")
	require.NoError(t, err)
	assert.Equal(t, "Hand-knit Alpaca Sweater", l.Title)
	assert.Equal(t, "Cream alpaca wool, size M.", l.Description)
	assert.Equal(t, int64(4500), l.PriceCents)
	assert.Equal(t, "EUR", l.Currency)
	assert.Equal(t, "web", l.Site)
}

func TestParseListingMicrodataPrice(t *testing.T) {
	html := `<html><head>
		<meta property="og:image" content="https://shop.example/coat.jpg"/>
	</head><body>
		<h1>Wool Overcoat</h1>
		<span itemprop="price" content="120.00"></span>
		<meta itemprop="priceCurrency" content="USD"/>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	l, err := parseListing(doc, "https://shop.example/p/coat")
	require.NoError(t, err)
	assert.Equal(t, "Wool Overcoat", l.Title)
	assert.Equal(t, int64(12000), l.PriceCents)
	assert.Equal(t, "USD", l.Currency)
}

func TestParseListingRejectsImagelessPages(t *testing.T) {
	html := `<html><head><title>Blog post</title></head><body><h1>Ten packing tips</h1></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	_, err = parseListing(doc, "https://blog.example/tips")
	require.Error(t, err)
}
