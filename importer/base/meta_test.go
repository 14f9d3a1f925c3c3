package base

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in       string
		cents    int64
		currency string
	}{
		{"£12.50", 1250, "GBP"},
		{"$5", 500, "USD"},
		{"€89.99", 8999, "EUR"},
		{"12,50 €", 1250, "EUR"},
		{"USD 12.00", 1200, "USD"},
		{"$1,250.00", 125000, "USD"},
		{"₹499", 49900, "INR"},
		{"Free shipping", 0, ""},
		{"", 0, ""},
	}
	for _, tt := range tests {
		cents, currency := ParsePrice(tt.in)
		assert.Equal(t, tt.cents, cents, "cents for %q", tt.in)
		assert.Equal(t, tt.currency, currency, "currency for %q", tt.in)
	}
}

func TestOGHelpers(t *testing.T) {
	html := `<html><head>
		<meta property="og:title" content="Vintage Jacket"/>
		<meta property="og:image" content="https://img.example/a.jpg"/>
		<meta property="og:image" content="https://img.example/b.jpg"/>
		<meta property="og:image" content="https://img.example/a.jpg"/>
		<meta name="description" content="A jacket."/>
	</head><body><p>hi</p></body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)

	assert.Equal(t, "Vintage Jacket", MetaProperty(doc, "og:title"))
	assert.Equal(t, "A jacket.", MetaName(doc, "description"))
	assert.Equal(t, []string{"https://img.example/a.jpg", "https://img.example/b.jpg"}, OGImages(doc))
}

func TestIsValidDocumentRejectsBotWalls(t *testing.T) {
	blocked, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><head><title>Robot Check</title></head><body>` + strings.Repeat("x", 300) + `</body></html>`))
	require.NoError(t, err)
	assert.False(t, IsValidDocument(blocked))

	thin, err := goquery.NewDocumentFromReader(strings.NewReader(
		`<html><head><title>Listing</title></head><body>tiny</body></html>`))
	require.NoError(t, err)
	assert.False(t, IsValidDocument(thin))
}
