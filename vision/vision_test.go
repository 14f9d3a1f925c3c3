package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListingPlainJSON(t *testing.T) {
	l, err := ParseListing(`{"title":"Vintage Levi's Trucker Jacket","description":"Classic denim.","brand":"Levi's","condition":"good"}`)
	require.NoError(t, err)
	assert.Equal(t, "Vintage Levi's Trucker Jacket", l.Title)
	assert.Equal(t, "Levi's", l.Brand)
	assert.Equal(t, "good", l.Condition)
}

func TestParseListingFencedJSON(t *testing.T) {
	raw := "```json\n{\"title\": \"Silk Midi Skirt\", \"description\": \"Flowy and light.\"}\n```"
	l, err := ParseListing(raw)
	require.NoError(t, err)
	assert.Equal(t, "Silk Midi Skirt", l.Title)
	assert.Equal(t, "Flowy and light.", l.Description)
}

func TestParseListingWithLeadInProse(t *testing.T) {
	raw := "Here is the listing you asked for:\n{\"title\": \"Wool Coat\", \"description\": \"Warm winter layer.\"}\nHope it helps!"
	l, err := ParseListing(raw)
	require.NoError(t, err)
	assert.Equal(t, "Wool Coat", l.Title)
}

func TestParseListingRejectsGarbage(t *testing.T) {
	_, err := ParseListing("I could not see a garment in this photo.")
	require.Error(t, err)

	_, err = ParseListing(`{"title":"","description":""}`)
	require.Error(t, err)
}
