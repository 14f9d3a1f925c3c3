package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTryOnForTest(t *testing.T, handler http.HandlerFunc) *TryOnClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewTryOnClient(TryOnOptions{
		BaseURL:    srv.URL,
		APIKey:     "tryon-key",
		HTTPClient: srv.Client(),
		Logger:     zerolog.Nop(),
	})
}

func TestApplyModelSuccess(t *testing.T) {
	client := newTryOnForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/tryon", r.URL.Path)
		assert.Equal(t, "Bearer tryon-key", r.Header.Get("Authorization"))

		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://cdn.example.com/cutout.png", req["imageUrl"])
		assert.Equal(t, "one-pieces", req["garmentType"])
		assert.Equal(t, "female", req["modelGender"])

		model, ok := req["fashionModel"].(map[string]interface{})
		require.True(t, ok, "picked model travels with the request")
		assert.Equal(t, "m42", model["id"])
		assert.Equal(t, "Ava", model["name"])

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":           true,
			"processedImageUrl": "https://cdn.example.com/final.png",
		})
	})

	res := client.ApplyModel(context.Background(), "https://cdn.example.com/cutout.png",
		GarmentOnePiece, GenderFemale, &ModelRef{ID: "m42", Name: "Ava", Gender: "female"})

	assert.Equal(t, StageSucceeded, res.Status)
	assert.Equal(t, "https://cdn.example.com/final.png", res.ImageURL)
}

func TestApplyModelOmitsModelWhenAuto(t *testing.T) {
	client := newTryOnForTest(t, func(w http.ResponseWriter, r *http.Request) {
		var req map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, present := req["fashionModel"]
		assert.False(t, present, "auto mode sends no model, the service picks")

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":           true,
			"processedImageUrl": "https://cdn.example.com/final.png",
		})
	})

	res := client.ApplyModel(context.Background(), "https://cdn.example.com/cutout.png",
		GarmentTops, GenderUnisex, nil)

	assert.Equal(t, StageSucceeded, res.Status)
}

func TestApplyModelDeclineDegrades(t *testing.T) {
	client := newTryOnForTest(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "garment occlusion too high",
		})
	})

	res := client.ApplyModel(context.Background(), "https://cdn.example.com/cutout.png",
		GarmentTops, GenderUnisex, nil)

	assert.Equal(t, StageDegraded, res.Status, "overlay failures never fail the run")
	assert.Equal(t, "https://cdn.example.com/cutout.png", res.ImageURL, "input image survives")
	assert.Contains(t, res.Message, "declined")
}

func TestApplyModelMalformedResponseDegrades(t *testing.T) {
	client := newTryOnForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("upstream exploded"))
	})

	res := client.ApplyModel(context.Background(), "https://cdn.example.com/cutout.png",
		GarmentBottoms, GenderMale, nil)

	assert.Equal(t, StageDegraded, res.Status)
	assert.Equal(t, "https://cdn.example.com/cutout.png", res.ImageURL)
	assert.Contains(t, res.Message, "unexpected payload")
}

func TestApplyModelTransportErrorDegrades(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewTryOnClient(TryOnOptions{BaseURL: srv.URL, Logger: zerolog.Nop()})

	res := client.ApplyModel(context.Background(), "https://cdn.example.com/cutout.png",
		GarmentTops, GenderUnisex, nil)

	assert.Equal(t, StageDegraded, res.Status)
	assert.Equal(t, "https://cdn.example.com/cutout.png", res.ImageURL)
	assert.Contains(t, res.Message, "unavailable")
}

// Three failure modes, three different advisories. The session narrative
// depends on them being distinguishable.
func TestApplyModelFailureMessagesAreDistinct(t *testing.T) {
	decline := newTryOnForTest(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"success": false})
	})
	malformed := newTryOnForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{"))
	})
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	unreachable := NewTryOnClient(TryOnOptions{BaseURL: dead.URL, Logger: zerolog.Nop()})

	in := "https://cdn.example.com/cutout.png"
	msgs := map[string]bool{}
	for _, c := range []*TryOnClient{decline, malformed, unreachable} {
		res := c.ApplyModel(context.Background(), in, GarmentTops, GenderUnisex, nil)
		require.Equal(t, StageDegraded, res.Status)
		msgs[res.Message] = true
	}
	assert.Len(t, msgs, 3)
}
