package pipeline

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCutoutForTest(t *testing.T, handler http.HandlerFunc) (*CutoutClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewCutoutClient(CutoutOptions{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		HTTPClient: srv.Client(),
		Logger:     zerolog.Nop(),
	})
	return client, srv
}

func TestRemoveBackgroundUploadsBytes(t *testing.T) {
	client, _ := newCutoutForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/cutout", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Api-Key"))
		require.NoError(t, r.ParseMultipartForm(4<<20))

		file, header, err := r.FormFile("image")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "tee.png", header.Filename)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":           true,
			"processedImageUrl": "https://cdn.example.com/cut/tee.png",
		})
	})

	res := client.RemoveBackground(context.Background(), ImageFromBytes([]byte("fake-png"), "tee.png"))

	assert.Equal(t, StageSucceeded, res.Status)
	assert.Equal(t, "https://cdn.example.com/cut/tee.png", res.ImageURL)
}

func TestRemoveBackgroundSendsURLAsJSON(t *testing.T) {
	client, _ := newCutoutForTest(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req struct {
			ImageURL string `json:"image_url"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://host.example.com/raw.jpg", req.ImageURL)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":           true,
			"processedImageUrl": "https://cdn.example.com/cut/raw.png",
		})
	})

	res := client.RemoveBackground(context.Background(), ImageFromURL("https://host.example.com/raw.jpg"))

	assert.Equal(t, StageSucceeded, res.Status)
	assert.Equal(t, "https://cdn.example.com/cut/raw.png", res.ImageURL)
}

func TestRemoveBackgroundServerError(t *testing.T) {
	client, _ := newCutoutForTest(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal", http.StatusInternalServerError)
	})

	src := ImageFromURL("https://host.example.com/raw.jpg")
	res := client.RemoveBackground(context.Background(), src)

	assert.Equal(t, StageFailed, res.Status)
	assert.Equal(t, src.Ref(), res.ImageURL, "original reference survives the failure")
	assert.Contains(t, res.Message, "500")
}

func TestRemoveBackgroundServiceDecline(t *testing.T) {
	client, _ := newCutoutForTest(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "Could not find a garment in this photo.",
		})
	})

	src := ImageFromBytes([]byte("x"), "blur.jpg")
	res := client.RemoveBackground(context.Background(), src)

	assert.Equal(t, StageFailed, res.Status)
	assert.Equal(t, "upload://blur.jpg", res.ImageURL)
	assert.Equal(t, "Could not find a garment in this photo.", res.Message, "service message is surfaced verbatim")
}

func TestRemoveBackgroundMalformedResponse(t *testing.T) {
	client, _ := newCutoutForTest(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>gateway timeout</html>"))
	})

	src := ImageFromURL("https://host.example.com/raw.jpg")
	res := client.RemoveBackground(context.Background(), src)

	assert.Equal(t, StageFailed, res.Status)
	assert.Equal(t, src.Ref(), res.ImageURL)
	assert.True(t, strings.Contains(res.Message, "unexpected payload"))
}

func TestRemoveBackgroundTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // dead endpoint
	client := NewCutoutClient(CutoutOptions{BaseURL: srv.URL, Logger: zerolog.Nop()})

	src := ImageFromURL("https://host.example.com/raw.jpg")
	res := client.RemoveBackground(context.Background(), src)

	assert.Equal(t, StageFailed, res.Status)
	assert.Equal(t, src.Ref(), res.ImageURL)
	assert.Contains(t, res.Message, "unreachable")
}
