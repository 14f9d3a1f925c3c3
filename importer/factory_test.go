package importer

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notifyCloseBody struct {
	io.ReadCloser
	once    sync.Once
	onClose func()
}

func (b *notifyCloseBody) Close() error {
	b.once.Do(b.onClose)
	return b.ReadCloser.Close()
}

// bodyTrackingTransport counts response bodies handed out that have not
// been closed yet.
type bodyTrackingTransport struct {
	next http.RoundTripper
	mu   sync.Mutex
	open int
}

func (t *bodyTrackingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.open++
	t.mu.Unlock()
	resp.Body = &notifyCloseBody{ReadCloser: resp.Body, onClose: func() {
		t.mu.Lock()
		t.open--
		t.mu.Unlock()
	}}
	return resp, nil
}

func (t *bodyTrackingTransport) openBodies() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

func TestResolveShortenedURLFollowsRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/short" {
			http.Redirect(w, r, "/itm/123", http.StatusFound)
			return
		}
		w.Write([]byte("listing"))
	}))
	defer srv.Close()

	transport := &bodyTrackingTransport{next: srv.Client().Transport}
	client := &http.Client{Transport: transport}

	resolved, err := resolveShortenedURL(context.Background(), client, srv.URL+"/short")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/itm/123", resolved)
	assert.Zero(t, transport.openBodies())
}

func TestResolveShortenedURLRetriesWithGetAndClosesHeadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if r.URL.Path == "/short" {
			http.Redirect(w, r, "/itm/456", http.StatusFound)
			return
		}
		w.Write([]byte("listing"))
	}))
	defer srv.Close()

	transport := &bodyTrackingTransport{next: srv.Client().Transport}
	client := &http.Client{Transport: transport}

	resolved, err := resolveShortenedURL(context.Background(), client, srv.URL+"/short")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/itm/456", resolved)
	assert.Zero(t, transport.openBodies(), "the refused HEAD response must be closed before the GET retry")
}
