package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/nimbus/internal/nimbus/domain"
)

func TestLoad_HTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "nimbus-test", r.UserAgent())
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer srv.Close()

	e := New(Options{UserAgent: "nimbus-test"})
	page, err := e.Load(context.Background(), srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/", page.URL)
	assert.Equal(t, "text/html; charset=utf-8", page.ContentType)
	assert.Equal(t, "<html><body>hi</body></html>", page.Body)
}

func TestLoad_Unsupported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/vnd.ms-excel")
		_, _ = w.Write([]byte("binary"))
	}))
	defer srv.Close()

	_, err := New(Options{}).Load(context.Background(), srv.URL+"/report.xls")
	var unsupported *domain.UnsupportedContentError
	require.True(t, errors.As(err, &unsupported))
	assert.Equal(t, "application/vnd.ms-excel", unsupported.Response.MIMEType)
	assert.Equal(t, srv.URL+"/report.xls", unsupported.Response.URL)
}

func TestLoad_SniffsMissingType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// an explicit empty header stops net/http from sniffing on its own
		w.Header()["Content-Type"] = nil
		if r.URL.Path == "/zip" {
			_, _ = w.Write([]byte("PK\x03\x04\x14\x00\x00\x00\x00\x00"))
			return
		}
		_, _ = w.Write([]byte("<!DOCTYPE html><html><body>sniffed</body></html>"))
	}))
	defer srv.Close()

	e := New(Options{})
	page, err := e.Load(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(page.ContentType, "text/html"))

	_, err = e.Load(context.Background(), srv.URL+"/zip")
	var unsupported *domain.UnsupportedContentError
	assert.True(t, errors.As(err, &unsupported))
}

func TestLoad_HTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, err := New(Options{}).Load(context.Background(), srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestLoad_BlockedRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/ads/landing", http.StatusFound)
	})
	mux.HandleFunc("/ads/landing", func(w http.ResponseWriter, r *http.Request) {
		t.Error("blocked redirect target was requested")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	e := New(Options{Allow: func(r domain.Request) bool { return !strings.Contains(r.URL, "/ads/") }})
	_, err := e.Load(context.Background(), srv.URL+"/start")
	assert.ErrorIs(t, err, ErrBlockedRedirect)
}

func TestLoad_FollowsAllowedRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("moved"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	page, err := New(Options{}).Load(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/new", page.URL)
}

func TestLoad_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(Options{}).Load(ctx, srv.URL)
	assert.Error(t, err)
}

func TestLoad_BadURL(t *testing.T) {
	_, err := New(Options{}).Load(context.Background(), "://nope")
	assert.Error(t, err)
}

func TestLoad_DocumentTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		if r.URL.Path == "/streamed" {
			// flushing first drops Content-Length
			w.(http.Flusher).Flush()
		}
		_, _ = w.Write([]byte(strings.Repeat("a", 17)))
	}))
	defer srv.Close()

	e := New(Options{MaxDocumentSize: 16})
	for _, path := range []string{"/sized", "/streamed"} {
		_, err := e.Load(context.Background(), srv.URL+path)
		assert.ErrorIs(t, err, ErrDocumentTooLarge, path)
	}

	page, err := New(Options{MaxDocumentSize: 17}).Load(context.Background(), srv.URL+"/streamed")
	require.NoError(t, err)
	assert.Len(t, page.Body, 17)
}
