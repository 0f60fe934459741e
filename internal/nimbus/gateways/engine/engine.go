// Package engine is a headless document loader over net/http. It stands in
// for the rendering engine: it fetches a document and returns its markup, and
// refuses content a browser would not display inline.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/haukened/nimbus/internal/nimbus/common/log"
	"github.com/haukened/nimbus/internal/nimbus/domain"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Nimbus/1.0"
	// MaxDocumentSize is the default limit on a document body.
	MaxDocumentSize = 32 << 20
)

// ErrTooManyRedirects is returned after maxRedirects hops.
var ErrTooManyRedirects = errors.New("engine: too many redirects")

// ErrDocumentTooLarge is returned for bodies over the document size limit.
var ErrDocumentTooLarge = errors.New("engine: document too large")

// ErrBlockedRedirect is returned when a redirect target is filtered.
var ErrBlockedRedirect = errors.New("engine: redirect blocked by filter")

const maxRedirects = 10

// inline lists the media types displayed as documents.
var inline = map[string]struct{}{
	"text/html":             {},
	"application/xhtml+xml": {},
	"text/plain":            {},
	"image/svg+xml":         {},
	"text/xml":              {},
	"application/xml":       {},
}

type Options struct {
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string
	// Allow filters redirect targets before they are requested. nil allows all.
	Allow func(domain.Request) bool
	// MaxDocumentSize limits the body read. Defaults to MaxDocumentSize.
	MaxDocumentSize int64
	Logger          log.Logger
}

type Engine struct {
	client    *http.Client
	userAgent string
	maxSize   int64
	allow     func(domain.Request) bool
	logger    log.Logger
}

func New(opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	if opts.MaxDocumentSize <= 0 {
		opts.MaxDocumentSize = MaxDocumentSize
	}
	e := &Engine{userAgent: opts.UserAgent, maxSize: opts.MaxDocumentSize, allow: opts.Allow, logger: opts.Logger}

	client := &http.Client{Timeout: opts.Timeout}
	if opts.Client != nil {
		c := *opts.Client
		client = &c
	}
	client.CheckRedirect = e.checkRedirect
	e.client = client
	return e
}

func (e *Engine) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= maxRedirects {
		return ErrTooManyRedirects
	}
	if e.allow != nil && !e.allow(domain.Request{URL: req.URL.String(), Type: domain.ResourceDocument}) {
		return fmt.Errorf("%w: %s", ErrBlockedRedirect, req.URL)
	}
	return nil
}

// Load fetches url. Content outside the inline set is reported as a
// *domain.UnsupportedContentError without reading the body.
func (e *Engine) Load(ctx context.Context, url string) (domain.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.Page{}, fmt.Errorf("engine: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := e.client.Do(req)
	if err != nil {
		return domain.Page{}, fmt.Errorf("engine: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Page{}, fmt.Errorf("engine: %s returned %s", url, resp.Status)
	}

	final := resp.Request.URL.String()
	declared := resp.Header.Get("Content-Type")
	mediaType := mediaTypeOf(declared)
	if mediaType != "" {
		if _, ok := inline[mediaType]; !ok {
			return domain.Page{}, &domain.UnsupportedContentError{Response: domain.Response{URL: final, MIMEType: declared}}
		}
	}

	if resp.ContentLength > e.maxSize {
		return domain.Page{}, fmt.Errorf("%w: %s is %d bytes", ErrDocumentTooLarge, url, resp.ContentLength)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, e.maxSize+1))
	if err != nil {
		return domain.Page{}, fmt.Errorf("engine: read %s: %w", url, err)
	}
	if int64(len(body)) > e.maxSize {
		return domain.Page{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrDocumentTooLarge, url, e.maxSize)
	}

	if mediaType == "" {
		// no declared type: sniff it the way a browser would
		detected := mimetype.Detect(body)
		declared = detected.String()
		mediaType = mediaTypeOf(declared)
		e.logger.Debug(map[string]any{"url": final, "detected": declared}, "engine_sniffed_type")
		if _, ok := inline[mediaType]; !ok {
			return domain.Page{}, &domain.UnsupportedContentError{Response: domain.Response{URL: final, MIMEType: declared}}
		}
	}

	return domain.Page{URL: final, ContentType: declared, Body: string(body)}, nil
}

func mediaTypeOf(declared string) string {
	if strings.TrimSpace(declared) == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		mt, _, _ = strings.Cut(declared, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
