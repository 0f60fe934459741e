// Package transfer fetches download bodies over HTTP and reports progress to
// the download coordinator.
package transfer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/haukened/nimbus/internal/nimbus/common/log"
	"github.com/haukened/nimbus/internal/nimbus/domain"
	"github.com/haukened/nimbus/internal/nimbus/services/downloads"
)

const chunkSize = 32 << 10

// ErrBlocked is returned by Begin when the filter rejects the source.
var ErrBlocked = errors.New("transfer: blocked by filter")

type Options struct {
	Client    *http.Client
	UserAgent string
	// Allow filters the source before any request is made. nil allows all.
	Allow  func(domain.Request) bool
	Logger log.Logger
}

// HTTP implements downloads.Transport.
type HTTP struct {
	client    *http.Client
	userAgent string
	allow     func(domain.Request) bool
	logger    log.Logger
}

func New(opts Options) *HTTP {
	if opts.Client == nil {
		// no overall timeout: downloads may legitimately run for hours
		opts.Client = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &HTTP{client: opts.Client, userAgent: opts.UserAgent, allow: opts.Allow, logger: opts.Logger}
}

// Begin validates the request and runs the transfer in its own goroutine.
func (h *HTTP) Begin(ctx context.Context, source string, r downloads.Reporter) error {
	if h.allow != nil && !h.allow(domain.Request{URL: source, Type: domain.ResourceOther}) {
		return fmt.Errorf("%w: %s", ErrBlocked, source)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}
	go h.run(req, r)
	return nil
}

func (h *HTTP) run(req *http.Request, r downloads.Reporter) {
	resp, err := h.client.Do(req)
	if err != nil {
		r.Complete(nil, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		r.Complete(nil, fmt.Errorf("transfer: %s returned %s", req.URL, resp.Status))
		return
	}

	total := resp.ContentLength
	var buf bytes.Buffer
	if total > 0 {
		buf.Grow(int(total))
	}
	chunk := make([]byte, chunkSize)
	var received int64
	for {
		n, err := resp.Body.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			received += int64(n)
			r.Progress(received, total)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			r.Complete(nil, err)
			return
		}
	}
	h.logger.Debug(map[string]any{"url": req.URL.String(), "bytes": received}, "transfer_complete")
	r.Complete(buf.Bytes(), nil)
}

var _ downloads.Transport = (*HTTP)(nil)
