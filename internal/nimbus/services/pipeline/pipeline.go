// Package pipeline runs every navigation through filtering, loading,
// classification and the offline cache fallback.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/haukened/nimbus/internal/nimbus/common/log"
	"github.com/haukened/nimbus/internal/nimbus/domain"
	"github.com/haukened/nimbus/internal/nimbus/services/downloads"
)

// ErrNotSaved is returned by Save for documents an external viewer opens.
var ErrNotSaved = errors.New("pipeline: document not saved")

// Session is the state shared by the tabs of one browsing session. It is
// owned by the caller and handed to the pipeline at construction.
type Session struct {
	ID      string
	Private bool
}

type Options struct {
	Session      Session
	Matcher      Matcher
	Classifier   Classifier
	Cache        OfflineCache
	Downloads    Downloader
	Engine       Engine
	Connectivity Connectivity
	Destinations DestinationChooser
	Logger       log.Logger
}

// Pipeline holds the collaborators shared by every tab.
type Pipeline struct {
	session      Session
	matcher      Matcher
	classifier   Classifier
	cache        OfflineCache
	downloads    Downloader
	engine       Engine
	connectivity Connectivity
	destinations DestinationChooser
	logger       log.Logger
}

func New(opts Options) (*Pipeline, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("pipeline: engine is required")
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Pipeline{
		session:      opts.Session,
		matcher:      opts.Matcher,
		classifier:   opts.Classifier,
		cache:        opts.Cache,
		downloads:    opts.Downloads,
		engine:       opts.Engine,
		connectivity: opts.Connectivity,
		destinations: opts.Destinations,
		logger:       opts.Logger,
	}, nil
}

// Session returns the session the pipeline serves.
func (p *Pipeline) Session() Session { return p.session }

// Decide filters one request. A missing or failing matcher allows it.
func (p *Pipeline) Decide(req domain.Request) (dec domain.BlockDecision) {
	if p.matcher == nil {
		return domain.AllowDecision()
	}
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error(map[string]any{"url": req.URL, "panic": fmt.Sprint(r)}, "filter_failed_allowing")
			dec = domain.AllowDecision()
		}
	}()
	return p.matcher.Decide(req)
}

// AllowRequest reports whether a request may be sent. Engines call it for
// every sub-resource before any network I/O.
func (p *Pipeline) AllowRequest(req domain.Request) bool {
	dec := p.Decide(req)
	if dec.Blocked {
		p.logger.Debug(map[string]any{"url": req.URL, "document": req.DocumentURL, "rule": dec.MatchedRule}, "request_blocked")
	}
	return !dec.Blocked
}

func (p *Pipeline) classify(in domain.ClassifyInput) domain.ContentDecision {
	if p.classifier == nil {
		return domain.DownloadDecision()
	}
	return p.classifier.Classify(in)
}

func (p *Pipeline) online(ctx context.Context) bool {
	if p.connectivity == nil {
		return true
	}
	return p.connectivity.Online(ctx)
}

// NewTab opens a tab with no document.
func (p *Pipeline) NewTab() *Tab {
	return &Tab{p: p}
}

// Tab is one browsing context: the document it shows and the navigation in
// flight, if any.
type Tab struct {
	p *Pipeline

	mu          sync.Mutex
	current     domain.Page
	usingViewer bool
	generation  uint64
	cancel      context.CancelFunc
}

// Current returns the document the tab shows.
func (t *Tab) Current() domain.Page {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// begin starts a navigation, cancelling the previous one.
func (t *Tab) begin(ctx context.Context) (context.Context, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
	nctx, cancel := context.WithCancel(ctx)
	t.generation++
	t.cancel = cancel
	return nctx, t.generation
}

// end releases a navigation. It reports false when a newer navigation or
// Stop superseded gen.
func (t *Tab) end(gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.generation || t.cancel == nil {
		return false
	}
	t.cancel()
	t.cancel = nil
	return true
}

// Stop aborts the navigation in flight. Its content is never cached.
func (t *Tab) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
}

// Navigate loads url as the tab's top-level document:
//
//	Requested -> Blocked | Allowed
//	Allowed   -> Succeeded (cached unless private) | Failed
//	Failed    -> OfflineCacheHit | ErrorPage
//
// Unsupported responses are classified and handled by HandleUnsupported.
// A viewer redirect is followed at most once.
func (t *Tab) Navigate(ctx context.Context, url string) domain.LoadResult {
	return t.navigate(ctx, url, false)
}

func (t *Tab) navigate(ctx context.Context, url string, inViewer bool) domain.LoadResult {
	p := t.p
	req := domain.Request{URL: url, Type: domain.ResourceDocument}
	if dec := p.Decide(req); dec.Blocked {
		p.logger.Info(map[string]any{"url": url, "rule": dec.MatchedRule, "source": dec.Source}, "navigation_blocked")
		return domain.LoadResult{
			URL:      url,
			State:    domain.LoadBlocked,
			Content:  blockedPage(url, dec.MatchedRule).Render(),
			Decision: dec,
		}
	}

	nctx, gen := t.begin(ctx)
	page, err := p.engine.Load(nctx, url)
	stopped := nctx.Err() != nil
	if !t.end(gen) || stopped {
		p.logger.Debug(map[string]any{"url": url}, "navigation_stopped")
		return domain.LoadResult{URL: url, State: domain.LoadStopped}
	}

	var unsupported *domain.UnsupportedContentError
	switch {
	case errors.As(err, &unsupported):
		handling := t.handleUnsupported(ctx, unsupported.Response, inViewer)
		if handling.Action == domain.ActionRedirectToViewer && !inViewer {
			res := t.navigate(ctx, handling.ViewerURL, true)
			res.Handling = handling
			return res
		}
		return domain.LoadResult{URL: url, State: domain.LoadUnsupported, Handling: handling}
	case err != nil:
		return t.fallback(ctx, url, err)
	}

	t.mu.Lock()
	t.current = page
	t.usingViewer = p.classifier != nil && p.classifier.IsViewerURL(page.URL)
	t.mu.Unlock()

	if !p.session.Private && p.cache != nil {
		p.cache.Put(url, page.Body)
		if page.URL != "" && page.URL != url {
			p.cache.Put(page.URL, page.Body)
		}
	}
	p.logger.Debug(map[string]any{"url": url, "final": page.URL, "bytes": len(page.Body)}, "navigation_succeeded")
	return domain.LoadResult{URL: url, State: domain.LoadSucceeded, Content: page.Body}
}

// fallback handles a failed load: the offline copy when the network is gone,
// a generic error page otherwise.
func (t *Tab) fallback(ctx context.Context, url string, cause error) domain.LoadResult {
	p := t.p
	online := p.online(ctx)
	p.logger.Warn(map[string]any{"url": url, "error": cause, "online": online}, "navigation_failed")

	if !online {
		if !p.session.Private && p.cache != nil {
			if body, err := p.cache.Get(url); err == nil {
				p.logger.Info(map[string]any{"url": url}, "offline_cache_hit")
				return domain.LoadResult{URL: url, State: domain.LoadOfflineCacheHit, Content: body}
			}
		}
		return domain.LoadResult{URL: url, State: domain.LoadErrorPage, Content: offlinePage(url).Render()}
	}
	return domain.LoadResult{URL: url, State: domain.LoadErrorPage, Content: loadFailedPage(url, cause).Render()}
}

// HandleUnsupported classifies a response the engine refused and performs
// the matching side effect. Viewer redirects are left to the caller.
func (t *Tab) HandleUnsupported(ctx context.Context, resp domain.Response) domain.ContentDecision {
	return t.handleUnsupported(ctx, resp, false)
}

func (t *Tab) handleUnsupported(ctx context.Context, resp domain.Response, inViewer bool) domain.ContentDecision {
	dec, err := t.handle(ctx, resp, false, inViewer)
	if err != nil {
		t.p.logger.Warn(map[string]any{"url": resp.URL, "action": dec.Action.String(), "error": err}, "unsupported_content_failed")
	}
	return dec
}

// Save stores the displayed document: as text when it is textual, otherwise
// by downloading it again. A document an external viewer would open is not
// saved; Save returns the viewer decision together with ErrNotSaved.
func (t *Tab) Save(ctx context.Context) (domain.ContentDecision, error) {
	cur := t.Current()
	if cur.URL == "" {
		return domain.ContentDecision{}, fmt.Errorf("pipeline: nothing to save")
	}
	dec, err := t.handle(ctx, domain.Response{URL: cur.URL, MIMEType: cur.ContentType}, true, false)
	if err == nil && dec.Action == domain.ActionRedirectToViewer {
		err = fmt.Errorf("%w: %s opens in %s", ErrNotSaved, cur.URL, dec.Viewer)
	}
	return dec, err
}

// inViewer marks a response fetched through a viewer redirect.
func (t *Tab) handle(ctx context.Context, resp domain.Response, save, inViewer bool) (domain.ContentDecision, error) {
	p := t.p
	t.mu.Lock()
	cur := t.current
	usingViewer := t.usingViewer
	t.mu.Unlock()

	dec := p.classify(domain.ClassifyInput{
		URL:                 resp.URL,
		MIMEType:            resp.MIMEType,
		UsingExternalViewer: usingViewer || inViewer || (p.classifier != nil && p.classifier.IsViewerURL(resp.URL)),
		CurrentDocument:     cur.URL,
		SaveRequested:       save,
		Private:             p.session.Private,
	})
	p.logger.Debug(map[string]any{"url": resp.URL, "mime": resp.MIMEType, "action": dec.Action.String()}, "content_classified")

	switch dec.Action {
	case domain.ActionSaveAsText:
		return dec, t.saveText(cur)
	case domain.ActionDownload:
		return dec, t.download(ctx, resp.URL)
	}
	return dec, nil
}

func (t *Tab) saveText(page domain.Page) error {
	p := t.p
	if p.destinations == nil {
		return fmt.Errorf("pipeline: no destination chooser")
	}
	dest, err := p.destinations.Choose(page.URL, "")
	if err != nil {
		return err
	}
	if err := downloads.WriteFile(dest, []byte(page.Body)); err != nil {
		return err
	}
	p.logger.Info(map[string]any{"url": page.URL, "destination": dest}, "page_saved")
	return nil
}

func (t *Tab) download(ctx context.Context, source string) error {
	p := t.p
	if p.downloads == nil || p.destinations == nil {
		return fmt.Errorf("pipeline: downloads are not configured")
	}
	dest, err := p.destinations.Choose(source, "")
	if err != nil {
		return err
	}
	// downloads outlive the navigation that started them
	_, err = p.downloads.Start(context.WithoutCancel(ctx), source, dest)
	return err
}
