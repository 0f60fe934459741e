package domain

import "fmt"

// LoadState is the terminal state of one navigation.
type LoadState uint8

const (
	LoadBlocked LoadState = iota
	LoadSucceeded
	LoadOfflineCacheHit
	LoadErrorPage
	LoadStopped
	LoadUnsupported
)

func (s LoadState) String() string {
	switch s {
	case LoadBlocked:
		return "blocked"
	case LoadSucceeded:
		return "succeeded"
	case LoadOfflineCacheHit:
		return "offline_cache_hit"
	case LoadErrorPage:
		return "error_page"
	case LoadStopped:
		return "stopped"
	case LoadUnsupported:
		return "unsupported"
	default:
		return fmt.Sprintf("LoadState(%d)", s)
	}
}

// Page is a successfully loaded document.
type Page struct {
	URL         string // final URL after redirects
	ContentType string
	Body        string
}

// Response describes a response the engine refused to render.
type Response struct {
	URL      string
	MIMEType string
}

// LoadResult is what a navigation produced for display.
type LoadResult struct {
	URL      string
	State    LoadState
	Content  string          // markup to display: page, cached copy or error page
	Decision BlockDecision   // set when State is LoadBlocked
	Handling ContentDecision // set when State is LoadUnsupported
}

// UnsupportedContentError is returned by an engine for a response it will
// not display, so the caller can classify it.
type UnsupportedContentError struct {
	Response Response
}

func (e *UnsupportedContentError) Error() string {
	return fmt.Sprintf("unsupported content %q at %s", e.Response.MIMEType, e.Response.URL)
}
