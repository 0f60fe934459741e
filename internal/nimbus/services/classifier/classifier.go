// Package classifier decides what the browser does with a response the engine
// will not display on its own.
package classifier

import (
	"mime"
	"net/url"
	"strings"

	"github.com/haukened/nimbus/internal/nimbus/common/log"
	"github.com/haukened/nimbus/internal/nimbus/domain"
)

// textualMarkers identify MIME types whose body can be saved as text.
var textualMarkers = []string{"text", "svg", "html", "xml", "xhtml"}

// renderable are the types the engine displays inline.
var renderable = map[string]struct{}{
	"text/html":             {},
	"application/xhtml+xml": {},
	"text/plain":            {},
	"image/svg+xml":         {},
}

type Options struct {
	Viewers        []domain.Viewer
	ViewersEnabled bool
	Logger         log.Logger
}

// Classifier maps a response and its context to a ContentDecision. It holds
// only configuration, so equal inputs always produce equal decisions.
type Classifier struct {
	viewers        []domain.Viewer
	viewersEnabled bool
	logger         log.Logger
}

func New(opts Options) *Classifier {
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Classifier{
		viewers:        append([]domain.Viewer(nil), opts.Viewers...),
		viewersEnabled: opts.ViewersEnabled,
		logger:         opts.Logger,
	}
}

// Classify applies, in order:
//
//  1. local files are never sent to a remote viewer
//  2. a page already shown through a viewer is never redirected again
//  3. private sessions never use remote viewers
//  4. a URL whose extension a viewer handles is redirected to that viewer
//  5. textual content the user asked to save, when it is the document on
//     screen, is saved as text
//  6. inline-renderable content that was not a save request is rendered
//  7. everything else is downloaded
func (c *Classifier) Classify(in domain.ClassifyInput) domain.ContentDecision {
	if c == nil {
		return domain.DownloadDecision()
	}
	if c.viewersEnabled && !isLocalFile(in.URL) && !in.UsingExternalViewer && !in.Private {
		for _, v := range c.viewers {
			if v.Handles(in.URL) {
				return domain.ContentDecision{
					Action:    domain.ActionRedirectToViewer,
					ViewerURL: v.URLFor(in.URL),
					Viewer:    v.Name,
				}
			}
		}
	}

	mediaType := mediaTypeOf(in.MIMEType)
	if in.SaveRequested && IsTextual(mediaType) && sameDocument(in.URL, in.CurrentDocument) {
		return domain.ContentDecision{Action: domain.ActionSaveAsText}
	}
	if !in.SaveRequested {
		if _, ok := renderable[mediaType]; ok {
			return domain.ContentDecision{Action: domain.ActionRender}
		}
	}
	if mediaType == "" {
		c.logger.Debug(map[string]any{"url": in.URL}, "classify_unknown_mime")
	}
	return domain.DownloadDecision()
}

// IsViewerURL reports whether rawURL is a page served by one of the
// configured viewers.
func (c *Classifier) IsViewerURL(rawURL string) bool {
	if c == nil || rawURL == "" {
		return false
	}
	for _, v := range c.viewers {
		if p := v.Prefix(); p != "" && strings.HasPrefix(rawURL, p) {
			return true
		}
	}
	return false
}

// IsTextual reports whether a media type can be saved as text.
func IsTextual(mediaType string) bool {
	mediaType = strings.ToLower(mediaType)
	if mediaType == "" {
		return false
	}
	for _, m := range textualMarkers {
		if strings.Contains(mediaType, m) {
			return true
		}
	}
	return false
}

func mediaTypeOf(declared string) string {
	declared = strings.TrimSpace(declared)
	if declared == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(declared)
	if err != nil {
		// keep whatever precedes the parameters
		mt, _, _ = strings.Cut(declared, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

func isLocalFile(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Scheme, "file") {
		return true
	}
	return u.Scheme == "" && strings.HasPrefix(rawURL, "/")
}

// sameDocument compares two URLs ignoring the fragment.
func sameDocument(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	a, _, _ = strings.Cut(a, "#")
	b, _, _ = strings.Cut(b, "#")
	return a == b
}
