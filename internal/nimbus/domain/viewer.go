package domain

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ViewerPlaceholder marks where the original URL goes in a viewer template.
const ViewerPlaceholder = "{url}"

// Viewer is a remote service that renders content the engine cannot, such as
// office documents, by loading the original URL itself.
type Viewer struct {
	Name       string
	Template   string   // contains ViewerPlaceholder once
	Extensions []string // e.g. ".pdf"
}

// Validate checks the template carries exactly one placeholder.
func (v Viewer) Validate() error {
	if strings.TrimSpace(v.Name) == "" {
		return fmt.Errorf("viewer name must not be empty")
	}
	if n := strings.Count(v.Template, ViewerPlaceholder); n != 1 {
		return fmt.Errorf("viewer %q: template must contain %s exactly once, found %d", v.Name, ViewerPlaceholder, n)
	}
	if len(v.Extensions) == 0 {
		return fmt.Errorf("viewer %q: no extensions", v.Name)
	}
	return nil
}

// URLFor applies the template to target, query-escaping it.
func (v Viewer) URLFor(target string) string {
	return strings.Replace(v.Template, ViewerPlaceholder, url.QueryEscape(target), 1)
}

// Prefix is the template text before the placeholder. Any URL starting with it
// is a page of this viewer.
func (v Viewer) Prefix() string {
	if i := strings.Index(v.Template, ViewerPlaceholder); i >= 0 {
		return v.Template[:i]
	}
	return v.Template
}

// Handles reports whether the path of rawURL ends in one of the viewer's
// extensions. Extensions compare case-insensitively, with or without the dot.
func (v Viewer) Handles(rawURL string) bool {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return false
	}
	for _, e := range v.Extensions {
		e = strings.ToLower(strings.TrimSpace(e))
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if e == ext {
			return true
		}
	}
	return false
}
