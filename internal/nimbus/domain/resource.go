package domain

import (
	"fmt"
	"strings"
)

// ResourceType identifies what kind of load a request is for. Values are
// bit flags so rule options can carry a set of them.
type ResourceType uint16

const (
	ResourceOther ResourceType = 1 << iota
	ResourceDocument
	ResourceSubdocument
	ResourceScript
	ResourceImage
	ResourceStylesheet
	ResourceObject
	ResourceXMLHTTPRequest
	ResourceFont
	ResourceMedia
)

// AllResourceTypes is the set a rule applies to when it names no type.
// Top-level documents are included, so a plain host rule also stops navigation.
const AllResourceTypes = ResourceOther | ResourceDocument | ResourceSubdocument | ResourceScript |
	ResourceImage | ResourceStylesheet | ResourceObject | ResourceXMLHTTPRequest | ResourceFont | ResourceMedia

var resourceNames = map[string]ResourceType{
	"other":          ResourceOther,
	"document":       ResourceDocument,
	"subdocument":    ResourceSubdocument,
	"script":         ResourceScript,
	"image":          ResourceImage,
	"stylesheet":     ResourceStylesheet,
	"object":         ResourceObject,
	"xmlhttprequest": ResourceXMLHTTPRequest,
	"font":           ResourceFont,
	"media":          ResourceMedia,
}

// ParseResourceType converts an option name ("script", "image", ...) into a
// ResourceType. Matching is case-insensitive.
func ParseResourceType(s string) (ResourceType, error) {
	if t, ok := resourceNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return t, nil
	}
	return 0, fmt.Errorf("unsupported resource type: %q", s)
}

// String returns the option name of a single resource type.
func (t ResourceType) String() string {
	for name, v := range resourceNames {
		if v == t {
			return name
		}
	}
	return fmt.Sprintf("ResourceType(%d)", uint16(t))
}

// Has reports whether the set t contains every bit of o.
func (t ResourceType) Has(o ResourceType) bool { return o != 0 && t&o == o }
