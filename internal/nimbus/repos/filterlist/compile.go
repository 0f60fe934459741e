package filterlist

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/haukened/nimbus/internal/nimbus/domain"
)

const (
	// domainAnchorPrefix matches a scheme and any run of subdomain labels,
	// so "||example.com" also covers "https://ads.example.com".
	domainAnchorPrefix = `^[A-Za-z][A-Za-z0-9+.\-]*://(?:[^/?#]*\.)?`
	// separatorClass is the "^" placeholder: any character that is not a
	// letter, digit or one of "_-.%", or the end of the URL.
	separatorClass = `(?:[^\w\-.%]|$)`
)

// compiledRule is the matcher form of a domain.Rule.
type compiledRule struct {
	rule   domain.Rule
	re     *regexp.Regexp // nil when substr is used
	substr string         // plain substring pattern, lowercased unless match-case
}

// compileRule turns a parsed rule into its matcher form. Plain patterns with
// no anchors or wildcards become substring checks; everything else is
// translated to a regular expression.
func compileRule(r domain.Rule) (*compiledRule, error) {
	c := &compiledRule{rule: r}
	if isPlainPattern(r) {
		c.substr = r.Pattern
		if !r.Options.MatchCase {
			c.substr = strings.ToLower(c.substr)
		}
		return c, nil
	}

	expr := r.Pattern
	if !r.Regex {
		expr = patternToRegexp(r)
	}
	if !r.Options.MatchCase {
		expr = "(?i)" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", r.Raw, err)
	}
	c.re = re
	return c, nil
}

func isPlainPattern(r domain.Rule) bool {
	return !r.Regex && r.Anchor == domain.AnchorNone && !r.EndAnchor && !strings.ContainsAny(r.Pattern, "*^")
}

func patternToRegexp(r domain.Rule) string {
	var b strings.Builder
	switch r.Anchor {
	case domain.AnchorDomain:
		b.WriteString(domainAnchorPrefix)
	case domain.AnchorStart:
		b.WriteByte('^')
	}
	for _, ch := range r.Pattern {
		switch ch {
		case '*':
			b.WriteString(".*")
		case '^':
			b.WriteString(separatorClass)
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	if r.EndAnchor {
		b.WriteByte('$')
	}
	return b.String()
}

// matchURL reports whether the rule pattern matches the URL. lowerURL is the
// lowercased URL, computed once per request.
func (c *compiledRule) matchURL(url, lowerURL string) bool {
	if c.re != nil {
		return c.re.MatchString(url)
	}
	if c.rule.Options.MatchCase {
		return strings.Contains(url, c.substr)
	}
	return strings.Contains(lowerURL, c.substr)
}

// appliesTo checks the rule options against a request context.
func (c *compiledRule) appliesTo(t domain.ResourceType, thirdParty bool, docHost string) bool {
	o := c.rule.Options
	if !o.Types.Has(t) {
		return false
	}
	switch o.Party {
	case domain.PartyThird:
		if !thirdParty {
			return false
		}
	case domain.PartyFirst:
		if thirdParty {
			return false
		}
	}
	return c.rule.AppliesToDocument(docHost)
}
