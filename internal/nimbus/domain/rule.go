package domain

import (
	"fmt"
	"strings"
	"time"
)

// AnchorKind describes how the start of a rule pattern is anchored.
type AnchorKind uint8

const (
	// AnchorNone matches the pattern anywhere in the URL.
	AnchorNone AnchorKind = iota
	// AnchorStart ("|pattern") matches at the very start of the URL.
	AnchorStart
	// AnchorDomain ("||host") matches at the start of the host or any subdomain boundary.
	AnchorDomain
)

func (k AnchorKind) String() string {
	switch k {
	case AnchorNone:
		return "none"
	case AnchorStart:
		return "start"
	case AnchorDomain:
		return "domain"
	default:
		return fmt.Sprintf("AnchorKind(%d)", k)
	}
}

// Party restricts a rule to first- or third-party requests.
type Party uint8

const (
	PartyAny Party = iota
	PartyThird
	PartyFirst
)

// RuleOptions are the "$..." modifiers of a network rule.
type RuleOptions struct {
	Types           ResourceType // resource types the rule applies to
	Party           Party
	Domains         []string // rule applies only to documents on these domains
	ExcludedDomains []string // rule never applies to documents on these domains
	MatchCase       bool
	Document        bool // exception that whitelists every request made by a matching page
}

// Rule is a single parsed network filter line. Rules are immutable values;
// a changed list produces new rules rather than edits to existing ones.
type Rule struct {
	Raw       string     // original line, trimmed
	Source    string     // list the rule came from
	AddedAt   time.Time  // ingestion timestamp
	Exception bool       // "@@" rule
	Pattern   string     // pattern body with anchors and options removed
	Anchor    AnchorKind // start anchoring
	EndAnchor bool       // trailing "|"
	Regex     bool       // "/.../" rule; Pattern holds the expression
	Host      string     // anchor host for AnchorDomain rules, "" if not indexable
	Options   RuleOptions
}

// Validate checks a Rule for required fields.
func (r Rule) Validate() error {
	if strings.TrimSpace(r.Raw) == "" {
		return fmt.Errorf("rule text must not be empty")
	}
	if r.Source == "" {
		return fmt.Errorf("rule source must not be empty")
	}
	if r.AddedAt.IsZero() {
		return fmt.Errorf("rule addedAt must be set")
	}
	if r.Pattern == "" && r.Host == "" && r.Anchor == AnchorNone {
		return fmt.Errorf("rule pattern must not be empty")
	}
	if r.Options.Types == 0 {
		return fmt.Errorf("rule applies to no resource types")
	}
	return nil
}

// AppliesToDocument reports whether the rule's domain= option admits a
// document hosted on docHost. Subdomains of a listed domain count.
func (r Rule) AppliesToDocument(docHost string) bool {
	for _, d := range r.Options.ExcludedDomains {
		if hostMatches(docHost, d) {
			return false
		}
	}
	if len(r.Options.Domains) == 0 {
		return true
	}
	for _, d := range r.Options.Domains {
		if hostMatches(docHost, d) {
			return true
		}
	}
	return false
}

func hostMatches(host, domain string) bool {
	if host == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}
