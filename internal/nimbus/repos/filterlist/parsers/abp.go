package parsers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	logpkg "github.com/haukened/nimbus/internal/nimbus/common/log"
	"github.com/haukened/nimbus/internal/nimbus/domain"
)

// cosmetic rule separators; these act on the DOM and are not network rules.
var cosmeticMarkers = []string{"##", "#@#", "#?#", "#$#", "#%#"}

// ParseRule parses one Adblock Plus style line into a network Rule.
//
// It returns ErrNotNetworkRule for blank lines, "!" comments, "[Adblock ...]"
// headers and cosmetic rules, and an error wrapping ErrMalformedRule for lines
// it cannot interpret (unknown options, empty patterns, bad anchors).
func ParseRule(line, source string, now time.Time) (domain.Rule, error) {
	raw := strings.TrimSpace(stripLineBOM(line))
	if raw == "" || strings.HasPrefix(raw, "!") || strings.HasPrefix(raw, "[") {
		return domain.Rule{}, ErrNotNetworkRule
	}
	for _, m := range cosmeticMarkers {
		if strings.Contains(raw, m) {
			return domain.Rule{}, ErrNotNetworkRule
		}
	}

	rule := domain.Rule{Raw: raw, Source: source, AddedAt: now}
	body := raw
	if strings.HasPrefix(body, "@@") {
		rule.Exception = true
		body = body[2:]
	}

	body, optText := splitOptions(body)
	opts, err := parseOptions(optText)
	if err != nil {
		return domain.Rule{}, err
	}
	if opts.Document && !rule.Exception {
		// a blocking "$document" rule is just a rule restricted to documents
		opts.Document = false
	}
	rule.Options = opts

	if err := parsePattern(&rule, body); err != nil {
		return domain.Rule{}, err
	}
	if err := rule.Validate(); err != nil {
		return domain.Rule{}, fmt.Errorf("%w: %v", ErrMalformedRule, err)
	}
	return rule, nil
}

// splitOptions separates "pattern$opt1,opt2". A "/regex/" without options
// may itself contain '$' and is returned whole.
func splitOptions(body string) (pattern, options string) {
	idx := strings.LastIndexByte(body, '$')
	if idx < 0 {
		return body, ""
	}
	if len(body) >= 2 && strings.HasPrefix(body, "/") && strings.HasSuffix(body, "/") {
		return body, ""
	}
	return body[:idx], body[idx+1:]
}

func parseOptions(text string) (domain.RuleOptions, error) {
	var (
		out      domain.RuleOptions
		included domain.ResourceType
		excluded domain.ResourceType
	)
	if strings.TrimSpace(text) == "" {
		out.Types = domain.AllResourceTypes
		return out, nil
	}
	for _, opt := range strings.Split(text, ",") {
		opt = strings.ToLower(strings.TrimSpace(opt))
		if opt == "" {
			continue
		}
		neg := strings.HasPrefix(opt, "~")
		name := strings.TrimPrefix(opt, "~")

		switch {
		case name == "third-party" || name == "3p":
			out.Party = domain.PartyThird
			if neg {
				out.Party = domain.PartyFirst
			}
		case name == "first-party" || name == "1p":
			out.Party = domain.PartyFirst
			if neg {
				out.Party = domain.PartyThird
			}
		case name == "match-case" && !neg:
			out.MatchCase = true
		case strings.HasPrefix(name, "domain=") && !neg:
			if err := parseDomainOption(&out, strings.TrimPrefix(name, "domain=")); err != nil {
				return domain.RuleOptions{}, err
			}
		default:
			t, err := domain.ParseResourceType(name)
			if err != nil {
				return domain.RuleOptions{}, fmt.Errorf("%w: unsupported option %q", ErrMalformedRule, opt)
			}
			if neg {
				excluded |= t
				continue
			}
			included |= t
			if t == domain.ResourceDocument {
				out.Document = true
			}
		}
	}

	if included == 0 {
		included = domain.AllResourceTypes
	}
	out.Types = included &^ excluded
	if out.Types == 0 {
		return domain.RuleOptions{}, fmt.Errorf("%w: options exclude every resource type", ErrMalformedRule)
	}
	return out, nil
}

func parseDomainOption(o *domain.RuleOptions, value string) error {
	for _, d := range strings.Split(value, "|") {
		neg := strings.HasPrefix(d, "~")
		host := normalizeHost(strings.TrimPrefix(d, "~"))
		if !isValidHostPattern(host) {
			return fmt.Errorf("%w: invalid domain option %q", ErrMalformedRule, d)
		}
		if neg {
			o.ExcludedDomains = append(o.ExcludedDomains, host)
		} else {
			o.Domains = append(o.Domains, host)
		}
	}
	return nil
}

// parsePattern fills the anchor, regex and host fields of rule from body.
func parsePattern(rule *domain.Rule, body string) error {
	if len(body) >= 2 && strings.HasPrefix(body, "/") && strings.HasSuffix(body, "/") {
		rule.Regex = true
		rule.Pattern = body[1 : len(body)-1]
		if rule.Pattern == "" {
			return fmt.Errorf("%w: empty regex", ErrMalformedRule)
		}
		return nil
	}

	switch {
	case strings.HasPrefix(body, "||"):
		rule.Anchor = domain.AnchorDomain
		body = body[2:]
	case strings.HasPrefix(body, "|"):
		rule.Anchor = domain.AnchorStart
		body = body[1:]
	}
	if strings.HasSuffix(body, "|") {
		rule.EndAnchor = true
		body = strings.TrimSuffix(body, "|")
	}

	if strings.Trim(body, "*^") == "" {
		return fmt.Errorf("%w: pattern matches everything", ErrMalformedRule)
	}
	if strings.ContainsAny(body, " \t") {
		return fmt.Errorf("%w: whitespace in pattern", ErrMalformedRule)
	}
	rule.Pattern = body

	if rule.Anchor == domain.AnchorDomain {
		end := strings.IndexAny(body, "^/*|:?")
		host := body
		if end >= 0 {
			host = body[:end]
		}
		if end >= 0 && body[end] == '*' {
			// "||ads*.example.com" cannot be indexed by host
			return nil
		}
		if end < 0 && !rule.EndAnchor {
			// "||example.com" also matches example.com.evil.net; a host
			// index would hide it from those requests
			return nil
		}
		host = normalizeHost(host)
		if !isValidHostPattern(host) {
			return fmt.Errorf("%w: invalid anchor host %q", ErrMalformedRule, host)
		}
		rule.Host = host
	}
	return nil
}

// ParseABPList parses an Adblock Plus style filter list into network rules.
//
// Behavior:
// - Skips blank lines, comments, headers and cosmetic rules
// - Skips malformed lines and logs them; one bad line never fails the list
// - De-duplicates on the raw rule text, preserving first-seen order
// - Each rule is attributed to source and timestamped with now
func ParseABPList(r io.Reader, source string, logger logpkg.Logger, now time.Time) ([]domain.Rule, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	seen := make(map[string]struct{})
	out := make([]domain.Rule, 0, 256)
	logger.Debug(map[string]any{"source": source}, "parse_abp_start")

	lineNum := 0
	skipped := 0
	for scanner.Scan() {
		lineNum++
		rule, err := ParseRule(scanner.Text(), source, now)
		if errors.Is(err, ErrNotNetworkRule) {
			continue
		}
		if err != nil {
			skipped++
			logger.Debug(map[string]any{"source": source, "line": lineNum, "error": err.Error()}, "skip_malformed_rule")
			continue
		}
		if _, ok := seen[rule.Raw]; ok {
			logger.Debug(map[string]any{"line": lineNum, "rule": rule.Raw}, "skip_duplicate")
			continue
		}
		seen[rule.Raw] = struct{}{}
		out = append(out, rule)
	}

	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_abp_scan_error")
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out), "skipped": skipped}, "parse_abp_done")
	return out, nil
}

// ParseLines is ParseABPList for rule text already split into lines.
func ParseLines(lines []string, source string, logger logpkg.Logger, now time.Time) []domain.Rule {
	rules, _ := ParseABPList(strings.NewReader(strings.Join(lines, "\n")), source, logger, now)
	return rules
}
