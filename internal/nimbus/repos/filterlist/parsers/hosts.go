package parsers

import (
	"bufio"
	"io"
	"strings"
	"time"

	logpkg "github.com/haukened/nimbus/internal/nimbus/common/log"
	"github.com/haukened/nimbus/internal/nimbus/common/utils"
	"github.com/haukened/nimbus/internal/nimbus/domain"
)

// sinkholeNames are entries every hosts file carries for the local machine.
var sinkholeNames = map[string]struct{}{
	"localhost":             {},
	"localhost.localdomain": {},
	"local":                 {},
	"broadcasthost":         {},
	"ip6-localhost":         {},
	"ip6-loopback":          {},
	"0.0.0.0":               {},
}

// ParseHostsFile parses /etc/hosts-style block lists and returns one
// domain-anchored block rule ("||host^") per hostname.
//
// Rules:
// - Ignore the IP field; extract one or more hostnames following it
// - Skip comments (whole-line or inline after '#') and blank lines
// - Skip wildcards, names starting with '.', and loopback aliases
// - De-duplicate by canonical name, preserving first-seen order
func ParseHostsFile(r io.Reader, source string, logger logpkg.Logger, now time.Time) ([]domain.Rule, error) {
	scanner := bufio.NewScanner(r)

	seen := make(map[string]struct{})
	out := make([]domain.Rule, 0, 256)

	logger.Debug(map[string]any{"source": source}, "parse_hosts_start")

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := stripLineBOM(scanner.Text())

		if isEmpty, isComment := classifyLine(line); isEmpty || isComment {
			continue
		}
		fields := strings.Fields(stripInlineComment(line))
		if len(fields) < 2 {
			logger.Debug(map[string]any{"line": lineNum}, "hosts_no_hostnames")
			continue
		}

		for _, raw := range fields[1:] {
			if strings.HasPrefix(raw, ".") || strings.Contains(raw, "*") {
				logger.Debug(map[string]any{"line": lineNum, "raw": raw}, "hosts_skip_invalid_token")
				continue
			}
			name := utils.CanonicalHost(raw)
			if _, ok := sinkholeNames[name]; ok {
				continue
			}
			if !isValidFQDN(name) {
				logger.Debug(map[string]any{"line": lineNum, "name": name}, "hosts_skip_invalid_fqdn")
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}

			rule := domain.Rule{
				Raw:     "||" + name + "^",
				Source:  source,
				AddedAt: now,
				Pattern: name + "^",
				Anchor:  domain.AnchorDomain,
				Host:    name,
				Options: domain.RuleOptions{Types: domain.AllResourceTypes},
			}
			if err := rule.Validate(); err != nil {
				logger.Debug(map[string]any{"line": lineNum, "name": name, "error": err.Error()}, "hosts_skip_constructor_error")
				continue
			}
			out = append(out, rule)
			seen[name] = struct{}{}
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_hosts_scan_error")
		return nil, err
	}

	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_hosts_done")
	return out, nil
}
