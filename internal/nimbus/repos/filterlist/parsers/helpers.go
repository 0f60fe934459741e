package parsers

import (
	"errors"
	"strings"
	"unicode"

	"github.com/haukened/nimbus/internal/nimbus/common/utils"
)

var (
	// ErrMalformedRule marks a line that looks like a network rule but cannot be parsed.
	ErrMalformedRule = errors.New("malformed rule")
	// ErrNotNetworkRule marks blank lines, comments, headers and cosmetic rules.
	ErrNotNetworkRule = errors.New("not a network rule")
)

// stripLineBOM removes a UTF-8 byte order mark from the start of a line.
func stripLineBOM(line string) string {
	return strings.TrimPrefix(line, "\uFEFF")
}

// classifyLine reports whether a hosts-file line is empty or a full-line comment.
func classifyLine(line string) (isEmpty, isComment bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return true, false
	}
	return false, strings.HasPrefix(trimmed, "#")
}

// stripInlineComment drops everything after the first '#'.
func stripInlineComment(line string) string {
	if idx := strings.IndexByte(line, '#'); idx >= 0 {
		return line[:idx]
	}
	return line
}

// isValidFQDN checks whether name is a plausible fully qualified host name:
//   - at most 255 characters
//   - at least two labels
//   - every label between 1 and 63 characters
//   - labels made of letters, digits, '-' and '_'
//   - the first label starts with a letter or digit
func isValidFQDN(name string) bool {
	if len(name) == 0 || len(name) > 255 {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 {
			return false
		}
		for _, r := range label {
			if !isAlphaNumeric(r) && r != '-' && r != '_' {
				return false
			}
		}
	}
	return isAlphaNumeric([]rune(labels[0])[0])
}

// isValidHostPattern is a looser check for rule anchors and domain= values,
// which may be single labels ("localhost") or bare TLDs.
func isValidHostPattern(name string) bool {
	if name == "" || len(name) > 255 {
		return false
	}
	for _, label := range strings.Split(name, ".") {
		if label == "" || len(label) > 63 {
			return false
		}
		for _, r := range label {
			if !isAlphaNumeric(r) && r != '-' && r != '_' {
				return false
			}
		}
	}
	return true
}

func normalizeHost(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "*.")
	name = strings.TrimPrefix(name, ".")
	return utils.CanonicalHost(name)
}

func isAlphaNumeric(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
