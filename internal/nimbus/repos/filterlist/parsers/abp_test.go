package parsers

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logpkg "github.com/haukened/nimbus/internal/nimbus/common/log"
	"github.com/haukened/nimbus/internal/nimbus/domain"
)

var now = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

func TestParseRule_NotNetwork(t *testing.T) {
	for _, line := range []string{
		"",
		"   ",
		"! comment",
		"[Adblock Plus 2.0]",
		"example.com##.ad-banner",
		"example.com#@#.sponsored",
		"##div[id^=\"ad\"]",
	} {
		_, err := ParseRule(line, "t", now)
		assert.ErrorIs(t, err, ErrNotNetworkRule, "line %q", line)
	}
}

func TestParseRule_Malformed(t *testing.T) {
	for _, line := range []string{
		"@@",
		"||",
		"*",
		"|*^|",
		"ads$popup",
		"ads$rewrite=abp-resource:blank-js",
		"ads$~script,~image,~stylesheet,~object,~xmlhttprequest,~subdocument,~document,~font,~media,~other",
		"||exa mple.com^",
		"||bad..host^",
		"ads$domain=bad..host",
		"//",
	} {
		_, err := ParseRule(line, "t", now)
		assert.ErrorIs(t, err, ErrMalformedRule, "line %q", line)
	}
}

func TestParseRule_Plain(t *testing.T) {
	r, err := ParseRule("ads.example.com", "easylist", now)
	require.NoError(t, err)
	assert.Equal(t, "ads.example.com", r.Raw)
	assert.Equal(t, "ads.example.com", r.Pattern)
	assert.Equal(t, domain.AnchorNone, r.Anchor)
	assert.False(t, r.Exception)
	assert.Equal(t, domain.AllResourceTypes, r.Options.Types)
	assert.Equal(t, "easylist", r.Source)
	assert.Equal(t, now, r.AddedAt)
}

func TestParseRule_DomainAnchor(t *testing.T) {
	r, err := ParseRule("||Ads.Example.com^$script,third-party", "t", now)
	require.NoError(t, err)
	assert.Equal(t, domain.AnchorDomain, r.Anchor)
	assert.Equal(t, "ads.example.com", r.Host)
	assert.Equal(t, "Ads.Example.com^", r.Pattern)
	assert.Equal(t, domain.ResourceScript, r.Options.Types)
	assert.Equal(t, domain.PartyThird, r.Options.Party)

	r, err = ParseRule("||cdn*.example.com/ads/", "t", now)
	require.NoError(t, err)
	assert.Empty(t, r.Host, "wildcard anchors are not host-indexed")

	r, err = ParseRule("||example.com", "t", now)
	require.NoError(t, err)
	assert.Equal(t, domain.AnchorDomain, r.Anchor)
	assert.Empty(t, r.Host, "unterminated anchors are not host-indexed")

	r, err = ParseRule("||example.com|", "t", now)
	require.NoError(t, err)
	assert.Equal(t, "example.com", r.Host)
}

func TestParseRule_ExceptionAndOptions(t *testing.T) {
	r, err := ParseRule("@@||example.com^$document", "t", now)
	require.NoError(t, err)
	assert.True(t, r.Exception)
	assert.True(t, r.Options.Document)
	assert.Equal(t, domain.ResourceDocument, r.Options.Types)

	r, err = ParseRule("/banner$domain=example.com|~shop.example.com,~image,match-case,~third-party", "t", now)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, r.Options.Domains)
	assert.Equal(t, []string{"shop.example.com"}, r.Options.ExcludedDomains)
	assert.False(t, r.Options.Types.Has(domain.ResourceImage))
	assert.True(t, r.Options.Types.Has(domain.ResourceScript))
	assert.True(t, r.Options.MatchCase)
	assert.Equal(t, domain.PartyFirst, r.Options.Party)

	r, err = ParseRule("ads$document", "t", now)
	require.NoError(t, err)
	assert.False(t, r.Options.Document, "only exceptions whitelist whole pages")
}

func TestParseRule_AnchorsAndRegex(t *testing.T) {
	r, err := ParseRule("|https://track.|", "t", now)
	require.NoError(t, err)
	assert.Equal(t, domain.AnchorStart, r.Anchor)
	assert.True(t, r.EndAnchor)
	assert.Equal(t, "https://track.", r.Pattern)

	r, err = ParseRule(`/banner\d+\.gif$/`, "t", now)
	require.NoError(t, err)
	assert.True(t, r.Regex)
	assert.Equal(t, `banner\d+\.gif$`, r.Pattern)

	r, err = ParseRule(`/ad[0-9]+/$script`, "t", now)
	require.NoError(t, err)
	assert.True(t, r.Regex)
	assert.Equal(t, domain.ResourceScript, r.Options.Types)
}

func TestParseABPList(t *testing.T) {
	input := strings.Join([]string{
		"\uFEFF[Adblock Plus 2.0]",
		"! Title: test",
		"ads.example.com",
		"ads.example.com",
		"||tracker.net^$third-party",
		"@@||tracker.net/allowed/",
		"example.org##.banner",
		"bad$unknownopt",
		"",
	}, "\n")

	rec := logpkg.NewRecorder()
	rules, err := ParseABPList(strings.NewReader(input), "list.txt", rec, now)
	require.NoError(t, err)
	require.Len(t, rules, 3)
	assert.Equal(t, "ads.example.com", rules[0].Raw)
	assert.Equal(t, "||tracker.net^$third-party", rules[1].Raw)
	assert.True(t, rules[2].Exception)
	assert.True(t, rec.Has("skip_malformed_rule"))
	assert.True(t, rec.Has("skip_duplicate"))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestParseABPList_ReadError(t *testing.T) {
	_, err := ParseABPList(failingReader{}, "broken", logpkg.NewNoopLogger(), now)
	require.Error(t, err)
}

func TestParseLines(t *testing.T) {
	rules := ParseLines([]string{"ads.example.com", "!c", "ads$popup"}, "inline", logpkg.NewNoopLogger(), now)
	require.Len(t, rules, 1)
	assert.Equal(t, "inline", rules[0].Source)
}
