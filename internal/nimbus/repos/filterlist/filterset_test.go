package filterlist

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logpkg "github.com/haukened/nimbus/internal/nimbus/common/log"
	"github.com/haukened/nimbus/internal/nimbus/domain"
	"github.com/haukened/nimbus/internal/nimbus/repos/filterlist/parsers"
)

var fixedNow = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)

func testOptions() CompileOptions {
	return CompileOptions{Now: func() time.Time { return fixedNow }}
}

func TestFilterSet_PlainSubstringRule(t *testing.T) {
	fs := NewFilterSet([]string{"ads.example.com"}, "test", testOptions())

	assert.True(t, fs.Matches("https://ads.example.com/banner.js"))
	assert.False(t, fs.Matches("https://example.com/app.js"))
}

func TestFilterSet_ExceptionWins(t *testing.T) {
	fs := NewFilterSet([]string{
		"||tracker.test^",
		"@@||tracker.test/allowed/*",
	}, "test", testOptions())

	assert.True(t, fs.Matches("https://tracker.test/pixel.gif"))
	assert.True(t, fs.Matches("https://cdn.tracker.test/pixel.gif"))

	dec := fs.Decide(domain.Request{URL: "https://tracker.test/allowed/x.js", Type: domain.ResourceScript})
	assert.False(t, dec.Blocked)
	assert.True(t, dec.Exception)
	assert.Equal(t, "@@||tracker.test/allowed/*", dec.MatchedRule)
}

func TestFilterSet_ExceptionFromOtherListWins(t *testing.T) {
	var rules []domain.Rule
	rules = append(rules, parsers.ParseLines([]string{"/banner/*"}, "easylist.txt", logpkg.NewNoopLogger(), fixedNow)...)
	rules = append(rules, parsers.ParseLines([]string{"@@/banner/*$image"}, "user.txt", logpkg.NewNoopLogger(), fixedNow)...)
	fs := Compile(rules, testOptions())

	img := fs.Decide(domain.Request{URL: "https://site.test/banner/a.png", Type: domain.ResourceImage})
	assert.False(t, img.Blocked)
	assert.Equal(t, "user.txt", img.Source)

	js := fs.Decide(domain.Request{URL: "https://site.test/banner/a.js", Type: domain.ResourceScript})
	assert.True(t, js.Blocked)
	assert.Equal(t, "easylist.txt", js.Source)
}

func TestFilterSet_DomainAnchorBoundaries(t *testing.T) {
	fs := NewFilterSet([]string{"||ads.test^"}, "test", testOptions())

	tests := []struct {
		url  string
		want bool
	}{
		{"https://ads.test/", true},
		{"http://ads.test:8080/x", true},
		{"https://sub.ads.test/x", true},
		{"https://ads.test", true},
		{"https://badads.test/x", false},
		{"https://ads.testing.com/x", false},
		{"https://example.com/?r=ads.test", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, fs.Matches(tt.url), tt.url)
	}
}

func TestFilterSet_ThirdPartyOption(t *testing.T) {
	fs := NewFilterSet([]string{"||cdn.test^$third-party"}, "test", testOptions())

	third := domain.Request{URL: "https://cdn.test/lib.js", DocumentURL: "https://news.example/", Type: domain.ResourceScript}
	first := domain.Request{URL: "https://cdn.test/lib.js", DocumentURL: "https://www.cdn.test/", Type: domain.ResourceScript}

	assert.True(t, fs.Decide(third).Blocked)
	assert.False(t, fs.Decide(first).Blocked)
}

func TestFilterSet_TypeAndDomainOptions(t *testing.T) {
	fs := NewFilterSet([]string{
		"/ads/*$script,domain=news.example|~sports.news.example",
	}, "test", testOptions())

	req := func(doc string, typ domain.ResourceType) domain.Request {
		return domain.Request{URL: "https://static.test/ads/x.js", DocumentURL: doc, Type: typ}
	}
	assert.True(t, fs.Decide(req("https://news.example/", domain.ResourceScript)).Blocked)
	assert.True(t, fs.Decide(req("https://world.news.example/", domain.ResourceScript)).Blocked)
	assert.False(t, fs.Decide(req("https://sports.news.example/", domain.ResourceScript)).Blocked)
	assert.False(t, fs.Decide(req("https://other.example/", domain.ResourceScript)).Blocked)
	assert.False(t, fs.Decide(req("https://news.example/", domain.ResourceImage)).Blocked)
}

func TestFilterSet_DocumentException(t *testing.T) {
	fs := NewFilterSet([]string{
		"||ads.test^",
		"@@||trusted.example^$document",
	}, "test", testOptions())

	onTrusted := domain.Request{URL: "https://ads.test/x.js", DocumentURL: "https://trusted.example/page", Type: domain.ResourceScript}
	elsewhere := domain.Request{URL: "https://ads.test/x.js", DocumentURL: "https://other.example/page", Type: domain.ResourceScript}

	assert.False(t, fs.Decide(onTrusted).Blocked)
	assert.True(t, fs.Decide(elsewhere).Blocked)
}

func TestFilterSet_MatchCase(t *testing.T) {
	fs := NewFilterSet([]string{"/Banner/$match-case"}, "test", testOptions())
	assert.True(t, fs.Matches("https://x.test/Banner/a"))
	assert.False(t, fs.Matches("https://x.test/banner/a"))
}

func TestFilterSet_RegexRule(t *testing.T) {
	fs := NewFilterSet([]string{`/\/track\d+\.js/`}, "test", testOptions())
	assert.True(t, fs.Matches("https://x.test/track42.js"))
	assert.False(t, fs.Matches("https://x.test/track.js"))
}

func TestFilterSet_MalformedLinesSkipped(t *testing.T) {
	fs := NewFilterSet([]string{
		"! comment",
		"[Adblock Plus 2.0]",
		"example.com##.banner",
		"ads$bogus-option",
		"",
		"||ads.test^",
	}, "test", testOptions())

	assert.Equal(t, 1, fs.Len())
	assert.True(t, fs.Matches("https://ads.test/x"))
}

func TestFilterSet_EmptyAndNil(t *testing.T) {
	empty := NewFilterSet(nil, "test", testOptions())
	assert.Equal(t, 0, empty.Len())
	assert.False(t, empty.Matches("https://anything.test/"))

	var nilSet *FilterSet
	assert.False(t, nilSet.Matches("https://anything.test/"))
	assert.Equal(t, SetStats{}, nilSet.Stats())
}

func TestFilterSet_InvalidRegexRejectedAtCompile(t *testing.T) {
	fs := NewFilterSet([]string{"/(unclosed/", "||ads.test^"}, "test", testOptions())
	st := fs.Stats()
	assert.Equal(t, 1, st.Rejected)
	assert.Equal(t, 1, st.BlockRules)
	assert.Equal(t, fixedNow, st.BuiltAt)
}

type fakeBloom struct{ keys map[string]bool }

func (f *fakeBloom) Add(k []byte)                { f.keys[string(k)] = true }
func (f *fakeBloom) MightContain(k []byte) bool { return f.keys[string(k)] }

type fakeBloomFactory struct{ last *fakeBloom }

func (f *fakeBloomFactory) New(uint64, float64) BloomFilter {
	f.last = &fakeBloom{keys: map[string]bool{}}
	return f.last
}

func TestFilterSet_BloomHoldsIndexedHosts(t *testing.T) {
	bf := &fakeBloomFactory{}
	opts := testOptions()
	opts.Bloom = bf
	fs := NewFilterSet([]string{"||a.test^", "||b.test/path", "generic-ad"}, "test", opts)

	require.NotNil(t, bf.last)
	assert.True(t, bf.last.keys["a.test"])
	assert.True(t, bf.last.keys["b.test"])
	assert.Len(t, bf.last.keys, 2)
	assert.Equal(t, 2, fs.Stats().IndexedHosts)

	assert.True(t, fs.Matches("https://x.a.test/"))
	assert.True(t, fs.Matches("https://other.test/generic-ad.js"))
	assert.False(t, fs.Matches("https://c.test/"))
}

func TestFilterSet_UnterminatedDomainAnchor(t *testing.T) {
	fs := NewFilterSet([]string{"||example.com"}, "test", testOptions())
	assert.True(t, fs.Matches("https://example.com/"))
	assert.True(t, fs.Matches("https://example.com.evil.net/"))
	assert.True(t, fs.Matches("https://www.example.com.evil.net/x"))
	assert.False(t, fs.Matches("https://other.test/"))

	fs = NewFilterSet([]string{"||example.com^"}, "test", testOptions())
	assert.True(t, fs.Matches("https://example.com/"))
	assert.False(t, fs.Matches("https://example.com.evil.net/"))
}

type mapCache struct {
	m          map[string]domain.BlockDecision
	hits, miss uint64
}

func (c *mapCache) Get(k string) (domain.BlockDecision, bool) {
	d, ok := c.m[k]
	if ok {
		c.hits++
	} else {
		c.miss++
	}
	return d, ok
}
func (c *mapCache) Put(k string, d domain.BlockDecision) { c.m[k] = d }
func (c *mapCache) Len() int                             { return len(c.m) }
func (c *mapCache) Purge()                               { c.m = map[string]domain.BlockDecision{} }
func (c *mapCache) Stats() CacheStats {
	return CacheStats{Size: len(c.m), Hits: c.hits, Misses: c.miss}
}

func TestFilterSet_DecisionCache(t *testing.T) {
	cache := &mapCache{m: map[string]domain.BlockDecision{}}
	opts := testOptions()
	opts.NewCache = func() (DecisionCache, error) { return cache, nil }
	fs := NewFilterSet([]string{"||ads.test^"}, "test", opts)

	assert.True(t, fs.Matches("https://ads.test/a"))
	assert.True(t, fs.Matches("https://ads.test/a"))

	st := fs.Stats().Cache
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, 1, st.Size)
}

func TestParentDomain(t *testing.T) {
	assert.Equal(t, "b.c", parentDomain("a.b.c"))
	assert.Equal(t, "c", parentDomain("b.c"))
	assert.Equal(t, "", parentDomain("c"))
}
