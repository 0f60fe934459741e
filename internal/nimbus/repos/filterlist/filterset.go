package filterlist

import (
	"strconv"
	"strings"
	"time"

	logpkg "github.com/haukened/nimbus/internal/nimbus/common/log"
	"github.com/haukened/nimbus/internal/nimbus/common/utils"
	"github.com/haukened/nimbus/internal/nimbus/domain"
	"github.com/haukened/nimbus/internal/nimbus/repos/filterlist/parsers"
)

// CompileOptions configures how a FilterSet is built.
type CompileOptions struct {
	Logger logpkg.Logger
	// Bloom builds the host pre-check filter. nil disables the pre-check.
	Bloom BloomFactory
	// FPRate is the target false-positive rate for Bloom.
	FPRate float64
	// NewCache returns a fresh decision cache for the set. nil disables caching.
	NewCache func() (DecisionCache, error)
	// Now stamps the set; defaults to time.Now.
	Now func() time.Time
}

// ruleIndex splits rules into those anchored at a known host and the rest.
type ruleIndex struct {
	byHost  map[string][]*compiledRule
	generic []*compiledRule
}

func newRuleIndex() ruleIndex {
	return ruleIndex{byHost: make(map[string][]*compiledRule)}
}

func (ix *ruleIndex) add(c *compiledRule) {
	if c.rule.Host != "" {
		ix.byHost[c.rule.Host] = append(ix.byHost[c.rule.Host], c)
		return
	}
	ix.generic = append(ix.generic, c)
}

// FilterSet is an immutable, compiled collection of network rules. It is safe
// for concurrent lookups and is replaced wholesale on reload, never edited.
type FilterSet struct {
	blocking   ruleIndex
	exceptions ruleIndex
	documents  []*compiledRule // "@@...$document" exceptions
	bloom      BloomFilter
	cache      DecisionCache
	stats      SetStats
}

// Compile builds a FilterSet from parsed rules. Rules whose pattern cannot be
// compiled are skipped and logged. Rules from every source share one set, so
// an exception from one list overrides a block from another.
func Compile(rules []domain.Rule, opts CompileOptions) *FilterSet {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNoopLogger()
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}

	fs := &FilterSet{
		blocking:   newRuleIndex(),
		exceptions: newRuleIndex(),
	}
	hosts := make(map[string]struct{})

	for _, r := range rules {
		c, err := compileRule(r)
		if err != nil {
			fs.stats.Rejected++
			logger.Debug(map[string]any{"rule": r.Raw, "source": r.Source, "error": err.Error()}, "skip_uncompilable_rule")
			continue
		}
		switch {
		case r.Exception && r.Options.Document:
			fs.documents = append(fs.documents, c)
			fs.stats.ExceptionRules++
		case r.Exception:
			fs.exceptions.add(c)
			fs.stats.ExceptionRules++
		default:
			fs.blocking.add(c)
			fs.stats.BlockRules++
		}
		if r.Host != "" {
			hosts[r.Host] = struct{}{}
		}
	}
	fs.stats.IndexedHosts = len(hosts)

	if opts.Bloom != nil && len(hosts) > 0 {
		bf := opts.Bloom.New(uint64(len(hosts)), opts.FPRate)
		for h := range hosts {
			bf.Add([]byte(h))
		}
		fs.bloom = bf
	}
	if opts.NewCache != nil {
		cache, err := opts.NewCache()
		if err != nil {
			logger.Warn(map[string]any{"error": err}, "decision_cache_unavailable")
		} else {
			fs.cache = cache
		}
	}
	fs.stats.BuiltAt = now()
	return fs
}

// NewFilterSet parses rule text lines and compiles them. Malformed lines are
// skipped; an empty or entirely malformed input yields an empty set.
func NewFilterSet(lines []string, source string, opts CompileOptions) *FilterSet {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNoopLogger()
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	return Compile(parsers.ParseLines(lines, source, logger, now()), opts)
}

// Matches reports whether url would be blocked when requested with no page
// context.
func (fs *FilterSet) Matches(url string) bool {
	return fs.Decide(domain.Request{URL: url, Type: domain.ResourceOther}).Blocked
}

// Decide evaluates a request. Precedence is exception > block > allow: a
// request is blocked only when a blocking rule matches and no exception does.
func (fs *FilterSet) Decide(req domain.Request) domain.BlockDecision {
	if fs == nil {
		return domain.AllowDecision()
	}
	if req.Type == 0 {
		req.Type = domain.ResourceOther
	}

	key := cacheKey(req)
	if fs.cache != nil {
		if d, ok := fs.cache.Get(key); ok {
			return d
		}
	}
	dec := fs.evaluate(req)
	if fs.cache != nil {
		fs.cache.Put(key, dec)
	}
	return dec
}

func (fs *FilterSet) evaluate(req domain.Request) domain.BlockDecision {
	host := utils.HostOf(req.URL)
	docHost := utils.HostOf(req.DocumentURL)
	third := utils.IsThirdParty(host, docHost)
	lowerURL := strings.ToLower(req.URL)

	page := req.DocumentURL
	if page == "" && req.Type == domain.ResourceDocument {
		page = req.URL
	}
	if page != "" && len(fs.documents) > 0 {
		pageHost := utils.HostOf(page)
		lowerPage := strings.ToLower(page)
		for _, c := range fs.documents {
			if c.rule.AppliesToDocument(pageHost) && c.matchURL(page, lowerPage) {
				return decisionFor(c, false)
			}
		}
	}

	block := fs.find(&fs.blocking, req, host, lowerURL, third, docHost)
	if block == nil {
		return domain.AllowDecision()
	}
	if exc := fs.find(&fs.exceptions, req, host, lowerURL, third, docHost); exc != nil {
		return decisionFor(exc, false)
	}
	return decisionFor(block, true)
}

// find returns the first rule in ix matching the request, consulting the host
// index (behind the Bloom pre-check) before the generic rules.
func (fs *FilterSet) find(ix *ruleIndex, req domain.Request, host, lowerURL string, third bool, docHost string) *compiledRule {
	for h := host; h != ""; h = parentDomain(h) {
		if fs.bloom != nil && !fs.bloom.MightContain([]byte(h)) {
			continue
		}
		for _, c := range ix.byHost[h] {
			if c.appliesTo(req.Type, third, docHost) && c.matchURL(req.URL, lowerURL) {
				return c
			}
		}
	}
	for _, c := range ix.generic {
		if c.appliesTo(req.Type, third, docHost) && c.matchURL(req.URL, lowerURL) {
			return c
		}
	}
	return nil
}

// Stats returns a snapshot of the set's counters.
func (fs *FilterSet) Stats() SetStats {
	if fs == nil {
		return SetStats{}
	}
	st := fs.stats
	if fs.cache != nil {
		st.Cache = fs.cache.Stats()
	}
	return st
}

// Len returns the number of compiled rules.
func (fs *FilterSet) Len() int {
	if fs == nil {
		return 0
	}
	return fs.stats.BlockRules + fs.stats.ExceptionRules
}

func decisionFor(c *compiledRule, blocked bool) domain.BlockDecision {
	return domain.BlockDecision{
		Blocked:     blocked,
		MatchedRule: c.rule.Raw,
		Source:      c.rule.Source,
		Exception:   c.rule.Exception,
	}
}

// parentDomain strips the left-most label: "a.b.c" -> "b.c" -> "c" -> "".
func parentDomain(h string) string {
	if i := strings.IndexByte(h, '.'); i >= 0 {
		return h[i+1:]
	}
	return ""
}

func cacheKey(req domain.Request) string {
	return strconv.FormatUint(uint64(req.Type), 10) + "\x00" + req.DocumentURL + "\x00" + req.URL
}
