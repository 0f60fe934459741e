package filterlist

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/haukened/nimbus/internal/nimbus/common/clock"
	logpkg "github.com/haukened/nimbus/internal/nimbus/common/log"
	"github.com/haukened/nimbus/internal/nimbus/domain"
	"github.com/haukened/nimbus/internal/nimbus/repos/filterlist/parsers"
)

// MatcherOptions configures a Matcher.
type MatcherOptions struct {
	Logger   logpkg.Logger
	Clock    clock.Clock
	Bloom    BloomFactory
	FPRate   float64
	NewCache func() (DecisionCache, error)
}

// Matcher answers block decisions against the current FilterSet. Readers
// load the set through an atomic pointer; Reload compiles a replacement and
// swaps it in, so a lookup never observes a half-built rule set.
type Matcher struct {
	current atomic.Pointer[FilterSet]
	reload  sync.Mutex
	opts    MatcherOptions
}

// NewMatcher returns a Matcher holding an empty FilterSet.
func NewMatcher(opts MatcherOptions) *Matcher {
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNoopLogger()
	}
	if opts.Clock == nil {
		opts.Clock = clock.RealClock{}
	}
	m := &Matcher{opts: opts}
	m.current.Store(Compile(nil, m.compileOptions()))
	return m
}

func (m *Matcher) compileOptions() CompileOptions {
	return CompileOptions{
		Logger:   m.opts.Logger,
		Bloom:    m.opts.Bloom,
		FPRate:   m.opts.FPRate,
		NewCache: m.opts.NewCache,
		Now:      m.opts.Clock.Now,
	}
}

// Reload parses every source, compiles the union into a new FilterSet and
// swaps it in. Sources that cannot be opened or read are skipped; the
// returned error joins those failures, but the swap happens regardless.
func (m *Matcher) Reload(sources []Source) error {
	m.reload.Lock()
	defer m.reload.Unlock()

	now := m.opts.Clock.Now()
	var (
		rules []domain.Rule
		errs  []error
	)
	for _, src := range sources {
		got, err := m.readSource(src, now)
		if err != nil {
			m.opts.Logger.Warn(map[string]any{"source": src.Name, "error": err}, "filter_source_unavailable")
			errs = append(errs, err)
			continue
		}
		rules = append(rules, got...)
	}

	fs := Compile(rules, m.compileOptions())
	m.Swap(fs)
	st := fs.Stats()
	m.opts.Logger.Info(map[string]any{
		"sources":    len(sources),
		"block":      st.BlockRules,
		"exceptions": st.ExceptionRules,
		"hosts":      st.IndexedHosts,
		"rejected":   st.Rejected,
	}, "filter_set_loaded")
	return errors.Join(errs...)
}

func (m *Matcher) readSource(src Source, now time.Time) ([]domain.Rule, error) {
	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", src.Name, err)
	}
	defer rc.Close()

	switch src.Format {
	case FormatHosts:
		rules, err := parsers.ParseHostsFile(rc, src.Name, m.opts.Logger, now)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src.Name, err)
		}
		return rules, nil
	default:
		rules, err := parsers.ParseABPList(rc, src.Name, m.opts.Logger, now)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", src.Name, err)
		}
		return rules, nil
	}
}

// Swap installs fs as the current set.
func (m *Matcher) Swap(fs *FilterSet) {
	if fs == nil {
		fs = Compile(nil, m.compileOptions())
	}
	m.current.Store(fs)
}

// Current returns the FilterSet in use.
func (m *Matcher) Current() *FilterSet { return m.current.Load() }

// Decide evaluates req against the current set. Any internal failure
// degrades to allow: filtering never blocks navigation by accident.
func (m *Matcher) Decide(req domain.Request) (dec domain.BlockDecision) {
	defer func() {
		if r := recover(); r != nil {
			m.opts.Logger.Error(map[string]any{"url": req.URL, "panic": fmt.Sprint(r)}, "filter_decide_failed")
			dec = domain.AllowDecision()
		}
	}()
	return m.current.Load().Decide(req)
}

// Matches reports whether url would be blocked with no page context.
func (m *Matcher) Matches(url string) bool {
	return m.Decide(domain.Request{URL: url, Type: domain.ResourceOther}).Blocked
}

// Stats returns the current set's counters.
func (m *Matcher) Stats() SetStats { return m.current.Load().Stats() }
