package filterlist

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/nimbus/internal/nimbus/common/clock"
	logpkg "github.com/haukened/nimbus/internal/nimbus/common/log"
	"github.com/haukened/nimbus/internal/nimbus/domain"
)

func newTestMatcher(logger logpkg.Logger) *Matcher {
	return NewMatcher(MatcherOptions{
		Logger: logger,
		Clock:  &clock.MockClock{CurrentTime: fixedNow},
	})
}

func TestMatcher_StartsEmpty(t *testing.T) {
	m := NewMatcher(MatcherOptions{})
	require.NotNil(t, m.Current())
	assert.False(t, m.Matches("https://ads.example.com/banner.js"))
	assert.Equal(t, 0, m.Current().Len())
}

func TestMatcher_ReloadUnionOfSources(t *testing.T) {
	rec := logpkg.NewRecorder()
	m := newTestMatcher(rec)

	err := m.Reload([]Source{
		TextSource("bundled", "||ads.test^\n! comment\n"),
		{Name: "blocked.hosts", Format: FormatHosts, Open: func() (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("0.0.0.0 tracker.test\n")), nil
		}},
		TextSource("user", "@@||ads.test/ok^\n"),
	})
	require.NoError(t, err)

	assert.True(t, m.Matches("https://ads.test/x.js"))
	assert.True(t, m.Matches("https://tracker.test/p.gif"))
	assert.False(t, m.Matches("https://ads.test/ok/"))

	st := m.Stats()
	assert.Equal(t, 2, st.BlockRules)
	assert.Equal(t, 1, st.ExceptionRules)
	assert.Equal(t, fixedNow, st.BuiltAt)
	assert.True(t, rec.Has("filter_set_loaded"))
}

func TestMatcher_ReloadSkipsUnreadableSource(t *testing.T) {
	rec := logpkg.NewRecorder()
	m := newTestMatcher(rec)
	boom := errors.New("boom")

	err := m.Reload([]Source{
		{Name: "broken", Open: func() (io.ReadCloser, error) { return nil, boom }},
		TextSource("ok", "||ads.test^"),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, m.Matches("https://ads.test/"))
	assert.True(t, rec.Has("filter_source_unavailable"))
}

func TestMatcher_ReloadReplacesWholesale(t *testing.T) {
	m := newTestMatcher(nil)
	require.NoError(t, m.Reload([]Source{TextSource("v1", "||old.test^")}))
	before := m.Current()

	require.NoError(t, m.Reload([]Source{TextSource("v2", "||new.test^")}))
	assert.NotSame(t, before, m.Current())
	assert.False(t, m.Matches("https://old.test/"))
	assert.True(t, m.Matches("https://new.test/"))

	// the previous set is untouched and still answers with its own rules
	assert.True(t, before.Matches("https://old.test/"))
}

func TestMatcher_SwapNilInstallsEmptySet(t *testing.T) {
	m := newTestMatcher(nil)
	require.NoError(t, m.Reload([]Source{TextSource("v1", "||ads.test^")}))
	m.Swap(nil)
	assert.False(t, m.Matches("https://ads.test/"))
}

func TestMatcher_ConcurrentDecideDuringReload(t *testing.T) {
	m := newTestMatcher(nil)
	require.NoError(t, m.Reload([]Source{TextSource("a", "||ads.test^")}))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					// both generations block this URL, so a reader must never see allow
					if !m.Matches("https://ads.test/x") {
						t.Error("observed a partially built filter set")
						return
					}
				}
			}
		}()
	}
	for i := 0; i < 50; i++ {
		_ = m.Reload([]Source{TextSource("a", "||ads.test^\n||more.test^")})
	}
	close(stop)
	wg.Wait()
}

func TestMatcher_DirectorySources(t *testing.T) {
	dir := t.TempDir()
	bundled := filepath.Join(dir, "easylist.txt")
	user := filepath.Join(dir, "adblock")
	require.NoError(t, os.WriteFile(bundled, []byte("||ads.test^\n"), 0o644))
	require.NoError(t, os.Mkdir(user, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(user, "b.hosts"), []byte("127.0.0.1 hosts.test\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(user, "a.txt"), []byte("/promo/*\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(user, ".hidden"), []byte("||hidden.test^\n"), 0o644))

	srcs := DirectorySources(bundled, user)
	require.Len(t, srcs, 3)
	assert.Equal(t, bundled, srcs[0].Name)
	assert.Equal(t, FormatABP, srcs[1].Format)
	assert.Equal(t, FormatHosts, srcs[2].Format)

	m := newTestMatcher(nil)
	require.NoError(t, m.Reload(srcs))
	assert.True(t, m.Matches("https://ads.test/"))
	assert.True(t, m.Matches("https://hosts.test/"))
	assert.True(t, m.Matches("https://x.test/promo/1.png"))
	assert.False(t, m.Matches("https://hidden.test/"))
}

func TestDirectorySources_MissingDir(t *testing.T) {
	srcs := DirectorySources("", filepath.Join(t.TempDir(), "nope"))
	assert.Empty(t, srcs)
}

func TestNoopMatcher(t *testing.T) {
	var n NoopMatcher
	assert.False(t, n.Matches("https://ads.example.com/banner.js"))
	assert.Equal(t, domain.AllowDecision(), n.Decide(domain.Request{URL: "https://ads.example.com/"}))
}
