package filterlist

import "github.com/haukened/nimbus/internal/nimbus/domain"

// NoopMatcher is used when filtering is disabled or no filter data exists.
// It never blocks anything.
type NoopMatcher struct{}

func (NoopMatcher) Decide(domain.Request) domain.BlockDecision { return domain.AllowDecision() }

func (NoopMatcher) Matches(string) bool { return false }
