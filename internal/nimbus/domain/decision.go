package domain

// BlockDecision is the outcome of evaluating a request against a filter set.
type BlockDecision struct {
	Blocked     bool   // true if a blocking rule matched and no exception overrode it
	MatchedRule string // raw text of the deciding rule, "" for default allow
	Source      string // list the deciding rule came from
	Exception   bool   // the deciding rule was an exception
}

// IsBlocked is a convenience accessor.
func (d BlockDecision) IsBlocked() bool { return d.Blocked }

// AllowDecision returns the default not-blocked decision.
func AllowDecision() BlockDecision { return BlockDecision{} }
