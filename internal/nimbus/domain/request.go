package domain

// Request is a single network load as seen by the filter.
type Request struct {
	URL         string       // target of the load
	DocumentURL string       // page that issued the load, "" for top-level navigations
	Type        ResourceType // what the load is for
}
