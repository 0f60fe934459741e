package pipeline

import (
	"context"

	"github.com/haukened/nimbus/internal/nimbus/domain"
)

type Matcher interface {
	Decide(req domain.Request) domain.BlockDecision
}

type Classifier interface {
	Classify(in domain.ClassifyInput) domain.ContentDecision
	IsViewerURL(rawURL string) bool
}

type OfflineCache interface {
	Put(url, content string)
	Get(url string) (string, error)
}

type Downloader interface {
	Start(ctx context.Context, source, destination string) (domain.DownloadJob, error)
}

// Engine fetches and renders documents. A response it will not display is
// reported as a *domain.UnsupportedContentError.
type Engine interface {
	Load(ctx context.Context, url string) (domain.Page, error)
}

type Connectivity interface {
	Online(ctx context.Context) bool
}

// DestinationChooser asks where a file should be saved. suggested may be
// empty.
type DestinationChooser interface {
	Choose(source, suggested string) (string, error)
}
