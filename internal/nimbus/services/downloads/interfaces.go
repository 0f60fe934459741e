package downloads

import (
	"context"

	"github.com/haukened/nimbus/internal/nimbus/domain"
)

// Reporter receives the events of one transfer. It is safe to call from any
// goroutine; events that arrive after the job ended are dropped.
type Reporter interface {
	// Progress reports bytes received so far and the announced total (-1 if
	// unknown).
	Progress(received, total int64)
	// Complete ends the transfer with the full body, or with err on failure.
	Complete(body []byte, err error)
}

// Transport starts network transfers. Begin must return promptly and deliver
// events to r asynchronously; cancelling ctx cancels the transfer.
type Transport interface {
	Begin(ctx context.Context, source string, r Reporter) error
}

// Notifier shows the user that a download ended. Calls are fire-and-forget.
type Notifier interface {
	Notify(job domain.DownloadJob)
}
