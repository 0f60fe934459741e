// Package notify turns finished downloads into user-facing notifications.
package notify

import (
	"time"

	"github.com/dustin/go-humanize"

	"github.com/haukened/nimbus/internal/nimbus/common/log"
	"github.com/haukened/nimbus/internal/nimbus/domain"
	"github.com/haukened/nimbus/internal/nimbus/services/downloads"
)

// LogNotifier emits download notifications through the logger. It is the
// headless stand-in for a desktop notification.
type LogNotifier struct {
	Logger log.Logger
}

// Notify logs a one-line summary of a terminal job. Non-terminal jobs are
// ignored.
func (n LogNotifier) Notify(job domain.DownloadJob) {
	if !job.State.Terminal() {
		return
	}
	logger := n.Logger
	if logger == nil {
		logger = log.GetLogger()
	}
	fields := map[string]any{
		"id":          job.ID,
		"destination": job.Destination,
		"summary":     Summary(job),
	}
	switch job.State {
	case domain.DownloadFailed:
		fields["error"] = job.Err
		logger.Warn(fields, "download_notification")
	default:
		logger.Info(fields, "download_notification")
	}
}

// Summary renders the notification text for job.
func Summary(job domain.DownloadJob) string {
	size := humanize.Bytes(uint64(max(job.Received, 0)))
	name := downloads.NameFromURL(job.Source)
	switch job.State {
	case domain.DownloadFinished:
		took := ""
		if !job.StartedAt.IsZero() && !job.FinishedAt.IsZero() {
			took = " in " + job.FinishedAt.Sub(job.StartedAt).Round(time.Second).String()
		}
		return "Downloaded " + name + " (" + size + took + ")"
	case domain.DownloadAborted:
		return "Cancelled " + name + " after " + size
	case domain.DownloadFailed:
		return "Failed to download " + name + ": " + job.Err
	default:
		return name + ": " + job.State.String()
	}
}

var _ downloads.Notifier = LogNotifier{}
