package domain

import (
	"fmt"
	"time"
)

// DownloadState is the lifecycle state of a download job.
type DownloadState uint8

const (
	DownloadPending DownloadState = iota
	DownloadInProgress
	DownloadFinished
	DownloadAborted
	DownloadFailed
)

func (s DownloadState) String() string {
	switch s {
	case DownloadPending:
		return "pending"
	case DownloadInProgress:
		return "in_progress"
	case DownloadFinished:
		return "finished"
	case DownloadAborted:
		return "aborted"
	case DownloadFailed:
		return "failed"
	default:
		return fmt.Sprintf("DownloadState(%d)", s)
	}
}

// Terminal reports whether no further transitions are possible.
func (s DownloadState) Terminal() bool {
	return s == DownloadFinished || s == DownloadAborted || s == DownloadFailed
}

// DownloadJob is a point-in-time snapshot of a tracked download.
type DownloadJob struct {
	ID          string
	Source      string
	Destination string
	Received    int64
	Total       int64 // -1 when the server did not announce a size
	State       DownloadState
	StartedAt   time.Time
	FinishedAt  time.Time
	Err         string // failure reason for DownloadFailed
}

// Fraction returns progress in [0,1], or -1 when the total is unknown.
func (j DownloadJob) Fraction() float64 {
	if j.Total <= 0 {
		return -1
	}
	f := float64(j.Received) / float64(j.Total)
	if f > 1 {
		f = 1
	}
	return f
}
