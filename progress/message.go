package progress

import (
	"math/bits"
	"strings"
)

// Status keywords of a Docker-compatible pull stream.
const (
	Pulling           = "Pulling"
	PullingFSLayer    = "Pulling fs layer"
	Downloading       = "Downloading"
	VerifyingChecksum = "Verifying Checksum"
	DownloadComplete  = "Download complete"
	Extracting        = "Extracting"
	PullComplete      = "Pull complete"
	AlreadyExists     = "Already exists"
	Verified          = "Verified"
)

// Status is the classification of a message's free-text status.
type Status int

const (
	StatusOther Status = iota
	StatusPulling
	StatusDownloading
	StatusExtracting
	StatusComplete
)

func (s Status) String() string {
	switch s {
	case StatusPulling:
		return "pulling"
	case StatusDownloading:
		return "downloading"
	case StatusExtracting:
		return "extracting"
	case StatusComplete:
		return "complete"
	default:
		return "other"
	}
}

// Detail carries the byte counters of a message. Total == 0 means the
// producer has no usable total.
type Detail struct {
	Current uint64 `json:"current"`
	Total   uint64 `json:"total"`
}

// Percentage returns floor(Current*100/Total), capped at 100.
// ok is false when either counter is zero; callers must then keep
// whatever percentage they had.
func (d *Detail) Percentage() (pct int, ok bool) {
	if d == nil || d.Current == 0 || d.Total == 0 {
		return 0, false
	}
	if d.Current >= d.Total {
		return 100, true
	}
	// Current < Total, so hi < Total and Div64 cannot overflow.
	hi, lo := bits.Mul64(d.Current, 100)
	q, _ := bits.Div64(hi, lo, d.Total)
	return int(q), true
}

// Message is one event of a pull stream.
// An empty ID marks an informational message that belongs to no layer.
type Message struct {
	ID       string  `json:"id,omitempty"`
	Status   string  `json:"status,omitempty"`
	Progress string  `json:"progress,omitempty"`
	Detail   *Detail `json:"progressDetail,omitempty"`
	Error    string  `json:"error,omitempty"`
}

// HasTotal reports whether the message carries a usable byte total.
func (m Message) HasTotal() bool {
	return m.Detail != nil && m.Detail.Total > 0
}

// Classify maps status onto the keyword it carries.
// tracked tells whether the message's ID already has a live job: pull
// announcements only matter for unseen ids, and "Pull complete" is matched
// loosely once a job exists.
func Classify(status string, tracked bool) Status {
	switch {
	case !tracked && strings.Contains(status, Pulling):
		return StatusPulling
	case isComplete(status, tracked):
		return StatusComplete
	case strings.HasPrefix(status, Downloading):
		return StatusDownloading
	case strings.HasPrefix(status, Extracting):
		return StatusExtracting
	default:
		return StatusOther
	}
}

func isComplete(status string, tracked bool) bool {
	if status == DownloadComplete || status == PullComplete {
		return true
	}
	if tracked && strings.Contains(status, PullComplete) {
		return true
	}
	return strings.Contains(status, AlreadyExists) ||
		strings.Contains(status, Verified) ||
		strings.Contains(status, VerifyingChecksum)
}
