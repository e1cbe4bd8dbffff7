package pull

import (
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/projecteru2/pullwatch/job"
)

var (
	// ErrPullFailed marks every PullFailedError.
	ErrPullFailed = errors.New("image pull failed")
	// ErrOperationCancelled is returned when the operation was cancelled by
	// the external signal or by a job that finished unsuccessfully.
	ErrOperationCancelled = errors.New("operation cancelled")
	// ErrSinkScheduling marks a job whose sink could not be started.
	ErrSinkScheduling = job.ErrSchedule
)

// SinkSchedulingError is the failing result of a job whose sink could not
// be started. It is swept like any other failed job.
type SinkSchedulingError = job.ScheduleError

// PullFailedError carries the producer's error text verbatim.
type PullFailedError struct {
	Image string
	Cause string
}

func (e *PullFailedError) Error() string {
	return fmt.Sprintf("pull %s failed: %s", e.Image, e.Cause)
}

func (e *PullFailedError) Is(target error) bool { return target == ErrPullFailed }
