package hub

import (
	"errors"
	"fmt"

	"github.com/sweeney/smartstall-hub/internal/logic"
)

var (
	// ErrConnectFailure means every connect attempt failed or the connect
	// timeout elapsed.
	ErrConnectFailure = errors.New("connect failed")
	// ErrDiscoveryEmpty means the stall service could not be discovered.
	// The cycle continues and its reads fail.
	ErrDiscoveryEmpty = errors.New("service discovery empty")
	// ErrReadIncomplete means at least one attribute exhausted its retries.
	ErrReadIncomplete = errors.New("attribute read incomplete")
	// ErrLinkDropped means the link went away during the cycle.
	ErrLinkDropped = errors.New("link dropped")
)

// CycleError is a failed cycle against one device. It is recorded in the
// registry before it is returned and never stops the hub.
type CycleError struct {
	Device string
	Phase  logic.Phase
	Err    error
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s during %s: %v", e.Device, e.Phase, e.Err)
}

func (e *CycleError) Unwrap() error {
	return e.Err
}

// resultLabel maps a cycle outcome onto the metrics label.
func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrConnectFailure):
		return "connect_failure"
	case errors.Is(err, ErrLinkDropped):
		return "link_dropped"
	case errors.Is(err, ErrReadIncomplete):
		return "read_incomplete"
	default:
		return "error"
	}
}
