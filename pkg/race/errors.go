package race

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/hashicorp/go-multierror"
)

var ErrNoCandidates = errors.New("no candidate addresses to race")

// ConnectError is one candidate failing to connect. It never leaves the race on its own; it
// only shows up inside an AllCandidatesFailedError.
type ConnectError struct {
	Candidate netip.AddrPort
	Err       error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.Candidate, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// AllCandidatesFailedError is the race outcome when no candidate connected.
type AllCandidatesFailedError struct {
	Host string
	Errs *multierror.Error
}

func (e *AllCandidatesFailedError) Error() string {
	n := 0
	if e.Errs != nil {
		n = len(e.Errs.Errors)
	}
	return fmt.Sprintf("all %d candidate(s) for %s failed to connect: %v", n, e.Host, e.Errs.ErrorOrNil())
}

func (e *AllCandidatesFailedError) Unwrap() error { return e.Errs.ErrorOrNil() }

// Failures lists each per-candidate error.
func (e *AllCandidatesFailedError) Failures() []error {
	if e.Errs == nil {
		return nil
	}
	return e.Errs.WrappedErrors()
}
