// Package race connects to whichever of a host's addresses answers first.
//
// One worker goroutine is started per candidate address. Each makes exactly one connection
// attempt and reports on a shared channel, which is buffered to the number of candidates so
// that no worker ever blocks on it. The first connection to arrive wins; every later one is
// closed without being read, either by its worker (if it sees the race is decided) or by the
// drainer that takes over the channel once a winner has been handed out.
package race

import (
	"context"
	"fmt"
	"net"
	"net/netip"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/hashicorp/go-multierror"
	"github.com/sourcegraph/conc"

	"github.com/mt-inside/concon/pkg/metrics"
)

// Dialer makes one transport connection. *net.Dialer is one.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Outcome is what one worker produces: a connection or an error, never both.
type Outcome struct {
	Candidate netip.AddrPort
	Conn      net.Conn
	Err       error
	Took      time.Duration
}

// Result is a decided race.
type Result struct {
	Winner    netip.AddrPort
	Conn      net.Conn
	Took      time.Duration // of the winning attempt
	Failed    []error       // candidates that had already failed when the winner arrived
	Attempted int
}

type Coordinator struct {
	log     logr.Logger
	dialer  Dialer
	metrics *metrics.Metrics
}

func NewCoordinator(log logr.Logger, dialer Dialer, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		log:     log.WithName("race"),
		dialer:  dialer,
		metrics: m,
	}
}

// Race attempts a connection to every candidate concurrently and returns the first that
// succeeds. The caller owns the returned connection. If every candidate fails, the error is an
// *AllCandidatesFailedError.
//
// Losing attempts are not cancelled; they run to completion in the background and any
// connection they make is closed.
func (c *Coordinator) Race(ctx context.Context, host string, candidates []netip.AddrPort) (*Result, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%s: %w", host, ErrNoCandidates)
	}

	log := c.log.WithValues("host", host)
	log.V(1).Info("Starting race", "candidates", len(candidates))

	outcomes := make(chan Outcome, len(candidates))
	decided := make(chan struct{})
	panicked := make(chan error, 1)

	var wg conc.WaitGroup
	for _, candidate := range candidates {
		w := &worker{
			log:       log.WithValues("candidate", candidate),
			dialer:    c.dialer,
			metrics:   c.metrics,
			candidate: candidate,
		}
		wg.Go(func() { w.run(ctx, decided, outcomes) })
	}

	// Close the channel once every worker has returned, so that ranging over it terminates
	// whether or not anyone connected.
	go func() {
		defer close(outcomes)
		if r := wg.WaitAndRecover(); r != nil {
			panicked <- r.AsError()
		}
	}()

	errs := &multierror.Error{ErrorFormat: singleLine}
	for o := range outcomes {
		if o.Err != nil {
			errs = multierror.Append(errs, o.Err)
			continue
		}

		close(decided)
		go c.drain(log, outcomes)

		log.V(1).Info("Race won", "winner", o.Candidate, "took", o.Took)
		c.metrics.ObserveRace(metrics.Won)

		return &Result{
			Winner:    o.Candidate,
			Conn:      o.Conn,
			Took:      o.Took,
			Failed:    errs.WrappedErrors(),
			Attempted: len(candidates),
		}, nil
	}

	// The panic is sent before the channel is closed, so it's visible by now
	select {
	case err := <-panicked:
		errs = multierror.Append(errs, fmt.Errorf("connect worker: %w", err))
	default:
	}

	log.V(1).Info("Race lost by every candidate", "failures", len(errs.Errors))
	c.metrics.ObserveRace(metrics.AllFailed)

	return nil, &AllCandidatesFailedError{Host: host, Errs: errs}
}

// drain takes everything still to come from the workers once the race is decided, closing any
// connection that made it onto the channel before its worker noticed.
func (c *Coordinator) drain(log logr.Logger, outcomes <-chan Outcome) {
	for o := range outcomes {
		if o.Conn != nil {
			log.V(1).Info("Discarding late connection", "candidate", o.Candidate)
			o.Conn.Close()
			c.metrics.ObserveAttempt(metrics.Discarded, o.Took)
		}
	}
}

func singleLine(es []error) string {
	ss := make([]string, 0, len(es))
	for _, e := range es {
		ss = append(ss, e.Error())
	}
	return strings.Join(ss, "; ")
}
