package race

import (
	"context"
	"net/netip"
	"time"

	"github.com/go-logr/logr"

	"github.com/mt-inside/concon/pkg/metrics"
)

// worker makes one connection attempt to one candidate. It doesn't retry and doesn't impose a
// timeout of its own: if the dial blocks, so does the worker.
type worker struct {
	log       logr.Logger
	dialer    Dialer
	metrics   *metrics.Metrics
	candidate netip.AddrPort
}

func (w *worker) run(ctx context.Context, decided <-chan struct{}, outcomes chan<- Outcome) {
	start := time.Now()
	w.log.V(1).Info("Dialing")

	conn, err := w.dialer.DialContext(ctx, "tcp", w.candidate.String())
	took := time.Since(start)

	if err != nil {
		w.log.V(1).Info("Connect failed", "error", err.Error(), "took", took)
		w.metrics.ObserveAttempt(metrics.Failed, took)
		outcomes <- Outcome{Candidate: w.candidate, Err: &ConnectError{Candidate: w.candidate, Err: err}, Took: took}
		return
	}

	w.log.V(1).Info("Connected", "local", conn.LocalAddr(), "took", took)
	w.metrics.ObserveAttempt(metrics.Connected, took)

	select {
	case <-decided:
		w.log.V(1).Info("Race already decided; closing connection")
		conn.Close()
		w.metrics.ObserveAttempt(metrics.Discarded, took)
		return
	default:
	}

	outcomes <- Outcome{Candidate: w.candidate, Conn: conn, Took: took}
}
