package probes

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"

	"github.com/mt-inside/concon/pkg/fetch"
	"github.com/mt-inside/concon/pkg/metrics"
	"github.com/mt-inside/concon/pkg/race"
	"github.com/mt-inside/concon/pkg/resolve"
	"github.com/mt-inside/concon/pkg/state"
	"github.com/mt-inside/concon/pkg/utils"
)

// Prober takes one target through resolve, race, and fetch.
type Prober struct {
	log         logr.Logger
	requestData *state.RequestData
	resolver    *resolve.Resolver
	coordinator *race.Coordinator
	handler     *fetch.Handler
	metrics     *metrics.Metrics
}

func NewProber(
	log logr.Logger,
	requestData *state.RequestData,
	resolver *resolve.Resolver,
	dialer race.Dialer,
	m *metrics.Metrics,
) *Prober {
	return &Prober{
		log:         log,
		requestData: requestData,
		resolver:    resolver,
		coordinator: race.NewCoordinator(log, dialer, m),
		handler:     fetch.NewHandler(log, requestData.BufferSize),
		metrics:     m,
	}
}

// Probe never fails outright; how far it got, and why it stopped, is recorded in the returned
// ResponseData.
func (p *Prober) Probe(ctx context.Context, target string) *state.ResponseData {
	rD := state.NewResponseData(uuid.NewString(), target)
	log := p.log.WithValues("probe", rD.ID, "target", target)

	t, err := utils.ParseTarget(target, p.requestData.Port)
	if err != nil {
		rD.TargetError = err
		return rD
	}
	rD.Target = t
	rD.HostHeader = t.HostHeader()

	/* DNS */

	rD.DnsResolver = p.resolver.UpstreamName()
	candidates, err := p.resolver.Resolve(ctx, t.Host, t.Port)
	if err != nil {
		log.Info("Resolution failed", "error", err)
		rD.DnsError = err
		return rD
	}
	rD.DnsCandidates = candidates

	if p.requestData.DNSSEC && !t.IsIPLiteral() {
		rD.DnssecChecked = true
		rD.DnssecError = resolve.CheckDNSSEC(p.requestData.ResolvConf, t.Host)
	}

	/* Transport */

	res, err := p.coordinator.Race(ctx, t.Host, candidates)
	if err != nil {
		log.Info("No connection", "error", err)
		rD.TransportError = err
		var allFailed *race.AllCandidatesFailedError
		if errors.As(err, &allFailed) {
			rD.TransportFailures = allFailed.Failures()
		}
		return rD
	}
	defer res.Conn.Close()

	rD.TransportFailures = res.Failed
	rD.TransportWinner = res.Winner
	rD.TransportConnTime = time.Now()
	rD.TransportConnTook = res.Took
	rD.TransportRemoteAddr = res.Conn.RemoteAddr()
	rD.TransportLocalAddr = res.Conn.LocalAddr()
	log.V(1).Info("Connected", "winner", res.Winner, "took", res.Took)

	/* Request / response */

	resp, err := p.handler.Fetch(res.Conn, rD.HostHeader)
	rD.Response = resp
	if err != nil {
		log.Info("Fetch failed", "error", err)
		rD.FetchError = err
	}
	if resp != nil {
		p.metrics.ObserveResponse(len(resp.Raw))
	}

	return rD
}

// ProbeAll probes each target in turn, handing each result to each as it's done. A target that
// fails doesn't stop the rest. The returned error, if any, lists every target that failed.
func (p *Prober) ProbeAll(ctx context.Context, targets []string, each func(*state.ResponseData)) error {
	var errs []error
	for _, target := range targets {
		rD := p.Probe(ctx, target)
		each(rD)
		if err := rD.Err(); err != nil {
			errs = append(errs, &TargetError{Target: target, Err: err})
		}
	}
	return errors.Join(errs...)
}

type TargetError struct {
	Target string
	Err    error
}

func (e *TargetError) Error() string { return e.Target + ": " + e.Err.Error() }
func (e *TargetError) Unwrap() error { return e.Err }

// NewProberFromRequestData picks the upstream resolver named in requestData and dials with a
// plain *net.Dialer.
func NewProberFromRequestData(log logr.Logger, requestData *state.RequestData, m *metrics.Metrics) (*Prober, error) {
	var upstream resolve.Upstream
	switch requestData.Resolver {
	case state.ResolverDNS:
		d, err := resolve.NewDNS(log, requestData.ResolvConf)
		if err != nil {
			return nil, err
		}
		upstream = d
	default:
		upstream = resolve.NewSystem()
	}

	resolver := resolve.NewResolver(log, upstream, requestData.Overrides)
	dialer := &net.Dialer{Timeout: requestData.ConnectTimeout}

	return NewProber(log, requestData, resolver, dialer, m), nil
}
