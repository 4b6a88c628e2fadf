// Package resolve turns a host name into the candidate addresses to race.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/go-logr/logr"

	"github.com/mt-inside/concon/pkg/utils"
)

var ErrNoAddresses = errors.New("no addresses found")

// ResolutionError means the host can't be raced at all.
type ResolutionError struct {
	Host string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolving %s: %v", e.Host, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Upstream is a source of addresses for a name.
type Upstream interface {
	LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error)
	Name() string
}

type Resolver struct {
	log       logr.Logger
	overrides *Static
	upstream  Upstream
}

// NewResolver consults overrides (which may be nil) before upstream.
func NewResolver(log logr.Logger, upstream Upstream, overrides *Static) *Resolver {
	return &Resolver{
		log:       log.WithName("resolve"),
		overrides: overrides,
		upstream:  upstream,
	}
}

func (r *Resolver) UpstreamName() string {
	return r.upstream.Name()
}

// Resolve returns every address for host, in the order the upstream gave them, each with port.
// IP literals resolve to themselves. Any failure, including an empty answer, is a
// *ResolutionError.
func (r *Resolver) Resolve(ctx context.Context, host string, port uint16) ([]netip.AddrPort, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return []netip.AddrPort{netip.AddrPortFrom(addr.Unmap(), port)}, nil
	}

	name, err := normaliseHost(host)
	if err != nil {
		return nil, &ResolutionError{Host: host, Err: err}
	}

	var addrs []netip.Addr
	if overridden, ok := r.overrides.Lookup(name); ok {
		r.log.V(1).Info("Using override", "host", name, "addrs", overridden)
		addrs = overridden
	} else {
		addrs, err = r.upstream.LookupAddrs(ctx, name)
		if err != nil {
			return nil, &ResolutionError{Host: host, Err: err}
		}
		r.log.V(1).Info("Resolved", "host", name, "resolver", r.upstream.Name(), "addrs", addrs)
	}

	candidates := withPort(addrs, port)
	if len(candidates) == 0 {
		return nil, &ResolutionError{Host: host, Err: ErrNoAddresses}
	}

	return candidates, nil
}

// withPort unmaps v4-in-v6 addresses, drops duplicates and invalid ones, and attaches port.
func withPort(addrs []netip.Addr, port uint16) []netip.AddrPort {
	seen := map[netip.Addr]struct{}{}
	var aps []netip.AddrPort
	for _, a := range addrs {
		if !a.IsValid() {
			continue
		}
		a = a.Unmap()
		if _, found := seen[a]; found {
			continue
		}
		seen[a] = struct{}{}
		aps = append(aps, netip.AddrPortFrom(a, port))
	}
	return aps
}

// normaliseHost lower-cases and punycodes internationalised names. Anything else, valid
// hostname or not, is left for the upstream to judge.
func normaliseHost(host string) (string, error) {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" {
		return "", errors.New("empty host name")
	}
	return utils.ASCIIHost(host), nil
}
