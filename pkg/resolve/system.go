package resolve

import (
	"context"
	"net"
	"net/netip"
)

// System asks the Go standard library, which itself is either the pure-Go resolver or libc
// (see SystemResolverName).
type System struct {
	resolver *net.Resolver
}

func NewSystem() *System {
	return &System{resolver: net.DefaultResolver}
}

func (s *System) LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error) {
	return s.resolver.LookupNetIP(ctx, "ip", host)
}

func (s *System) Name() string {
	return SystemResolverName
}
