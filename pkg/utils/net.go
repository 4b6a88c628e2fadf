package utils

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

const DefaultPort uint16 = 80

var ErrEmptyTarget = errors.New("empty target")

// Maps like a lookup, but without the STD3 hostname rules: names like my_host.internal are
// resolvable through /etc/hosts and container DNS.
var hostProfile = idna.New(idna.MapForLookup(), idna.Transitional(true), idna.StrictDomainName(false))

// ASCIIHost is the wire form of a host name: punycode for internationalised names. A name the
// IDNA rules still reject is returned unchanged, for the resolver to decide on.
func ASCIIHost(host string) string {
	if _, err := netip.ParseAddr(host); err == nil {
		return host
	}
	ascii, err := hostProfile.ToASCII(host)
	if err != nil {
		return host
	}
	return ascii
}

// Target is one user-supplied thing to connect to: a name or IP literal, and a port.
type Target struct {
	Host string
	Port uint16
}

// ParseTarget accepts any of
// - name
// - name:port
// - IPv4 literal, with or without :port
// - IPv6 literal, bare or as [addr]:port
// defaultPort is used when no port is given.
func ParseTarget(target string, defaultPort uint16) (Target, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Target{}, ErrEmptyTarget
	}

	// Bare v6 literals contain colons but no port
	if addr, err := netip.ParseAddr(target); err == nil {
		return Target{Host: addr.String(), Port: defaultPort}, nil
	}

	// [v6] with no port
	if strings.HasPrefix(target, "[") && strings.HasSuffix(target, "]") {
		addr, err := netip.ParseAddr(target[1 : len(target)-1])
		if err != nil || !addr.Is6() {
			return Target{}, fmt.Errorf("target %q: only IPv6 literals go in brackets", target)
		}
		return Target{Host: addr.String(), Port: defaultPort}, nil
	}

	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		if strings.Contains(target, ":") {
			return Target{}, fmt.Errorf("can't parse target %q: %w", target, err)
		}
		return Target{Host: target, Port: defaultPort}, nil
	}
	if host == "" {
		return Target{}, fmt.Errorf("target %q has no host: %w", target, ErrEmptyTarget)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return Target{}, fmt.Errorf("target %q has invalid port %q", target, portStr)
	}

	return Target{Host: host, Port: uint16(port)}, nil
}

// IsIPLiteral reports whether the target needs no resolution.
func (t Target) IsIPLiteral() bool {
	_, err := netip.ParseAddr(t.Host)
	return err == nil
}

// HostHeader is the value for the HTTP/1.1 Host header. The port is only appended when it's
// not the default for plain http.
// https://www.w3.org/Protocols/rfc2616/rfc2616-sec14.html#sec14.23
func (t Target) HostHeader() string {
	host := ASCIIHost(t.Host)
	if t.Port == DefaultPort {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, strconv.FormatUint(uint64(t.Port), 10))
}

func (t Target) String() string {
	return net.JoinHostPort(t.Host, strconv.FormatUint(uint64(t.Port), 10))
}
