package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/go-logr/logr"
	"github.com/miekg/dns"
	"github.com/peterzen/goresolver"
)

const DefaultResolvConf = "/etc/resolv.conf"

// DNS does its own queries against the nameservers in resolv.conf, rather than going through
// the system's lookup functions. It therefore only sees DNS: not /etc/hosts, not NIS, etc.
type DNS struct {
	log    logr.Logger
	config *dns.ClientConfig
	client *dns.Client
}

func NewDNS(log logr.Logger, resolvConfPath string) (*DNS, error) {
	config, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", resolvConfPath, err)
	}
	return newDNS(log, config), nil
}

func newDNS(log logr.Logger, config *dns.ClientConfig) *DNS {
	return &DNS{
		log:    log.WithName("dns"),
		config: config,
		client: &dns.Client{
			Dialer: &net.Dialer{Timeout: 5 * time.Second},
		},
	}
}

func (r *DNS) Name() string {
	return "manual DNS queries (miekg/dns) against resolv.conf nameservers"
}

// LookupAddrs tries each nameserver in turn until one answers. With a nameserver that answers,
// each name on the search path is tried, asking for A then AAAA, and the first name with any
// addresses is used. A nameserver that answers with nothing for every name is believed; the
// others aren't asked.
func (r *DNS) LookupAddrs(ctx context.Context, host string) ([]netip.Addr, error) {
	if len(r.config.Servers) == 0 {
		return nil, errors.New("no nameservers configured")
	}

	names := r.config.NameList(host)
	var lastErr error

serversLoop:
	for _, serverHost := range r.config.Servers {
		server := net.JoinHostPort(serverHost, r.config.Port)
		r.log.V(1).Info("Trying DNS server", "addr", server)

		for _, name := range names {
			r.log.V(1).Info("Trying search path item", "fqdn", name)

			var answers []dns.RR
			for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
				rrs, err := r.query(ctx, server, name, qtype)
				if err != nil {
					lastErr = err
					continue serversLoop
				}
				answers = append(answers, rrs...)
			}

			addrs, chain := indexAnswers(name, answers)
			if len(addrs) > 0 {
				r.log.V(1).Info("Answered", "chain", chain, "addrs", addrs, "server", server)
				return addrs, nil
			}
		}

		return nil, fmt.Errorf("%s: %w", host, ErrNoAddresses)
	}

	return nil, fmt.Errorf("all DNS servers failed: %w", lastErr)
}

func (r *DNS) query(ctx context.Context, server, name string, qtype uint16) ([]dns.RR, error) {
	m := new(dns.Msg)
	// Asks the server to recurse for us
	m.SetQuestion(name, qtype)

	in, _, err := r.client.ExchangeContext(ctx, m, server)
	if err != nil {
		return nil, err
	}

	switch in.Rcode {
	case dns.RcodeSuccess, dns.RcodeNameError:
		// NXDOMAIN is an answer; the next search name might exist
		return in.Answer, nil
	default:
		return nil, fmt.Errorf("%s %s from %s: %s", dns.TypeToString[qtype], name, server, dns.RcodeToString[in.Rcode])
	}
}

// indexAnswers pulls the addresses out of a set of answers, and follows the CNAME chain from
// question, for logging.
//
// A CNAME can only point at one thing, so the chain never branches; only its last link can
// have more than one (A/AAAA) record.
func indexAnswers(question string, answers []dns.RR) ([]netip.Addr, []string) {
	cnames := map[string]string{}
	var addrs []netip.Addr
	for _, ans := range answers {
		switch t := ans.(type) {
		case *dns.CNAME:
			cnames[t.Hdr.Name] = t.Target
		case *dns.A:
			if a, ok := netip.AddrFromSlice(t.A); ok {
				addrs = append(addrs, a.Unmap())
			}
		case *dns.AAAA:
			if a, ok := netip.AddrFromSlice(t.AAAA); ok {
				addrs = append(addrs, a)
			}
		}
	}

	chain := []string{question}
	cname := question
	for len(chain) <= len(cnames) { // bounds a looping chain
		target, found := cnames[cname]
		if !found {
			break
		}
		chain = append(chain, target)
		cname = target
	}

	return addrs, chain
}

// CheckDNSSEC validates the name's A records all the way from the root, using goresolver
// rather than trusting the local recursive resolver (which commonly strips the DNSSEC records,
// let alone validates them). nil means the name validated.
func CheckDNSSEC(resolvConfPath, host string) error {
	resolver, err := goresolver.NewResolver(resolvConfPath)
	if err != nil {
		return err
	}

	_, err = resolver.StrictNSQuery(dns.Fqdn(host), dns.TypeA)
	return err
}
