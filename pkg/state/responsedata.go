package state

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/mt-inside/http-log/pkg/bios"
	"github.com/mt-inside/http-log/pkg/output"
	"github.com/spf13/viper"

	"github.com/mt-inside/concon/pkg/fetch"
	"github.com/mt-inside/concon/pkg/utils"
)

const timeFmt = "15:04:05.000"

type PrintOpts struct {
	Dns       bool
	Transport bool
	Request   bool
	BodyStats bool
}

func PrintOptsFromViper() PrintOpts {
	return PrintOpts{
		Dns:       viper.GetBool("dns"),
		Transport: viper.GetBool("transport"),
		Request:   viper.GetBool("request"),
		BodyStats: viper.GetBool("body-stats"),
	}
}

/* Stages fill this in order; a stage that fails leaves everything after it zero.
* The first non-nil of TargetError, DnsError, TransportError, FetchError says where it stopped.
 */
type ResponseData struct {
	ID        string
	StartTime time.Time

	RawTarget   string
	TargetError error
	Target      utils.Target
	HostHeader  string

	DnsResolver   string
	DnsCandidates []netip.AddrPort
	DnsError      error
	DnssecChecked bool
	DnssecError   error

	TransportError      error
	TransportFailures   []error // per-candidate, whether or not anything connected
	TransportWinner     netip.AddrPort
	TransportConnTime   time.Time
	TransportConnTook   time.Duration
	TransportRemoteAddr net.Addr
	TransportLocalAddr  net.Addr

	Response   *fetch.Response
	FetchError error
}

func NewResponseData(id, rawTarget string) *ResponseData {
	return &ResponseData{
		ID:        id,
		StartTime: time.Now(),
		RawTarget: rawTarget,
	}
}

// Err is why this target failed, or nil.
func (rD *ResponseData) Err() error {
	return errors.Join(rD.TargetError, rD.DnsError, rD.TransportError, rD.FetchError)
}

func (rD *ResponseData) Print(s output.TtyStyler, b bios.Bios, out io.Writer, pO PrintOpts) {
	if rD.TargetError != nil {
		b.PrintErr(fmt.Sprintf("%s: %v", s.Addr(rD.RawTarget), rD.TargetError))
		return
	}

	if pO.Dns {
		fmt.Fprint(out, s.Banner("DNS"))
		fmt.Fprintf(out, "Resolver: %s\n", s.Noun(rD.DnsResolver))
		if rD.Target.IsIPLiteral() {
			fmt.Fprintf(out, "%s is an IP literal; not resolved\n", s.Addr(rD.Target.Host))
		}
		if rD.DnssecChecked {
			fmt.Fprintf(out, "DNSSEC valid? %s\n", s.YesError(rD.DnssecError))
		}
	}
	if b.CheckPrintErr(rD.DnsError) {
		return
	}
	if pO.Dns {
		fmt.Fprintf(out, "%s -> %s\n", s.Addr(rD.Target.Host), s.List(addrStrings(rD.DnsCandidates), output.AddrStyle))
	}

	if pO.Transport {
		fmt.Fprint(out, s.Banner("TCP"))
		fmt.Fprintf(out, "Raced %s candidate(s)\n", s.Number(len(rD.DnsCandidates)))
		for _, f := range rD.TransportFailures {
			fmt.Fprintf(out, "\t%s %v\n", s.Fail("failed"), f)
		}
	}
	if b.CheckPrintErr(rD.TransportError) {
		return
	}
	if pO.Transport {
		fmt.Fprintf(out, "%s Won by %s after %s\n",
			s.Info(rD.TransportConnTime.Format(timeFmt)),
			s.Addr(rD.TransportWinner.String()),
			s.Duration(rD.TransportConnTook.Round(time.Microsecond)),
		)
		fmt.Fprintf(out, "\tConnected %s -> %s\n", s.Addr(rD.TransportLocalAddr.String()), s.Addr(rD.TransportRemoteAddr.String()))
	}

	if pO.Request && rD.Response != nil {
		fmt.Fprint(out, s.Banner("Request"))
		fmt.Fprintf(out, "%s / Host %s\n", s.Verb("GET"), s.Addr(rD.HostHeader))
		fmt.Fprintf(out, "\t%s bytes sent\n", s.Number(len(rD.Response.Request)))
	}

	// Everything up to here is optional; this is the one thing always shown.
	fmt.Fprintf(out, "Connected to %s\n\n", s.Addr(rD.TransportRemoteAddr.String()))

	if rD.Response != nil {
		fmt.Fprintln(out, rD.Response.Text)
	}
	if b.CheckPrintErr(rD.FetchError) {
		return
	}

	if pO.BodyStats {
		resp := rD.Response
		fmt.Fprint(out, s.Banner("Body"))
		fmt.Fprintf(out, "%s %s bytes read in %s reads\n",
			s.Info(resp.CompleteTime.Format(timeFmt)),
			s.Number(strconv.Itoa(len(resp.Raw))),
			s.Number(resp.Reads),
		)
		ended := "short read"
		if resp.EOF {
			ended = "end of stream"
		}
		fmt.Fprintf(out, "\tended by %s\n", s.Noun(ended))
		fmt.Fprintf(out, "\tvalid utf-8? %s", s.YesNo(utf8.Valid(resp.Raw)))
		if resp.Skipped > 0 {
			fmt.Fprintf(out, " (%s invalid bytes dropped from the text above)", s.Warn(resp.Skipped))
		}
		fmt.Fprintln(out)
	}
}

func addrStrings(addrs []netip.AddrPort) []string {
	ss := make([]string, 0, len(addrs))
	for _, a := range addrs {
		ss = append(ss, a.String())
	}
	return ss
}
