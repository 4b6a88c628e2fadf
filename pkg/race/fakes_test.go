package race

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"
)

var errRefused = errors.New("connection refused")

// fakeConn records whether it was ever read or closed.
type fakeConn struct {
	net.Conn // unimplemented methods panic

	remote netip.AddrPort
	reads  atomic.Int32
	closed chan struct{}
	once   sync.Once
}

func newFakeConn(remote netip.AddrPort) *fakeConn {
	return &fakeConn{remote: remote, closed: make(chan struct{})}
}

func (c *fakeConn) Read(b []byte) (int, error) {
	c.reads.Add(1)
	return 0, errors.New("fakeConn: unexpected read")
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) RemoteAddr() net.Addr { return net.TCPAddrFromAddrPort(c.remote) }
func (c *fakeConn) LocalAddr() net.Addr {
	return net.TCPAddrFromAddrPort(netip.MustParseAddrPort("127.0.0.1:40000"))
}

// plan says how the dial to one address goes.
type plan struct {
	gate  <-chan struct{} // dial blocks until this is closed, if set
	err   error
	panic bool
}

type fakeDialer struct {
	mu     sync.Mutex
	plans  map[string]plan
	dialed []string
	conns  map[string]*fakeConn
}

func newFakeDialer(plans map[netip.AddrPort]plan) *fakeDialer {
	d := &fakeDialer{plans: map[string]plan{}, conns: map[string]*fakeConn{}}
	for a, p := range plans {
		d.plans[a.String()] = p
	}
	return d
}

func (d *fakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.mu.Lock()
	d.dialed = append(d.dialed, address)
	p, ok := d.plans[address]
	d.mu.Unlock()

	if !ok {
		return nil, errRefused
	}
	if p.gate != nil {
		<-p.gate
	}
	if p.panic {
		panic("dialer exploded")
	}
	if p.err != nil {
		return nil, p.err
	}

	conn := newFakeConn(netip.MustParseAddrPort(address))
	d.mu.Lock()
	d.conns[address] = conn
	d.mu.Unlock()
	return conn, nil
}

func (d *fakeDialer) conn(a netip.AddrPort) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[a.String()]
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dialed)
}

func (d *fakeDialer) allConns() []*fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	var cs []*fakeConn
	for _, c := range d.conns {
		cs = append(cs, c)
	}
	return cs
}

const hangTimeout = 5 * time.Second
