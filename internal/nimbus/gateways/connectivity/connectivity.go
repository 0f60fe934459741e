// Package connectivity reports whether the machine can reach the network.
package connectivity

import (
	"context"
	"net"
	"time"
)

const DefaultProbeTimeout = 2 * time.Second

type Options struct {
	// Probe is an optional host:port that must accept a TCP connection for
	// the machine to count as online.
	Probe        string
	ProbeTimeout time.Duration
	// Interfaces lists network interfaces; defaults to net.Interfaces.
	Interfaces func() ([]net.Interface, error)
	// Dial opens the probe connection; defaults to a net.Dialer.
	Dial func(ctx context.Context, network, address string) (net.Conn, error)
}

type Checker struct {
	probe        string
	probeTimeout time.Duration
	interfaces   func() ([]net.Interface, error)
	dial         func(ctx context.Context, network, address string) (net.Conn, error)
}

func New(opts Options) *Checker {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.Interfaces == nil {
		opts.Interfaces = net.Interfaces
	}
	if opts.Dial == nil {
		var d net.Dialer
		opts.Dial = d.DialContext
	}
	return &Checker{
		probe:        opts.Probe,
		probeTimeout: opts.ProbeTimeout,
		interfaces:   opts.Interfaces,
		dial:         opts.Dial,
	}
}

// Online reports true when a non-loopback interface is up and, if a probe is
// configured, the probe accepts a connection. An interface listing error
// counts as online: the load failure itself is then reported.
func (c *Checker) Online(ctx context.Context) bool {
	ifaces, err := c.interfaces()
	if err == nil && !anyUp(ifaces) {
		return false
	}
	if c.probe == "" {
		return true
	}
	pctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()
	conn, err := c.dial(pctx, "tcp", c.probe)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func anyUp(ifaces []net.Interface) bool {
	for _, i := range ifaces {
		if i.Flags&net.FlagUp != 0 && i.Flags&net.FlagLoopback == 0 {
			return true
		}
	}
	return false
}
