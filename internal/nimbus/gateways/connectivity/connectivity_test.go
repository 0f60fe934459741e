package connectivity

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ifaces(flags ...net.Flags) func() ([]net.Interface, error) {
	return func() ([]net.Interface, error) {
		out := make([]net.Interface, len(flags))
		for i, f := range flags {
			out[i] = net.Interface{Index: i + 1, Name: "if", Flags: f}
		}
		return out, nil
	}
}

func TestOnline_InterfaceState(t *testing.T) {
	assert.True(t, New(Options{Interfaces: ifaces(net.FlagUp|net.FlagLoopback, net.FlagUp)}).Online(context.Background()))
	assert.False(t, New(Options{Interfaces: ifaces(net.FlagUp|net.FlagLoopback, 0)}).Online(context.Background()))
	assert.False(t, New(Options{Interfaces: ifaces()}).Online(context.Background()))
}

func TestOnline_ListingErrorCountsAsOnline(t *testing.T) {
	c := New(Options{Interfaces: func() ([]net.Interface, error) { return nil, errors.New("no netlink") }})
	assert.True(t, c.Online(context.Background()))
}

func TestOnline_Probe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			_ = conn.Close()
		}
	}()

	up := ifaces(net.FlagUp)
	assert.True(t, New(Options{Interfaces: up, Probe: ln.Addr().String()}).Online(context.Background()))

	refused := New(Options{
		Interfaces: up,
		Probe:      "192.0.2.1:9",
		Dial: func(context.Context, string, string) (net.Conn, error) {
			return nil, errors.New("connection refused")
		},
	})
	assert.False(t, refused.Online(context.Background()))
}
