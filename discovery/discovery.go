// Package discovery resolves the address of the shoe, either from explicit
// configuration or through mDNS.
package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/mdns"
)

type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrNotFound     = Error("device not found")
	ErrEmptyAddress = Error("empty address")
)

const (
	DefaultService  = "_coap._udp"
	DefaultInstance = "shoe_control"
	DefaultDomain   = "local"
	DefaultPort     = 5683
)

// Resolver returns the host:port of the device.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Static resolves to a configured address. A missing port defaults to port.
type Static struct {
	Address string
	Port    int
}

func (s Static) Resolve(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return JoinPort(s.Address, s.Port)
}

// JoinPort appends port to address unless it already names one.
func JoinPort(address string, port int) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", ErrEmptyAddress
	}
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address, nil
	}
	return net.JoinHostPort(strings.Trim(address, "[]"), strconv.Itoa(port)), nil
}

// LookupFunc runs an mDNS query and publishes answers to params.Entries. It
// returns when the query times out or ctx is done.
type LookupFunc = func(ctx context.Context, params *mdns.QueryParam) error

// QueryContext runs mdns.Query and stops forwarding answers once ctx is done.
// The underlying query still ends on its own after params.Timeout.
func QueryContext(ctx context.Context, params *mdns.QueryParam) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := params.Entries
	in := make(chan *mdns.ServiceEntry, cap(out)+1)
	p := *params
	p.Entries = in
	done := make(chan error, 1)
	go func() {
		err := mdns.Query(&p)
		close(in)
		done <- err
	}()
	for {
		select {
		case e, ok := <-in:
			if !ok {
				return <-done
			}
			// mdns never blocks on a full entries channel, neither do we.
			select {
			case out <- e:
			default:
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

var DefaultMDNS = MDNS{
	Service:  DefaultService,
	Instance: DefaultInstance,
	Domain:   DefaultDomain,
	Timeout:  3 * time.Second,
}

// MDNS browses for Service and picks the entry announced as Instance.
type MDNS struct {
	Service  string
	Instance string
	Domain   string
	Timeout  time.Duration
	// Lookup defaults to QueryContext.
	Lookup LookupFunc
}

func (m MDNS) Resolve(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	timeout := m.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout || timeout <= 0 {
			timeout = left
		}
	}
	lookup := m.Lookup
	if lookup == nil {
		lookup = QueryContext
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	found := make(chan *mdns.ServiceEntry, 1)
	go func() {
		defer close(found)
		var match *mdns.ServiceEntry
		for e := range entries {
			if match == nil && m.matches(e) {
				match = e
			}
		}
		if match != nil {
			found <- match
		}
	}()

	params := mdns.DefaultParams(m.Service)
	params.Domain = m.Domain
	if timeout > 0 {
		params.Timeout = timeout
	}
	params.Entries = entries
	err := lookup(ctx, params)
	close(entries)
	entry, ok := <-found
	if err != nil && !ok {
		return "", fmt.Errorf("cannot query %v: %w", m.Service, err)
	}
	if !ok {
		return "", fmt.Errorf("%w: %v.%v.%v", ErrNotFound, m.Instance, m.Service, m.Domain)
	}
	return entryAddress(entry)
}

func (m MDNS) matches(e *mdns.ServiceEntry) bool {
	if e == nil {
		return false
	}
	name := strings.TrimSuffix(e.Name, ".")
	if m.Instance == "" {
		return strings.HasSuffix(name, m.Service+"."+m.Domain)
	}
	return name == m.Instance+"."+m.Service+"."+m.Domain || strings.HasPrefix(name, m.Instance+".")
}

func entryAddress(e *mdns.ServiceEntry) (string, error) {
	port := e.Port
	if port == 0 {
		port = DefaultPort
	}
	switch {
	case e.AddrV4 != nil:
		return net.JoinHostPort(e.AddrV4.String(), strconv.Itoa(port)), nil
	case e.AddrV6 != nil:
		return net.JoinHostPort(e.AddrV6.String(), strconv.Itoa(port)), nil
	}
	return "", fmt.Errorf("%w: %v announced without address", ErrNotFound, e.Name)
}

// Select resolves to address when it is set and falls back to mDNS otherwise.
func Select(address string, port int, m MDNS) Resolver {
	if strings.TrimSpace(address) != "" {
		return Static{Address: address, Port: port}
	}
	return m
}
