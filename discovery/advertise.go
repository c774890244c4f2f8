package discovery

import (
	"fmt"
	"net"
	"os"

	"github.com/hashicorp/mdns"
)

// Advertiser announces a device over mDNS until Shutdown is called.
type Advertiser struct {
	server *mdns.Server
}

// Advertise announces instance as service.domain on port. An empty host uses
// the machine hostname.
func Advertise(m MDNS, host string, port int, ips []net.IP, txt ...string) (*Advertiser, error) {
	if host == "" {
		h, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("cannot get hostname: %w", err)
		}
		host = h
	}
	svc, err := mdns.NewMDNSService(m.Instance, m.Service, m.Domain+".", host+".", port, ips, txt)
	if err != nil {
		return nil, fmt.Errorf("cannot create mdns service %v: %w", m.Instance, err)
	}
	srv, err := mdns.NewServer(&mdns.Config{Zone: svc})
	if err != nil {
		return nil, fmt.Errorf("cannot start mdns server: %w", err)
	}
	return &Advertiser{server: srv}, nil
}

func (a *Advertiser) Shutdown() error {
	return a.server.Shutdown()
}
