package aodvv2

import (
	"fmt"
	"net"
	"net/netip"
)

// NetworkInterface is the binding between the server and one network
// interface. The abstraction keeps the server testable without touching
// real interfaces.
type NetworkInterface interface {
	// Name returns the system interface name.
	Name() string
	// Index returns the system interface index.
	Index() int
	// LinkLocalAddr returns the interface's link-local IPv6 address.
	LinkLocalAddr() (netip.Addr, error)
}

// sysInterface implements NetworkInterface over a real system interface.
type sysInterface struct {
	ifc net.Interface
}

// InterfaceByName binds to the named system interface.
func InterfaceByName(name string) (NetworkInterface, error) {
	ifc, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("looking up interface %q: %w", name, err)
	}
	return &sysInterface{ifc: *ifc}, nil
}

func (s *sysInterface) Name() string {
	return s.ifc.Name
}

func (s *sysInterface) Index() int {
	return s.ifc.Index
}

func (s *sysInterface) LinkLocalAddr() (netip.Addr, error) {
	addrs, err := s.ifc.Addrs()
	if err != nil {
		return netip.Addr{}, fmt.Errorf("listing addresses of %q: %w", s.ifc.Name, err)
	}

	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		addr, ok := netip.AddrFromSlice(ipNet.IP)
		if !ok {
			continue
		}
		addr = addr.Unmap()
		if addr.Is6() && addr.IsLinkLocalUnicast() {
			return addr, nil
		}
	}
	return netip.Addr{}, fmt.Errorf("interface %q has no link-local IPv6 address", s.ifc.Name)
}
