//go:build linux
// +build linux

package capture

import (
	"fmt"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/vishvananda/netlink"
	"golang.org/x/net/bpf"
)

// Live sniffs world traffic from a network interface
type Live struct {
	// Interface is the name of the interface being sniffed
	Interface string

	handle *pcapgo.EthernetHandle
}

// OpenLive starts sniffing traffic to and from port on serverIP. The interface
// is the one the kernel would route serverIP through. Needs CAP_NET_RAW.
func OpenLive(serverIP net.IP, port uint16) (*Live, error) {
	if serverIP.To4() == nil {
		return nil, ErrNotIPv4
	}

	name, err := routeInterface(serverIP)
	if err != nil {
		return nil, err
	}

	handle, err := pcapgo.NewEthernetHandle(name)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}

	filter, err := bpf.Assemble(filterProgram(serverIP, port))
	if err != nil {
		handle.Close()
		return nil, err
	}
	err = handle.SetBPF(filter)
	if err != nil {
		handle.Close()
		return nil, err
	}

	return &Live{Interface: name, handle: handle}, nil
}

// routeInterface gets the name of the interface used when sending to dstIP
func routeInterface(dstIP net.IP) (string, error) {
	routes, err := netlink.RouteGet(dstIP)
	if err != nil {
		return "", fmt.Errorf("getting route: %w", err)
	}
	if len(routes) == 0 {
		return "", ErrNoRoute
	}
	// the kernel only ever gives one back
	link, err := netlink.LinkByIndex(routes[0].LinkIndex)
	if err != nil {
		return "", fmt.Errorf("getting link: %w", err)
	}
	return link.Attrs().Name, nil
}

// PacketSource reads from the interface until Close is called
func (l *Live) PacketSource() *gopacket.PacketSource {
	return gopacket.NewPacketSource(l.handle, layers.LayerTypeEthernet)
}

// Close stops sniffing
func (l *Live) Close() {
	l.handle.Close()
}
