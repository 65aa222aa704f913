//go:build !linux
// +build !linux

package capture

import (
	"net"

	"github.com/google/gopacket"
)

// Live sniffs world traffic from a network interface. Only linux is supported.
type Live struct {
	Interface string
}

// OpenLive always fails outside of linux
func OpenLive(serverIP net.IP, port uint16) (*Live, error) {
	return nil, ErrLiveUnsupported
}

// PacketSource is never reached since OpenLive fails
func (l *Live) PacketSource() *gopacket.PacketSource {
	return nil
}

// Close does nothing
func (l *Live) Close() {}
