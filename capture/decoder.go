package capture

import (
	"io"
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/google/gopacket/tcpassembly"
	"github.com/malcolmseyd/worldcrypt-go/header"
)

// Handler is called for every packet as soon as it has been decoded
type Handler func(s *Session, p Packet)

// Decoder reassembles the TCP connections to a world server and decodes a
// Session for each of them. It is not safe for concurrent use.
type Decoder struct {
	layout     header.Layout
	sessionKey header.SessionKey
	server     gopacket.Endpoint

	assembler *tcpassembly.Assembler
	// by client to server flows
	sessions map[connKey]*Session
	order    []*Session
	handler  Handler
}

type connKey struct {
	net, transport gopacket.Flow
}

// NewDecoder creates a Decoder for traffic to or from port.
// Every connection is expected to use sessionKey.
func NewDecoder(layout header.Layout, sessionKey header.SessionKey, port uint16) *Decoder {
	d := &Decoder{
		layout:     layout,
		sessionKey: sessionKey,
		server:     layers.NewTCPPortEndpoint(layers.TCPPort(port)),
		sessions:   make(map[connKey]*Session),
	}
	d.assembler = tcpassembly.NewAssembler(tcpassembly.NewStreamPool(d))
	return d
}

// SetHandler sets a function that sees every packet of every Session
func (d *Decoder) SetHandler(h Handler) {
	d.handler = h
	for _, s := range d.order {
		s.handler = h
	}
}

// AddPacket feeds one captured packet. Anything that isn't TCP to or from the
// world port is ignored.
func (d *Decoder) AddPacket(packet gopacket.Packet) {
	network := packet.NetworkLayer()
	if network == nil {
		return
	}
	tcp, ok := packet.TransportLayer().(*layers.TCP)
	if !ok {
		return
	}
	flow := tcp.TransportFlow()
	if flow.Src() != d.server && flow.Dst() != d.server {
		return
	}
	d.assembler.AssembleWithTimestamp(network.NetworkFlow(), tcp, packet.Metadata().Timestamp)
}

// Flush hands over everything the assembler is still holding on to.
// Call it when the capture ends.
func (d *Decoder) Flush() {
	d.assembler.FlushAll()
}

// Sessions returns the sessions in the order their connections were first seen
func (d *Decoder) Sessions() []*Session {
	return d.order
}

// New is called by the assembler for each direction of each connection
func (d *Decoder) New(netFlow, tcpFlow gopacket.Flow) tcpassembly.Stream {
	dir := ClientToServer
	if tcpFlow.Src() == d.server {
		dir = ServerToClient
		netFlow, tcpFlow = netFlow.Reverse(), tcpFlow.Reverse()
	}

	key := connKey{net: netFlow, transport: tcpFlow}
	s, ok := d.sessions[key]
	if !ok {
		s = NewSession(d.layout, d.sessionKey)
		s.Client = joinEndpoint(netFlow.Src(), tcpFlow.Src())
		s.Server = joinEndpoint(netFlow.Dst(), tcpFlow.Dst())
		s.handler = d.handler
		d.sessions[key] = s
		d.order = append(d.order, s)
	}
	return &worldStream{session: s, dir: dir}
}

func joinEndpoint(host, port gopacket.Endpoint) string {
	return net.JoinHostPort(host.String(), port.String())
}

// worldStream passes reassembled bytes of one direction to its Session
type worldStream struct {
	session *Session
	dir     Direction
}

func (w *worldStream) Reassembled(reassembly []tcpassembly.Reassembly) {
	for _, r := range reassembly {
		if r.Skip != 0 {
			// a missing byte desyncs the cipher for good
			w.session.fail(ErrStreamGap)
			return
		}
		if len(r.Bytes) == 0 {
			continue
		}
		// errors are kept in the session
		_ = w.session.Feed(w.dir, r.Bytes, r.Seen)
	}
}

func (w *worldStream) ReassemblyComplete() {}

// Run reads every packet from src into d until src is exhausted, then flushes.
// io.EOF is not returned.
func (d *Decoder) Run(src *gopacket.PacketSource) error {
	for {
		packet, err := src.NextPacket()
		if err == io.EOF {
			d.Flush()
			return nil
		}
		if err != nil {
			d.Flush()
			return err
		}
		d.AddPacket(packet)
	}
}

// DecodeFile decodes every world session in a pcap file
func DecodeFile(r io.Reader, layout header.Layout, sessionKey header.SessionKey, port uint16) ([]*Session, error) {
	pcap, err := pcapgo.NewReader(r)
	if err != nil {
		return nil, err
	}
	d := NewDecoder(layout, sessionKey, port)
	err = d.Run(gopacket.NewPacketSource(pcap, pcap.LinkType()))
	return d.Sessions(), err
}
