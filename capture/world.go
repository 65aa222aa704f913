// Package capture decodes world server sessions from recorded or sniffed
// traffic, given the session key from the login server.
//
// The first packet in each direction (SMSG_AUTH_CHALLENGE and
// CMSG_AUTH_SESSION) is sent in the clear. Those two carry the seeds and the
// client proof, which are checked with the header package before any
// encrypted header is decrypted.
package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/malcolmseyd/worldcrypt-go/header"
	"github.com/malcolmseyd/worldcrypt-go/username"
)

const (
	// DefaultPort is the port world servers usually listen on
	DefaultPort = 8085

	// OpcodeAuthChallenge is SMSG_AUTH_CHALLENGE, the first server packet
	OpcodeAuthChallenge = 0x1EC
	// OpcodeAuthSession is CMSG_AUTH_SESSION, the first client packet
	OpcodeAuthSession = 0x1ED
	// OpcodeAuthResponse is SMSG_AUTH_RESPONSE, the first encrypted server packet
	OpcodeAuthResponse = 0x1EE
)

var (
	// ErrMalformed occurs when a handshake packet is too short or badly formed
	ErrMalformed = errors.New("worldcrypt/capture: malformed packet")
	// ErrUnexpectedOpcode occurs when a session doesn't start with the auth packets
	ErrUnexpectedOpcode = errors.New("worldcrypt/capture: unexpected opcode")
	// ErrStreamGap occurs when bytes are missing from a TCP stream.
	// The cipher can't recover from that.
	ErrStreamGap = errors.New("worldcrypt/capture: bytes missing from stream")

	// ErrNotIPv4 is returned when a live capture is asked for an IPv6 server
	ErrNotIPv4 = errors.New("worldcrypt/capture: live capture is IPv4 only")
	// ErrNoRoute is returned when no interface routes to the server
	ErrNoRoute = errors.New("worldcrypt/capture: no route to server")
	// ErrLiveUnsupported is returned by OpenLive on systems other than linux
	ErrLiveUnsupported = errors.New("worldcrypt/capture: live capture needs linux")
)

// Direction is the way a packet travels
type Direction uint8

const (
	// ClientToServer packets have 6 byte headers
	ClientToServer Direction = iota
	// ServerToClient packets have 4 byte headers
	ServerToClient
)

func (d Direction) String() string {
	if d == ServerToClient {
		return "S>C"
	}
	return "C>S"
}

// Packet is one decoded world packet
type Packet struct {
	Direction Direction
	// Size includes the opcode but not the size field
	Size   uint16
	Opcode uint32
	Body   []byte
	// Encrypted is false for the two auth packets
	Encrypted bool
	Seen      time.Time
}

// AuthChallenge is the start of SMSG_AUTH_CHALLENGE
type AuthChallenge struct {
	ServerSeed uint32
}

// AuthSession is the start of CMSG_AUTH_SESSION.
// The addon info after the proof is ignored.
type AuthSession struct {
	Build      uint32
	ServerID   uint32
	Username   username.Normalized
	ClientSeed uint32
	Proof      header.Proof
}

// ParseAuthChallenge parses the body of SMSG_AUTH_CHALLENGE
func ParseAuthChallenge(body []byte) (AuthChallenge, error) {
	if len(body) < 4 {
		return AuthChallenge{}, fmt.Errorf("auth challenge of %d bytes: %w", len(body), ErrMalformed)
	}
	return AuthChallenge{ServerSeed: binary.LittleEndian.Uint32(body[:4])}, nil
}

// ParseAuthSession parses the body of CMSG_AUTH_SESSION
func ParseAuthSession(body []byte) (AuthSession, error) {
	var a AuthSession
	if len(body) < 8 {
		return a, fmt.Errorf("auth session of %d bytes: %w", len(body), ErrMalformed)
	}
	a.Build = binary.LittleEndian.Uint32(body[0:4])
	a.ServerID = binary.LittleEndian.Uint32(body[4:8])
	body = body[8:]

	end := bytes.IndexByte(body, 0)
	if end < 0 {
		return a, fmt.Errorf("unterminated username: %w", ErrMalformed)
	}
	name, err := username.New(string(body[:end]))
	if err != nil {
		return a, fmt.Errorf("auth session username: %w", err)
	}
	a.Username = name
	body = body[end+1:]

	if len(body) < 4+header.ProofLength {
		return a, fmt.Errorf("auth session missing seed or proof: %w", ErrMalformed)
	}
	a.ClientSeed = binary.LittleEndian.Uint32(body[0:4])
	copy(a.Proof[:], body[4:4+header.ProofLength])

	return a, nil
}
