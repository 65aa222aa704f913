package capture

import (
	"fmt"
	"time"

	"github.com/malcolmseyd/worldcrypt-go/header"
)

// stream is the undecoded part of one direction
type stream struct {
	buf []byte
	// plaintext auth packet has been decoded
	authDone bool
	// decrypted header waiting for its body
	pending *Packet
}

// Session decodes both directions of one world connection.
//
// Bytes are fed in the order they were seen. A direction is buffered until
// both auth packets have been read and the ciphers exist.
// It is not safe for concurrent use.
type Session struct {
	// Client and Server are the endpoints, like "10.0.0.2:50123"
	Client string
	Server string

	Challenge *AuthChallenge
	Auth      *AuthSession

	layout     header.Layout
	sessionKey header.SessionKey

	// decrypts what the server sent, the client's view
	serverHeaders *header.DecrypterHalf
	// decrypts what the client sent, the server's view
	clientHeaders *header.DecrypterHalf

	streams [2]stream
	packets []Packet
	err     error

	handler func(*Session, Packet)
}

// NewSession creates a Session for one connection
func NewSession(layout header.Layout, sessionKey header.SessionKey) *Session {
	return &Session{
		layout:     layout,
		sessionKey: sessionKey,
	}
}

// Packets returns every packet decoded so far
func (s *Session) Packets() []Packet {
	return s.packets
}

// Err returns the error that stopped decoding, if any
func (s *Session) Err() error {
	return s.err
}

// Feed adds bytes seen in direction dir and decodes as many packets as possible.
// Once Feed has returned an error the Session ignores further data.
func (s *Session) Feed(dir Direction, data []byte, seen time.Time) error {
	if s.err != nil {
		return s.err
	}
	st := &s.streams[dir]
	st.buf = append(st.buf, data...)

	s.err = s.drain(dir, seen)
	if s.err == nil && s.serverHeaders != nil {
		// the other direction may have been waiting for the ciphers
		s.err = s.drain(1-dir, seen)
	}
	return s.err
}

// fail stops the session, keeping the first error
func (s *Session) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *Session) drain(dir Direction, seen time.Time) error {
	st := &s.streams[dir]
	for {
		if !st.authDone {
			done, err := s.readAuth(dir, seen)
			if err != nil || !done {
				return err
			}
			continue
		}
		if s.serverHeaders == nil {
			return nil
		}

		if st.pending == nil {
			p, ok := s.decryptHeader(dir)
			if !ok {
				return nil
			}
			st.pending = p
		}

		p := st.pending
		bodyLen := s.bodyLength(dir, p.Size)
		if bodyLen < 0 {
			return fmt.Errorf("%v header with size %d: %w", dir, p.Size, ErrMalformed)
		}
		if len(st.buf) < bodyLen {
			return nil
		}
		p.Body = append([]byte(nil), st.buf[:bodyLen]...)
		p.Seen = seen
		st.buf = st.buf[bodyLen:]
		st.pending = nil
		s.emit(*p)
	}
}

// headerLength is the wire size of a header in direction dir
func (s *Session) headerLength(dir Direction) int {
	if dir == ServerToClient {
		return s.layout.ServerHeaderLength()
	}
	return s.layout.ClientHeaderLength()
}

// bodyLength is the number of bytes after the header, negative if size is too small
func (s *Session) bodyLength(dir Direction, size uint16) int {
	// size includes the opcode but not itself
	return int(size) - (s.headerLength(dir) - 2)
}

// readAuth decodes the plaintext packet at the start of dir
func (s *Session) readAuth(dir Direction, seen time.Time) (bool, error) {
	st := &s.streams[dir]
	hl := s.headerLength(dir)
	if len(st.buf) < hl {
		return false, nil
	}

	var p Packet
	p.Direction = dir
	if dir == ServerToClient {
		h := s.layout.DecodeServerHeader(st.buf)
		p.Size, p.Opcode = h.Size, uint32(h.Opcode)
	} else {
		h := s.layout.DecodeClientHeader(st.buf)
		p.Size, p.Opcode = h.Size, h.Opcode
	}

	bodyLen := s.bodyLength(dir, p.Size)
	if bodyLen < 0 {
		return false, fmt.Errorf("%v auth header with size %d: %w", dir, p.Size, ErrMalformed)
	}
	if len(st.buf) < hl+bodyLen {
		return false, nil
	}
	p.Body = append([]byte(nil), st.buf[hl:hl+bodyLen]...)
	p.Seen = seen

	if dir == ServerToClient {
		if p.Opcode != OpcodeAuthChallenge {
			return false, fmt.Errorf("server started with 0x%X: %w", p.Opcode, ErrUnexpectedOpcode)
		}
		c, err := ParseAuthChallenge(p.Body)
		if err != nil {
			return false, err
		}
		s.Challenge = &c
	} else {
		if p.Opcode != OpcodeAuthSession {
			return false, fmt.Errorf("client started with 0x%X: %w", p.Opcode, ErrUnexpectedOpcode)
		}
		a, err := ParseAuthSession(p.Body)
		if err != nil {
			return false, err
		}
		s.Auth = &a
	}

	st.buf = st.buf[hl+bodyLen:]
	st.authDone = true
	s.emit(p)

	return true, s.establish()
}

// establish checks the client proof and creates both decrypters once the
// two auth packets are known
func (s *Session) establish() error {
	if s.Challenge == nil || s.Auth == nil || s.serverHeaders != nil {
		return nil
	}

	// the server checks the proof, a wrong session key fails here
	serverSeed := header.ProofSeedFrom(s.Challenge.ServerSeed)
	serverCrypto, err := serverSeed.IntoServerHeaderCrypto(s.layout, s.Auth.Username, s.sessionKey, s.Auth.Proof, s.Auth.ClientSeed)
	if err != nil {
		return err
	}
	_, s.clientHeaders = serverCrypto.Split()

	clientSeed := header.ProofSeedFrom(s.Auth.ClientSeed)
	_, clientCrypto := clientSeed.IntoClientHeaderCrypto(s.layout, s.Auth.Username, s.sessionKey, s.Challenge.ServerSeed)
	_, s.serverHeaders = clientCrypto.Split()

	return nil
}

// decryptHeader decrypts the next header in dir if it has fully arrived
func (s *Session) decryptHeader(dir Direction) (*Packet, bool) {
	st := &s.streams[dir]
	p := &Packet{Direction: dir, Encrypted: true}

	if dir == ServerToClient {
		var raw [header.ServerHeaderLength]byte
		if len(st.buf) < len(raw) {
			return nil, false
		}
		copy(raw[:], st.buf)
		st.buf = st.buf[len(raw):]
		h := s.serverHeaders.DecryptServerHeader(raw)
		p.Size, p.Opcode = h.Size, uint32(h.Opcode)
	} else {
		var raw [header.ClientHeaderLength]byte
		if len(st.buf) < len(raw) {
			return nil, false
		}
		copy(raw[:], st.buf)
		st.buf = st.buf[len(raw):]
		h := s.clientHeaders.DecryptClientHeader(raw)
		p.Size, p.Opcode = h.Size, h.Opcode
	}
	return p, true
}

func (s *Session) emit(p Packet) {
	s.packets = append(s.packets, p)
	if s.handler != nil {
		s.handler(s, p)
	}
}
