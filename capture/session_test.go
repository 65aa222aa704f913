package capture

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"

	"github.com/google/gopacket/tcpassembly"
	"github.com/malcolmseyd/worldcrypt-go/header"
	"github.com/malcolmseyd/worldcrypt-go/username"
)

var testSessionKey = header.SessionKey{
	239, 107, 150, 237, 174, 220, 162, 4, 138, 56, 166, 166, 147, 152, 17, 188, 87, 42, 6,
	59, 43, 229, 193, 8, 114, 209, 130, 225, 40, 21, 109, 246, 187, 101, 16, 58, 29, 191,
	45, 177,
}

const (
	testServerSeed = 0xDEADBEEF
	testClientSeed = 12589856
	testBuild      = 5875

	opcodePing = 0x1DC
	opcodePong = 0x1DD
)

type wirePacket struct {
	dir    Direction
	opcode uint32
	body   []byte
}

// conversation is what a client and server would send each other after the
// two auth packets
var conversation = []wirePacket{
	{dir: ServerToClient, opcode: OpcodeAuthResponse, body: []byte{0x0C}},
	{dir: ClientToServer, opcode: opcodePing, body: []byte{1, 0, 0, 0, 50, 0, 0, 0}},
	{dir: ServerToClient, opcode: opcodePong, body: []byte{1, 0, 0, 0}},
	{dir: ClientToServer, opcode: 0x37, body: nil},
	{dir: ServerToClient, opcode: 0x3B, body: bytes.Repeat([]byte{0xAA}, 300)},
}

func authChallengeBody(seed uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, seed)
	return b
}

func authSessionBody(name username.Normalized, clientSeed uint32, proof header.Proof) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, uint32(testBuild))
	binary.Write(&b, binary.LittleEndian, uint32(0))
	b.WriteString(name.String())
	b.WriteByte(0)
	binary.Write(&b, binary.LittleEndian, clientSeed)
	b.Write(proof[:])
	// addon info
	b.Write([]byte{0x56, 0x01, 0x00, 0x00})
	return b.Bytes()
}

// worldStreams builds both byte streams of a world connection, as they would
// be seen on the wire
func worldStreams(t *testing.T, layout header.Layout, key header.SessionKey) (client, server []byte) {
	t.Helper()
	name := username.MustNew("a")
	clientSeed := header.ProofSeedFrom(testClientSeed)
	serverSeed := header.ProofSeedFrom(testServerSeed)

	proof, clientCrypto := clientSeed.IntoClientHeaderCrypto(layout, name, key, serverSeed.Seed())
	serverCrypto, err := serverSeed.IntoServerHeaderCrypto(layout, name, key, proof, clientSeed.Seed())
	if err != nil {
		t.Fatal(err)
	}

	var c, s bytes.Buffer

	plain := make([]byte, layout.ServerHeaderLength())
	body := authChallengeBody(serverSeed.Seed())
	layout.EncodeServerHeader(plain, uint16(2+len(body)), OpcodeAuthChallenge)
	s.Write(plain)
	s.Write(body)

	plain = make([]byte, layout.ClientHeaderLength())
	body = authSessionBody(name, clientSeed.Seed(), proof)
	layout.EncodeClientHeader(plain, uint16(4+len(body)), OpcodeAuthSession)
	c.Write(plain)
	c.Write(body)

	for _, p := range conversation {
		if p.dir == ServerToClient {
			h := serverCrypto.EncryptServerHeader(uint16(2+len(p.body)), uint16(p.opcode))
			s.Write(h[:])
			s.Write(p.body)
		} else {
			h := clientCrypto.EncryptClientHeader(uint16(4+len(p.body)), p.opcode)
			c.Write(h[:])
			c.Write(p.body)
		}
	}
	return c.Bytes(), s.Bytes()
}

// checkConversation checks that the packets of s are the auth packets followed
// by the conversation, in order for each direction
func checkConversation(t *testing.T, s *Session) {
	t.Helper()
	if s.Err() != nil {
		t.Fatal("Session failed:", s.Err())
	}

	expected := map[Direction][]wirePacket{
		ServerToClient: {{dir: ServerToClient, opcode: OpcodeAuthChallenge}},
		ClientToServer: {{dir: ClientToServer, opcode: OpcodeAuthSession}},
	}
	for _, p := range conversation {
		expected[p.dir] = append(expected[p.dir], p)
	}
	actual := map[Direction][]Packet{}
	for _, p := range s.Packets() {
		actual[p.Direction] = append(actual[p.Direction], p)
	}

	for _, dir := range []Direction{ClientToServer, ServerToClient} {
		if len(actual[dir]) != len(expected[dir]) {
			t.Fatal(dir, "wrong number of packets"+
				"\nExpected:", len(expected[dir]),
				"\nActual:  ", len(actual[dir]))
		}
		for i, e := range expected[dir] {
			a := actual[dir][i]
			if a.Opcode != e.opcode {
				t.Fatalf("%v packet %d has opcode 0x%X, expected 0x%X", dir, i, a.Opcode, e.opcode)
			}
			if a.Encrypted != (i != 0) {
				t.Fatal(dir, "packet", i, "has Encrypted", a.Encrypted)
			}
			if i != 0 && !bytes.Equal(a.Body, e.body) {
				t.Fatal(dir, "packet", i, "has the wrong body:", a.Body)
			}
		}
	}

	if s.Challenge == nil || s.Challenge.ServerSeed != testServerSeed {
		t.Fatal("Wrong challenge:", s.Challenge)
	}
	if s.Auth == nil || s.Auth.ClientSeed != testClientSeed || s.Auth.Username != username.MustNew("A") || s.Auth.Build != testBuild {
		t.Fatal("Wrong auth session:", s.Auth)
	}
}

func TestSessionFeed(t *testing.T) {
	seen := time.Unix(1600000000, 0)

	testCases := []struct {
		desc string
		feed func(s *Session, client, server []byte) error
	}{
		{
			desc: "server then client",
			feed: func(s *Session, client, server []byte) error {
				if err := s.Feed(ServerToClient, server, seen); err != nil {
					return err
				}
				return s.Feed(ClientToServer, client, seen)
			},
		},
		{
			desc: "client then server",
			feed: func(s *Session, client, server []byte) error {
				if err := s.Feed(ClientToServer, client, seen); err != nil {
					return err
				}
				return s.Feed(ServerToClient, server, seen)
			},
		},
		{
			desc: "byte by byte",
			feed: func(s *Session, client, server []byte) error {
				for len(client) > 0 || len(server) > 0 {
					if len(server) > 0 {
						if err := s.Feed(ServerToClient, server[:1], seen); err != nil {
							return err
						}
						server = server[1:]
					}
					if len(client) > 0 {
						if err := s.Feed(ClientToServer, client[:1], seen); err != nil {
							return err
						}
						client = client[1:]
					}
				}
				return nil
			},
		},
		{
			desc: "odd chunks",
			feed: func(s *Session, client, server []byte) error {
				for i := 0; len(client) > 0 || len(server) > 0; i++ {
					n := i%7 + 1
					if n > len(server) {
						n = len(server)
					}
					if err := s.Feed(ServerToClient, server[:n], seen); err != nil {
						return err
					}
					server = server[n:]

					n = i%5 + 3
					if n > len(client) {
						n = len(client)
					}
					if err := s.Feed(ClientToServer, client[:n], seen); err != nil {
						return err
					}
					client = client[n:]
				}
				return nil
			},
		},
	}
	for _, layout := range []header.Layout{header.Vanilla, header.TBC} {
		for _, tC := range testCases {
			t.Run(layout.Name()+" "+tC.desc, func(t *testing.T) {
				client, server := worldStreams(t, layout, testSessionKey)
				s := NewSession(layout, testSessionKey)
				if err := tC.feed(s, client, server); err != nil {
					t.Fatal(err)
				}
				checkConversation(t, s)
			})
		}
	}
}

func TestSessionHandler(t *testing.T) {
	client, server := worldStreams(t, header.Vanilla, testSessionKey)
	s := NewSession(header.Vanilla, testSessionKey)

	var handled []Packet
	s.handler = func(hs *Session, p Packet) {
		if hs != s {
			t.Fatal("Handler got the wrong session")
		}
		handled = append(handled, p)
	}
	s.Feed(ServerToClient, server, time.Time{})
	s.Feed(ClientToServer, client, time.Time{})

	if len(handled) != len(s.Packets()) || len(handled) != len(conversation)+2 {
		t.Fatal("Handler saw", len(handled), "packets, session has", len(s.Packets()))
	}
}

func TestSessionWrongKey(t *testing.T) {
	client, server := worldStreams(t, header.Vanilla, testSessionKey)

	wrongKey := testSessionKey
	wrongKey[0] ^= 1
	s := NewSession(header.Vanilla, wrongKey)

	if err := s.Feed(ServerToClient, server, time.Time{}); err != nil {
		t.Fatal("Challenge should decode without the key:", err)
	}
	err := s.Feed(ClientToServer, client, time.Time{})
	if !errors.Is(err, header.ErrProofMismatch) {
		t.Fatal("Expected ErrProofMismatch, got", err)
	}
	if s.Err() != err {
		t.Fatal("Session did not keep the error")
	}
	// nothing past the auth packets
	if len(s.Packets()) != 2 {
		t.Fatal("Packets decoded with the wrong key:", len(s.Packets()))
	}
	if err := s.Feed(ServerToClient, []byte{1, 2, 3, 4}, time.Time{}); err != s.Err() {
		t.Fatal("Failed session accepted more data")
	}
}

func TestSessionWrongLayout(t *testing.T) {
	// the proof doesn't depend on the layout, the headers do
	client, server := worldStreams(t, header.TBC, testSessionKey)
	s := NewSession(header.Vanilla, testSessionKey)
	s.Feed(ServerToClient, server, time.Time{})
	s.Feed(ClientToServer, client, time.Time{})

	for _, p := range s.Packets()[2:] {
		if p.Opcode == OpcodeAuthResponse && p.Direction == ServerToClient && len(p.Body) == 1 {
			t.Fatal("TBC traffic decoded as vanilla")
		}
	}
}

func TestSessionUnexpectedOpcode(t *testing.T) {
	testCases := []struct {
		desc   string
		dir    Direction
		stream []byte
	}{
		{
			desc:   "server",
			dir:    ServerToClient,
			stream: []byte{0, 3, 0xEE, 0x01, 0x0C},
		},
		{
			desc:   "client",
			dir:    ClientToServer,
			stream: []byte{0, 4, 0xDC, 0x01, 0, 0},
		},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			s := NewSession(header.Vanilla, testSessionKey)
			err := s.Feed(tC.dir, tC.stream, time.Time{})
			if !errors.Is(err, ErrUnexpectedOpcode) {
				t.Fatal("Expected ErrUnexpectedOpcode, got", err)
			}
		})
	}
}

func TestSessionMalformedSize(t *testing.T) {
	s := NewSession(header.Vanilla, testSessionKey)
	// a client size can't be smaller than its opcode
	err := s.Feed(ClientToServer, []byte{0, 2, 0xED, 0x01, 0, 0}, time.Time{})
	if !errors.Is(err, ErrMalformed) {
		t.Fatal("Expected ErrMalformed, got", err)
	}
}

func TestStreamGap(t *testing.T) {
	client, server := worldStreams(t, header.Vanilla, testSessionKey)
	s := NewSession(header.Vanilla, testSessionKey)
	server1 := &worldStream{session: s, dir: ServerToClient}
	client1 := &worldStream{session: s, dir: ClientToServer}

	server1.Reassembled([]tcpassembly.Reassembly{{Bytes: server[:10]}})
	client1.Reassembled([]tcpassembly.Reassembly{{Bytes: client}})
	server1.Reassembled([]tcpassembly.Reassembly{{Bytes: server[12:], Skip: 2}})

	if !errors.Is(s.Err(), ErrStreamGap) {
		t.Fatal("Expected ErrStreamGap, got", s.Err())
	}
}

func TestParseAuthSession(t *testing.T) {
	var proof header.Proof
	for i := range proof {
		proof[i] = byte(i)
	}
	valid := authSessionBody(username.MustNew("Player"), 42, proof)

	a, err := ParseAuthSession(valid)
	if err != nil {
		t.Fatal(err)
	}
	if a.Build != testBuild || a.ServerID != 0 || a.Username != username.MustNew("PLAYER") || a.ClientSeed != 42 || a.Proof != proof {
		t.Fatal("Wrong auth session:", a)
	}

	testCases := []struct {
		desc     string
		body     []byte
		expected error
	}{
		{desc: "empty", body: nil, expected: ErrMalformed},
		{desc: "no username", body: valid[:8], expected: ErrMalformed},
		{desc: "unterminated", body: valid[:12], expected: ErrMalformed},
		{desc: "no proof", body: valid[:8+7+4+10], expected: ErrMalformed},
		{desc: "empty username", body: append(append([]byte{}, valid[:8]...), 0, 0, 0, 0, 0), expected: username.ErrEmpty},
		{desc: "bad username", body: append(append([]byte{}, valid[:8]...), 'a', ' ', 0), expected: username.ErrCharacter},
	}
	for _, tC := range testCases {
		t.Run(tC.desc, func(t *testing.T) {
			_, err := ParseAuthSession(tC.body)
			if !errors.Is(err, tC.expected) {
				t.Fatal("Expected", tC.expected, "got", err)
			}
		})
	}
}

func TestParseAuthChallenge(t *testing.T) {
	c, err := ParseAuthChallenge([]byte{0xEF, 0xBE, 0xAD, 0xDE, 0xFF})
	if err != nil {
		t.Fatal(err)
	}
	if c.ServerSeed != 0xDEADBEEF {
		t.Fatalf("Wrong seed 0x%X", c.ServerSeed)
	}
	if _, err := ParseAuthChallenge([]byte{1, 2, 3}); !errors.Is(err, ErrMalformed) {
		t.Fatal("Expected ErrMalformed, got", err)
	}
}
