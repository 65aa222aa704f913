package header

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/binary"
)

// Layout describes one protocol generation: how the cipher key is derived
// from the session key and how headers are laid out on the wire.
// The cipher arithmetic is the same for every Layout.
type Layout interface {
	// Name is the short name of the generation, like "vanilla"
	Name() string

	ClientHeaderLength() int
	ServerHeaderLength() int

	// DecodeClientHeader reads a plaintext client header from the start of b
	DecodeClientHeader(b []byte) ClientHeader
	// DecodeServerHeader reads a plaintext server header from the start of b
	DecodeServerHeader(b []byte) ServerHeader
	// EncodeClientHeader writes a plaintext client header into the start of b
	EncodeClientHeader(b []byte, size uint16, opcode uint32)
	// EncodeServerHeader writes a plaintext server header into the start of b
	EncodeServerHeader(b []byte, size uint16, opcode uint16)

	// CipherKey derives the keystream used by both halves
	CipherKey(sessionKey SessionKey) []byte
}

var (
	// Vanilla is the 1.12 protocol. The session key is used directly as the keystream.
	Vanilla Layout = vanillaLayout{}
	// TBC is the 2.4.3 protocol. The keystream is an HMAC-SHA1 of the session key.
	TBC Layout = tbcLayout{}
)

// tbcSeedKey is the fixed HMAC key the client ships with
var tbcSeedKey = [16]byte{
	0x38, 0xA7, 0x83, 0x15, 0xF8, 0x92, 0x25, 0x30,
	0x71, 0x98, 0x67, 0xB1, 0x8C, 0x04, 0xE2, 0xAA,
}

// headerCodec holds the wire format shared by Vanilla and TBC.
// Size is big endian while the opcode is little endian.
type headerCodec struct{}

func (headerCodec) ClientHeaderLength() int { return ClientHeaderLength }
func (headerCodec) ServerHeaderLength() int { return ServerHeaderLength }

func (headerCodec) DecodeClientHeader(b []byte) ClientHeader {
	return ClientHeader{
		Size:   binary.BigEndian.Uint16(b[0:2]),
		Opcode: binary.LittleEndian.Uint32(b[2:6]),
	}
}

func (headerCodec) DecodeServerHeader(b []byte) ServerHeader {
	return ServerHeader{
		Size:   binary.BigEndian.Uint16(b[0:2]),
		Opcode: binary.LittleEndian.Uint16(b[2:4]),
	}
}

func (headerCodec) EncodeClientHeader(b []byte, size uint16, opcode uint32) {
	binary.BigEndian.PutUint16(b[0:2], size)
	binary.LittleEndian.PutUint32(b[2:6], opcode)
}

func (headerCodec) EncodeServerHeader(b []byte, size uint16, opcode uint16) {
	binary.BigEndian.PutUint16(b[0:2], size)
	binary.LittleEndian.PutUint16(b[2:4], opcode)
}

type vanillaLayout struct{ headerCodec }

func (vanillaLayout) Name() string { return "vanilla" }

func (vanillaLayout) CipherKey(sessionKey SessionKey) []byte {
	key := make([]byte, SessionKeyLength)
	copy(key, sessionKey[:])
	return key
}

type tbcLayout struct{ headerCodec }

func (tbcLayout) Name() string { return "tbc" }

func (tbcLayout) CipherKey(sessionKey SessionKey) []byte {
	return hmacSHA1(tbcSeedKey[:], sessionKey[:])
}

// LayoutByName returns the Layout with the given Name, or false
func LayoutByName(name string) (Layout, bool) {
	for _, l := range []Layout{Vanilla, TBC} {
		if l.Name() == name {
			return l, true
		}
	}
	return nil, false
}

// hmacSHA1 is the keyed hash used for the TBC cipher key
func hmacSHA1(key []byte, messages ...[]byte) []byte {
	h := hmac.New(sha1.New, key)
	for _, m := range messages {
		// hash.Hash.Write never returns an error
		_, _ = h.Write(m)
	}
	return h.Sum(nil)
}
