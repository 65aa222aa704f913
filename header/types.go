package header

import (
	"crypto/sha1"
	"errors"
	"fmt"
)

const (
	// SessionKeyLength is the size of the session key produced by SRP6
	SessionKeyLength = 40
	// ProofLength is the size of a world server proof
	ProofLength = sha1.Size

	// ServerHeaderLength is 2 bytes of size and 2 bytes of opcode
	ServerHeaderLength = 2 + 2
	// ClientHeaderLength is 2 bytes of size and 4 bytes of opcode
	ClientHeaderLength = 2 + 4
)

var (
	// ErrKeyMismatch occurs when halves from different handshakes are unsplit
	ErrKeyMismatch = errors.New("worldcrypt/header: halves do not share a key")
	// ErrProofMismatch is matched by every *ProofMismatchError
	ErrProofMismatch = errors.New("worldcrypt/header: proofs do not match")
)

// SessionKey is the shared secret both sides hold after the SRP6 exchange
type SessionKey [SessionKeyLength]byte

// Proof is the SHA-1 sized value sent by the client in CMSG_AUTH_SESSION
type Proof [ProofLength]byte

// ServerHeader is a decrypted header sent by the server.
type ServerHeader struct {
	// Size of the message in bytes, including the opcode but not the size field
	Size uint16
	// Opcode is 2 bytes wide, unlike ClientHeader
	Opcode uint16
}

// ClientHeader is a decrypted header sent by the client.
type ClientHeader struct {
	// Size of the message in bytes, including the opcode but not the size field
	Size uint16
	// Opcode is 4 bytes wide, unlike ServerHeader
	Opcode uint32
}

// ProofMismatchError is returned when the proof a client sent is not the one
// the server computed. The session must be dropped.
type ProofMismatchError struct {
	Claimed  Proof
	Computed Proof
}

func (e *ProofMismatchError) Error() string {
	return fmt.Sprintf("%v: claimed %x, computed %x", ErrProofMismatch, e.Claimed[:], e.Computed[:])
}

// Is lets errors.Is(err, ErrProofMismatch) succeed
func (e *ProofMismatchError) Is(target error) bool {
	return target == ErrProofMismatch
}
