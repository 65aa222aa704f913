package header

import (
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/binary"

	"github.com/malcolmseyd/worldcrypt-go/username"
)

// ProofSeed is the random seed one side contributes to the world server proof.
//
// The server sends its seed in SMSG_AUTH_CHALLENGE and the client sends its
// own in CMSG_AUTH_SESSION. A ProofSeed is turned into a HeaderCrypto exactly
// once, through IntoServerHeaderCrypto or IntoClientHeaderCrypto.
type ProofSeed struct {
	seed uint32
}

// NewProofSeed creates a ProofSeed with a random seed
func NewProofSeed() (ProofSeed, error) {
	var b [4]byte
	_, err := rand.Read(b[:])
	if err != nil {
		return ProofSeed{}, err
	}
	return ProofSeed{seed: binary.LittleEndian.Uint32(b[:])}, nil
}

// ProofSeedFrom creates a ProofSeed with a known seed, for example one read
// from a packet capture. Live sessions should use NewProofSeed.
func ProofSeedFrom(seed uint32) ProofSeed {
	return ProofSeed{seed: seed}
}

// Seed is the value to send to the other side
func (p ProofSeed) Seed() uint32 {
	return p.seed
}

// IntoClientHeaderCrypto computes the proof the client sends in
// CMSG_AUTH_SESSION together with the client's HeaderCrypto.
//
// The HeaderCrypto should not be used until the server has answered with a
// successful SMSG_AUTH_RESPONSE.
func (p ProofSeed) IntoClientHeaderCrypto(layout Layout, name username.Normalized, sessionKey SessionKey, serverSeed uint32) (Proof, *HeaderCrypto) {
	proof := WorldServerProof(name, sessionKey, serverSeed, p.seed)
	return proof, newHeaderCrypto(layout, sessionKey)
}

// IntoServerHeaderCrypto checks that the client knows the session key.
//
// A *ProofMismatchError is returned if clientProof is not the proof the server
// computes. This happens if the parameters are wrong, the session key is out of
// date, or the client is trying to get past the login server.
// The connection should be closed in that case.
func (p ProofSeed) IntoServerHeaderCrypto(layout Layout, name username.Normalized, sessionKey SessionKey, clientProof Proof, clientSeed uint32) (*HeaderCrypto, error) {
	serverProof := WorldServerProof(name, sessionKey, p.seed, clientSeed)

	if subtle.ConstantTimeCompare(serverProof[:], clientProof[:]) != 1 {
		return nil, &ProofMismatchError{
			Claimed:  clientProof,
			Computed: serverProof,
		}
	}

	return newHeaderCrypto(layout, sessionKey), nil
}

// WorldServerProof computes the proof found in CMSG_AUTH_SESSION.
// SHA1(username | 0 | client seed | server seed | session key), integers little endian.
func WorldServerProof(name username.Normalized, sessionKey SessionKey, serverSeed, clientSeed uint32) Proof {
	var ints [12]byte
	// the first integer is always zero
	binary.LittleEndian.PutUint32(ints[4:8], clientSeed)
	binary.LittleEndian.PutUint32(ints[8:12], serverSeed)

	h := sha1.New()
	h.Write([]byte(name))
	h.Write(ints[:])
	h.Write(sessionKey[:])

	var proof Proof
	copy(proof[:], h.Sum(nil))
	return proof
}
