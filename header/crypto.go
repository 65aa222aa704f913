// Package header encrypts and decrypts World Packet headers.
//
// The session key from the SRP6 login is used to obfuscate the size and
// opcode of every world packet after CMSG_AUTH_SESSION. Bodies are never
// encrypted.
//
// A server goes through the following steps:
//
//  1. Create a ProofSeed and send its seed in SMSG_AUTH_CHALLENGE.
//  2. Receive username, client seed and proof in CMSG_AUTH_SESSION.
//  3. Fetch the session key from the login server.
//  4. Create a HeaderCrypto through ProofSeed.IntoServerHeaderCrypto.
//  5. Optionally Split it into an EncrypterHalf and a DecrypterHalf,
//     and optionally Unsplit them again.
//
// A client does the same with ProofSeed.IntoClientHeaderCrypto and sends
// the returned proof instead of checking one.
package header

import "io"

// HeaderCrypto handles both encryption and decryption of headers.
//
// It can only be created from a ProofSeed, so it can never be used before
// the proof has been checked. It can be split with Split if the read and
// write sides of a connection should not share a lock.
type HeaderCrypto struct {
	encrypt *EncrypterHalf
	decrypt *DecrypterHalf
}

func newHeaderCrypto(layout Layout, sessionKey SessionKey) *HeaderCrypto {
	return &HeaderCrypto{
		encrypt: newEncrypterHalf(layout, sessionKey),
		decrypt: newDecrypterHalf(layout, sessionKey),
	}
}

// Encrypter gives direct access to the internal EncrypterHalf
func (h *HeaderCrypto) Encrypter() *EncrypterHalf {
	return h.encrypt
}

// Decrypter gives direct access to the internal DecrypterHalf
func (h *HeaderCrypto) Decrypter() *DecrypterHalf {
	return h.decrypt
}

// Layout returns the protocol generation h was created for
func (h *HeaderCrypto) Layout() Layout {
	return h.encrypt.layout
}

// Encrypt is the same as EncrypterHalf.Encrypt
func (h *HeaderCrypto) Encrypt(data []byte) {
	h.encrypt.Encrypt(data)
}

// EncryptServerHeader is the same as EncrypterHalf.EncryptServerHeader
func (h *HeaderCrypto) EncryptServerHeader(size, opcode uint16) [ServerHeaderLength]byte {
	return h.encrypt.EncryptServerHeader(size, opcode)
}

// EncryptClientHeader is the same as EncrypterHalf.EncryptClientHeader
func (h *HeaderCrypto) EncryptClientHeader(size uint16, opcode uint32) [ClientHeaderLength]byte {
	return h.encrypt.EncryptClientHeader(size, opcode)
}

// WriteEncryptedServerHeader is the same as EncrypterHalf.WriteEncryptedServerHeader
func (h *HeaderCrypto) WriteEncryptedServerHeader(w io.Writer, size, opcode uint16) error {
	return h.encrypt.WriteEncryptedServerHeader(w, size, opcode)
}

// WriteEncryptedClientHeader is the same as EncrypterHalf.WriteEncryptedClientHeader
func (h *HeaderCrypto) WriteEncryptedClientHeader(w io.Writer, size uint16, opcode uint32) error {
	return h.encrypt.WriteEncryptedClientHeader(w, size, opcode)
}

// Decrypt is the same as DecrypterHalf.Decrypt
func (h *HeaderCrypto) Decrypt(data []byte) {
	h.decrypt.Decrypt(data)
}

// DecryptServerHeader is the same as DecrypterHalf.DecryptServerHeader
func (h *HeaderCrypto) DecryptServerHeader(data [ServerHeaderLength]byte) ServerHeader {
	return h.decrypt.DecryptServerHeader(data)
}

// DecryptClientHeader is the same as DecrypterHalf.DecryptClientHeader
func (h *HeaderCrypto) DecryptClientHeader(data [ClientHeaderLength]byte) ClientHeader {
	return h.decrypt.DecryptClientHeader(data)
}

// ReadAndDecryptServerHeader is the same as DecrypterHalf.ReadAndDecryptServerHeader
func (h *HeaderCrypto) ReadAndDecryptServerHeader(r io.Reader) (ServerHeader, error) {
	return h.decrypt.ReadAndDecryptServerHeader(r)
}

// ReadAndDecryptClientHeader is the same as DecrypterHalf.ReadAndDecryptClientHeader
func (h *HeaderCrypto) ReadAndDecryptClientHeader(r io.Reader) (ClientHeader, error) {
	return h.decrypt.ReadAndDecryptClientHeader(r)
}

// Split moves both halves out of h.
// The EncrypterHalf belongs with the write side of a connection and the
// DecrypterHalf with the read side. h is empty afterwards and must not be used.
func (h *HeaderCrypto) Split() (*EncrypterHalf, *DecrypterHalf) {
	e, d := h.encrypt, h.decrypt
	h.encrypt, h.decrypt = nil, nil
	return e, d
}
