package header

import (
	"bytes"
	"io"
)

// EncrypterHalf is the encrypting part of a HeaderCrypto.
// Intended to be kept with the write side of a connection.
// It is not safe for concurrent use.
type EncrypterHalf struct {
	layout Layout
	key    []byte
	state  cipherState
}

func newEncrypterHalf(layout Layout, sessionKey SessionKey) *EncrypterHalf {
	return &EncrypterHalf{
		layout: layout,
		key:    layout.CipherKey(sessionKey),
	}
}

// Layout returns the protocol generation the half was created for
func (e *EncrypterHalf) Layout() Layout {
	return e.layout
}

// Encrypt encrypts data in place. Prefer the header functions.
func (e *EncrypterHalf) Encrypt(data []byte) {
	e.state.encrypt(e.key, data)
}

// EncryptServerHeader encodes and encrypts a server header
func (e *EncrypterHalf) EncryptServerHeader(size, opcode uint16) [ServerHeaderLength]byte {
	var header [ServerHeaderLength]byte
	e.layout.EncodeServerHeader(header[:], size, opcode)
	e.Encrypt(header[:])
	return header
}

// EncryptClientHeader encodes and encrypts a client header
func (e *EncrypterHalf) EncryptClientHeader(size uint16, opcode uint32) [ClientHeaderLength]byte {
	var header [ClientHeaderLength]byte
	e.layout.EncodeClientHeader(header[:], size, opcode)
	e.Encrypt(header[:])
	return header
}

// WriteEncryptedServerHeader encrypts a server header and writes it to w.
// Errors from w are returned as is.
func (e *EncrypterHalf) WriteEncryptedServerHeader(w io.Writer, size, opcode uint16) error {
	header := e.EncryptServerHeader(size, opcode)
	return writeFull(w, header[:])
}

// WriteEncryptedClientHeader encrypts a client header and writes it to w.
// Errors from w are returned as is.
func (e *EncrypterHalf) WriteEncryptedClientHeader(w io.Writer, size uint16, opcode uint32) error {
	header := e.EncryptClientHeader(size, opcode)
	return writeFull(w, header[:])
}

// Unsplit combines e and d into a HeaderCrypto again.
// ErrKeyMismatch is returned if they did not come from the same handshake,
// in which case neither half is modified.
func (e *EncrypterHalf) Unsplit(d *DecrypterHalf) (*HeaderCrypto, error) {
	if e.layout != d.layout || !bytes.Equal(e.key, d.key) {
		return nil, ErrKeyMismatch
	}
	return &HeaderCrypto{
		encrypt: e,
		decrypt: d,
	}, nil
}

// String is for debugging purposes. The key is not printed.
func (e *EncrypterHalf) String() string {
	return "encrypter (" + e.layout.Name() + ") " + e.state.String()
}

// writeFull turns a short write without an error into io.ErrShortWrite
func writeFull(w io.Writer, b []byte) error {
	n, err := w.Write(b)
	if err != nil {
		return err
	}
	if n != len(b) {
		return io.ErrShortWrite
	}
	return nil
}
