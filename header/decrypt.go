package header

import "io"

// DecrypterHalf is the decrypting part of a HeaderCrypto.
// Intended to be kept with the read side of a connection.
// It is not safe for concurrent use.
type DecrypterHalf struct {
	layout Layout
	key    []byte
	state  cipherState
}

func newDecrypterHalf(layout Layout, sessionKey SessionKey) *DecrypterHalf {
	return &DecrypterHalf{
		layout: layout,
		key:    layout.CipherKey(sessionKey),
	}
}

// Layout returns the protocol generation the half was created for
func (d *DecrypterHalf) Layout() Layout {
	return d.layout
}

// Decrypt decrypts data in place. Prefer the header functions.
func (d *DecrypterHalf) Decrypt(data []byte) {
	d.state.decrypt(d.key, data)
}

// DecryptServerHeader decrypts and decodes a server header
func (d *DecrypterHalf) DecryptServerHeader(data [ServerHeaderLength]byte) ServerHeader {
	d.Decrypt(data[:])
	return d.layout.DecodeServerHeader(data[:])
}

// DecryptClientHeader decrypts and decodes a client header
func (d *DecrypterHalf) DecryptClientHeader(data [ClientHeaderLength]byte) ClientHeader {
	d.Decrypt(data[:])
	return d.layout.DecodeClientHeader(data[:])
}

// ReadAndDecryptServerHeader reads exactly one server header from r and decrypts it.
// It has the same errors as io.ReadFull. Nothing is decrypted if reading fails.
func (d *DecrypterHalf) ReadAndDecryptServerHeader(r io.Reader) (ServerHeader, error) {
	var buf [ServerHeaderLength]byte
	_, err := io.ReadFull(r, buf[:])
	if err != nil {
		return ServerHeader{}, err
	}
	return d.DecryptServerHeader(buf), nil
}

// ReadAndDecryptClientHeader reads exactly one client header from r and decrypts it.
// It has the same errors as io.ReadFull. Nothing is decrypted if reading fails.
func (d *DecrypterHalf) ReadAndDecryptClientHeader(r io.Reader) (ClientHeader, error) {
	var buf [ClientHeaderLength]byte
	_, err := io.ReadFull(r, buf[:])
	if err != nil {
		return ClientHeader{}, err
	}
	return d.DecryptClientHeader(buf), nil
}

// String is for debugging purposes. The key is not printed.
func (d *DecrypterHalf) String() string {
	return "decrypter (" + d.layout.Name() + ") " + d.state.String()
}
