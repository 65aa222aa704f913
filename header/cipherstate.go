package header

import "strconv"

// cipherState is the part of a half that changes with every byte.
// A fresh state is index 0 with no previous byte.
type cipherState struct {
	index    int
	previous byte
}

// encrypt transforms plaintext in place.
// encrypted = (plain ^ key[index]) + previous
func (c *cipherState) encrypt(key, data []byte) {
	for i, plain := range data {
		encrypted := (plain ^ key[c.index]) + c.previous

		// key is used as a circular buffer
		c.index = (c.index + 1) % len(key)
		c.previous = encrypted

		data[i] = encrypted
	}
}

// decrypt transforms ciphertext in place.
// plain = (encrypted - previous) ^ key[index]
func (c *cipherState) decrypt(key, data []byte) {
	for i, encrypted := range data {
		plain := (encrypted - c.previous) ^ key[c.index]

		c.index = (c.index + 1) % len(key)
		// chain on the ciphertext, not the plaintext
		c.previous = encrypted

		data[i] = plain
	}
}

func (c cipherState) String() string {
	return "index: " + strconv.Itoa(c.index) + ", previous: " + strconv.Itoa(int(c.previous))
}
