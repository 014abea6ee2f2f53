package kinetic

import "math/rand/v2"

// NonceSource supplies the random trailing byte of each obfuscated command.
// Implementations must be safe for concurrent use.
type NonceSource interface {
	Nonce() byte
}

// NonceFunc adapts a function to NonceSource.
type NonceFunc func() byte

func (f NonceFunc) Nonce() byte {
	return f()
}

type randomNonce struct{}

func (randomNonce) Nonce() byte {
	return byte(rand.UintN(256))
}

// RandomNonce draws from the process wide generator of math/rand/v2.
var RandomNonce NonceSource = randomNonce{}
