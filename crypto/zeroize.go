package crypto

import "runtime"

// Zeroize overwrites b with zeros so plaintext does not linger in memory
// longer than needed. The garbage collector may still hold earlier copies.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
