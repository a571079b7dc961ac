package crypto

import (
	"crypto/hmac"
	"crypto/sha512"
)

// TagSize is the size of the integrity tag appended to every record.
const TagSize = sha512.Size

// Tag computes HMAC-SHA-512 over ciphertext using key.
func Tag(ciphertext []byte, key Key) []byte {
	mac := hmac.New(sha512.New, key[:])
	mac.Write(ciphertext)
	return mac.Sum(nil)
}

// VerifyTag reports whether tag is the integrity tag of ciphertext under key.
// The comparison runs in constant time.
func VerifyTag(ciphertext, tag []byte, key Key) bool {
	return hmac.Equal(tag, Tag(ciphertext, key))
}
