package crypto

import (
	"testing"
)

func TestZeroize(t *testing.T) {
	t.Run("zeroizes non-empty slice", func(t *testing.T) {
		data := []byte{0x01, 0x02, 0x03, 0x04, 0x05}
		Zeroize(data)

		for i, b := range data {
			if b != 0 {
				t.Errorf("byte at index %d should be 0, got %d", i, b)
			}
		}
	})

	t.Run("handles nil slice", func(t *testing.T) {
		var data []byte
		Zeroize(data) // Should not panic
	})

	t.Run("zeroizes derived key bytes", func(t *testing.T) {
		key := DeriveKey([]byte("secret module"))
		Zeroize(key[:])

		if key != (Key{}) {
			t.Errorf("key not zeroized: %s", key)
		}
	})
}
