package crypto

import (
	"errors"
	"fmt"
)

// ErrIntegrity is matched by every integrity tag failure.
var ErrIntegrity = errors.New("integrity verification failed")

// IntegrityError reports a record whose tag does not match its ciphertext.
// It signals tampering, a wrong key, or corruption and is always fatal.
type IntegrityError struct {
	Path   string // File path, if known
	Reason string // Extra detail, if any
}

func (e *IntegrityError) Error() string {
	msg := "integrity verification failed"
	if e.Path != "" {
		msg = fmt.Sprintf("file %s failed integrity verification", e.Path)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is makes errors.Is(err, ErrIntegrity) succeed.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrity
}
