// Package container defines the bytecode container that wraps a WebAssembly
// binary before it is encrypted.
//
// A container is a fixed 16 byte header followed by the module code:
//
//	[magic:4 "WBC\x00"][version:2][flags:2][check:8][code]
//
// All integers are big-endian. When FlagHashBased is set, check is the
// xxhash64 of the code. Otherwise check is a 4 byte build timestamp followed
// by the 4 byte code length.
//
// Classify validates a decrypted container independently of the record's
// integrity tag, so a blob that decrypts cleanly but is not a container never
// reaches the runtime.
package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	// HeaderSize is the fixed size of the container header.
	HeaderSize = 16

	// CurrentVersion is the newest header version this package understands.
	CurrentVersion = uint16(1)

	// FlagHashBased marks the check field as an xxhash64 of the code.
	FlagHashBased = uint16(1 << 0)

	knownFlags = FlagHashBased
)

// Magic identifies a bytecode container.
var Magic = [4]byte{'W', 'B', 'C', 0}

// ErrClassification is matched by every container validation failure.
var ErrClassification = errors.New("bytecode container classification failed")

// ClassificationError describes why data is not a valid container.
type ClassificationError struct {
	Name   string // Module name, if known
	Reason string
}

func (e *ClassificationError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("bad bytecode container for %s: %s", e.Name, e.Reason)
	}
	return "bad bytecode container: " + e.Reason
}

// Is makes errors.Is(err, ErrClassification) succeed.
func (e *ClassificationError) Is(target error) bool {
	return target == ErrClassification
}

// Header is the decoded container header.
type Header struct {
	Version   uint16
	Flags     uint16
	Hash      uint64    // Set when FlagHashBased
	Timestamp time.Time // Set when not FlagHashBased
	Size      uint32    // Set when not FlagHashBased
}

// HashBased reports whether the header carries a code hash.
func (h Header) HashBased() bool {
	return h.Flags&FlagHashBased != 0
}

// Classify validates data as a container and returns its header.
// It checks the magic, the version, the flags and the check field against
// the code that follows the header.
func Classify(data []byte) (Header, error) {
	var h Header
	if len(data) < HeaderSize {
		return h, &ClassificationError{Reason: fmt.Sprintf("%d bytes is shorter than the %d byte header", len(data), HeaderSize)}
	}
	if !bytes.Equal(data[:4], Magic[:]) {
		return h, &ClassificationError{Reason: fmt.Sprintf("bad magic number %x", data[:4])}
	}

	h.Version = binary.BigEndian.Uint16(data[4:6])
	if h.Version == 0 || h.Version > CurrentVersion {
		return h, &ClassificationError{Reason: fmt.Sprintf("unsupported version %d", h.Version)}
	}

	h.Flags = binary.BigEndian.Uint16(data[6:8])
	if h.Flags&^knownFlags != 0 {
		return h, &ClassificationError{Reason: fmt.Sprintf("invalid flags %#04x", h.Flags)}
	}

	code := data[HeaderSize:]
	if h.HashBased() {
		h.Hash = binary.BigEndian.Uint64(data[8:16])
		if sum := xxhash.Sum64(code); sum != h.Hash {
			return h, &ClassificationError{Reason: fmt.Sprintf("code hash %016x does not match header %016x", sum, h.Hash)}
		}
		return h, nil
	}

	h.Timestamp = time.Unix(int64(binary.BigEndian.Uint32(data[8:12])), 0).UTC()
	h.Size = binary.BigEndian.Uint32(data[12:16])
	if uint64(h.Size) != uint64(len(code)) {
		return h, &ClassificationError{Reason: fmt.Sprintf("code is %d bytes, header says %d", len(code), h.Size)}
	}
	return h, nil
}

// Code returns the bytes after the header. It does not validate data.
func Code(data []byte) []byte {
	if len(data) < HeaderSize {
		return nil
	}
	return data[HeaderSize:]
}

// WrapOptions controls how Wrap fills the check field.
type WrapOptions struct {
	// Timestamp switches to a timestamp-based header. Zero means hash-based.
	Timestamp time.Time
}

// Wrap builds a container around code.
func Wrap(code []byte, opts WrapOptions) []byte {
	out := make([]byte, HeaderSize, HeaderSize+len(code))
	copy(out[0:4], Magic[:])
	binary.BigEndian.PutUint16(out[4:6], CurrentVersion)

	if opts.Timestamp.IsZero() {
		binary.BigEndian.PutUint16(out[6:8], FlagHashBased)
		binary.BigEndian.PutUint64(out[8:16], xxhash.Sum64(code))
	} else {
		binary.BigEndian.PutUint16(out[6:8], 0)
		binary.BigEndian.PutUint32(out[8:12], uint32(opts.Timestamp.Unix()))
		binary.BigEndian.PutUint32(out[12:16], uint32(len(code)))
	}

	return append(out, code...)
}
