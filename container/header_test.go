package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

// emptyModule is the smallest valid WebAssembly binary.
var emptyModule = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

func TestWrapClassify_HashBased(t *testing.T) {
	data := Wrap(emptyModule, WrapOptions{})

	if len(data) != HeaderSize+len(emptyModule) {
		t.Fatalf("len(Wrap()) = %d, want %d", len(data), HeaderSize+len(emptyModule))
	}

	h, err := Classify(data)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if !h.HashBased() {
		t.Error("HashBased() = false, want true")
	}
	if h.Version != CurrentVersion {
		t.Errorf("Version = %d, want %d", h.Version, CurrentVersion)
	}
	if !bytes.Equal(Code(data), emptyModule) {
		t.Errorf("Code() = %x, want %x", Code(data), emptyModule)
	}
}

func TestWrapClassify_TimestampBased(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	data := Wrap(emptyModule, WrapOptions{Timestamp: ts})

	h, err := Classify(data)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if h.HashBased() {
		t.Error("HashBased() = true, want false")
	}
	if !h.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", h.Timestamp, ts)
	}
	if h.Size != uint32(len(emptyModule)) {
		t.Errorf("Size = %d, want %d", h.Size, len(emptyModule))
	}
}

func TestClassify_Rejects(t *testing.T) {
	valid := Wrap(emptyModule, WrapOptions{})
	mutate := func(f func(b []byte) []byte) []byte {
		return f(append([]byte(nil), valid...))
	}

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "short header", data: valid[:HeaderSize-1]},
		{name: "bad magic", data: mutate(func(b []byte) []byte { b[0] = 'X'; return b })},
		{name: "version zero", data: mutate(func(b []byte) []byte { binary.BigEndian.PutUint16(b[4:6], 0); return b })},
		{name: "future version", data: mutate(func(b []byte) []byte { binary.BigEndian.PutUint16(b[4:6], CurrentVersion+1); return b })},
		{name: "unknown flag", data: mutate(func(b []byte) []byte { binary.BigEndian.PutUint16(b[6:8], FlagHashBased|0x8000); return b })},
		{name: "hash mismatch", data: mutate(func(b []byte) []byte { b[len(b)-1] ^= 0xFF; return b })},
		{name: "truncated code", data: valid[:len(valid)-1]},
		{name: "size mismatch", data: Wrap(emptyModule, WrapOptions{Timestamp: time.Unix(1, 0)})[:HeaderSize+4]},
		{name: "random bytes", data: bytes.Repeat([]byte{0x5A}, 64)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Classify(tt.data)
			if err == nil {
				t.Fatal("Classify() error = nil, want error")
			}
			if !errors.Is(err, ErrClassification) {
				t.Errorf("Classify() error = %v, want ErrClassification", err)
			}
			var ce *ClassificationError
			if !errors.As(err, &ce) || ce.Reason == "" {
				t.Errorf("Classify() error = %#v, want *ClassificationError with a reason", err)
			}
		})
	}
}

func TestCode_Short(t *testing.T) {
	if Code([]byte("short")) != nil {
		t.Error("Code() on short input should be nil")
	}
}
