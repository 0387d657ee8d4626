package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestDetectHashType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		hash string
		want string
	}{
		{"argon2id PHC", "$argon2id$v=19$m=48128,t=1,p=1$c2FsdHNhbHQ$aGFzaGhhc2g", "argon2id"},
		{"sha256 prefixed", "sha256:" + HashKey("k"), "sha256"},
		{"bare hex", HashKey("k"), "unknown"},
		{"sha256 prefix with garbage", "sha256:not-hex", "unknown"},
		{"empty", "", "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := DetectHashType(tt.hash); got != tt.want {
				t.Errorf("DetectHashType(%q) = %q, want %q", tt.hash, got, tt.want)
			}
		})
	}
}

func TestVerifyKey_SHA256(t *testing.T) {
	t.Parallel()

	stored := "sha256:" + HashKey("correct-key")

	match, err := VerifyKey("correct-key", stored)
	if err != nil || !match {
		t.Errorf("VerifyKey(correct) = (%v, %v), want (true, nil)", match, err)
	}

	match, err = VerifyKey("wrong-key", stored)
	if err != nil || match {
		t.Errorf("VerifyKey(wrong) = (%v, %v), want (false, nil)", match, err)
	}
}

func TestVerifyKey_Argon2id(t *testing.T) {
	t.Parallel()

	stored, err := HashKeyArgon2id("correct-key")
	if err != nil {
		t.Fatalf("HashKeyArgon2id() error: %v", err)
	}
	if !strings.HasPrefix(stored, "$argon2id$") {
		t.Fatalf("hash not in PHC format: %s", stored)
	}

	match, err := VerifyKey("correct-key", stored)
	if err != nil || !match {
		t.Errorf("VerifyKey(correct) = (%v, %v), want (true, nil)", match, err)
	}

	match, err = VerifyKey("wrong-key", stored)
	if err != nil || match {
		t.Errorf("VerifyKey(wrong) = (%v, %v), want (false, nil)", match, err)
	}
}

func TestVerifyKey_MalformedArgon2idDoesNotPanic(t *testing.T) {
	t.Parallel()

	// Zero iterations makes the underlying library panic.
	malformed := "$argon2id$v=19$m=1024,t=0,p=0$c2FsdA$aGFzaA"
	match, err := VerifyKey("any", malformed)
	if match {
		t.Error("malformed hash matched")
	}
	if err == nil {
		t.Error("expected error for malformed hash")
	}
}

func TestVerifyKey_UnknownFormat(t *testing.T) {
	t.Parallel()

	if _, err := VerifyKey("any", "plaintext-key"); !errors.Is(err, ErrUnknownHashType) {
		t.Errorf("VerifyKey(unknown format) error = %v, want ErrUnknownHashType", err)
	}
}

func TestKeyring(t *testing.T) {
	t.Parallel()

	argonHash, err := HashKeyArgon2id("argon-key")
	if err != nil {
		t.Fatalf("HashKeyArgon2id() error: %v", err)
	}

	k, err := NewKeyring([]string{
		"sha256:" + HashKey("fast-key"),
		argonHash,
	})
	if err != nil {
		t.Fatalf("NewKeyring() error: %v", err)
	}
	if k.Empty() {
		t.Fatal("keyring reports empty")
	}

	if err := k.Verify("fast-key"); err != nil {
		t.Errorf("Verify(fast-key) error: %v", err)
	}
	if err := k.Verify("argon-key"); err != nil {
		t.Errorf("Verify(argon-key) error: %v", err)
	}
	if err := k.Verify("intruder"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Verify(intruder) error = %v, want ErrInvalidKey", err)
	}
}

func TestNewKeyring_RejectsUnknownHash(t *testing.T) {
	t.Parallel()

	if _, err := NewKeyring([]string{"plaintext"}); !errors.Is(err, ErrUnknownHashType) {
		t.Errorf("NewKeyring(plaintext) error = %v, want ErrUnknownHashType", err)
	}
}

func TestKeyring_EmptyIsEmpty(t *testing.T) {
	t.Parallel()

	k, err := NewKeyring(nil)
	if err != nil {
		t.Fatalf("NewKeyring(nil) error: %v", err)
	}
	if !k.Empty() {
		t.Error("empty keyring reports non-empty")
	}
	if err := k.Verify("anything"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Verify on empty keyring error = %v, want ErrInvalidKey", err)
	}
}
