// Package auth verifies API keys presented to the decision API.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/alexedwards/argon2id"
)

// ErrInvalidKey is returned when no configured hash matches the presented key.
var ErrInvalidKey = errors.New("invalid api key")

// ErrUnknownHashType is returned when a configured hash has an unrecognized format.
var ErrUnknownHashType = errors.New("unknown hash type")

// argon2idParams are the parameters used when hashing new keys.
// Memory 47 MiB, one iteration, one lane (OWASP minimum is 46 MiB).
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024,
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// Keyring holds the configured API key hashes. Hashes may be Argon2id PHC
// strings or sha256-prefixed hex digests; the sha256 form gets a direct
// lookup, Argon2id hashes are verified one by one.
type Keyring struct {
	sha256Hashes map[string]struct{}
	argonHashes  []string
}

// NewKeyring builds a keyring from configured hashes.
// An unrecognized hash format is rejected so a typo in the config cannot
// silently disable a key.
func NewKeyring(hashes []string) (*Keyring, error) {
	k := &Keyring{sha256Hashes: make(map[string]struct{})}
	for _, h := range hashes {
		switch DetectHashType(h) {
		case "argon2id":
			k.argonHashes = append(k.argonHashes, h)
		case "sha256":
			k.sha256Hashes[strings.TrimPrefix(h, "sha256:")] = struct{}{}
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownHashType, h)
		}
	}
	return k, nil
}

// Empty reports whether the keyring holds no hashes.
func (k *Keyring) Empty() bool {
	return len(k.sha256Hashes) == 0 && len(k.argonHashes) == 0
}

// Verify checks a raw key against the keyring.
// Returns ErrInvalidKey when nothing matches.
func (k *Keyring) Verify(rawKey string) error {
	// Fast path: direct sha256 lookup.
	if _, ok := k.sha256Hashes[HashKey(rawKey)]; ok {
		return nil
	}

	for _, h := range k.argonHashes {
		match, err := safeArgon2idCompare(rawKey, h)
		if err != nil {
			continue
		}
		if match {
			return nil
		}
	}

	return ErrInvalidKey
}

// HashKey returns the SHA-256 hex digest of the raw key.
func HashKey(rawKey string) string {
	hash := sha256.Sum256([]byte(rawKey))
	return hex.EncodeToString(hash[:])
}

// HashKeyArgon2id returns an Argon2id hash of the raw key in PHC format:
// $argon2id$v=19$m=48128,t=1,p=1$<salt>$<hash>
func HashKeyArgon2id(rawKey string) (string, error) {
	return argon2id.CreateHash(rawKey, argon2idParams)
}

// DetectHashType identifies the hash algorithm of a configured hash.
// Returns "argon2id" for PHC format, "sha256" for prefixed hex, and
// "unknown" otherwise.
func DetectHashType(storedHash string) string {
	if strings.HasPrefix(storedHash, "$argon2id$") {
		return "argon2id"
	}
	if strings.HasPrefix(storedHash, "sha256:") && isHexString(strings.TrimPrefix(storedHash, "sha256:")) {
		return "sha256"
	}
	return "unknown"
}

func isHexString(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// VerifyKey verifies a raw key against one stored hash.
// Returns (false, ErrUnknownHashType) for unrecognized hash formats.
func VerifyKey(rawKey, storedHash string) (bool, error) {
	switch DetectHashType(storedHash) {
	case "argon2id":
		return safeArgon2idCompare(rawKey, storedHash)

	case "sha256":
		expected := strings.TrimPrefix(storedHash, "sha256:")
		computed := HashKey(rawKey)
		return subtle.ConstantTimeCompare([]byte(computed), []byte(expected)) == 1, nil

	default:
		return false, ErrUnknownHashType
	}
}

// safeArgon2idCompare wraps argon2id.ComparePasswordAndHash with panic
// recovery. The underlying argon2 library panics on malformed hashes with
// zero rounds or zero parallelism; those become errors here.
func safeArgon2idCompare(rawKey, storedHash string) (match bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			match = false
			err = fmt.Errorf("invalid argon2id hash parameters: %v", r)
		}
	}()
	return argon2id.ComparePasswordAndHash(rawKey, storedHash)
}
