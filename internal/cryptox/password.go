// Package cryptox implements password hashing for peerlink accounts.
//
// The scheme is argon2id with a per-user random salt. The encoded form is
//
//	argon2id$<base64 salt>$<base64 hash>
//
// and is what gets stored in the User record and the local vault.
package cryptox

import (
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/dmitrijs2005/peerlink/internal/common"
)

const (
	saltSize = 16
	keySize  = 32

	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

var ErrMalformedHash = errors.New("malformed password hash")

func derive(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, argonTime, argonMemory, argonThreads, keySize)
}

// HashPassword derives a salted one-way hash of password and returns it in
// encoded form.
func HashPassword(password []byte) string {
	salt := common.GenerateRandByteArray(saltSize)
	key := derive(password, salt)

	var sb strings.Builder
	sb.WriteString("argon2id$")
	sb.WriteString(base64.RawStdEncoding.EncodeToString(salt))
	sb.WriteString("$")
	sb.WriteString(base64.RawStdEncoding.EncodeToString(key))
	return sb.String()
}

// VerifyPassword checks password against an encoded hash in constant time.
// It returns nil on match, common.ErrorUnauthorized on mismatch, and
// ErrMalformedHash if encoded is not a valid hash string.
func VerifyPassword(encoded string, password []byte) error {
	parts := strings.Split(encoded, "$")
	if len(parts) != 3 || parts[0] != "argon2id" {
		return ErrMalformedHash
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return ErrMalformedHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[2])
	if err != nil {
		return ErrMalformedHash
	}

	got := derive(password, salt)
	if subtle.ConstantTimeCompare(want, got) == 0 {
		return common.ErrorUnauthorized
	}
	return nil
}
