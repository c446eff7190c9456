package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/peerlink/internal/common"
)

func TestHashPassword_EncodedForm(t *testing.T) {
	h := HashPassword([]byte("s3cret"))
	parts := strings.Split(h, "$")
	require.Len(t, parts, 3)
	assert.Equal(t, "argon2id", parts[0])
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	a := HashPassword([]byte("s3cret"))
	b := HashPassword([]byte("s3cret"))
	assert.NotEqual(t, a, b, "two hashes of the same password must differ by salt")
}

func TestVerifyPassword_Match(t *testing.T) {
	h := HashPassword([]byte("s3cret"))
	assert.NoError(t, VerifyPassword(h, []byte("s3cret")))
}

func TestVerifyPassword_Mismatch(t *testing.T) {
	h := HashPassword([]byte("s3cret"))
	err := VerifyPassword(h, []byte("wrong"))
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}

func TestVerifyPassword_Malformed(t *testing.T) {
	for _, encoded := range []string{"", "plain", "md5$x$y", "argon2id$!!$zz"} {
		assert.ErrorIs(t, VerifyPassword(encoded, []byte("x")), ErrMalformedHash, encoded)
	}
}
