package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testParams = Argon2Params{Time: 1, Memory: 1024, Threads: 1}

func TestPasswordHasherRoundTrip(t *testing.T) {
	h := NewPasswordHasher(testParams)

	encoded, err := h.Hash("ValidPass1!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(encoded), "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, rehash, err := h.Verify("ValidPass1!", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, rehash)

	ok, _, err = h.Verify("WrongPass1!", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPasswordHasherSaltsEachHash(t *testing.T) {
	h := NewPasswordHasher(testParams)
	a, err := h.Hash("ValidPass1!")
	require.NoError(t, err)
	b, err := h.Hash("ValidPass1!")
	require.NoError(t, err)
	assert.NotEqual(t, string(a), string(b))
}

func TestPasswordHasherFlagsOutdatedParams(t *testing.T) {
	old := NewPasswordHasher(testParams)
	encoded, err := old.Hash("ValidPass1!")
	require.NoError(t, err)

	current := NewPasswordHasher(Argon2Params{Time: 2, Memory: 1024, Threads: 1})
	ok, rehash, err := current.Verify("ValidPass1!", encoded)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, rehash)
}

func TestPasswordHasherVerifiesLegacyBcrypt(t *testing.T) {
	legacy, err := bcrypt.GenerateFromPassword([]byte("ValidPass1!"), bcrypt.MinCost)
	require.NoError(t, err)

	h := NewPasswordHasher(testParams)
	ok, rehash, err := h.Verify("ValidPass1!", legacy)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, rehash)

	ok, rehash, err = h.Verify("nope", legacy)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, rehash)
}

func TestPasswordHasherRejectsGarbage(t *testing.T) {
	h := NewPasswordHasher(testParams)
	_, _, err := h.Verify("x", []byte("plaintext"))
	assert.ErrorIs(t, err, ErrUnknownHashFormat)
}
