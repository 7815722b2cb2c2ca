package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashDeterministicForSameSalt(t *testing.T) {
	h := NewPBKDF2Hasher(1000)

	salt, err := h.GenerateSalt()
	require.NoError(t, err)
	require.NotEmpty(t, salt)

	first, err := h.Hash("s3cret!", salt)
	require.NoError(t, err)
	second, err := h.Hash("s3cret!", salt)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestHashDiffersAcrossSalts(t *testing.T) {
	h := NewPBKDF2Hasher(1000)

	saltA, err := h.GenerateSalt()
	require.NoError(t, err)
	saltB, err := h.GenerateSalt()
	require.NoError(t, err)
	require.NotEqual(t, saltA, saltB)

	digestA, err := h.Hash("s3cret!", saltA)
	require.NoError(t, err)
	digestB, err := h.Hash("s3cret!", saltB)
	require.NoError(t, err)
	assert.NotEqual(t, digestA, digestB)
}

func TestDigestEmbedsParameters(t *testing.T) {
	h := NewPBKDF2Hasher(1000)

	salt, err := h.GenerateSalt()
	require.NoError(t, err)
	digest, err := h.Hash("s3cret!", salt)
	require.NoError(t, err)

	parts := strings.Split(digest, "$")
	require.Len(t, parts, 3)
	assert.Equal(t, "pbkdf2-sha256", parts[0])
	assert.Equal(t, "1000", parts[1])
	assert.NotEmpty(t, parts[2])
}

func TestVerify(t *testing.T) {
	h := NewPBKDF2Hasher(1000)

	salt, err := h.GenerateSalt()
	require.NoError(t, err)
	digest, err := h.Hash("s3cret!", salt)
	require.NoError(t, err)

	assert.True(t, h.Verify("s3cret!", salt, digest))
	assert.False(t, h.Verify("wrong", salt, digest))
	assert.False(t, h.Verify("s3cret!", "othersalt", digest))
}

func TestVerifyHonoursEmbeddedIterations(t *testing.T) {
	writer := NewPBKDF2Hasher(500)
	reader := NewPBKDF2Hasher(1000)

	salt, err := writer.GenerateSalt()
	require.NoError(t, err)
	digest, err := writer.Hash("s3cret!", salt)
	require.NoError(t, err)

	// A digest written with a different cost still verifies.
	assert.True(t, reader.Verify("s3cret!", salt, digest))
}

func TestVerifyRejectsMalformedDigest(t *testing.T) {
	h := NewPBKDF2Hasher(1000)

	assert.False(t, h.Verify("s3cret!", "salt", ""))
	assert.False(t, h.Verify("s3cret!", "salt", "not-a-digest"))
	assert.False(t, h.Verify("s3cret!", "salt", "pbkdf2-sha256$abc$zzzz"))
	assert.False(t, h.Verify("s3cret!", "salt", "md5$1000$deadbeef"))
}
