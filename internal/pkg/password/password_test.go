package password

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse")
	require.NoError(t, err)

	assert.True(t, IsHash(hash))
	assert.True(t, Verify("correct horse", hash))
	assert.False(t, Verify("wrong horse", hash))
	assert.False(t, Verify("correct horse", "not-a-hash"))
}

func TestIsHash(t *testing.T) {
	assert.False(t, IsHash("admin123"))
	assert.False(t, IsHash(""))
}

func TestValidatePassword(t *testing.T) {
	assert.False(t, ValidatePassword("short"))
	assert.True(t, ValidatePassword("longenough"))
}
