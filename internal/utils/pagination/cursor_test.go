package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeEmptyIsFirstPage(t *testing.T) {
	c, err := Decode("")
	require.NoError(t, err)
	assert.True(t, c.Empty())
}

func TestTokenFitsCallbackPayload(t *testing.T) {
	token, err := Encode(Cursor{UserID: 9_223_372_036_854_775_807, CreatedUnix: 1_900_000_000_000})
	require.NoError(t, err)
	// "users:" prefix + token must stay within the 64-byte callback limit
	assert.LessOrEqual(t, len("users:")+len(token), 64)

	c, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, int64(1_900_000_000_000), c.CreatedUnix)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode("%%%")
	assert.Error(t, err)
}
