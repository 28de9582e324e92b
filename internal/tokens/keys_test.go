package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHexRoundTrip(t *testing.T) {
	k := testKeys(t)
	sign, enc := k.Hex()

	parsed, err := ParseHexKeys(sign, enc)
	require.NoError(t, err)
	assert.Equal(t, k, parsed)
}

func TestParseHexKeysRejectsGarbage(t *testing.T) {
	_, err := ParseHexKeys("zz", strings.Repeat("00", KeySize))
	assert.Error(t, err)
}

func TestParseRetiredKeys(t *testing.T) {
	a, b := testKeys(t), testKeys(t)
	as, ae := a.Hex()
	bs, be := b.Hex()

	keys, err := ParseRetiredKeys(as + ":" + ae + ", " + bs + ":" + be + ",")
	require.NoError(t, err)
	assert.Equal(t, []Keys{a, b}, keys)

	keys, err = ParseRetiredKeys("")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = ParseRetiredKeys(as)
	assert.Error(t, err)
}
