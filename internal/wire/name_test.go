package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []string{"example.net", "example.net.", "a.b.c.example.com"}
	for _, host := range cases {
		encoded, err := EncodeName(host)
		require.NoError(t, err, host)

		decoded, n, err := DecodeName(encoded, 0)
		require.NoError(t, err, host)
		assert.Equal(t, len(encoded), n)
		assert.Equal(t, Lower(host+"."), Lower(decoded))
	}
}

func TestEncodeNameSplitsOversizedLabel(t *testing.T) {
	long := ""
	for i := 0; i < 100; i++ {
		long += "a"
	}
	encoded, err := EncodeName(long + ".example.com")
	require.NoError(t, err)
	require.NotEmpty(t, encoded)
	// First label length byte must never exceed the 63-byte maximum.
	assert.LessOrEqual(t, int(encoded[0]), 63)
}

func TestDecodeNameRejectsCompressionInBareName(t *testing.T) {
	// 0xc0 0x00 is a compression pointer; illegal when startIdx == 0.
	_, _, err := DecodeName([]byte{0xc0, 0x00}, 0)
	require.Error(t, err)
}

func TestDecodeNameFollowsCompressionPointer(t *testing.T) {
	// msg: [0]"example"[8]0 (end) ... then a second name pointing at offset 0.
	msg := []byte{7, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 0, 0xc0, 0x00}
	decoded, n, err := DecodeName(msg, 9)
	require.NoError(t, err)
	assert.Equal(t, "example.", decoded)
	assert.Equal(t, 2, n) // pointer + terminator accounting
}

func TestValidName(t *testing.T) {
	assert.True(t, ValidName("example.com"))
	assert.False(t, ValidName("exa mple.com"))
	assert.False(t, ValidName("a"))
}
