package base64url

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	in := []byte{0, 1, 2, 3, 4, 5, 250, 251, 252}
	enc := Encode(in)
	assert.NotContains(t, enc, "=")

	out, err := Decode(enc)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
