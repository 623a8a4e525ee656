package wire

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPTRNameV4(t *testing.T) {
	name, err := PTRName(net.ParseIP("192.0.2.1"))
	require.NoError(t, err)
	assert.Equal(t, "1.2.0.192.in-addr.arpa", name)
}

func TestPTRNameV6(t *testing.T) {
	name, err := PTRName(net.ParseIP("2001:db8::1"))
	require.NoError(t, err)
	assert.Equal(t, "ip6.arpa", name[len(name)-8:])
}

func TestQueryRoundTrip(t *testing.T) {
	msg, err := BuildQuery("example.com", 1)
	require.NoError(t, err)

	id, err := QueryID(msg)
	require.NoError(t, err)
	assert.NotZero(t, id)

	isResp, err := IsResponse(msg)
	require.NoError(t, err)
	assert.False(t, isResp)

	qd, err := QuestionCount(msg)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), qd)
}
