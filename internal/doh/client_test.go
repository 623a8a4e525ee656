package doh

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sebkrahmer/harddns-go/internal/constants"
	"github.com/sebkrahmer/harddns-go/internal/tlsutil"
)

func TestBuildRequestRFC8484IsPadded(t *testing.T) {
	ep := tlsutil.Endpoint{Host: "dns.example.net", Get: "/dns-query?dns=", RFC8484: true}
	req, err := buildRequest(ep, "example.net", 1)
	require.NoError(t, err)

	s := string(req)
	assert.True(t, strings.HasPrefix(s, "GET /dns-query?dns="))
	assert.Contains(t, s, "Host: dns.example.net\r\n")
	assert.Contains(t, s, "application/dns-message")
	assert.True(t, strings.HasSuffix(s, "\r\n\r\n"))
	assert.GreaterOrEqual(t, len(s), int(constants.Get().XIgnoPadModulo))
}

func TestBuildRequestJSON(t *testing.T) {
	ep := tlsutil.Endpoint{Host: "dns.example.net", Get: "/resolve?name=", RFC8484: false}
	req, err := buildRequest(ep, "example.net", 28)
	require.NoError(t, err)

	s := string(req)
	assert.Contains(t, s, "name=example.net&type=AAAA")
	assert.Contains(t, s, "application/dns-json")
}

func TestJSONTypeParamRejectsUnknown(t *testing.T) {
	_, err := jsonTypeParam(9999)
	require.Error(t, err)
}
