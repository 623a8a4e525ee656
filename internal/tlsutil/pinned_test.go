package tlsutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func selfSignedCert(t *testing.T) *x509.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "resolver.example.net"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	return cert
}

func TestPinStoreEmptyByDefault(t *testing.T) {
	var ps *PinStore
	assert.True(t, ps.Empty())
}

func TestPinStoreMatches(t *testing.T) {
	cert := selfSignedCert(t)
	ps := NewPinStore([]*x509.Certificate{cert})
	assert.False(t, ps.Empty())
	assert.True(t, ps.Matches(cert))

	other := selfSignedCert(t)
	assert.False(t, ps.Matches(other))
}

func TestPinnedConnPeerOnNilOrUnconnected(t *testing.T) {
	var p *PinnedConn
	assert.Equal(t, "", p.Peer())

	p2 := &PinnedConn{}
	assert.Equal(t, "", p2.Peer())
}
