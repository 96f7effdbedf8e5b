package utils

import (
	"crypto/tls"
	"crypto/x509"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "certs", "server.crt")
	key := filepath.Join(dir, "certs", "server.key")

	created, err := EnsureSelfSignedCert(cert, key, "parcels.internal", "10.0.0.5")
	require.NoError(t, err)
	assert.True(t, created)

	pair, err := tls.LoadX509KeyPair(cert, key)
	require.NoError(t, err)
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	require.NoError(t, err)
	assert.Equal(t, "parcels.internal", leaf.Subject.CommonName)
	assert.Contains(t, leaf.DNSNames, "parcels.internal")
	assert.NoError(t, leaf.VerifyHostname("10.0.0.5"))

	created, err = EnsureSelfSignedCert(cert, key)
	require.NoError(t, err)
	assert.False(t, created, "existing files are kept")
}
