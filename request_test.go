package odooproxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/izetmolla/odooproxy/dns"
	"github.com/izetmolla/odooproxy/ssl"
)

func validRequest() *ProvisioningRequest {
	return &ProvisioningRequest{
		Domain:          "odoo.example.com",
		HTTPPort:        8069,
		LongpollingPort: 8072,
	}
}

func TestNormalizeDefaults(t *testing.T) {
	req := validRequest()
	require.NoError(t, req.Normalize())

	assert.Equal(t, "admin@odoo.example.com", req.Email)
	assert.Equal(t, ssl.HTTP, req.Challenge)
	assert.Equal(t, dns.ProviderNone, req.Provider)
	assert.Equal(t, IssuerCertbot, req.Issuer)
	assert.Equal(t, IPv4, req.IPMode)
	assert.Equal(t, "127.0.0.1", req.BackendHost)
}

func TestNormalizeWildcardPrefix(t *testing.T) {
	req := validRequest()
	req.Domain = "*.example.com"
	require.NoError(t, req.Normalize())

	assert.Equal(t, "example.com", req.Domain)
	assert.True(t, req.Wildcard)
}

func TestNormalizeUnicodeDomain(t *testing.T) {
	req := validRequest()
	req.Domain = "bücher.example.com"
	require.NoError(t, req.Normalize())
	assert.Equal(t, "xn--bcher-kva.example.com", req.Domain)
}

func TestNormalizeRejectsMissingDomain(t *testing.T) {
	req := validRequest()
	req.Domain = ""
	var confErr *ssl.ConfigError
	require.ErrorAs(t, req.Normalize(), &confErr)
}

func TestNormalizeRejectsInvalidDomain(t *testing.T) {
	req := validRequest()
	req.Domain = "exa mple.com"
	var confErr *ssl.ConfigError
	require.ErrorAs(t, req.Normalize(), &confErr)
}

func TestNormalizeRejectsMissingPorts(t *testing.T) {
	req := validRequest()
	req.HTTPPort = 0
	var confErr *ssl.ConfigError
	require.ErrorAs(t, req.Normalize(), &confErr)

	req = validRequest()
	req.LongpollingPort = 0
	require.Error(t, req.Normalize())

	// A single upstream needs no longpolling port.
	req = validRequest()
	req.LongpollingPort = 0
	req.SingleUpstream = true
	require.NoError(t, req.Normalize())
}
