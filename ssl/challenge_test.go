package ssl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/izetmolla/odooproxy/dns"
)

func testCreds() dns.Credentials {
	return dns.Credentials{CloudflareToken: "cf", HetznerToken: "hz"}
}

func TestSelectPlanHTTP(t *testing.T) {
	plan, err := SelectPlan(HTTP, "odoo.example.com", false,
		dns.ProviderNone, dns.Credentials{}, "/var/www/odoo.example.com", 0)
	require.NoError(t, err)

	assert.Equal(t, HTTP, plan.Type)
	assert.Equal(t, []string{"odoo.example.com"}, plan.Domains)
	assert.Equal(t, "/var/www/odoo.example.com", plan.Webroot)
	assert.Nil(t, plan.Provider)
	assert.Nil(t, plan.Solver)
	assert.False(t, plan.Wildcard())
}

func TestSelectPlanRejectsWildcardOverHTTP(t *testing.T) {
	_, err := SelectPlan(HTTP, "example.com", true,
		dns.ProviderCloudflare, testCreds(), "/var/www/example.com", 0)
	assert.ErrorIs(t, err, ErrWildcardHTTP)
}

func TestSelectPlanWildcardExpandsToApex(t *testing.T) {
	plan, err := SelectPlan(DNS, "*.example.com", false,
		dns.ProviderCloudflare, testCreds(), "/var/www/example.com", time.Second)
	require.NoError(t, err)

	// The *. prefix implies wildcard, and the apex is always covered too.
	assert.Equal(t, []string{"example.com", "*.example.com"}, plan.Domains)
	assert.True(t, plan.Wildcard())
	assert.Equal(t, "example.com", plan.PrimaryDomain())
	require.NotNil(t, plan.Provider)
	require.NotNil(t, plan.Solver)
}

func TestSelectPlanDNSRequiresProvider(t *testing.T) {
	_, err := SelectPlan(DNS, "example.com", false,
		dns.ProviderNone, testCreds(), "", 0)
	var confErr *ConfigError
	require.ErrorAs(t, err, &confErr)
}

func TestSelectPlanDNSRequiresToken(t *testing.T) {
	_, err := SelectPlan(DNS, "example.com", true,
		dns.ProviderHetzner, dns.Credentials{}, "", 0)
	var confErr *ConfigError
	require.ErrorAs(t, err, &confErr)
	assert.ErrorIs(t, err, dns.ErrMissingToken)
}

func TestSelectPlanUnknownChallenge(t *testing.T) {
	_, err := SelectPlan(ChallengeType("tls-alpn"), "example.com", false,
		dns.ProviderNone, dns.Credentials{}, "", 0)
	var confErr *ConfigError
	require.ErrorAs(t, err, &confErr)
}
