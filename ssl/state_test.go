package ssl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAndReadExpiry(t *testing.T) {
	sitePath := t.TempDir()
	notAfter := time.Now().Add(80 * 24 * time.Hour).UTC().Truncate(time.Second)

	require.NoError(t, RecordExpiry(sitePath, "yaml", notAfter))

	got := ExpirationDate(sitePath, "yaml")
	assert.True(t, got.Equal(notAfter), "got %s, want %s", got, notAfter)
	assert.False(t, IsExpiringSoon(sitePath, "yaml", 30))
	assert.True(t, IsExpiringSoon(sitePath, "yaml", 90))
}

func TestExpirationDateUnknownSite(t *testing.T) {
	sitePath := t.TempDir()
	assert.True(t, ExpirationDate(sitePath, "yaml").IsZero())
	// Unknown expiry always counts as due, renewal decides from the cert.
	assert.True(t, IsExpiringSoon(sitePath, "yaml", 30))
}

func TestRecordExpiryMergesExistingState(t *testing.T) {
	sitePath := t.TempDir()
	notAfter := time.Now().Add(60 * 24 * time.Hour).UTC().Truncate(time.Second)

	require.NoError(t, RecordExpiry(sitePath, "yaml", notAfter))
	later := notAfter.Add(90 * 24 * time.Hour)
	require.NoError(t, RecordExpiry(sitePath, "yaml", later))

	assert.True(t, ExpirationDate(sitePath, "yaml").Equal(later))
}

func TestIssueConfigDefaults(t *testing.T) {
	cfg := (&IssueConfig{}).withDefaults()
	assert.Equal(t, LEDirectoryProduction, cfg.Server)
	assert.Equal(t, "RSA4096", cfg.KeyType)
	assert.NotEmpty(t, cfg.PfxPassword)

	custom := (&IssueConfig{Server: LEDirectoryStaging, KeyType: "EC256"}).withDefaults()
	assert.Equal(t, LEDirectoryStaging, custom.Server)
	assert.Equal(t, "EC256", custom.KeyType)
}

func TestGetKeyType(t *testing.T) {
	for _, name := range []string{"RSA2048", "RSA3072", "RSA4096", "RSA8192", "EC256", "EC384", "ec384"} {
		_, err := getKeyType(name)
		assert.NoError(t, err, name)
	}
	_, err := getKeyType("DSA1024")
	assert.Error(t, err)
}
