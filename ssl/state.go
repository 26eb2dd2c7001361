package ssl

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/izetmolla/odooproxy/utils"
)

// RecordExpiry stores the certificate expiry in the site state file so the
// renew command can decide without parsing the certificate.
func RecordExpiry(sitePath, confExt string, notAfter time.Time) error {
	return utils.SetConfigData(sitePath, confExt, map[string]interface{}{
		"ssl_expire_at": notAfter.Format(time.RFC3339Nano),
	})
}

// ExpirationDate reads the recorded expiry, zero time when unknown.
func ExpirationDate(sitePath, confExt string) time.Time {
	data, err := utils.Unmarshal(filepath.Join(sitePath, fmt.Sprintf("config.%s", confExt)))
	if err != nil {
		return time.Time{}
	}
	raw, ok := data["ssl_expire_at"].(string)
	if !ok {
		return time.Time{}
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// IsExpiringSoon reports whether the recorded expiry is within the given
// number of days, or unknown.
func IsExpiringSoon(sitePath, confExt string, days int) bool {
	exp := ExpirationDate(sitePath, confExt)
	if exp.IsZero() {
		return true
	}
	return time.Now().After(exp.AddDate(0, 0, -days))
}
