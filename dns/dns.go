package dns

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ProviderType identifies a supported DNS API.
type ProviderType string

const (
	ProviderNone       = ProviderType("none")
	ProviderCloudflare = ProviderType("cloudflare")
	ProviderHetzner    = ProviderType("hetzner")
)

const (
	recordTTL      = 120
	requestTimeout = 20 * time.Second
)

// Credentials carries the provider API tokens, captured once from the
// environment at process start so nothing deeper reads os.Getenv.
type Credentials struct {
	CloudflareToken string `env:"CLOUDFLARE_API_TOKEN"`
	HetznerToken    string `env:"HETZNER_DNS_API_TOKEN"`
}

// TokenFor returns the token for a provider, or ErrMissingToken when the
// corresponding environment variable was not set.
func (c Credentials) TokenFor(provider ProviderType) (string, error) {
	switch provider {
	case ProviderCloudflare:
		if c.CloudflareToken == "" {
			return "", fmt.Errorf("CLOUDFLARE_API_TOKEN is not set: %w", ErrMissingToken)
		}
		return c.CloudflareToken, nil
	case ProviderHetzner:
		if c.HetznerToken == "" {
			return "", fmt.Errorf("HETZNER_DNS_API_TOKEN is not set: %w", ErrMissingToken)
		}
		return c.HetznerToken, nil
	default:
		return "", fmt.Errorf("no credentials for provider %q", provider)
	}
}

// RecordHandle identifies one created TXT record so it can be deleted
// symmetrically. Cloudflare addresses records by zone and record id,
// Hetzner by zone name, record name and type plus the record value, since
// an RRset holds every value for that name (a wildcard order puts two
// challenge values on the same name).
type RecordHandle struct {
	Provider ProviderType
	ZoneID   string
	ZoneName string
	RecordID string
	Name     string
	Type     string
	Value    string
}

// Provider is the uniform capability set over the supported DNS APIs.
type Provider interface {
	Name() ProviderType

	// CreateTXTRecord creates a TXT record for the fully-qualified name and
	// returns a handle for symmetric deletion.
	CreateTXTRecord(ctx context.Context, fqdn, value string) (RecordHandle, error)

	// DeleteTXTRecord removes a record by handle. Deleting an already-absent
	// record is not an error.
	DeleteTXTRecord(ctx context.Context, handle RecordHandle) error

	// UpsertRecord creates or replaces an address record (A/AAAA) so the
	// domain points at this server before issuance starts.
	UpsertRecord(ctx context.Context, rtype, fqdn, content string) error
}

// New builds the provider implementation selected at startup.
func New(provider ProviderType, creds Credentials) (Provider, error) {
	token, err := creds.TokenFor(provider)
	if err != nil {
		return nil, err
	}
	switch provider {
	case ProviderCloudflare:
		return NewCloudflare(token), nil
	case ProviderHetzner:
		return NewHetzner(token), nil
	default:
		return nil, fmt.Errorf("unrecognized DNS provider: %s", provider)
	}
}

// ZoneCandidates lists every suffix of the fqdn that could be a zone name,
// most specific first, so the first hit is the longest-suffix match.
func ZoneCandidates(fqdn string) []string {
	parts := strings.Split(strings.Trim(fqdn, "."), ".")
	candidates := make([]string, 0, len(parts)-1)
	for i := 0; i < len(parts)-1; i++ {
		candidates = append(candidates, strings.Join(parts[i:], "."))
	}
	return candidates
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: requestTimeout}
}
