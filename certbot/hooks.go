package certbot

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/izetmolla/odooproxy/dns"
	"github.com/izetmolla/odooproxy/utils"
)

// HookPair locates the installed authenticator/cleanup scripts for one domain.
type HookPair struct {
	AuthPath    string
	CleanupPath string
	TokenPath   string
}

// HookInstaller writes the provider hook scripts certbot's renewal invokes
// without an interactive session. The scripts read the credential from a
// restricted token file next to them, never from the script body, and
// reproduce exactly the TXT record lifecycle of the interactive flow.
type HookInstaller struct {
	BaseDir string
	// PropagationSeconds is the settle delay the authenticator sleeps after
	// creating the record, mirroring the interactive solver.
	PropagationSeconds int
}

func NewHookInstaller() *HookInstaller {
	return &HookInstaller{
		BaseDir:            HookBaseDir,
		PropagationSeconds: 60,
	}
}

var hookSlugPattern = regexp.MustCompile(`[^a-zA-Z0-9_]`)

func hookSlug(domain string) string {
	return hookSlugPattern.ReplaceAllString(domain, "_")
}

// Install writes the token file and both scripts. Re-running with the same
// provider and token produces identical content.
func (i *HookInstaller) Install(provider dns.ProviderType, domain, token string) (HookPair, error) {
	var auth, cleanup string
	switch provider {
	case dns.ProviderHetzner:
		auth, cleanup = hetznerAuthScript, hetznerCleanupScript
	case dns.ProviderCloudflare:
		auth, cleanup = cloudflareAuthScript, cloudflareCleanupScript
	default:
		return HookPair{}, fmt.Errorf("no hook scripts for provider %q", provider)
	}

	if err := utils.MakeDirs(i.BaseDir); err != nil {
		return HookPair{}, err
	}

	safe := hookSlug(domain)
	pair := HookPair{
		AuthPath:    filepath.Join(i.BaseDir, fmt.Sprintf("%s-auth-%s.sh", provider, safe)),
		CleanupPath: filepath.Join(i.BaseDir, fmt.Sprintf("%s-cleanup-%s.sh", provider, safe)),
		TokenPath:   filepath.Join(i.BaseDir, fmt.Sprintf("%s-token-%s", provider, safe)),
	}

	if err := utils.WritePrivateFile(pair.TokenPath, token+"\n"); err != nil {
		return HookPair{}, fmt.Errorf("write token file: %w", err)
	}

	replacer := strings.NewReplacer(
		"{{TOKEN_PATH}}", pair.TokenPath,
		"{{SLEEP}}", strconv.Itoa(i.PropagationSeconds),
	)
	if err := utils.WriteExecutableFile(pair.AuthPath, replacer.Replace(auth)); err != nil {
		return HookPair{}, fmt.Errorf("write auth hook: %w", err)
	}
	if err := utils.WriteExecutableFile(pair.CleanupPath, replacer.Replace(cleanup)); err != nil {
		return HookPair{}, fmt.Errorf("write cleanup hook: %w", err)
	}
	return pair, nil
}

const hetznerAuthScript = `#!/bin/bash
set -euo pipefail

token="$(cat {{TOKEN_PATH}})"
api="https://api.hetzner.cloud/v1"
fqdn="$CERTBOT_DOMAIN"

find_zone() {
  local candidate="$fqdn"
  while true; do
    local resp
    resp="$(curl -sS -H "Authorization: Bearer $token" "$api/zones?name=$candidate")"
    local zid
    zid="$(echo "$resp" | jq -r '.zones[0].id // empty')"
    if [ -n "$zid" ]; then
      echo "$candidate"
      return
    fi
    if [[ "$candidate" != *.* ]]; then
      echo "Could not determine zone for $fqdn" >&2
      exit 1
    fi
    candidate="${candidate#*.}"
  done
}

zone_name="$(find_zone)"

record_name="_acme-challenge"
if [ "$fqdn" != "$zone_name" ]; then
  host_part="${fqdn%.$zone_name}"
  record_name="_acme-challenge.$host_part"
fi

payload="$(jq -cn --arg name "$record_name" --arg val "$CERTBOT_VALIDATION" '{name:$name, type:"TXT", ttl:120, records:[{value:("\"" + $val + "\"")}]}')"
curl -sS -X POST "$api/zones/$zone_name/rrsets" -H "Authorization: Bearer $token" -H "Content-Type: application/json" -d "$payload" >/dev/null
sleep {{SLEEP}}
`

const hetznerCleanupScript = `#!/bin/bash
set -euo pipefail

token="$(cat {{TOKEN_PATH}})"
api="https://api.hetzner.cloud/v1"
fqdn="$CERTBOT_DOMAIN"

find_zone() {
  local candidate="$fqdn"
  while true; do
    local resp
    resp="$(curl -sS -H "Authorization: Bearer $token" "$api/zones?name=$candidate")"
    local zid
    zid="$(echo "$resp" | jq -r '.zones[0].id // empty')"
    if [ -n "$zid" ]; then
      echo "$candidate"
      return
    fi
    if [[ "$candidate" != *.* ]]; then
      exit 0
    fi
    candidate="${candidate#*.}"
  done
}

zone_name="$(find_zone)"

record_name="_acme-challenge"
if [ "$fqdn" != "$zone_name" ]; then
  host_part="${fqdn%.$zone_name}"
  record_name="_acme-challenge.$host_part"
fi

curl -sS -X DELETE "$api/zones/$zone_name/rrsets/$record_name/TXT" -H "Authorization: Bearer $token" >/dev/null
`

const cloudflareAuthScript = `#!/bin/bash
set -euo pipefail

token="$(cat {{TOKEN_PATH}})"
api="https://api.cloudflare.com/client/v4"
fqdn="$CERTBOT_DOMAIN"
record_name="_acme-challenge.$fqdn"

find_zone_id() {
  local candidate="$fqdn"
  while true; do
    local zid
    zid="$(curl -sS -H "Authorization: Bearer $token" "$api/zones?name=$candidate" | jq -r '.result[0].id // empty')"
    if [ -n "$zid" ]; then
      echo "$zid"
      return
    fi
    if [[ "$candidate" != *.* ]]; then
      echo "Could not determine zone for $fqdn" >&2
      exit 1
    fi
    candidate="${candidate#*.}"
  done
}

zone_id="$(find_zone_id)"

payload="$(jq -cn --arg name "$record_name" --arg val "$CERTBOT_VALIDATION" '{type:"TXT", name:$name, content:$val, ttl:120}')"
curl -sS -X POST "$api/zones/$zone_id/dns_records" -H "Authorization: Bearer $token" -H "Content-Type: application/json" -d "$payload" >/dev/null
sleep {{SLEEP}}
`

const cloudflareCleanupScript = `#!/bin/bash
set -euo pipefail

token="$(cat {{TOKEN_PATH}})"
api="https://api.cloudflare.com/client/v4"
fqdn="$CERTBOT_DOMAIN"
record_name="_acme-challenge.$fqdn"

find_zone_id() {
  local candidate="$fqdn"
  while true; do
    local zid
    zid="$(curl -sS -H "Authorization: Bearer $token" "$api/zones?name=$candidate" | jq -r '.result[0].id // empty')"
    if [ -n "$zid" ]; then
      echo "$zid"
      return
    fi
    if [[ "$candidate" != *.* ]]; then
      exit 0
    fi
    candidate="${candidate#*.}"
  done
}

zone_id="$(find_zone_id)"

ids="$(curl -sS -H "Authorization: Bearer $token" "$api/zones/$zone_id/dns_records?type=TXT&name=$record_name" | jq -r '.result[].id')"
for id in $ids; do
  curl -sS -X DELETE "$api/zones/$zone_id/dns_records/$id" -H "Authorization: Bearer $token" >/dev/null
done
`
