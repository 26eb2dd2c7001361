package nginx

import (
	"fmt"
	"regexp"
	"strings"
)

var slugPattern = regexp.MustCompile(`[^a-zA-Z0-9_]`)

func slug(domain string) string {
	return slugPattern.ReplaceAllString(domain, "_")
}

// RenderACME renders the pre-certificate config: it answers only the ACME
// token path from the webroot and bounces everything else back to the host.
// Rendering is pure, identical inputs produce byte-identical output.
func RenderACME(domain, webroot string) string {
	return fmt.Sprintf(`server {
    listen 80;
    listen [::]:80;
    server_name %s;

    location /.well-known/acme-challenge/ {
        root %s;
    }

    location / {
        return 301 http://$host$request_uri;
    }
}
`, domain, webroot)
}

// RenderHTTPS renders the post-certificate config: HTTP-to-HTTPS redirect,
// TLS termination and the Odoo upstream routing, including the websocket
// and longpolling paths and static asset caching.
func RenderHTTPS(site Site, certDir string) string {
	up := slug(site.Domain)
	backendHost := site.BackendHost
	if backendHost == "" {
		backendHost = "127.0.0.1"
	}

	lpUpstream := up + "_longpolling"
	var longpollingBlock string
	if site.SingleUpstream {
		lpUpstream = up + "_backend"
	} else {
		longpollingBlock = fmt.Sprintf(`
upstream %s_longpolling {
    server %s:%d;
}
`, up, backendHost, site.LongpollingPort)
	}

	var b strings.Builder
	fmt.Fprintf(&b, `upstream %s_backend {
    server %s:%d;
}
%s
server {
    listen 80;
    listen [::]:80;
    server_name %s;
    return 301 https://$host$request_uri;
}

server {
    listen 443 ssl http2;
    listen [::]:443 ssl http2;
    server_name %s;

    ssl_certificate %s/%s/fullchain.pem;
    ssl_certificate_key %s/%s/privkey.pem;

    client_max_body_size 500M;
    proxy_read_timeout 720s;
    proxy_connect_timeout 720s;
    proxy_send_timeout 720s;

    proxy_set_header Host $host;
    proxy_set_header X-Forwarded-Host $host;
    proxy_set_header X-Forwarded-For $proxy_add_x_forwarded_for;
    proxy_set_header X-Forwarded-Proto $scheme;
    proxy_set_header X-Real-IP $remote_addr;

    location / {
        proxy_pass http://%s_backend;
        proxy_redirect off;
    }

    location /longpolling {
        proxy_pass http://%s;
    }

    location /websocket {
        proxy_pass http://%s;
        proxy_http_version 1.1;
        proxy_set_header Upgrade $http_upgrade;
        proxy_set_header Connection "upgrade";
    }

    location ~* /web/static/ {
        proxy_cache_valid 200 90m;
        expires 864000;
        proxy_pass http://%s_backend;
    }

    gzip on;
    gzip_types text/css text/less text/plain text/xml application/xml application/json application/javascript;
}
`,
		up, backendHost, site.OdooPort,
		longpollingBlock,
		site.Domain,
		site.Domain,
		certDir, site.Domain,
		certDir, site.Domain,
		up,
		lpUpstream,
		lpUpstream,
		up,
	)
	return b.String()
}
