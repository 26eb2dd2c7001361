package utils

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ipifyV4 = "https://api.ipify.org"
	ipifyV6 = "https://api64.ipify.org"
)

// PublicIP discovers the server's public IPv4 or IPv6 address through ipify.
// Returns an empty string when the address family is unavailable.
func PublicIP(ctx context.Context, ipv6 bool) (string, error) {
	url := ipifyV4
	if ipv6 {
		url = ipifyV6
	}
	body, err := HTTPGetWithTimeout(ctx, url, 10*time.Second)
	if err != nil {
		return "", err
	}
	v := strings.TrimSpace(string(body))
	if v == "" {
		return "", nil
	}
	if ipv6 && !strings.Contains(v, ":") {
		return "", nil
	}
	if !ipv6 && !strings.Contains(v, ".") {
		return "", nil
	}
	return v, nil
}

// HTTPGetWithTimeout performs a plain GET with a per-request deadline.
func HTTPGetWithTimeout(ctx context.Context, url string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, fmt.Errorf("GET %s: unexpected status %d", url, response.StatusCode)
	}
	return io.ReadAll(response.Body)
}
