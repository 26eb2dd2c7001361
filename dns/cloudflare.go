package dns

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const cloudflareAPI = "https://api.cloudflare.com/client/v4"

// Cloudflare is a token-bearer client for the Cloudflare v4 API.
type Cloudflare struct {
	token      string
	api        string
	httpClient *http.Client
}

func NewCloudflare(token string) *Cloudflare {
	return &Cloudflare{token: token, api: cloudflareAPI, httpClient: newHTTPClient()}
}

func (c *Cloudflare) Name() ProviderType { return ProviderCloudflare }

type cfRecord struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Name    string `json:"name"`
	Content string `json:"content"`
	TTL     int    `json:"ttl"`
	Proxied bool   `json:"proxied"`
}

type cfResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
}

// FindZoneID resolves the zone containing fqdn by longest-suffix match
// against the account's zone list.
func (c *Cloudflare) FindZoneID(ctx context.Context, fqdn string) (string, error) {
	for _, zoneName := range ZoneCandidates(fqdn) {
		raw, err := c.do(ctx, http.MethodGet,
			fmt.Sprintf("/zones?name=%s", url.QueryEscape(zoneName)), nil, "find zone")
		if err != nil {
			return "", err
		}
		var zones []struct {
			ID string `json:"id"`
		}
		if err = json.Unmarshal(raw, &zones); err != nil {
			return "", fmt.Errorf("cloudflare api: decode zone list: %w", err)
		}
		if len(zones) > 0 {
			return zones[0].ID, nil
		}
	}
	return "", fmt.Errorf("no cloudflare zone matches %s: %w", fqdn, ErrZoneNotFound)
}

func (c *Cloudflare) CreateTXTRecord(ctx context.Context, fqdn, value string) (RecordHandle, error) {
	zoneID, err := c.FindZoneID(ctx, fqdn)
	if err != nil {
		return RecordHandle{}, err
	}
	payload := cfRecord{Type: "TXT", Name: fqdn, Content: value, TTL: recordTTL}
	raw, err := c.do(ctx, http.MethodPost,
		fmt.Sprintf("/zones/%s/dns_records", zoneID), payload, "create txt record")
	if err != nil {
		return RecordHandle{}, err
	}
	var created struct {
		ID string `json:"id"`
	}
	if err = json.Unmarshal(raw, &created); err != nil {
		return RecordHandle{}, fmt.Errorf("cloudflare api: decode created record: %w", err)
	}
	return RecordHandle{
		Provider: ProviderCloudflare,
		ZoneID:   zoneID,
		RecordID: created.ID,
		Name:     fqdn,
		Type:     "TXT",
		Value:    value,
	}, nil
}

func (c *Cloudflare) DeleteTXTRecord(ctx context.Context, handle RecordHandle) error {
	_, err := c.do(ctx, http.MethodDelete,
		fmt.Sprintf("/zones/%s/dns_records/%s", handle.ZoneID, handle.RecordID), nil, "delete txt record")
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		// Already gone, cleanup may race with manual intervention.
		return nil
	}
	return err
}

func (c *Cloudflare) UpsertRecord(ctx context.Context, rtype, fqdn, content string) error {
	zoneID, err := c.FindZoneID(ctx, fqdn)
	if err != nil {
		return err
	}
	raw, err := c.do(ctx, http.MethodGet,
		fmt.Sprintf("/zones/%s/dns_records?type=%s&name=%s", zoneID, url.QueryEscape(rtype), url.QueryEscape(fqdn)),
		nil, "list records")
	if err != nil {
		return err
	}
	var existing []struct {
		ID string `json:"id"`
	}
	if err = json.Unmarshal(raw, &existing); err != nil {
		return fmt.Errorf("cloudflare api: decode record list: %w", err)
	}
	payload := cfRecord{Type: rtype, Name: fqdn, Content: content, TTL: recordTTL}
	if len(existing) > 0 {
		_, err = c.do(ctx, http.MethodPut,
			fmt.Sprintf("/zones/%s/dns_records/%s", zoneID, existing[0].ID), payload, "update record")
		return err
	}
	_, err = c.do(ctx, http.MethodPost,
		fmt.Sprintf("/zones/%s/dns_records", zoneID), payload, "create record")
	return err
}

func (c *Cloudflare) do(ctx context.Context, method, path string, payload interface{}, operation string) (json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.api+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloudflare api: %s: %w", operation, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusErr(ProviderCloudflare, operation, resp.StatusCode, string(data))
	}
	var parsed cfResponse
	if err = json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("cloudflare api: %s: decode response: %w", operation, err)
	}
	if !parsed.Success {
		return nil, &APIError{Provider: ProviderCloudflare, Operation: operation, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return parsed.Result, nil
}
