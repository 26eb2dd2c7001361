package dns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const hetznerAPI = "https://api.hetzner.cloud/v1"

// Hetzner is a token-bearer client for the Hetzner DNS API. Records are
// addressed as RRsets by zone name, record name and type.
type Hetzner struct {
	token      string
	api        string
	httpClient *http.Client
}

func NewHetzner(token string) *Hetzner {
	return &Hetzner{token: token, api: hetznerAPI, httpClient: newHTTPClient()}
}

func (h *Hetzner) Name() ProviderType { return ProviderHetzner }

// FindZone resolves the zone containing fqdn, longest suffix first.
func (h *Hetzner) FindZone(ctx context.Context, fqdn string) (string, error) {
	for _, zoneName := range ZoneCandidates(fqdn) {
		status, data, err := h.do(ctx, http.MethodGet,
			fmt.Sprintf("/zones?name=%s", url.QueryEscape(zoneName)), nil)
		if err != nil {
			return "", fmt.Errorf("hetzner api: find zone: %w", err)
		}
		if status < 200 || status > 299 {
			return "", statusErr(ProviderHetzner, "find zone", status, string(data))
		}
		var parsed struct {
			Zones []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"zones"`
		}
		if err = json.Unmarshal(data, &parsed); err != nil {
			return "", fmt.Errorf("hetzner api: decode zone list: %w", err)
		}
		if len(parsed.Zones) > 0 {
			return zoneName, nil
		}
	}
	return "", fmt.Errorf("no hetzner zone matches %s: %w", fqdn, ErrZoneNotFound)
}

// RelativeName converts an fqdn to the zone-relative record name, "@" for the apex.
func RelativeName(fqdn, zoneName string) string {
	if fqdn == zoneName {
		return "@"
	}
	return strings.TrimSuffix(fqdn, "."+zoneName)
}

func (h *Hetzner) CreateTXTRecord(ctx context.Context, fqdn, value string) (RecordHandle, error) {
	zoneName, err := h.FindZone(ctx, fqdn)
	if err != nil {
		return RecordHandle{}, err
	}
	name := RelativeName(fqdn, zoneName)
	// The RRset API expects TXT values already quoted.
	quoted := fmt.Sprintf("%q", value)

	handle := RecordHandle{
		Provider: ProviderHetzner,
		ZoneName: zoneName,
		Name:     name,
		Type:     "TXT",
		Value:    quoted,
	}

	// An RRset holds every value for the name, so a second challenge value
	// (wildcard order) must merge into the existing set, not POST a duplicate.
	existing, found, err := h.getRRSetValues(ctx, zoneName, name, "TXT")
	if err != nil {
		return RecordHandle{}, err
	}
	if found {
		for _, v := range existing {
			if v == quoted {
				return handle, nil
			}
		}
		if err = h.putRRSetValues(ctx, zoneName, name, "TXT", append(existing, quoted)); err != nil {
			return RecordHandle{}, err
		}
		return handle, nil
	}

	payload := map[string]interface{}{
		"name":    name,
		"type":    "TXT",
		"ttl":     recordTTL,
		"records": []map[string]string{{"value": quoted}},
	}
	status, data, err := h.do(ctx, http.MethodPost,
		fmt.Sprintf("/zones/%s/rrsets", url.PathEscape(zoneName)), payload)
	if err != nil {
		return RecordHandle{}, fmt.Errorf("hetzner api: create txt record: %w", err)
	}
	if status < 200 || status > 299 {
		return RecordHandle{}, statusErr(ProviderHetzner, "create txt record", status, string(data))
	}
	return handle, nil
}

func (h *Hetzner) DeleteTXTRecord(ctx context.Context, handle RecordHandle) error {
	// Deleting the RRset would take every remaining value with it, so a
	// value-scoped handle removes just its own value and drops the RRset
	// only when nothing is left.
	if handle.Value != "" {
		values, found, err := h.getRRSetValues(ctx, handle.ZoneName, handle.Name, handle.Type)
		if err != nil {
			return err
		}
		if !found {
			return nil
		}
		remaining := values[:0]
		for _, v := range values {
			if v != handle.Value {
				remaining = append(remaining, v)
			}
		}
		if len(remaining) == len(values) {
			// Value already gone, cleanup may race with manual intervention.
			return nil
		}
		if len(remaining) > 0 {
			return h.putRRSetValues(ctx, handle.ZoneName, handle.Name, handle.Type, remaining)
		}
	}

	status, data, err := h.do(ctx, http.MethodDelete,
		fmt.Sprintf("/zones/%s/rrsets/%s/%s",
			url.PathEscape(handle.ZoneName), url.PathEscape(handle.Name), url.PathEscape(handle.Type)), nil)
	if err != nil {
		return fmt.Errorf("hetzner api: delete txt record: %w", err)
	}
	if status == http.StatusNotFound {
		// Already gone, cleanup may race with manual intervention.
		return nil
	}
	if status < 200 || status > 299 {
		return statusErr(ProviderHetzner, "delete txt record", status, string(data))
	}
	return nil
}

// getRRSetValues reads the current values of one RRset, reporting whether it
// exists at all.
func (h *Hetzner) getRRSetValues(ctx context.Context, zoneName, name, rtype string) ([]string, bool, error) {
	status, data, err := h.do(ctx, http.MethodGet,
		fmt.Sprintf("/zones/%s/rrsets/%s/%s",
			url.PathEscape(zoneName), url.PathEscape(name), url.PathEscape(rtype)), nil)
	if err != nil {
		return nil, false, fmt.Errorf("hetzner api: get rrset: %w", err)
	}
	if status == http.StatusNotFound {
		return nil, false, nil
	}
	if status < 200 || status > 299 {
		return nil, false, statusErr(ProviderHetzner, "get rrset", status, string(data))
	}
	var parsed struct {
		RRSet struct {
			Records []struct {
				Value string `json:"value"`
			} `json:"records"`
		} `json:"rrset"`
	}
	if err = json.Unmarshal(data, &parsed); err != nil {
		return nil, false, fmt.Errorf("hetzner api: decode rrset: %w", err)
	}
	values := make([]string, 0, len(parsed.RRSet.Records))
	for _, r := range parsed.RRSet.Records {
		values = append(values, r.Value)
	}
	return values, true, nil
}

// putRRSetValues replaces the RRset's value list.
func (h *Hetzner) putRRSetValues(ctx context.Context, zoneName, name, rtype string, values []string) error {
	records := make([]map[string]string, 0, len(values))
	for _, v := range values {
		records = append(records, map[string]string{"value": v})
	}
	payload := map[string]interface{}{
		"ttl":     recordTTL,
		"records": records,
	}
	status, data, err := h.do(ctx, http.MethodPut,
		fmt.Sprintf("/zones/%s/rrsets/%s/%s",
			url.PathEscape(zoneName), url.PathEscape(name), url.PathEscape(rtype)), payload)
	if err != nil {
		return fmt.Errorf("hetzner api: update rrset: %w", err)
	}
	if status < 200 || status > 299 {
		return statusErr(ProviderHetzner, "update rrset", status, string(data))
	}
	return nil
}

func (h *Hetzner) UpsertRecord(ctx context.Context, rtype, fqdn, content string) error {
	zoneName, err := h.FindZone(ctx, fqdn)
	if err != nil {
		return err
	}
	name := RelativeName(fqdn, zoneName)

	// The RRset API has no update call, replace by delete+create.
	status, data, err := h.do(ctx, http.MethodDelete,
		fmt.Sprintf("/zones/%s/rrsets/%s/%s",
			url.PathEscape(zoneName), url.PathEscape(name), url.PathEscape(rtype)), nil)
	if err != nil {
		return fmt.Errorf("hetzner api: delete rrset: %w", err)
	}
	if status != http.StatusNotFound && (status < 200 || status > 299) {
		return statusErr(ProviderHetzner, "delete rrset", status, string(data))
	}

	payload := map[string]interface{}{
		"name":    name,
		"type":    rtype,
		"ttl":     recordTTL,
		"records": []map[string]string{{"value": content}},
	}
	status, data, err = h.do(ctx, http.MethodPost,
		fmt.Sprintf("/zones/%s/rrsets", url.PathEscape(zoneName)), payload)
	if err != nil {
		return fmt.Errorf("hetzner api: create rrset: %w", err)
	}
	if status < 200 || status > 299 {
		return statusErr(ProviderHetzner, "create rrset", status, string(data))
	}
	return nil
}

func (h *Hetzner) do(ctx context.Context, method, path string, payload interface{}) (int, []byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.api+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+h.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, data, nil
}
