package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// clashClient is a minimal HTTP client for a Clash-compatible proxy
// control-plane API (§6 EXTERNAL INTERFACES): listing proxies and issuing
// switch commands.
type clashClient struct {
	baseURL    string
	secret     string
	httpClient *http.Client
}

func newClashClient(baseURL, secret string) *clashClient {
	return &clashClient{
		baseURL: baseURL,
		secret:  secret,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// proxyEntry is one entry in the /proxies response.
type proxyEntry struct {
	Type  string `json:"type"`
	Alive *bool  `json:"alive,omitempty"`
}

type proxiesResponse struct {
	Proxies map[string]proxyEntry `json:"proxies"`
}

// metaSelectorTypes are proxy-group types excluded from candidate
// selection -- they are not concrete upstream tunnels.
var metaSelectorTypes = map[string]bool{
	"Direct":      true,
	"Reject":      true,
	"Selector":    true,
	"URLTest":     true,
	"Fallback":    true,
	"LoadBalance": true,
}

// listCandidates fetches the proxy set and returns only concrete upstream
// tunnel names (§4.2 step 1).
func (c *clashClient) listCandidates(ctx context.Context) ([]string, error) {
	var resp proxiesResponse
	if err := c.get(ctx, "/proxies", &resp); err != nil {
		return nil, fmt.Errorf("list proxies: %w", err)
	}

	names := make([]string, 0, len(resp.Proxies))
	for name, entry := range resp.Proxies {
		if metaSelectorTypes[entry.Type] {
			continue
		}
		if entry.Alive != nil && !*entry.Alive {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// switchTo issues a switch command selecting name as the active upstream.
func (c *clashClient) switchTo(ctx context.Context, name string) error {
	return c.put(ctx, "/proxies/PROXY", map[string]string{"name": name})
}

func (c *clashClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setAuth(req)
	return c.do(req, out)
}

func (c *clashClient) put(ctx context.Context, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.setAuth(req)
	return c.do(req, nil)
}

func (c *clashClient) setAuth(req *http.Request) {
	if c.secret != "" {
		req.Header.Set("Authorization", "Bearer "+c.secret)
	}
}

func (c *clashClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("clash API %s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
