// Package pve talks to the Proxmox VE management API and runs batch
// actions against fleets of VMs and containers.
package pve

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pvefleet/pvefleet/internal/config"
)

// Resource is one entry from the cluster resource list. Only the fields
// the batch runner needs are decoded.
type Resource struct {
	ID     string `json:"id"`   // e.g. "qemu/101", "lxc/202"
	Type   string `json:"type"` // "qemu", "lxc", "node", "storage"
	VMID   int    `json:"vmid"`
	Node   string `json:"node"`
	Name   string `json:"name"`
	Status string `json:"status"` // "running", "stopped"
}

// Client is a minimal Proxmox VE API client using API-token authentication.
type Client struct {
	baseURL string
	authz   string
	httpc   *http.Client
}

// NewClient builds a Client from environment-derived settings. The base URL
// is the API root, e.g. "https://pve1.example.com:8006/api2/json".
func NewClient(cfg *config.PVE) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("PVEFLEET_API_URL is not set")
	}
	if cfg.TokenID == "" || cfg.TokenSecret == "" {
		return nil, fmt.Errorf("PVEFLEET_TOKEN_ID and PVEFLEET_TOKEN_SECRET must be set")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		authz:   fmt.Sprintf("PVEAPIToken=%s=%s", cfg.TokenID, cfg.TokenSecret),
		httpc: &http.Client{
			Transport: transport,
			Timeout:   60 * time.Second,
		},
	}, nil
}

// apiEnvelope is the {"data": ...} wrapper every API response carries.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// Call performs a raw API request and returns the decoded "data" payload.
// Form values are sent as a urlencoded body for POST/PUT and as query
// parameters for GET/DELETE.
func (c *Client) Call(ctx context.Context, method, apiPath string, form url.Values) (json.RawMessage, error) {
	endpoint := c.baseURL + "/" + strings.TrimLeft(apiPath, "/")

	var body io.Reader
	switch method {
	case http.MethodPost, http.MethodPut:
		if form != nil {
			body = strings.NewReader(form.Encode())
		}
	default:
		if len(form) > 0 {
			endpoint += "?" + form.Encode()
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", c.authz)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, apiPath, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s %s: %s: %s", method, apiPath, resp.Status, strings.TrimSpace(string(raw)))
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return env.Data, nil
}

// ClusterResources fetches /cluster/resources filtered to VMs and containers.
func (c *Client) ClusterResources(ctx context.Context) ([]Resource, error) {
	data, err := c.Call(ctx, http.MethodGet, "/cluster/resources", url.Values{"type": {"vm"}})
	if err != nil {
		return nil, err
	}

	var resources []Resource
	if err := json.Unmarshal(data, &resources); err != nil {
		return nil, fmt.Errorf("decode cluster resources: %w", err)
	}
	return resources, nil
}

// guestPath builds the API path prefix for a VM or container.
func guestPath(r Resource) string {
	return fmt.Sprintf("/nodes/%s/%s/%d", r.Node, r.Type, r.VMID)
}

// SetConfig applies configuration key=value pairs to a guest.
func (c *Client) SetConfig(ctx context.Context, r Resource, opts url.Values) error {
	_, err := c.Call(ctx, http.MethodPut, guestPath(r)+"/config", opts)
	return err
}

// PowerAction posts a power-state transition ("start", "stop", "shutdown",
// "suspend", "resume", "reset"). The API starts an asynchronous task; the
// task is not awaited, matching fire-and-forget batch semantics.
func (c *Client) PowerAction(ctx context.Context, r Resource, action string) error {
	_, err := c.Call(ctx, http.MethodPost, guestPath(r)+"/status/"+action, nil)
	return err
}

// Reboot requests a guest reboot.
func (c *Client) Reboot(ctx context.Context, r Resource) error {
	_, err := c.Call(ctx, http.MethodPost, guestPath(r)+"/status/reboot", nil)
	return err
}

// Migrate moves a guest to the target node. Running QEMU guests migrate
// online; containers use restart migration.
func (c *Client) Migrate(ctx context.Context, r Resource, targetNode string) error {
	form := url.Values{"target": {targetNode}}
	if r.Status == "running" {
		if r.Type == "qemu" {
			form.Set("online", "1")
		} else {
			form.Set("restart", "1")
		}
	}
	_, err := c.Call(ctx, http.MethodPost, guestPath(r)+"/migrate", form)
	return err
}
