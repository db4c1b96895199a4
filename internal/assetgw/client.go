package assetgw

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type Config struct {
	BaseURL       string `env:"ASSET_SERVICE_URL" env-default:"http://localhost:9100"`
	PublicBaseURL string `env:"ASSET_SERVICE_PUBLIC_URL" env-default:"http://localhost:9100"`
	APIKey        string `env:"ASSET_SERVICE_API_KEY"`
}

// Client is the HTTP implementation of Gateway.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type uploadResponse struct {
	UUID string `json:"uuid"`
}

func (c *Client) Upload(ctx context.Context, name, contentType string, data io.Reader, size int64) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/assets", data)
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Asset-Name", name)
	c.authorize(req)

	var resp uploadResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("upload asset: %w", err)
	}
	return resp.UUID, nil
}

func (c *Client) Delete(ctx context.Context, assetID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.cfg.BaseURL+"/v1/assets/"+url.PathEscape(assetID), nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	c.authorize(req)

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return nil
}

type readinessResponse struct {
	Servable bool `json:"servable"`
}

// CheckReady reports whether a freshly stored asset is already consumable by
// the conversion endpoint.
func (c *Client) CheckReady(ctx context.Context, assetID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/v1/assets/"+url.PathEscape(assetID)+"/status", nil)
	if err != nil {
		return false, fmt.Errorf("build readiness request: %w", err)
	}
	c.authorize(req)

	var resp readinessResponse
	if err := c.do(req, &resp); err != nil {
		return false, fmt.Errorf("query asset readiness: %w", err)
	}
	return resp.Servable, nil
}

type submitResponse struct {
	Token string `json:"token"`
}

// SubmitConversion starts a conversion job and returns its token. An empty
// token means the service accepted the request but violated its contract.
func (c *Client) SubmitConversion(ctx context.Context, convReq ConversionRequest) (string, error) {
	body, err := json.Marshal(convReq)
	if err != nil {
		return "", fmt.Errorf("marshal conversion request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+"/v1/conversions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build conversion request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	var resp submitResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("submit conversion: %w", err)
	}
	return resp.Token, nil
}

type jobStatusResponse struct {
	Status string          `json:"status"`
	Detail string          `json:"detail"`
	Result json.RawMessage `json:"result"`
}

func (c *Client) JobStatus(ctx context.Context, token string) (*JobState, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.cfg.BaseURL+"/v1/conversions/"+url.PathEscape(token), nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	c.authorize(req)

	var resp jobStatusResponse
	if err := c.do(req, &resp); err != nil {
		return nil, fmt.Errorf("query job status: %w", err)
	}
	return &JobState{
		Status:        resp.Status,
		Detail:        resp.Detail,
		ResultAssetID: normalizeResult(resp.Result),
	}, nil
}

func (c *Client) ContentURL(assetID string) string {
	return fmt.Sprintf("%s/f/%s", c.cfg.PublicBaseURL, url.PathEscape(assetID))
}

// PreviewURL builds a fixed-width page-1 preview rendered by the asset
// service on the fly, with no conversion job involved. Used as the degraded
// thumbnail when conversion fails.
func (c *Client) PreviewURL(assetID string) string {
	return fmt.Sprintf("%s/f/%s/preview?page=1&width=300&format=jpg",
		c.cfg.PublicBaseURL, url.PathEscape(assetID))
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("asset service returned %d: %s", resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type assetRef struct {
	UUID string `json:"uuid"`
}

// normalizeResult extracts the result asset id from a finished-job payload.
// The asset service is inconsistent about the shape: sometimes a single
// object, sometimes a list with the asset first. Both are accepted here;
// anything else yields an empty id.
func normalizeResult(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var single assetRef
	if err := json.Unmarshal(raw, &single); err == nil && single.UUID != "" {
		return single.UUID
	}

	var list []assetRef
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0].UUID
	}
	return ""
}
