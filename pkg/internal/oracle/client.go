package oracle

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/datanexus/pkg/configs"
)

const maxErrorBody = 1 << 20

// restClient 预言机 REST 调用的公共部分.
type restClient struct {
	name       string
	endpoint   string
	apiKey     string
	authHeader string
	apiVersion string
	timeout    time.Duration
	httpClient *http.Client
}

func defaultHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{Transport: tr}
}

func newRESTClient(name string, ep configs.OracleEndpoint, authHeader, apiVersion string, hc *http.Client) (*restClient, error) {
	endpoint := strings.TrimRight(strings.TrimSpace(ep.Endpoint), "/")
	if endpoint == "" {
		return nil, ErrNotConfigured
	}

	if hc == nil {
		hc = defaultHTTPClient()
	}

	timeout := ep.Timeout
	if timeout <= 0 {
		timeout = configs.DefaultOracleTimeout
	}

	return &restClient{
		name:       name,
		endpoint:   endpoint,
		apiKey:     strings.TrimSpace(ep.APIKey),
		authHeader: authHeader,
		apiVersion: apiVersion,
		timeout:    timeout,
		httpClient: hc,
	}, nil
}

// postJSON 以 JSON 发送 body.
func (c *restClient) postJSON(ctx context.Context, path string, query url.Values, body, out any) error {
	raw, err := sonic.Marshal(body)
	if err != nil {
		return err
	}

	return c.post(ctx, path, query, "application/json", raw, out)
}

func (c *restClient) post(ctx context.Context, path string, query url.Values, contentType string, body []byte, out any) error {
	if query == nil {
		query = url.Values{}
	}

	if c.apiVersion != "" {
		query.Set("api-version", c.apiVersion)
	}

	ctx2, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.endpoint + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx2, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set(c.authHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		return &HTTPError{Oracle: c.name, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	return sonic.Unmarshal(raw, out)
}
