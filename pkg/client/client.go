package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/obsidian-tools/plugin-manager/pkg/registry"
)

type ErrorResponse struct {
	StatusCode int
	ErrorMsg   string `json:"error"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("unexpected status code: %d, error: %s", e.StatusCode, e.ErrorMsg)
}

// Client talks to a plugin manager server.
type Client struct {
	serverURL  string
	httpClient *http.Client
}

func New(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

func setAuth(adminAccessToken string) func(r *http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", adminAccessToken)
	}
}

func getKindURL(kind registry.Kind) string {
	return fmt.Sprintf("api/v1/%ss", kind)
}

func getPluginURL(pluginID string) string {
	return fmt.Sprintf("%s/%s", getKindURL(registry.KindPlugin), url.PathEscape(pluginID))
}

func (c *Client) sendRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader, modifyRequestFns ...func(r *http.Request)) (*http.Response, error) {
	apiEndpoint, err := url.JoinPath(c.serverURL, endpoint)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		apiEndpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, apiEndpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json; charset=utf-8")
	for _, f := range modifyRequestFns {
		f(req)
	}
	return c.httpClient.Do(req)
}

func (c *Client) decodeResponse(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		errResp := ErrorResponse{StatusCode: resp.StatusCode}
		err := json.NewDecoder(resp.Body).Decode(&errResp)
		if err != nil {
			return &ErrorResponse{StatusCode: resp.StatusCode, ErrorMsg: http.StatusText(resp.StatusCode)}
		}
		return &errResp
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, v any, modifyRequestFns ...func(r *http.Request)) error {
	resp, err := c.sendRequest(ctx, method, endpoint, query, nil, modifyRequestFns...)
	if err != nil {
		return err
	}
	return c.decodeResponse(resp, v)
}

func (c *Client) GetPlugins(ctx context.Context) ([]*registry.PluginRecord, error) {
	var plugins []*registry.PluginRecord
	if err := c.do(ctx, http.MethodGet, getKindURL(registry.KindPlugin), nil, &plugins); err != nil {
		return nil, err
	}
	return plugins, nil
}

func (c *Client) GetThemes(ctx context.Context) ([]*registry.PluginRecord, error) {
	var themes []*registry.PluginRecord
	if err := c.do(ctx, http.MethodGet, getKindURL(registry.KindTheme), nil, &themes); err != nil {
		return nil, err
	}
	return themes, nil
}

// CheckPlugin reports whether a newer release of the plugin is available
// without installing it.
func (c *Client) CheckPlugin(ctx context.Context, pluginID string) (*registry.CheckResult, error) {
	var res registry.CheckResult
	if err := c.do(ctx, http.MethodGet, getPluginURL(pluginID), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) updateAll(ctx context.Context, adminAccessToken string, kind registry.Kind, filters []string) ([]*registry.CheckResult, error) {
	var query url.Values
	if len(filters) > 0 {
		query = url.Values{"filter": filters}
	}
	var results []*registry.CheckResult
	if err := c.do(ctx, http.MethodPut, getKindURL(kind), query, &results, setAuth(adminAccessToken)); err != nil {
		return nil, err
	}
	return results, nil
}

// UpdatePlugins updates every installed plugin whose id matches one of the
// glob filters, or all plugins if no filter is given.
func (c *Client) UpdatePlugins(ctx context.Context, adminAccessToken string, filters ...string) ([]*registry.CheckResult, error) {
	return c.updateAll(ctx, adminAccessToken, registry.KindPlugin, filters)
}

func (c *Client) UpdateThemes(ctx context.Context, adminAccessToken string, filters ...string) ([]*registry.CheckResult, error) {
	return c.updateAll(ctx, adminAccessToken, registry.KindTheme, filters)
}

func (c *Client) UpdatePlugin(ctx context.Context, adminAccessToken, pluginID string) (*registry.CheckResult, error) {
	var res registry.CheckResult
	if err := c.do(ctx, http.MethodPut, getPluginURL(pluginID), nil, &res, setAuth(adminAccessToken)); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) SetPluginEnabled(ctx context.Context, adminAccessToken, pluginID string, enabled bool) error {
	method := http.MethodPut
	if !enabled {
		method = http.MethodDelete
	}
	var resp map[string]bool
	if err := c.do(ctx, method, getPluginURL(pluginID)+"/enabled", nil, &resp, setAuth(adminAccessToken)); err != nil {
		return err
	}
	if !resp["ok"] {
		return fmt.Errorf("could not set enabled state of plugin %s: reason unknown", pluginID)
	}
	return nil
}

// GetHistory returns the most recent check results, newest first. A limit of
// zero uses the server default.
func (c *Client) GetHistory(ctx context.Context, limit int) ([]*registry.CheckResult, error) {
	var query url.Values
	if limit > 0 {
		query = url.Values{"limit": []string{strconv.Itoa(limit)}}
	}
	var results []*registry.CheckResult
	if err := c.do(ctx, http.MethodGet, "api/v1/history", query, &results); err != nil {
		return nil, err
	}
	return results, nil
}
