// Package client is a small JSON client for the esims HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"esims/internal/profile"
	"esims/internal/provisioning/models"
	httptransport "esims/internal/transport/http"
	"esims/pkg/platform/httputil"
)

// DefaultAddr is used when neither --addr nor ESIMS_ADDR is set.
const DefaultAddr = "http://localhost:8080"

// APIError is a non-2xx reply.
type APIError struct {
	Status      int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.Status, e.Description)
	}
	return fmt.Sprintf("%s (%d)", e.Code, e.Status)
}

// Client calls the esims API at a base URL.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for base, e.g. "http://localhost:8080".
func New(base string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: httpClient}
}

// Download submits a download. An empty code asks the server to use its
// activation code provider.
func (c *Client) Download(ctx context.Context, code string) (string, error) {
	body := httptransport.SubmitDownloadRequest{}
	if code != "" {
		body.ActivationCode = &code
	}
	var resp httptransport.AcceptedResponse
	if err := c.do(ctx, http.MethodPost, "/v1/downloads", body, &resp); err != nil {
		return "", err
	}
	return resp.RequestID, nil
}

// Status returns an in-flight download.
func (c *Client) Status(ctx context.Context, requestID string) (models.Request, error) {
	var req models.Request
	err := c.do(ctx, http.MethodGet, "/v1/downloads/"+url.PathEscape(requestID), nil, &req)
	return req, err
}

// Profiles lists the active subscriptions.
func (c *Client) Profiles(ctx context.Context) ([]profile.Profile, error) {
	var resp httptransport.ProfilesResponse
	if err := c.do(ctx, http.MethodGet, "/v1/profiles", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Profiles, nil
}

// Activate switches to subscriptionID.
func (c *Client) Activate(ctx context.Context, subscriptionID int) (string, error) {
	var resp httptransport.AcceptedResponse
	path := "/v1/profiles/" + strconv.Itoa(subscriptionID) + "/activate"
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.RequestID, nil
}

// Deactivate leaves no embedded profile active.
func (c *Client) Deactivate(ctx context.Context) (string, error) {
	var resp httptransport.AcceptedResponse
	if err := c.do(ctx, http.MethodPost, "/v1/profiles/deactivate", nil, &resp); err != nil {
		return "", err
	}
	return resp.RequestID, nil
}

// Events returns up to limit events after seq.
func (c *Client) Events(ctx context.Context, after uint64, limit int) (httptransport.EventsResponse, error) {
	q := url.Values{}
	q.Set("after", strconv.FormatUint(after, 10))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp httptransport.EventsResponse
	err := c.do(ctx, http.MethodGet, "/v1/events?"+q.Encode(), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var errResp httputil.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Code: errResp.Error, Description: errResp.ErrorDescription}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
