// Package docserver is the HTTP client for the external document server's
// conversion and command services.
package docserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client calls the document server. Conversion is synchronous by design: a
// failed conversion is simply absent until the next save triggers another
// attempt, no retry here.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient builds a client with a caller-side timeout.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// ConvertRequest describes one conversion job.
type ConvertRequest struct {
	Async      bool   `json:"async"`
	URL        string `json:"url"`
	FileType   string `json:"filetype"`
	OutputType string `json:"outputtype"`
	Title      string `json:"title"`
	Key        string `json:"key"`
}

type convertResponse struct {
	Error   int    `json:"error"`
	FileURL string `json:"fileUrl"`
}

// Convert runs a synchronous conversion and returns the result URL. A
// non-zero error field in the response, or any transport failure, is
// returned as an error; callers skip the derived write in that case.
func (c *Client) Convert(ctx context.Context, req ConvertRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/ConvertService.ashx", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("conversion request failed: %w", err)
	}
	defer resp.Body.Close()

	var result convertResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("unreadable conversion response: %w", err)
	}

	if result.Error != 0 {
		return "", fmt.Errorf("conversion service error %d", result.Error)
	}
	if result.FileURL == "" {
		return "", fmt.Errorf("conversion response missing fileUrl")
	}

	return result.FileURL, nil
}

type commandResponse struct {
	Error   int    `json:"error"`
	Version string `json:"version"`
}

// Version queries the document server version through the command service.
func (c *Client) Version(ctx context.Context) (string, error) {
	body := []byte(`{"c":"version"}`)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.BaseURL+"/coauthoring/CommandService.ashx", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("version request failed: %w", err)
	}
	defer resp.Body.Close()

	var result commandResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("unreadable command response: %w", err)
	}
	if result.Error != 0 {
		return "", fmt.Errorf("command service error %d", result.Error)
	}

	return result.Version, nil
}

// FormFormat returns the fillable-form output format for the connected
// document server: "oform" for servers older than major version 8, "pdf"
// from 8 on. Unknown versions default to "pdf".
func (c *Client) FormFormat(ctx context.Context) string {
	version, err := c.Version(ctx)
	if err != nil {
		return "pdf"
	}

	major, _, _ := strings.Cut(version, ".")
	majorNum, err := strconv.Atoi(major)
	if err != nil {
		return "pdf"
	}

	if majorNum < 8 {
		return "oform"
	}
	return "pdf"
}
