package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hyperjump/mitsukeru/internal/cli"
	"github.com/hyperjump/mitsukeru/internal/models"
	"github.com/hyperjump/mitsukeru/internal/session"
)

// apiClient talks to a running mitsukeru server.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 90 * time.Second},
	}
}

// do sends body as JSON and decodes the response into out when the status is want.
func (c *apiClient) do(ctx context.Context, method, path string, body interface{}, want int, out interface{}) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		var apiErr struct {
			Error string `json:"error"`
		}
		b, _ := io.ReadAll(resp.Body)
		if json.Unmarshal(b, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) createSession(ctx context.Context, pageSize int) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	body := map[string]int{"page_size": pageSize}
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions", body, http.StatusCreated, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *apiClient) deleteSession(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/sessions/"+url.PathEscape(id), nil, http.StatusOK, nil)
}

func (c *apiClient) search(ctx context.Context, id string, req session.Request) (*models.ResultPage, error) {
	var page models.ResultPage
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions/"+url.PathEscape(id)+"/search", req, http.StatusOK, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *apiClient) more(ctx context.Context, id string) (*models.ResultPage, error) {
	var page models.ResultPage
	if err := c.do(ctx, http.MethodPost, "/api/v1/sessions/"+url.PathEscape(id)+"/more", nil, http.StatusOK, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// statusResponse is the shape of GET /api/v1/status.
type statusResponse struct {
	Documents      int64            `json:"documents"`
	Indexed        uint64           `json:"indexed"`
	ByFileType     map[string]int64 `json:"by_file_type"`
	DiskUsageBytes int64            `json:"disk_usage_bytes"`
	Config         struct {
		DatabasePath   string `json:"database_path"`
		BleveIndexPath string `json:"bleve_index_path"`
	} `json:"config"`
}

func (c *apiClient) status(ctx context.Context) (*cli.StatusReport, error) {
	var s statusResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, http.StatusOK, &s); err != nil {
		return nil, err
	}
	return &cli.StatusReport{
		Documents:      s.Documents,
		Indexed:        s.Indexed,
		ByFileType:     s.ByFileType,
		DiskUsageBytes: s.DiskUsageBytes,
		DatabasePath:   s.Config.DatabasePath,
		BleveIndexPath: s.Config.BleveIndexPath,
	}, nil
}

func (c *apiClient) addWatch(ctx context.Context, path string) error {
	body := map[string]interface{}{"path": path, "sync": true}
	return c.do(ctx, http.MethodPost, "/api/v1/watch/directories", body, http.StatusCreated, nil)
}

func (c *apiClient) removeWatch(ctx context.Context, path string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/watch/directories?path="+url.QueryEscape(path), nil, http.StatusOK, nil)
}

func (c *apiClient) listWatch(ctx context.Context) ([]string, error) {
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/watch/directories", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Directories, nil
}
