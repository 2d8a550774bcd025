// Package remote talks to the soundleaf row-store API: progress rows,
// entitlement and subscription checks. The client is stateless; the
// caller decides how failures surface.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/soundleafapp/soundleaf-playback/internal/progress"
)

// Client provides access to the soundleaf API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// progressRow is the wire shape of one progress record.
type progressRow struct {
	UserID       string  `json:"user_id"`
	ItemID       string  `json:"item_id"`
	ChapterIndex int     `json:"chapter_index"`
	PositionMS   int64   `json:"position_ms"`
	Percent      float64 `json:"percent"`
	DeviceID     string  `json:"device_id,omitempty"`
	UpdatedAtMS  int64   `json:"updated_at_ms"`
}

// WriteProgress upserts one progress row. The server keys rows by
// (user, item), so repeated writes of the same snapshot are idempotent.
func (c *Client) WriteProgress(ctx context.Context, snap progress.Snapshot) error {
	row := progressRow{
		UserID:       snap.UserID,
		ItemID:       snap.ItemID,
		ChapterIndex: snap.ChapterIndex,
		PositionMS:   snap.Position.Milliseconds(),
		Percent:      snap.Percent,
		DeviceID:     snap.DeviceID,
		UpdatedAtMS:  snap.UpdatedAt.UnixMilli(),
	}
	jsonBody, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/api/v1/progress/"+url.PathEscape(snap.ItemID),
		bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// ReadProgress returns the stored row for (user, item), or nil when the
// server has none.
func (c *Client) ReadProgress(ctx context.Context, userID, itemID string) (*progress.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/progress/"+url.PathEscape(itemID), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var row progressRow
	if err := json.NewDecoder(resp.Body).Decode(&row); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &progress.Snapshot{
		UserID:       userID,
		ItemID:       itemID,
		ChapterIndex: row.ChapterIndex,
		Position:     time.Duration(row.PositionMS) * time.Millisecond,
		Percent:      row.Percent,
		DeviceID:     row.DeviceID,
		UpdatedAt:    time.UnixMilli(row.UpdatedAtMS),
	}, nil
}

// ReadEntitlement reports whether the user owns the item.
func (c *Client) ReadEntitlement(ctx context.Context, userID, itemID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/entitlements/"+url.PathEscape(itemID), http.NoBody)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result struct {
		Owned bool `json:"owned"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return result.Owned, nil
}

// ReadSubscriptionStatus reports whether the user's subscription is active.
func (c *Client) ReadSubscriptionStatus(ctx context.Context, userID string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/subscription", http.NoBody)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var result struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return result.Active, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
}

// Verify Client implements the progress store contract.
var _ progress.Store = (*Client)(nil)
