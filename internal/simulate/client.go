package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/okian/partyrank/internal/domain/model"
	"github.com/okian/partyrank/internal/domain/types"
)

// Client talks to the party ranking HTTP API.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient creates a client with a per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Health checks that the service answers /healthz.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/healthz", nil, http.StatusOK)
	return err
}

// PutCandidates registers the party's candidate set.
func (c *Client) PutCandidates(ctx context.Context, partyID string, candidates []model.Candidate) error {
	body := map[string]any{"candidates": candidates}
	_, err := c.do(ctx, http.MethodPut, "/parties/"+url.PathEscape(partyID)+"/candidates", body, http.StatusOK)
	return err
}

// PostSwipe submits one swipe and reports whether it was a duplicate.
func (c *Client) PostSwipe(ctx context.Context, partyID string, sw model.Swipe) (bool, error) {
	data, err := c.do(ctx, http.MethodPost, "/parties/"+url.PathEscape(partyID)+"/swipes", sw, http.StatusAccepted, http.StatusOK)
	if err != nil {
		return false, err
	}
	var ack ackResponse
	if err := json.Unmarshal(data, &ack); err != nil {
		return false, fmt.Errorf("decode swipe ack: %w", err)
	}
	return ack.Duplicate, nil
}

// Complete asks the service to recompute the party's consensus.
func (c *Client) Complete(ctx context.Context, partyID string) error {
	_, err := c.do(ctx, http.MethodPost, "/parties/"+url.PathEscape(partyID)+"/complete", nil, http.StatusAccepted)
	return err
}

// Ranking fetches up to limit ranking entries. It returns ErrNotReady while
// the party has no consensus yet.
func (c *Client) Ranking(ctx context.Context, partyID string, limit int) ([]types.Entry, error) {
	path := "/parties/" + url.PathEscape(partyID) + "/ranking?limit=" + strconv.Itoa(limit)
	data, err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}
	var entries []types.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode ranking: %w", err)
	}
	return entries, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, want ...int) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	for _, code := range want {
		if resp.StatusCode == code {
			return data, nil
		}
	}
	if resp.StatusCode == http.StatusConflict {
		return nil, fmt.Errorf("%s %s: %w", method, path, ErrNotReady)
	}
	return nil, fmt.Errorf("%s %s: %w: %d %s", method, path, ErrUnexpectedStatus, resp.StatusCode, bytes.TrimSpace(data))
}
