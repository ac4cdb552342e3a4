// package queue implements the external work queue client.
//
// The queue exposes two operations: fetch a batch of tracks missing Apple
// Music genre metadata, and submit a batch of TrackUpdate results. It is the
// only durable store in the system; this process keeps no state of its own
// across runs.
package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bankbunk/apple/internal/models"
	"github.com/bankbunk/apple/internal/shared"
)

const defaultTimeout = 30 * time.Second

// Client talks to the work queue service.
type Client struct {
	baseURL      string
	httpClient   *http.Client
	workerIndex  int
	totalWorkers int
}

// NewClient creates a queue client for the given base URL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// SetShard partitions fetches across parallel job instances. A zero total
// disables sharding.
func (c *Client) SetShard(index, total int) {
	c.workerIndex = index
	c.totalWorkers = total
}

// Shard fields are pointers so that an unsharded fetch omits the pair
// entirely while worker index 0 still serializes.
type fetchRequest struct {
	Limit        int  `json:"limit"`
	WorkerIndex  *int `json:"worker_index,omitempty"`
	TotalWorkers *int `json:"total_workers,omitempty"`
}

type fetchResponse struct {
	Tracks []models.TrackItem `json:"tracks"`
}

// FetchBatch requests up to limit tracks that still need Apple Music genres.
func (c *Client) FetchBatch(ctx context.Context, limit int) ([]models.TrackItem, error) {
	if c.baseURL == "" {
		return nil, shared.ErrMissingQueue
	}

	body := fetchRequest{Limit: limit}
	if c.totalWorkers > 0 {
		body.WorkerIndex = &c.workerIndex
		body.TotalWorkers = &c.totalWorkers
	}

	var result fetchResponse
	if err := c.post(ctx, "/genres/find-missing-apple", body, &result); err != nil {
		return nil, err
	}

	return result.Tracks, nil
}

// Submit delivers a batch of updates. Any non-200 status is an error; the
// caller decides whether to retry the batch or accept the loss.
func (c *Client) Submit(ctx context.Context, updates []models.TrackUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	if c.baseURL == "" {
		return shared.ErrMissingQueue
	}

	return c.post(ctx, "/genres", updates, nil)
}

// post performs a JSON POST against the queue and decodes the response into
// result when non-nil.
func (c *Client) post(ctx context.Context, endpoint string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrQueueRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", shared.ErrQueueRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
