// Package heartbeat implements ports.HeartbeatApi: a rate-limited liveness
// beat to the stats backend, identified by the client's persisted uuid.
package heartbeat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Client posts a beat at most once per interval; calls within the window
// are silently dropped rather than queued.
type Client struct {
	endpoint string
	http     *http.Client
	interval time.Duration
	log      *zap.Logger

	mu   sync.Mutex
	last time.Time
}

// New builds a Client that beats at most once per interval.
func New(endpoint string, requestTimeout, interval time.Duration, log *zap.Logger) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: requestTimeout},
		interval: interval,
		log:      log,
	}
}

type beatRequest struct {
	ClientID string `json:"client_id"`
	Version  string `json:"version"`
	Region   string `json:"region"`
}

// Beat implements ports.HeartbeatApi. Returns nil without making a request
// if called again before interval has elapsed since the last successful beat.
func (c *Client) Beat(ctx context.Context, clientID uuid.UUID, version, region string) error {
	c.mu.Lock()
	if time.Since(c.last) < c.interval {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	body, err := json.Marshal(beatRequest{ClientID: clientID.String(), Version: version, Region: region})
	if err != nil {
		return fmt.Errorf("encode heartbeat: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("build heartbeat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("heartbeat failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()

	c.mu.Lock()
	c.last = time.Now()
	c.mu.Unlock()
	return nil
}
