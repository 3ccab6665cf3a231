// Package stats implements ports.StatsApi: a small JSON HTTP client for the
// remote character-stats service, fronted by a bounded LRU cache so repeat
// lookups for the same raid roster don't re-hit the network.
package stats

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/raidtrack/engine/internal/ports"
)

type cacheEntry struct {
	stats   ports.PlayerStats
	expires time.Time
}

// Client is the StatsApi implementation: the main loop calls it before
// persisting a save, and the dispatcher on a save-worthy phase transition.
type Client struct {
	endpoint string
	http     *http.Client
	cache    *lru.Cache[string, cacheEntry]
	ttl      time.Duration
	log      *zap.Logger
}

// New builds a Client with an LRU cache of the given capacity.
func New(endpoint string, requestTimeout time.Duration, cacheSize int, cacheTTL time.Duration, log *zap.Logger) (*Client, error) {
	cache, err := lru.New[string, cacheEntry](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("new stats cache: %w", err)
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: requestTimeout},
		cache:    cache,
		ttl:      cacheTTL,
		log:      log,
	}, nil
}

type getCharacterInfoRequest struct {
	Version     string   `json:"version"`
	ClientID    string   `json:"client_id"`
	BossName    string   `json:"boss_name"`
	PlayerNames []string `json:"player_names"`
	Region      string   `json:"region"`
}

// GetCharacterInfo implements ports.StatsApi, serving cached entries for
// names already looked up within cacheTTL and only requesting the rest.
func (c *Client) GetCharacterInfo(ctx context.Context, version, clientID, bossName string, playerNames []string, region string) (map[string]ports.PlayerStats, error) {
	result := make(map[string]ports.PlayerStats, len(playerNames))
	var miss []string
	now := time.Now()
	for _, name := range playerNames {
		key := region + "/" + name
		if entry, ok := c.cache.Get(key); ok && now.Before(entry.expires) {
			result[name] = entry.stats
			continue
		}
		miss = append(miss, name)
	}
	if len(miss) == 0 {
		return result, nil
	}

	body, err := json.Marshal(getCharacterInfoRequest{
		Version: version, ClientID: clientID, BossName: bossName, PlayerNames: miss, Region: region,
	})
	if err != nil {
		return result, fmt.Errorf("encode character info request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/characters", bytes.NewReader(body))
	if err != nil {
		return result, fmt.Errorf("build character info request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("stats api request failed", zap.Error(err))
		return result, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return result, fmt.Errorf("stats api returned %d: %s", resp.StatusCode, string(b))
	}

	var decoded map[string]ports.PlayerStats
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return result, fmt.Errorf("decode character info response: %w", err)
	}
	for name, stats := range decoded {
		result[name] = stats
		c.cache.Add(region+"/"+name, cacheEntry{stats: stats, expires: now.Add(c.ttl)})
	}
	return result, nil
}

// SendRaidInfo implements ports.StatsApi, posting a fire-and-forget raid
// summary once a boss battle is confirmed.
func (c *Client) SendRaidInfo(ctx context.Context, info ports.RaidInfo) error {
	body, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("encode raid info: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/raids", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build raid info request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("raid info post failed", zap.Error(err))
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("raid info api returned %d: %s", resp.StatusCode, string(b))
	}
	return nil
}
