// Package cache holds a Redis-backed cache for query subgraphs. Entries are
// keyed by graph revision, so a commit implicitly invalidates every cached
// subgraph without any explicit invalidation traffic.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/graphloom/loom/internal/util"
	"github.com/graphloom/loom/pkg/common"
	"github.com/graphloom/loom/pkg/logger"
)

const defaultTTLMin = 30

// SubgraphCache caches answer-context subgraphs per revision.
//
// A SubgraphCache should be created using NewSubgraphCache. A nil
// SubgraphCache is valid and never hits.
type SubgraphCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewSubgraphCacheParams defines the configuration for creating a
// SubgraphCache.
type NewSubgraphCacheParams struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewSubgraphCache creates a new SubgraphCache.
func NewSubgraphCache(params NewSubgraphCacheParams) *SubgraphCache {
	ttl := params.TTL
	if ttl <= 0 {
		ttl = time.Duration(util.GetEnvNumeric("CACHE_TTL_MIN", defaultTTLMin)) * time.Minute
	}
	return &SubgraphCache{
		client: params.Client,
		ttl:    ttl,
	}
}

// NewRedisClient builds a Redis client from the REDIS_* environment, or nil
// when no address is configured.
func NewRedisClient() *redis.Client {
	addr := util.GetEnv("REDIS_ADDR")
	if addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: util.GetEnv("REDIS_PASSWORD"),
	})
}

// Key derives the cache key for a query against a specific revision.
func Key(revision uint64, keywords []string, maxHops, maxNodes int) string {
	sum := sha256.Sum256([]byte(strings.Join(keywords, "\x00")))
	return fmt.Sprintf("loom:subgraph:%d:%d:%d:%s",
		revision, maxHops, maxNodes, hex.EncodeToString(sum[:8]))
}

// Get returns the cached subgraph for the key, or nil on miss. Cache errors
// degrade to a miss; the planner is always able to recompute.
func (c *SubgraphCache) Get(ctx context.Context, key string) *common.Subgraph {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn("[Cache] Get failed", "key", key, "err", err)
		}
		return nil
	}
	var sub common.Subgraph
	if err := json.Unmarshal([]byte(data), &sub); err != nil {
		logger.Warn("[Cache] Corrupt cache entry", "key", key, "err", err)
		return nil
	}
	return &sub
}

// Set stores the subgraph under the key with the configured TTL.
func (c *SubgraphCache) Set(ctx context.Context, key string, sub *common.Subgraph) {
	if c == nil || c.client == nil || sub == nil {
		return
	}
	data, err := json.Marshal(sub)
	if err != nil {
		logger.Warn("[Cache] Failed to marshal subgraph", "key", key, "err", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		logger.Warn("[Cache] Set failed", "key", key, "err", err)
	}
}
