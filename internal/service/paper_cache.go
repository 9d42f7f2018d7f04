package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-grading/internal/config"
	"github.com/stemsi/exstem-grading/internal/model"
	"github.com/stemsi/exstem-grading/internal/repository"
)

// PaperCache serves sanitized papers from Redis, projecting from the catalog on a miss.
// Grading never reads from it.
type PaperCache struct {
	catalog ContentCatalog
	rdb     *redis.Client
	ttl     time.Duration
	log     zerolog.Logger
}

// NewPaperCache creates a new PaperCache. A nil rdb disables caching.
func NewPaperCache(catalog ContentCatalog, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *PaperCache {
	return &PaperCache{
		catalog: catalog,
		rdb:     rdb,
		ttl:     ttl,
		log:     log.With().Str("component", "paper_cache").Logger(),
	}
}

// Get returns the sanitized paper for ref.
func (c *PaperCache) Get(ctx context.Context, ref model.ResourceRef) (*model.Paper, error) {
	key := config.CacheKey.PaperKey(string(ref.Kind), ref.ID.String())

	if c.rdb != nil {
		data, err := c.rdb.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			var p model.Paper
			if err := json.Unmarshal(data, &p); err == nil {
				return &p, nil
			}
			c.log.Warn().Str("key", key).Msg("Discarding undecodable cached paper")
		case !errors.Is(err, redis.Nil):
			c.log.Warn().Err(err).Str("key", key).Msg("Paper cache read failed, projecting from catalog")
		}
	}

	res, err := c.catalog.GetResource(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get resource %s: %w", ref, err)
	}
	paper := ProjectPaper(res)
	if paper == nil {
		return nil, ErrNotFound
	}

	if c.rdb != nil {
		if raw, err := json.Marshal(paper); err == nil {
			if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
				c.log.Warn().Err(err).Str("key", key).Msg("Paper cache write failed")
			}
		}
	}
	return paper, nil
}

// Invalidate drops the cached paper for ref.
func (c *PaperCache) Invalidate(ctx context.Context, ref model.ResourceRef) error {
	if c.rdb == nil {
		return nil
	}
	return c.rdb.Del(ctx, config.CacheKey.PaperKey(string(ref.Kind), ref.ID.String())).Err()
}
