package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"threadboard/internal/model"
)

const (
	// CommentPageKeyPrefix is the key prefix for cached comment pages.
	CommentPageKeyPrefix = "comments:post:"

	// commentVersionTTL bounds how long an idle post keeps its version key.
	// Page TTLs are clamped below it so a reset version never revives a page.
	commentVersionTTL = 24 * time.Hour
)

// CommentPage is one cached page of a post's comments in display order.
type CommentPage struct {
	Total int                       `json:"total"`
	Items []model.CommentWithAuthor `json:"items"`
}

// CommentPageCache caches raw comment pages per post. Each post has a version
// counter; pages are stored under the version that was current before the
// database read, and every committed write bumps it.
type CommentPageCache interface {
	// Lookup returns the cached page (nil on a miss) and the version a fresh
	// page must be stored under.
	Lookup(ctx context.Context, postID int64, req model.PageRequest) (*CommentPage, int64, error)

	// Store saves a page read from the database under version.
	Store(ctx context.Context, postID int64, version int64, req model.PageRequest, page *CommentPage) error

	// Invalidate retires every cached page of the post.
	Invalidate(ctx context.Context, postID int64) error
}

// RedisCommentPageCache implements CommentPageCache with plain string keys.
type RedisCommentPageCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewCommentPageCache creates a CommentPageCache backed by Redis.
func NewCommentPageCache(client *redis.Client, ttl time.Duration, log *zap.Logger) CommentPageCache {
	if ttl <= 0 || ttl >= commentVersionTTL {
		ttl = time.Minute
	}
	return &RedisCommentPageCache{client: client, ttl: ttl, log: log.Named("comment_cache")}
}

func versionKey(postID int64) string {
	return fmt.Sprintf("%s%d:ver", CommentPageKeyPrefix, postID)
}

func pageKey(postID, version int64, req model.PageRequest) string {
	return fmt.Sprintf("%s%d:v%d:p%d:s%d", CommentPageKeyPrefix, postID, version, req.PageNo, req.PageSize)
}

func (c *RedisCommentPageCache) Lookup(ctx context.Context, postID int64, req model.PageRequest) (*CommentPage, int64, error) {
	version, err := c.client.Get(ctx, versionKey(postID)).Int64()
	if errors.Is(err, redis.Nil) {
		version = 0
	} else if err != nil {
		return nil, 0, fmt.Errorf("get comment cache version: %w", err)
	}

	raw, err := c.client.Get(ctx, pageKey(postID, version, req)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.log.Debug("page miss", zap.Int64("post_id", postID), zap.Int64("version", version), zap.Int("page", req.PageNo))
		return nil, version, nil
	}
	if err != nil {
		return nil, version, fmt.Errorf("get comment page: %w", err)
	}

	var page CommentPage
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, version, fmt.Errorf("decode comment page: %w", err)
	}
	return &page, version, nil
}

func (c *RedisCommentPageCache) Store(ctx context.Context, postID int64, version int64, req model.PageRequest, page *CommentPage) error {
	raw, err := json.Marshal(page)
	if err != nil {
		return fmt.Errorf("encode comment page: %w", err)
	}
	if err := c.client.Set(ctx, pageKey(postID, version, req), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("set comment page: %w", err)
	}
	return nil
}

// Invalidate bumps the post's version. Pages of older versions are never read
// again and expire on their own.
func (c *RedisCommentPageCache) Invalidate(ctx context.Context, postID int64) error {
	pipe := c.client.Pipeline()
	pipe.Incr(ctx, versionKey(postID))
	pipe.Expire(ctx, versionKey(postID), commentVersionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("bump comment cache version: %w", err)
	}
	return nil
}
