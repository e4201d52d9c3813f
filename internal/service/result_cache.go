package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"coursecraft_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// QuizResult is the summary of a learner's current result on a quiz.
type QuizResult struct {
	AttemptID    uint      `json:"attemptId"`
	QuizID       uint      `json:"quizId"`
	Score        int       `json:"score"`
	PassingScore int       `json:"passingScore"`
	Passed       bool      `json:"passed"`
	FinishedAt   time.Time `json:"finishedAt"`
}

// ResultCache is a read-through cache in front of the attempts table. The
// database stays the only source of truth: cache failures fall back to a load
// and nothing is ever written through the cache.
type ResultCache struct {
	Client *redis.Client
	ttl    atomic.Int64
}

func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	c := &ResultCache{Client: client}
	c.SetTTL(ttl)
	return c
}

func (c *ResultCache) SetTTL(ttl time.Duration) {
	c.ttl.Store(int64(ttl))
}

func resultKey(userID, quizID uint) string {
	return fmt.Sprintf("quiz:result:%d:%d", quizID, userID)
}

// Get returns the cached result or calls load and caches what it returns.
func (c *ResultCache) Get(ctx context.Context, userID, quizID uint, load func(ctx context.Context) (*QuizResult, error)) (*QuizResult, error) {
	if c == nil || c.Client == nil {
		return load(ctx)
	}
	key := resultKey(userID, quizID)
	raw, err := c.Client.Get(ctx, key).Bytes()
	if err == nil {
		var res QuizResult
		if err := json.Unmarshal(raw, &res); err == nil {
			return &res, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		logger.Log.Warn("result cache read failed", zap.String("key", key), zap.Error(err))
	}

	res, err := load(ctx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(res); err == nil {
		if err := c.Client.Set(ctx, key, b, time.Duration(c.ttl.Load())).Err(); err != nil {
			logger.Log.Warn("result cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return res, nil
}

// Invalidate drops the cached result after a new grade lands.
func (c *ResultCache) Invalidate(ctx context.Context, userID, quizID uint) {
	if c == nil || c.Client == nil {
		return
	}
	if err := c.Client.Del(ctx, resultKey(userID, quizID)).Err(); err != nil {
		logger.Log.Warn("result cache invalidate failed", zap.Uint("quizId", quizID), zap.Uint("userId", userID), zap.Error(err))
	}
}
