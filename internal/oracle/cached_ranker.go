package oracle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"course-advisor/backend/internal/planner"
)

// RankingCache 排序结果缓存
type RankingCache interface {
	GetRanking(ctx context.Context, key string) (string, error)
	SetRanking(ctx context.Context, key, value string, ttl time.Duration) error
}

// CachedRanker 以 (兴趣, 候选集合, 容量) 为键缓存排序结果
// 缓存读写失败时直接调用内部排序器
type CachedRanker struct {
	inner  planner.Ranker
	cache  RankingCache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedRanker 创建带缓存的排序器
func NewCachedRanker(inner planner.Ranker, cache RankingCache, ttl time.Duration, logger *zap.Logger) *CachedRanker {
	return &CachedRanker{inner: inner, cache: cache, ttl: ttl, logger: logger}
}

// CacheKey 缓存键：sha256(兴趣 \x00 班次ID... \x00 容量)
func CacheKey(candidates []planner.Candidate, interests string, capacity int) string {
	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(interests)))
	for _, c := range candidates {
		h.Write([]byte{0})
		h.Write([]byte(c.Section.ID))
	}
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(capacity)))
	return hex.EncodeToString(h.Sum(nil))
}

// Rank 实现 planner.Ranker
func (r *CachedRanker) Rank(ctx context.Context, candidates []planner.Candidate, interests string, capacity int) ([]planner.Candidate, error) {
	key := CacheKey(candidates, interests, capacity)

	if cached, ok := r.lookup(ctx, key, candidates); ok {
		return cached, nil
	}

	ranked, err := r.inner.Rank(ctx, candidates, interests, capacity)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(ranked))
	for i, c := range ranked {
		ids[i] = c.Section.ID
	}
	if raw, mErr := json.Marshal(ids); mErr == nil {
		if sErr := r.cache.SetRanking(ctx, key, string(raw), r.ttl); sErr != nil {
			r.logger.Warn("写入排序缓存失败", zap.Error(sErr))
		}
	}
	return ranked, nil
}

// lookup 命中且所有班次 ID 都在候选中时返回缓存结果
func (r *CachedRanker) lookup(ctx context.Context, key string, candidates []planner.Candidate) ([]planner.Candidate, bool) {
	raw, err := r.cache.GetRanking(ctx, key)
	if err != nil {
		return nil, false
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		r.logger.Warn("排序缓存内容无效", zap.Error(err))
		return nil, false
	}

	byID := make(map[string]planner.Candidate, len(candidates))
	for _, c := range candidates {
		byID[c.Section.ID] = c
	}
	out := make([]planner.Candidate, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, false
		}
		out = append(out, c)
	}
	return out, true
}
