package planner

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Ranker 选修课排序器
// 按兴趣描述返回候选的偏好顺序，可以是子集，也可能包含无效项
type Ranker interface {
	Rank(ctx context.Context, candidates []Candidate, interests string, capacity int) ([]Candidate, error)
}

// RankerFunc 函数适配为 Ranker
type RankerFunc func(ctx context.Context, candidates []Candidate, interests string, capacity int) ([]Candidate, error)

func (f RankerFunc) Rank(ctx context.Context, candidates []Candidate, interests string, capacity int) ([]Candidate, error) {
	return f(ctx, candidates, interests, capacity)
}

// ErrRankTimeout 排序器超时
var ErrRankTimeout = errors.New("选修课排序超时")

type rankResult struct {
	ranked []Candidate
	err    error
}

// RankElectives 调用排序器得到选修候选顺序，结果长度不超过 capacity
//
// 无兴趣描述、候选不超过一个、ranker 为空或 capacity 为 0 时不调用排序器。
// 排序器失败或超时时返回目录顺序截断结果，同时返回原始错误供调用方记录；
// 返回的候选列表在任何情况下都可以直接使用。
func RankElectives(ctx context.Context, r Ranker, candidates []Candidate, interests string, capacity int, timeout time.Duration) ([]Candidate, RankOutcome, error) {
	fallback := truncate(candidates, capacity)
	if r == nil || capacity <= 0 || len(candidates) <= 1 || strings.TrimSpace(interests) == "" {
		return fallback, RankSkipped, nil
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	input := append([]Candidate(nil), candidates...)
	done := make(chan rankResult, 1)
	go func() {
		ranked, err := r.Rank(ctx, input, interests, capacity)
		done <- rankResult{ranked: ranked, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fallback, RankFallback, ErrRankTimeout
		}
		return fallback, RankFallback, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return fallback, RankFallback, res.err
		}
		return Sanitize(res.ranked, candidates, capacity), RankApplied, nil
	}
}

// Sanitize 清洗排序结果
// 按班次 ID 匹配输入：丢弃未知项与重复项，追加被遗漏的输入项（保持原顺序），最后截断到 capacity
func Sanitize(ranked, input []Candidate, capacity int) []Candidate {
	byID := make(map[string]int, len(input))
	for i, c := range input {
		if _, dup := byID[c.Section.ID]; !dup {
			byID[c.Section.ID] = i
		}
	}

	out := make([]Candidate, 0, len(input))
	seen := make(map[string]struct{}, len(input))
	for _, c := range ranked {
		i, ok := byID[c.Section.ID]
		if !ok {
			continue
		}
		if _, dup := seen[c.Section.ID]; dup {
			continue
		}
		seen[c.Section.ID] = struct{}{}
		out = append(out, input[i])
	}
	for _, c := range input {
		if _, ok := seen[c.Section.ID]; ok {
			continue
		}
		seen[c.Section.ID] = struct{}{}
		out = append(out, c)
	}
	return truncate(out, capacity)
}

func truncate(candidates []Candidate, capacity int) []Candidate {
	if capacity < 0 {
		capacity = 0
	}
	if len(candidates) > capacity {
		candidates = candidates[:capacity]
	}
	return append([]Candidate(nil), candidates...)
}
