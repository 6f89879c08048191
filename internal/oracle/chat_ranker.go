// Package oracle 选修课排序器实现
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"course-advisor/backend/config"
	"course-advisor/backend/internal/planner"
)

var (
	ErrEmptyCompletion = errors.New("排序服务返回内容为空")
)

const systemPrompt = "You are a helpful academic advisor."

// ChatRanker 调用 OpenAI 兼容的 /v1/chat/completions 接口对选修课排序
type ChatRanker struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxRetries  int
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewChatRanker 创建排序器
func NewChatRanker(cfg *config.OracleConfig, logger *zap.Logger) *ChatRanker {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &ChatRanker{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger.With(zap.String("component", "chat_ranker")),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// httpError 非 2xx 响应
type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("排序服务返回 HTTP %d: %s", e.StatusCode, e.Body)
}

// Rank 实现 planner.Ranker
// 按返回的课程号顺序输出对应的全部候选班次；未提及的候选由调用方补齐
func (r *ChatRanker) Rank(ctx context.Context, candidates []planner.Candidate, interests string, capacity int) ([]planner.Candidate, error) {
	req := chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(candidates, interests)},
		},
		Temperature: r.temperature,
	}

	var resp chatResponse
	if err := r.do(ctx, "/v1/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return nil, ErrEmptyCompletion
	}

	numbers := parseCourseList(resp.Choices[0].Message.Content)
	r.logger.Debug("选修课排序完成",
		zap.Int("candidates", len(candidates)),
		zap.Int("ranked", len(numbers)),
		zap.Int("capacity", capacity),
	)
	return orderByCourse(candidates, numbers), nil
}

// buildPrompt 列出去重后的候选课程与学生兴趣
func buildPrompt(candidates []planner.Candidate, interests string) string {
	var b strings.Builder
	b.WriteString("You are a course advisor helping a CS undergraduate student plan their next semester.\n")
	b.WriteString("The student is interested in: ")
	b.WriteString(interests)
	b.WriteString("\nRules & Assumptions:\n")
	b.WriteString("- The student has completed all non-CS prerequisites.\n")
	b.WriteString("- Rank only the unique courses (avoid suggesting multiple sections of the same course).\n")
	b.WriteString("Courses to rank:\n")

	seen := make(map[string]struct{}, len(candidates))
	var lines []string
	for _, c := range candidates {
		if _, ok := seen[c.CourseNumber]; ok {
			continue
		}
		seen[c.CourseNumber] = struct{}{}
		lines = append(lines, c.CourseNumber+" - "+c.CourseName)
	}
	b.WriteString(strings.Join(lines, ", "))
	b.WriteString("\nRespond with a comma-separated list of course numbers only in ranked order.")
	return b.String()
}

// parseCourseList 解析逗号分隔的课程号，忽略空项与两端的引号、句点
func parseCourseList(content string) []string {
	var out []string
	for _, part := range strings.Split(content, ",") {
		n := strings.Trim(strings.TrimSpace(part), "\"'`.")
		n = strings.Join(strings.Fields(n), " ")
		if n != "" {
			out = append(out, n)
		}
	}
	return out
}

// orderByCourse 按课程号顺序输出候选，同一课程的多个班次保持输入顺序
func orderByCourse(candidates []planner.Candidate, numbers []string) []planner.Candidate {
	var ranked []planner.Candidate
	used := make(map[string]struct{}, len(candidates))
	for _, n := range numbers {
		for _, c := range candidates {
			if c.CourseNumber != n {
				continue
			}
			if _, ok := used[c.Section.ID]; ok {
				continue
			}
			used[c.Section.ID] = struct{}{}
			ranked = append(ranked, c)
		}
	}
	return ranked
}

// ── HTTP ──

func (r *ChatRanker) doOnce(ctx context.Context, path string, body any) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, &httpError{StatusCode: resp.StatusCode, Body: truncateBody(raw)}
	}
	return raw, nil
}

func (r *ChatRanker) do(ctx context.Context, path string, body any, out any) error {
	backoff := 200 * time.Millisecond

	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		raw, err := r.doOnce(ctx, path, body)
		if err == nil {
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return fmt.Errorf("解析排序服务响应失败: %w", uErr)
			}
			return nil
		}

		if !isRetryable(err) || attempt >= r.maxRetries {
			return err
		}

		r.logger.Warn("排序服务请求重试",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", r.maxRetries),
			zap.Error(err),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

// isRetryable 网络错误、429 与 5xx 可重试；上下文取消不重试
func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var he *httpError
	if errors.As(err, &he) {
		return he.StatusCode == http.StatusTooManyRequests || he.StatusCode >= 500
	}
	return true
}

func truncateBody(raw []byte) string {
	const max = 512
	if len(raw) > max {
		return string(raw[:max])
	}
	return string(raw)
}
