package planner

import (
	"strconv"
	"strings"
)

// Requirement 先修要求：组间 AND，组内 OR
type Requirement [][]string

// SatisfiedBy 每一组都至少有一门在已修集合中；空要求恒满足
func (r Requirement) SatisfiedBy(completed map[string]struct{}) bool {
	for _, group := range r {
		ok := false
		for _, n := range group {
			if _, done := completed[n]; done {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// ResolveRequirement 合成课程的先修要求
// 存在先修表达式时直接采用；否则每条通用先修边各自成组（全部必修）
func ResolveRequirement(groups [][]string, edges []string) Requirement {
	if len(groups) > 0 {
		req := make(Requirement, 0, len(groups))
		for _, g := range groups {
			if len(g) == 0 {
				continue
			}
			req = append(req, append([]string(nil), g...))
		}
		return req
	}
	req := make(Requirement, 0, len(edges))
	for _, e := range edges {
		req = append(req, []string{e})
	}
	return req
}

// CatalogCode 解析课程号中的四位数字代码，如 "CS 2110" → 2110
func CatalogCode(number string) (int, bool) {
	fields := strings.Fields(number)
	if len(fields) == 0 {
		return 0, false
	}
	last := fields[len(fields)-1]
	if len(last) != 4 {
		return 0, false
	}
	for _, r := range last {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	code, err := strconv.Atoi(last)
	if err != nil {
		return 0, false
	}
	return code, true
}

// Classify 课程分类：代码 >= graduateLevel 为研究生课程，其次核心课程，其余为选修
func Classify(number string, isCore bool, graduateLevel int) Bucket {
	if code, ok := CatalogCode(number); ok && code >= graduateLevel {
		return BucketGraduate
	}
	if isCore {
		return BucketCore
	}
	return BucketElective
}
