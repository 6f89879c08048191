package planner

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrNoCandidates 没有任何满足条件的班次
var ErrNoCandidates = errors.New("没有满足条件的班次")

// Policy 生成策略
type Policy struct {
	MaxSections   int           // 每份课表的班次上限
	CoreQuota     int           // 核心课程配额，已修核心课达到该数后才考虑研究生课程
	GraduateLevel int           // 课程代码 >= 该值为研究生课程
	RankTimeout   time.Duration // 排序器超时，0 表示不额外限制
}

// DefaultPolicy 默认策略：5 个班次、3 门核心课、5000 级以上为研究生课程
func DefaultPolicy() Policy {
	return Policy{
		MaxSections:   5,
		CoreQuota:     3,
		GraduateLevel: 5000,
		RankTimeout:   15 * time.Second,
	}
}

// Planner 课表生成器
type Planner struct {
	policy Policy
	ranker Ranker
	logger *zap.Logger
}

// New 创建 Planner；ranker 可为 nil，此时选修课保持目录顺序
func New(policy Policy, ranker Ranker, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Planner{policy: policy, ranker: ranker, logger: logger}
}

// Policy 当前策略
func (p *Planner) Policy() Policy {
	return p.policy
}

// Buckets 按分类分组的候选，组内保持目录顺序
type Buckets struct {
	Core     []Candidate
	Elective []Candidate
	Graduate []Candidate
}

// Empty 三个分类都没有候选
func (b *Buckets) Empty() bool {
	return len(b.Core) == 0 && len(b.Elective) == 0 && len(b.Graduate) == 0
}

// Enumerate 枚举候选班次
// 排除已修课程、先修不满足的课程、无固定时间或不在空闲时段内的班次
func (p *Planner) Enumerate(catalog *Catalog, student *Student) *Buckets {
	b := &Buckets{}
	completed := student.Completed()
	for _, course := range catalog.Courses {
		if student.HasCompleted(course.Number) {
			continue
		}
		if !course.Requirement.SatisfiedBy(completed) {
			continue
		}
		bucket := Classify(course.Number, catalog.IsCore(course.Number), p.policy.GraduateLevel)
		for _, s := range course.Sections {
			if !s.HasTimes() || !IsAvailable(s, student.Availability) {
				continue
			}
			c := Candidate{
				CourseNumber: course.Number,
				CourseName:   course.Name,
				Section:      s,
				Bucket:       bucket,
			}
			switch bucket {
			case BucketCore:
				b.Core = append(b.Core, c)
			case BucketGraduate:
				b.Graduate = append(b.Graduate, c)
			default:
				b.Elective = append(b.Elective, c)
			}
		}
	}
	return b
}

// NumCoreCompleted 学生已修核心课程数
func NumCoreCompleted(catalog *Catalog, student *Student) int {
	n := 0
	for number := range student.Completed() {
		if catalog.IsCore(number) {
			n++
		}
	}
	return n
}

// Plan 生成课表
//
// 依次填充：核心课程（至多 CoreQuota-k 个）→ 排序后的选修课 → 研究生课程（已修核心课 >= CoreQuota 时）。
// 每一步都要求课程不重复且与已录取班次无时间冲突，总数不超过 MaxSections。
func (p *Planner) Plan(ctx context.Context, catalog *Catalog, student *Student) (*Plan, error) {
	buckets := p.Enumerate(catalog, student)
	if buckets.Empty() {
		return nil, ErrNoCandidates
	}

	k := NumCoreCompleted(catalog, student)
	sel := newSelection(p.policy.MaxSections)

	// ── 第一步：核心课程 ──
	target := p.policy.CoreQuota - k
	if target < 0 {
		target = 0
	}
	if target > len(buckets.Core) {
		target = len(buckets.Core)
	}
	admittedCore := 0
	for _, c := range buckets.Core {
		if admittedCore >= target || sel.full() {
			break
		}
		if sel.admit(c) {
			admittedCore++
		}
	}

	// ── 第二步：选修课程 ──
	outcome := RankNotNeeded
	if capacity := sel.remaining(); capacity > 0 && len(buckets.Elective) > 0 {
		ranked, o, err := RankElectives(ctx, p.ranker, buckets.Elective, student.Interests, capacity, p.policy.RankTimeout)
		if err != nil {
			p.logger.Warn("选修课排序失败，使用目录顺序",
				zap.String("student_id", student.ID),
				zap.Int("candidates", len(buckets.Elective)),
				zap.Error(err),
			)
		}
		outcome = o
		for _, c := range ranked {
			if sel.full() {
				break
			}
			sel.admit(c)
		}
	}

	// ── 第三步：研究生课程 ──
	if k >= p.policy.CoreQuota {
		for _, c := range buckets.Graduate {
			if sel.full() {
				break
			}
			sel.admit(c)
		}
	}

	return &Plan{
		Admitted:         sel.admitted,
		NumCoreCompleted: k,
		Candidates: map[Bucket]int{
			BucketCore:     len(buckets.Core),
			BucketElective: len(buckets.Elective),
			BucketGraduate: len(buckets.Graduate),
		},
		Ranking:   outcome,
		Rationale: Rationale,
	}, nil
}

// selection 已录取班次及其约束
type selection struct {
	max      int
	admitted []Candidate
	courses  map[string]struct{}
}

func newSelection(max int) *selection {
	return &selection{max: max, courses: make(map[string]struct{})}
}

func (s *selection) full() bool {
	return len(s.admitted) >= s.max
}

func (s *selection) remaining() int {
	if n := s.max - len(s.admitted); n > 0 {
		return n
	}
	return 0
}

// admit 课程未出现过且与已录取班次均不冲突时录取
func (s *selection) admit(c Candidate) bool {
	if s.full() {
		return false
	}
	if _, dup := s.courses[c.CourseNumber]; dup {
		return false
	}
	for _, a := range s.admitted {
		if Overlaps(a.Section, c.Section) {
			return false
		}
	}
	s.admitted = append(s.admitted, c)
	s.courses[c.CourseNumber] = struct{}{}
	return true
}
