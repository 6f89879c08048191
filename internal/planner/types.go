// Package planner 选课课表生成引擎
//
// 引擎本身不做任何 I/O：目录快照与学生快照由调用方注入，
// 唯一的外部依赖是选修课排序器 Ranker，其失败只会退化为目录顺序。
package planner

// Bucket 候选班次分类
type Bucket int

const (
	BucketCore Bucket = iota
	BucketElective
	BucketGraduate
)

func (b Bucket) String() string {
	switch b {
	case BucketCore:
		return "core"
	case BucketElective:
		return "elective"
	case BucketGraduate:
		return "graduate"
	default:
		return "unknown"
	}
}

// Section 开课班次快照
// Start / End 为当天零点起的分钟数，任一为 nil 或上课日为 TBA 即无固定时间
type Section struct {
	ID           string
	CourseNumber string
	Label        string
	Days         string
	Start        *int
	End          *int
}

// HasTimes 是否有固定上课时间
func (s Section) HasTimes() bool {
	return s.Start != nil && s.End != nil && !isTBA(s.Days)
}

// Course 课程快照，Sections 保持目录顺序
type Course struct {
	Number      string
	Name        string
	Requirement Requirement
	Sections    []Section
}

// Catalog 一次生成所用的只读目录快照
type Catalog struct {
	Courses []Course
	core    map[string]struct{}
}

// NewCatalog 以目录顺序的课程列表与核心课程号构建快照
func NewCatalog(courses []Course, core []string) *Catalog {
	set := make(map[string]struct{}, len(core))
	for _, n := range core {
		set[n] = struct{}{}
	}
	return &Catalog{Courses: courses, core: set}
}

// IsCore 是否为核心课程
func (c *Catalog) IsCore(number string) bool {
	_, ok := c.core[number]
	return ok
}

// CoreSize 核心课程数量
func (c *Catalog) CoreSize() int {
	return len(c.core)
}

// Student 学生快照
type Student struct {
	ID           string
	Interests    string
	Availability string
	completed    map[string]struct{}
}

// NewStudent 构建学生快照，completed 中的重复项会被合并
func NewStudent(id string, completed []string, interests, availability string) *Student {
	set := make(map[string]struct{}, len(completed))
	for _, n := range completed {
		set[n] = struct{}{}
	}
	return &Student{
		ID:           id,
		Interests:    interests,
		Availability: availability,
		completed:    set,
	}
}

// HasCompleted 是否已修该课程
func (s *Student) HasCompleted(number string) bool {
	_, ok := s.completed[number]
	return ok
}

// Completed 已修课程集合（只读）
func (s *Student) Completed() map[string]struct{} {
	return s.completed
}

// Candidate 候选 (课程, 班次) 对
type Candidate struct {
	CourseNumber string
	CourseName   string
	Section      Section
	Bucket       Bucket
}

// RankOutcome 选修课排序结果来源
type RankOutcome int

const (
	RankNotNeeded RankOutcome = iota // 无剩余容量或无选修候选
	RankSkipped                      // 无兴趣描述、候选不超过一个或未配置排序器
	RankApplied                      // 采用排序器结果
	RankFallback                     // 排序器失败或超时，退回目录顺序
)

func (o RankOutcome) String() string {
	switch o {
	case RankNotNeeded:
		return "not_needed"
	case RankSkipped:
		return "skipped"
	case RankApplied:
		return "applied"
	case RankFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Rationale 生成课表附带的固定说明
const Rationale = "Prioritized core classes, then ranked electives, then grad-level if eligible."

// Plan 一次生成的结果
type Plan struct {
	Admitted         []Candidate // 录取顺序
	NumCoreCompleted int
	Candidates       map[Bucket]int // 各分类候选数
	Ranking          RankOutcome
	Rationale        string
}

// Count 某分类已录取的班次数
func (p *Plan) Count(b Bucket) int {
	n := 0
	for _, c := range p.Admitted {
		if c.Bucket == b {
			n++
		}
	}
	return n
}

// SectionIDs 按录取顺序返回班次 ID
func (p *Plan) SectionIDs() []string {
	ids := make([]string, len(p.Admitted))
	for i, c := range p.Admitted {
		ids[i] = c.Section.ID
	}
	return ids
}
