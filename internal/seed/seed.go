// Package seed 解析 YAML 课程目录种子文件
package seed

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"course-advisor/backend/internal/model"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

var (
	ErrEmptySeed          = errors.New("种子文件内容为空")
	ErrDuplicateCourse    = errors.New("课程号重复")
	ErrInvalidCourse      = errors.New("课程信息不完整")
	ErrInvalidSectionTime = errors.New("班次开始时间必须早于结束时间")
	ErrDuplicateSection   = errors.New("同一课程的班次标签重复")
)

// File 种子文件结构
type File struct {
	Subject string        `yaml:"subject"`
	Core    []string      `yaml:"core"`
	Courses []CourseEntry `yaml:"courses"`
}

// CourseEntry 单门课程
type CourseEntry struct {
	Number            string         `yaml:"number"`
	Name              string         `yaml:"name"`
	Description       string         `yaml:"description"`
	Credits           int            `yaml:"credits"`
	PrereqText        string         `yaml:"prereq_text"`
	Prerequisites     []string       `yaml:"prerequisites"`
	RequirementGroups [][]string     `yaml:"requirement_groups"`
	Sections          []SectionEntry `yaml:"sections"`
}

// SectionEntry 单个班次，时间为 "10:10AM" 格式
type SectionEntry struct {
	Label string `yaml:"label"`
	Days  string `yaml:"days"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// Catalog 规范化后的目录，可直接写入数据库
type Catalog struct {
	Courses       []model.Course // Sections 已按文件顺序填充
	Prerequisites []model.Prerequisite
	Groups        []model.PrerequisiteGroupMember
	Core          []model.CoreCourse
}

// SectionCount 班次总数
func (c *Catalog) SectionCount() int {
	n := 0
	for _, course := range c.Courses {
		n += len(course.Sections)
	}
	return n
}

// Default 内置默认目录
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// LoadFile 从文件加载
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取种子文件 %s 失败: %w", path, err)
	}
	return Parse(data)
}

// Load 从 io.Reader 加载
func Load(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("读取种子内容失败: %w", err)
	}
	return Parse(data)
}

// Parse 解析并校验种子内容
func Parse(data []byte) (*Catalog, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptySeed
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("解析种子 YAML 失败: %w", err)
	}
	return f.Normalize()
}

// Normalize 规范化课程号、解析时间与先修文本
func (f *File) Normalize() (*Catalog, error) {
	subject := strings.ToUpper(strings.TrimSpace(f.Subject))
	cat := &Catalog{}
	seen := make(map[string]struct{}, len(f.Courses))

	for i, entry := range f.Courses {
		number := NormalizeNumber(entry.Number, subject)
		name := strings.TrimSpace(entry.Name)
		if number == "" || name == "" {
			return nil, fmt.Errorf("第 %d 门课程: %w", i+1, ErrInvalidCourse)
		}
		if _, dup := seen[number]; dup {
			return nil, fmt.Errorf("%s: %w", number, ErrDuplicateCourse)
		}
		seen[number] = struct{}{}

		course := model.Course{
			CourseNumber: number,
			Name:         name,
			Description:  strings.TrimSpace(entry.Description),
			Credits:      entry.Credits,
		}
		labels := make(map[string]struct{}, len(entry.Sections))
		for j, se := range entry.Sections {
			section, err := buildSection(number, j, se)
			if err != nil {
				return nil, err
			}
			if _, dup := labels[section.Label]; dup {
				return nil, fmt.Errorf("%s %s: %w", number, section.Label, ErrDuplicateSection)
			}
			labels[section.Label] = struct{}{}
			course.Sections = append(course.Sections, section)
		}
		cat.Courses = append(cat.Courses, course)

		cat.Prerequisites = append(cat.Prerequisites, buildEdges(number, subject, entry)...)

		for g, group := range entry.RequirementGroups {
			members := make(map[string]struct{}, len(group))
			for _, raw := range group {
				p := NormalizeNumber(raw, subject)
				if p == "" {
					continue
				}
				if _, dup := members[p]; dup {
					continue
				}
				members[p] = struct{}{}
				cat.Groups = append(cat.Groups, model.PrerequisiteGroupMember{
					CourseNumber: number,
					GroupIndex:   g,
					PrereqNumber: p,
				})
			}
		}
	}

	coreSeen := make(map[string]struct{}, len(f.Core))
	for _, raw := range f.Core {
		n := NormalizeNumber(raw, subject)
		if n == "" {
			continue
		}
		if _, dup := coreSeen[n]; dup {
			continue
		}
		coreSeen[n] = struct{}{}
		cat.Core = append(cat.Core, model.CoreCourse{CourseNumber: n})
	}

	return cat, nil
}

func buildSection(number string, position int, se SectionEntry) (model.Section, error) {
	days := strings.ToUpper(strings.TrimSpace(se.Days))
	if days == "" {
		days = "TBA"
	}
	label := strings.TrimSpace(se.Label)
	if label == "" {
		label = fmt.Sprintf("SEC %03d", position+1)
	}

	section := model.Section{
		SectionID:    uuid.NewString(),
		CourseNumber: number,
		Label:        label,
		Days:         days,
		Position:     position,
	}

	// 上课日待定的班次不保留时间
	if days == "TBA" {
		return section, nil
	}
	start, okStart := TimeToMinutes(se.Start)
	end, okEnd := TimeToMinutes(se.End)
	if okStart && okEnd {
		if start >= end {
			return model.Section{}, fmt.Errorf("%s %s: %w", number, label, ErrInvalidSectionTime)
		}
		section.StartMin = &start
		section.EndMin = &end
	}
	return section, nil
}

// buildEdges 合并显式先修列表与先修文本中识别出的课程号，去重并排除自身
func buildEdges(number, subject string, entry CourseEntry) []model.Prerequisite {
	var raw []string
	for _, p := range entry.Prerequisites {
		raw = append(raw, NormalizeNumber(p, subject))
	}
	raw = append(raw, ExtractPrereqs(entry.PrereqText)...)

	var edges []model.Prerequisite
	seen := make(map[string]struct{}, len(raw))
	for _, p := range raw {
		if p == "" || p == number {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		edges = append(edges, model.Prerequisite{CourseNumber: number, PrereqNumber: p})
	}
	return edges
}

// ── 格式辅助 ──

// TimeToMinutes 将 "10:10AM" 转为零点起的分钟数；空串或格式错误返回 false
func TimeToMinutes(s string) (int, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	t, err := time.Parse("3:04PM", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// MinutesToClock 分钟数转为 "10:10AM"
func MinutesToClock(m int) string {
	t := time.Date(2000, 1, 1, m/60, m%60, 0, 0, time.UTC)
	return t.Format("3:04PM")
}

var prereqPattern = regexp.MustCompile(`\b([A-Z]{2,5})[ -]?(\d{4})\b`)

// ExtractPrereqs 从先修说明文本中识别课程号，如 "CS 1110"、"MATH-1920"
func ExtractPrereqs(text string) []string {
	matches := prereqPattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1]+" "+m[2])
	}
	return out
}

var numberPattern = regexp.MustCompile(`^([A-Za-z]{2,5})[ -]?(\d{4})$`)

// NormalizeNumber 规范化课程号：
// "cs-2110" / "CS2110" → "CS 2110"；纯数字 "2110" 补全 subject；其他格式仅压缩空白
func NormalizeNumber(raw, subject string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if m := numberPattern.FindStringSubmatch(s); m != nil {
		return strings.ToUpper(m[1]) + " " + m[2]
	}
	if isDigits(s) && subject != "" {
		return subject + " " + s
	}
	return strings.Join(strings.Fields(s), " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
