package planner

import "strings"

func intp(v int) *int { return &v }

func sec(id, course, days string, start, end int) Section {
	return Section{ID: id, CourseNumber: course, Label: "LEC 001", Days: days, Start: intp(start), End: intp(end)}
}

func tba(id, course string) Section {
	return Section{ID: id, CourseNumber: course, Label: "LEC 001", Days: "TBA"}
}

func course(number string, req Requirement, sections ...Section) Course {
	return Course{Number: number, Name: number + " name", Requirement: req, Sections: sections}
}

// allFree 全部空闲的位图
func allFree() string {
	return strings.Repeat("1", 168)
}

// withBusy 在全空闲位图上把指定 (day, hour) 标记为忙碌
func withBusy(slots ...[2]int) string {
	b := []byte(allFree())
	for _, s := range slots {
		b[s[0]+7*s[1]] = '0'
	}
	return string(b)
}

func courseNumbers(cs []Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.CourseNumber
	}
	return out
}
