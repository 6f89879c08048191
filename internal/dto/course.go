package dto

// ── 课程目录 DTO ──

// CourseListRequest 课程列表查询参数
type CourseListRequest struct {
	Keyword string `form:"keyword" binding:"omitempty,max=50"`
	Bucket  string `form:"bucket"  binding:"omitempty,oneof=core elective graduate"`
}

// SectionResponse 班次
type SectionResponse struct {
	ID           string `json:"id"`
	CourseNumber string `json:"course_number"`
	Label        string `json:"label"`
	Days         string `json:"days"`
	StartMin     *int   `json:"start_min"`
	EndMin       *int   `json:"end_min"`
	StartTime    string `json:"start_time,omitempty"` // 10:10AM
	EndTime      string `json:"end_time,omitempty"`
}

// CourseResponse 课程
type CourseResponse struct {
	Number            string            `json:"number"`
	Name              string            `json:"name"`
	Description       string            `json:"description"`
	Credits           int               `json:"credits"`
	Bucket            string            `json:"bucket"`
	IsCore            bool              `json:"is_core"`
	Sections          []SectionResponse `json:"sections"`
	Prerequisites     []string          `json:"prerequisites"`
	RequiredBy        []string          `json:"required_by"`
	RequirementGroups [][]string        `json:"requirement_groups,omitempty"`
}

// CoreCoursesResponse 核心课程
type CoreCoursesResponse struct {
	Courses []string `json:"courses"`
}

// ImportCatalogResponse 目录导入结果
type ImportCatalogResponse struct {
	Courses       int `json:"courses"`
	Sections      int `json:"sections"`
	Prerequisites int `json:"prerequisites"`
	Groups        int `json:"requirement_group_members"`
	Core          int `json:"core"`
}
