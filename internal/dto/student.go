package dto

// ── 学生模块 DTO ──

// UpdateStudentRequest 更新学生档案，至少提供一个字段
type UpdateStudentRequest struct {
	NetID          *string `json:"net_id"          binding:"omitempty,min=2,max=32,alphanum"`
	GraduationYear *string `json:"graduation_year" binding:"omitempty,numeric,len=4"`
	Interests      *string `json:"interests"       binding:"omitempty,max=2000"`
	Availability   *string `json:"availability"    binding:"omitempty,availability"`
}

// Empty 未提供任何字段
func (r *UpdateStudentRequest) Empty() bool {
	return r.NetID == nil && r.GraduationYear == nil && r.Interests == nil && r.Availability == nil
}

// AddCompletionRequest 添加已修课程
type AddCompletionRequest struct {
	CourseNumber string `json:"course_number" binding:"required,course_number"`
}

// CompletionResponse 已修课程
type CompletionResponse struct {
	CourseNumber string `json:"course_number"`
	CreatedAt    string `json:"created_at"`
}

// CompletionListResponse 已修课程列表
type CompletionListResponse struct {
	CompletedCourses []CompletionResponse `json:"completed_courses"`
}

// AvailabilityRequest 设置每周空闲时段
type AvailabilityRequest struct {
	Availability string `json:"availability" binding:"required,availability"`
}

// AvailabilityResponse 每周空闲时段
type AvailabilityResponse struct {
	Availability string           `json:"availability"`
	FreeSlots    int              `json:"free_slots"`
	Days         []DayAvailability `json:"days"`
}

// DayAvailability 某一天的空闲小时
type DayAvailability struct {
	Day       string `json:"day"` // M | T | W | R | F | S | U
	FreeHours []int  `json:"free_hours"`
}

// ICSImportResponse ICS 导入结果
type ICSImportResponse struct {
	AvailabilityResponse
	Events    int `json:"events"`     // 参与计算的日程数
	BusySlots int `json:"busy_slots"` // 标记为忙碌的时段数
}
