package dto

// ── 课表模块 DTO ──

// GenerateScheduleRequest 生成课表请求
type GenerateScheduleRequest struct {
	StudentID string `json:"student_id" binding:"required,uuid"`
}

// ExportScheduleRequest 导出课表
type ExportScheduleRequest struct {
	Format string `form:"format" binding:"omitempty,oneof=xlsx ics"`
}

// ScheduledSectionResponse 课表中的班次
type ScheduledSectionResponse struct {
	Position   int    `json:"position"`
	CourseName string `json:"course_name"`
	Bucket     string `json:"bucket,omitempty"`
	SectionResponse
}

// ScheduleSummaryResponse 课表摘要（列表使用，不含班次）
type ScheduleSummaryResponse struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	Rationale string `json:"rationale"`
	CreatedAt string `json:"created_at"`
}

// ScheduleResponse 课表详情
type ScheduleResponse struct {
	ScheduleSummaryResponse
	Sections []ScheduledSectionResponse `json:"sections"`
}

// GenerationSummary 生成过程统计
type GenerationSummary struct {
	NumCoreCompleted int            `json:"num_core_completed"`
	Admitted         map[string]int `json:"admitted"`   // 各分类录取数
	Candidates       map[string]int `json:"candidates"` // 各分类候选数
	Ranking          string         `json:"ranking"`    // not_needed | skipped | applied | fallback
	OracleUsed       bool           `json:"oracle_used"`
}

// GenerateScheduleResponse 生成课表响应
type GenerateScheduleResponse struct {
	ScheduleResponse
	Summary GenerationSummary `json:"summary"`
}
