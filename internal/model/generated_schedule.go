package model

// GeneratedSchedule 生成的课表 — 对应 generated_schedules
// 创建后不再修改；重新生成即新建一条记录
type GeneratedSchedule struct {
	ScheduleID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"schedule_id"`
	StudentID  string `gorm:"type:uuid;not null;index"                       json:"student_id"`
	Rationale  string `gorm:"type:text;not null;default:''"                  json:"rationale"`
	BaseModel

	// 关联
	Sections []ScheduleSection `gorm:"foreignKey:ScheduleID;references:ScheduleID" json:"sections,omitempty"`
}

func (GeneratedSchedule) TableName() string { return "generated_schedules" }

// ScheduleSection 课表与班次的有序关联 — 对应 schedule_sections
type ScheduleSection struct {
	ScheduleID string `gorm:"type:uuid;primaryKey"   json:"schedule_id"`
	SectionID  string `gorm:"type:uuid;primaryKey"   json:"section_id"`
	Position   int    `gorm:"type:smallint;not null" json:"position"`

	// 关联
	Section *Section `gorm:"foreignKey:SectionID;references:SectionID" json:"section,omitempty"`
}

func (ScheduleSection) TableName() string { return "schedule_sections" }
