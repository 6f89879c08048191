package handler

import (
	"github.com/gin-gonic/gin"

	"course-advisor/backend/internal/model"
	"course-advisor/backend/pkg/jwt"
	"course-advisor/backend/pkg/response"
)

// 与 middleware.JWTAuth 注入的键保持一致
const (
	ctxStudentID = "student_id"
	ctxRole      = "role"
	ctxClaims    = "claims"
)

// MustGetStudentID 从 Gin 上下文中安全提取 student_id。
// 如果 JWT 中间件未正确注入，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetStudentID(c *gin.Context) (string, bool) {
	return mustGetString(c, ctxStudentID)
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (string, bool) {
	return mustGetString(c, ctxRole)
}

// MustGetClaims 从 Gin 上下文中安全提取完整的 Token Claims。
func MustGetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(ctxClaims)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	if !ok || claims == nil {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return claims, true
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// requireSelfOrAdmin 仅允许本人或管理员访问 studentID 的资源
func requireSelfOrAdmin(c *gin.Context, studentID string) bool {
	self, ok := MustGetStudentID(c)
	if !ok {
		return false
	}
	role, ok := MustGetRole(c)
	if !ok {
		return false
	}
	if role == model.RoleAdmin || self == studentID {
		return true
	}
	response.Forbidden(c, 10003, "无权限访问")
	return false
}
