package dto

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"course-advisor/backend/internal/model"
)

var courseNumberPattern = regexp.MustCompile(`^[A-Z]{2,5} \d{4}$`)

// IsAvailabilityBitmap 168 位且只包含 '0' / '1'
func IsAvailabilityBitmap(s string) bool {
	if len(s) != model.AvailabilitySlots {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] != '0' && s[i] != '1' {
			return false
		}
	}
	return true
}

// IsCourseNumber 形如 "CS 2110"
func IsCourseNumber(s string) bool {
	return courseNumberPattern.MatchString(s)
}

// RegisterValidators 向 gin 的校验引擎注册自定义标签 availability / course_number
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	if err := v.RegisterValidation("availability", func(fl validator.FieldLevel) bool {
		return IsAvailabilityBitmap(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("course_number", func(fl validator.FieldLevel) bool {
		return IsCourseNumber(fl.Field().String())
	})
}
