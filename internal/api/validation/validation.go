package validation

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/mxrcabrera/pilates-booking-sub001/pkg/civil"
)

// 自定义校验标签
const (
	TagCivilDate = "civildate" // "YYYY-MM-DD"
	TagClock     = "clock"     // "HH:MM"
)

// Register 向 gin 的校验引擎注册自定义标签，启动时调用一次
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin 校验引擎不是 validator/v10")
	}
	return RegisterOn(v)
}

// RegisterOn 在指定校验器上注册自定义标签
func RegisterOn(v *validator.Validate) error {
	if err := v.RegisterValidation(TagCivilDate, isCivilDate); err != nil {
		return fmt.Errorf("注册 %s 失败: %w", TagCivilDate, err)
	}
	if err := v.RegisterValidation(TagClock, isClock); err != nil {
		return fmt.Errorf("注册 %s 失败: %w", TagClock, err)
	}
	return nil
}

func isCivilDate(fl validator.FieldLevel) bool {
	_, err := civil.ParseDate(fl.Field().String())
	return err == nil
}

// 只接受 "HH:MM"，不接受数据库格式的秒
func isClock(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != len(civil.ClockLayout) {
		return false
	}
	_, err := civil.ParseClock(s)
	return err == nil
}

// Describe 将校验错误整理为 "字段:标签" 列表，用于响应 details
// 非校验错误（JSON 格式错误等）返回空串
func Describe(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return ""
	}
	parts := make([]string, 0, len(ve))
	for _, fe := range ve {
		parts = append(parts, fe.Field()+":"+fe.Tag())
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
