package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrTransientConflict 可序列化事务冲突，重试后仍失败
var ErrTransientConflict = errors.New("并发冲突，请稍后重试")

// Kind 业务错误类别，对调用方稳定
type Kind string

const (
	KindInvalidInput         Kind = "InvalidInput"
	KindInsufficientLeadTime Kind = "InsufficientLeadTime"
	KindDateBlocked          Kind = "DateBlocked"
	KindSlotNotOffered       Kind = "SlotNotOffered"
	KindSlotFull             Kind = "SlotFull"
	KindAlreadyBooked        Kind = "AlreadyBooked"
	KindWeeklyQuotaExceeded  Kind = "WeeklyQuotaExceeded"
	KindNotFound             Kind = "NotFound"
	KindPastClass            Kind = "PastClass"
	KindUnauthorized         Kind = "Unauthorized"
	KindSlotNotFull          Kind = "SlotNotFull"
)

// AppError 可由调用方直接处理的业务错误
type AppError struct {
	Kind    Kind
	Message string
	Detail  string
}

// New 创建业务错误
func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func (e *AppError) Error() string {
	if e.Detail == "" {
		return e.Message
	}
	return e.Message + ": " + e.Detail
}

// Is 按类别匹配，带不同 Detail 的同类错误视为相等
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// WithDetail 复制错误并附加详情
func (e *AppError) WithDetail(format string, args ...interface{}) *AppError {
	return &AppError{Kind: e.Kind, Message: e.Message, Detail: fmt.Sprintf(format, args...)}
}

// KindOf 提取业务错误类别；非业务错误返回空串
func KindOf(err error) (Kind, bool) {
	var e *AppError
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// IsSerializationFailure 判断是否为 PostgreSQL 序列化失败或死锁（可安全重试）
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// IsUniqueViolation 判断是否为唯一约束冲突
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
