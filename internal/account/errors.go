package account

import "fmt"

// ValidationError 入参校验失败
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError 创建校验错误
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError 记录不存在
type NotFoundError struct {
	Resource string
	ID       int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s不存在: %d", e.Resource, e.ID)
}

// AlreadyCheckedInError 当天已经签到过
type AlreadyCheckedInError struct {
	AccountID int
}

func (e *AlreadyCheckedInError) Error() string {
	return fmt.Sprintf("账号 %d 今天已经签到", e.AccountID)
}

// ProviderError 云盘服务端返回错误，可能是令牌失效或接口变动
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// SyncError 同步 AList 失败
type SyncError struct {
	Op  string
	Err error
}

func (e *SyncError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}
