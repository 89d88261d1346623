package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码，对应请求处理各阶段的失败分类
const (
	// 通用错误
	ErrCodeInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"

	// 请求校验错误
	ErrCodeEmptyQuestion ErrorCode = "EMPTY_QUESTION"

	// 配置错误：缺少凭证或存储绑定，对整个请求致命，不重试
	ErrCodeConfigFault ErrorCode = "CONFIG_FAULT"

	// 检索错误：存储不可用，与"无相关内容"严格区分
	ErrCodeRetrievalUnavailable ErrorCode = "RETRIEVAL_UNAVAILABLE"

	// 外部服务错误：embedding或生成服务调用失败
	ErrCodeUpstreamService ErrorCode = "UPSTREAM_SERVICE_ERROR"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeValidation
	ErrorTypeExternal
)

// AppError 应用错误结构体
type AppError struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	Type     ErrorType   `json:"type"`
	HTTPCode int         `json:"-"`
	Details  interface{} `json:"details,omitempty"`
	Cause    error       `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewConfigFault 创建配置错误（缺少API key、存储未绑定等）
func NewConfigFault(message string) *AppError {
	return &AppError{
		Code:     ErrCodeConfigFault,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
	}
}

// NewEmptyQuestionError 创建空问题错误，在任何外部调用之前拒绝
func NewEmptyQuestionError() *AppError {
	return &AppError{
		Code:     ErrCodeEmptyQuestion,
		Message:  "question is empty",
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewRetrievalUnavailableError 创建检索不可用错误
// 不允许降级为空结果：服务故障和"没有相关内容"是不同的用户可见状态
func NewRetrievalUnavailableError(cause error) *AppError {
	return &AppError{
		Code:     ErrCodeRetrievalUnavailable,
		Message:  "retrieval unavailable",
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusServiceUnavailable,
		Cause:    cause,
	}
}

// NewUpstreamError 创建外部模型服务错误
func NewUpstreamError(message string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeUpstreamService,
		Message:  message,
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusBadGateway,
		Cause:    cause,
	}
}

// IsCode 检查错误链中是否存在指定错误码的AppError
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetAppError 获取AppError，如果不是则包装为系统错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return &AppError{
		Code:     ErrCodeInternalServer,
		Message:  "internal server error",
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
		Cause:    err,
	}
}
