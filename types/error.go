package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across the retrieval core.
type ErrorCode string

const (
	// ErrServiceUnavailable 外部协作方（嵌入、索引、重排、生成）不可用。
	// 调用点捕获并降级为空结果或回退分数，不向最终用户抛出。
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// ErrMalformedOutput 模型结构化输出无法解析。
	// 按"未提取到内容"/"中性分数"/"使用原始查询"处理。
	ErrMalformedOutput ErrorCode = "MALFORMED_OUTPUT"

	// ErrValidation 输入越界（importance 超范围、未知记忆类型等）。
	ErrValidation ErrorCode = "VALIDATION"

	// ErrNotFound 未知的会话/文档/记忆，属调用方错误，向上传播。
	ErrNotFound ErrorCode = "NOT_FOUND"

	// ErrCircuitOpen 熔断器处于打开状态，调用被拒绝。
	ErrCircuitOpen ErrorCode = "CIRCUIT_OPEN"

	// ErrTimeout 外部调用超时。
	ErrTimeout ErrorCode = "TIMEOUT"
)

// Error represents a structured error with code, message, and cause.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Cause     error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NotFoundError 构造 NOT_FOUND 错误。
func NotFoundError(kind, id string) *Error {
	return &Error{Code: ErrNotFound, Message: fmt.Sprintf("%s %s not found", kind, id)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// CodeOf extracts the error code from an error chain.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound 判断错误链中是否为 NOT_FOUND。
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrNotFound
}
