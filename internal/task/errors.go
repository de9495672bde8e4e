package task

import (
	"errors"
	"fmt"
)

// ErrorCode 表示任务错误的类型。
type ErrorCode string

const (
	// ErrCodeNotFound 表示注册表和发现源中都找不到任务。
	ErrCodeNotFound ErrorCode = "TASK_NOT_FOUND"
	// ErrCodeExecution 表示任务执行时返回错误或发生 panic。
	ErrCodeExecution ErrorCode = "TASK_EXECUTION"
	// ErrCodeInvalid 表示注册参数无效。
	ErrCodeInvalid ErrorCode = "TASK_INVALID"
)

// TaskError represents an error during task resolution or execution.
type TaskError struct {
	Code    ErrorCode
	Task    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *TaskError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates an error for an unresolvable task name.
func NewNotFoundError(name string) *TaskError {
	return &TaskError{
		Code:    ErrCodeNotFound,
		Task:    name,
		Message: fmt.Sprintf("task not found: %s", name),
	}
}

// NewExecutionError creates an error for a failed task invocation.
func NewExecutionError(name string, cause error) *TaskError {
	return &TaskError{
		Code:    ErrCodeExecution,
		Task:    name,
		Message: fmt.Sprintf("task %s failed", name),
		Cause:   cause,
	}
}

// NewInvalidError creates an error for an invalid registration.
func NewInvalidError(name, message string) *TaskError {
	return &TaskError{
		Code:    ErrCodeInvalid,
		Task:    name,
		Message: message,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var taskErr *TaskError
	if errors.As(err, &taskErr) {
		return taskErr.Code == code
	}
	return false
}

// IsNotFoundError checks if the error is a task not found error.
func IsNotFoundError(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsExecutionError checks if the error is a task execution error.
func IsExecutionError(err error) bool {
	return hasCode(err, ErrCodeExecution)
}
