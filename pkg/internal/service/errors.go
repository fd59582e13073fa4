package service

import (
	"errors"
	"fmt"
)

// 错误分类，handle 层通过 errors.Is 映射 HTTP 状态码.
var (
	ErrValidation  = errors.New("validation failed")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrForbidden   = errors.New("forbidden")
	ErrOracle      = errors.New("oracle failure")
	ErrPersistence = errors.New("persistence failure")
	// ErrUnavailable 依赖的存储组件未初始化.
	ErrUnavailable = errors.New("service unavailable")
)

// Error 携带面向调用方的消息.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}

	return e.Msg
}

func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}

	return []error{e.Kind}
}

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func wrapError(kind error, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// PublicMessage 返回可直接展示给调用方的消息.
func PublicMessage(err error) string {
	var se *Error
	if errors.As(err, &se) {
		return se.Msg
	}

	return err.Error()
}
