package errors

import (
	"errors"
	"fmt"
)

// 표준 라이브러리 함수 재노출
var (
	New    = errors.New
	Unwrap = errors.Unwrap
	Is     = errors.Is
	As     = errors.As
)

// Error는 코드를 가진 에러입니다
type Error interface {
	error
	Code() string
	Unwrap() error
}

// AppError는 기본 에러 구현체입니다
type AppError struct {
	code    string
	message string
	err     error
}

func (e *AppError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.message, e.err.Error())
	}
	return e.message
}

func (e *AppError) Code() string {
	return e.code
}

// Message는 내부 에러를 제외한, 클라이언트에 노출 가능한 메시지입니다
func (e *AppError) Message() string {
	return e.message
}

func (e *AppError) Unwrap() error {
	return e.err
}

// NewAppError는 새 애플리케이션 에러를 생성합니다
func NewAppError(code string, message string, err error) *AppError {
	return &AppError{
		code:    code,
		message: message,
		err:     err,
	}
}

// NotFound, InvalidArgument, Conflict, Upstream은 자주 쓰는 코드의 단축 생성자입니다
func NotFound(message string, err error) *AppError {
	return NewAppError(ErrNotFound, message, err)
}

func InvalidArgument(message string, err error) *AppError {
	return NewAppError(ErrInvalidArgument, message, err)
}

func Conflict(message string, err error) *AppError {
	return NewAppError(ErrConflict, message, err)
}

func Upstream(message string, err error) *AppError {
	return NewAppError(ErrUpstream, message, err)
}

// Wrap은 기존 에러를 래핑합니다. AppError인 경우 코드를 유지합니다
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if As(err, &appErr) {
		return NewAppError(appErr.Code(), message, err)
	}

	return NewAppError(ErrInternal, message, err)
}
