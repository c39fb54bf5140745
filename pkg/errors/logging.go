package errors

import (
	"go.uber.org/zap"
)

// LogError는 에러를 구조화된 로그로 기록합니다.
// 클라이언트 에러(NOT_FOUND, INVALID_ARGUMENT, CONFLICT)는 Warn, 나머지는 Error 레벨입니다.
func LogError(logger *zap.Logger, err error, msg string, fields ...zap.Field) {
	if err == nil {
		return
	}

	allFields := make([]zap.Field, 0, len(fields)+2)
	allFields = append(allFields, zap.Error(err))

	code := CodeOf(err)
	allFields = append(allFields, zap.String("error_code", code))
	allFields = append(allFields, fields...)

	switch code {
	case ErrNotFound, ErrInvalidArgument, ErrConflict:
		logger.Warn(msg, allFields...)
	default:
		logger.Error(msg, allFields...)
	}
}
