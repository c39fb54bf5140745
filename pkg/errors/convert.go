package errors

// CodePair는 에러 코드에 대응하는 HTTP 상태와 gRPC 코드입니다
type CodePair struct {
	HTTPStatus int
	GRPCCode   int
}

var codeMapping = map[string]CodePair{
	ErrInternal:        {500, 13}, // INTERNAL
	ErrNotFound:        {404, 5},  // NOT_FOUND
	ErrInvalidArgument: {400, 3},  // INVALID_ARGUMENT
	ErrUnauthenticated: {401, 16}, // UNAUTHENTICATED
	ErrUnauthorized:    {403, 7},  // PERMISSION_DENIED
	ErrConflict:        {409, 6},  // ALREADY_EXISTS
	ErrTimeout:         {504, 4},  // DEADLINE_EXCEEDED
	ErrUpstream:        {502, 14}, // UNAVAILABLE
	ErrNotImplemented:  {501, 12}, // UNIMPLEMENTED
}

// GetCodeMapping은 에러 코드의 HTTP 상태와 gRPC 코드를 반환합니다.
// 알 수 없는 코드는 Internal로 취급합니다.
func GetCodeMapping(code string) (int, int) {
	if pair, ok := codeMapping[code]; ok {
		return pair.HTTPStatus, pair.GRPCCode
	}
	return 500, 13
}

// CodeOf는 에러 체인에서 AppError 코드를 찾습니다. 없으면 ErrInternal입니다.
func CodeOf(err error) string {
	var appErr *AppError
	if As(err, &appErr) {
		return appErr.Code()
	}
	return ErrInternal
}
