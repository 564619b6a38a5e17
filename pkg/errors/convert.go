package errors

// CodePair maps an internal error code onto framework status codes.
type CodePair struct {
	HTTPStatus int
	GRPCCode   int
}

var codeMapping = map[string]CodePair{
	ErrInternal:        {500, 13},
	ErrNotFound:        {404, 5},
	ErrInvalidArgument: {400, 3},
	ErrUnauthenticated: {401, 16},
	ErrUnauthorized:    {403, 7},
	ErrConflict:        {409, 6},
	ErrTimeout:         {504, 4},
	ErrNotImplemented:  {501, 12},
}

// GetCodeMapping returns the HTTP and gRPC status codes for an error code.
func GetCodeMapping(code string) (int, int) {
	if pair, ok := codeMapping[code]; ok {
		return pair.HTTPStatus, pair.GRPCCode
	}
	return 500, 13
}
