package errors

// ErrorCode is a stable, machine readable error identifier. It is logged as
// error_code and can be matched with HasCode.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Error is an error carrying a code plus optional message, data and cause.
type Error interface {
	error
	Code() ErrorCode
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory builds coded errors. Packages obtain one with New and keep their
// codes in errors.go.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
