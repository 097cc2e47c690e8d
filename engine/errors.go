package engine

import (
	"errors"
	"fmt"
)

// ResultError lets engine internals pass Go errors around while still remembering
// which [Result] code the failure should surface as.
type ResultError interface {
	error
	Result() Result
	Unwrap() error
}

type resultError struct {
	result        Result
	message       string
	originalError error
}

// Error implements the `error` object interface. When called, it returns a string
// describing the error.
func (e resultError) Error() string {
	if e.message != "" {
		return e.message
	}
	return StrResult(e.result)
}

func (e resultError) Result() Result {
	return e.result
}

func (e resultError) Unwrap() error {
	return e.originalError
}

// NewError creates a new [ResultError] with a default message derived from the
// result code.
func NewError(code Result) ResultError {
	return resultError{
		result:  code,
		message: StrResult(code),
	}
}

// NewErrorFromError wraps an arbitrary error, tagging it with a result code.
func NewErrorFromError(code Result, originalError error) ResultError {
	return resultError{
		result:        code,
		message:       fmt.Sprintf("%s: %s", StrResult(code), originalError.Error()),
		originalError: originalError,
	}
}

// NewErrorWithMessage creates a new ResultError from a result code with a custom
// message.
func NewErrorWithMessage(code Result, message string) ResultError {
	return resultError{
		result:  code,
		message: fmt.Sprintf("%s: %s", StrResult(code), message),
	}
}

// ResultOf extracts the result code carried by `err`. nil maps to [ResultOK], and
// errors that carry no code map to [ResultDiskError].
func ResultOf(err error) Result {
	if err == nil {
		return ResultOK
	}

	var coded ResultError
	if errors.As(err, &coded) {
		return coded.Result()
	}
	return ResultDiskError
}
