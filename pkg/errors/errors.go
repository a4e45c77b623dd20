package errors

import (
	stdErrors "errors"
	"fmt"
)

type Code string

const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeDuplicate    Code = "DUPLICATE_SUBMISSION"
	CodeTimeout      Code = "TIMEOUT"
	CodeNetwork      Code = "NETWORK_ERROR"
	CodeRemote       Code = "REMOTE_ERROR"
	CodeLedgerWrite  Code = "LEDGER_WRITE_FAILED"
	CodeLockConflict Code = "LOCK_CONFLICT"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"
)

// Metadata describes how the pipeline treats a failure class.
type Metadata struct {
	// Retryable reports whether a later run can succeed without operator action.
	Retryable   bool
	Description string
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		Retryable:   false,
		Description: "order failed schema validation",
	},
	CodeDuplicate: {
		Retryable:   false,
		Description: "order already exists in the portal",
	},
	CodeTimeout: {
		Retryable:   true,
		Description: "remote call timed out",
	},
	CodeNetwork: {
		Retryable:   true,
		Description: "remote call failed at the network level",
	},
	CodeRemote: {
		Retryable:   true,
		Description: "remote call returned an error status",
	},
	CodeLedgerWrite: {
		Retryable:   true,
		Description: "control table write failed",
	},
	CodeLockConflict: {
		Retryable:   true,
		Description: "another run holds the tenant lock",
	},
	CodeInternal: {
		Retryable:   true,
		Description: "internal error",
	},
	CodeDependency: {
		Retryable:   true,
		Description: "dependency unavailable",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code of the first typed error in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
