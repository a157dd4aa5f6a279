package errno

import "errors"

// Errno defines the error code logic
type Errno struct {
	Code    int
	Message string
}

func (e Errno) Error() string {
	return e.Message
}

// WithMessage 返回同一错误码、附带具体原因的新错误
func (e Errno) WithMessage(msg string) Errno {
	if msg == "" {
		return e
	}
	return Errno{Code: e.Code, Message: e.Message + ": " + msg}
}

// Is 按错误码比较，WithMessage 之后依然可以 errors.Is
func (e Errno) Is(target error) bool {
	var t Errno
	if errors.As(target, &t) {
		return t.Code == e.Code
	}
	return false
}

// Decode tries to convert an error to Errno
func Decode(err error) (int, string) {
	if err == nil {
		return OK.Code, OK.Message
	}

	var typed Errno
	if errors.As(err, &typed) {
		return typed.Code, typed.Message
	}
	var ptr *Errno
	if errors.As(err, &ptr) && ptr != nil {
		return ptr.Code, ptr.Message
	}
	return InternalServerError.Code, err.Error()
}

// Common Errors
var (
	OK                  = Errno{Code: 0, Message: "Success"}
	InternalServerError = Errno{Code: 10001, Message: "Internal server error"}
	ErrBind             = Errno{Code: 10002, Message: "Error occurred while binding the request body to the struct"}
	ErrTokenInvalid     = Errno{Code: 10003, Message: "Token invalid"}
	ErrDatabase         = Errno{Code: 10004, Message: "Database error"}
)

// Vesting Errors (30000+)
var (
	ErrValidationFailed    = Errno{Code: 30001, Message: "Schedule validation failed"}
	ErrSignerInvalid       = Errno{Code: 30002, Message: "Signer invalid"}
	ErrAlreadyUsed         = Errno{Code: 30003, Message: "Authorization already used"}
	ErrNoAllocation        = Errno{Code: 30004, Message: "No allocation"}
	ErrNothingToClaim      = Errno{Code: 30005, Message: "Nothing to claim"}
	ErrCliffNotOver        = Errno{Code: 30006, Message: "Cliff period not over"}
	ErrUnauthorized        = Errno{Code: 30007, Message: "Unauthorized"}
	ErrPoolNotFound        = Errno{Code: 30008, Message: "Pool not found"}
	ErrReentrant           = Errno{Code: 30009, Message: "Re-entrant call rejected"}
	ErrInsufficientBalance = Errno{Code: 30010, Message: "Insufficient balance"}
	ErrExceedsUnallocated  = Errno{Code: 30011, Message: "Amount exceeds unallocated balance"}
	ErrJournalCorrupted    = Errno{Code: 30012, Message: "Event journal corrupted"}
)
