package response

import "errors"

type Response struct {
	ResponseError `json:"error,omitzero"`
}

type ResponseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

//Error Codes
type ErrCode string

var (
	FAILED_REQUEST            ErrCode = "REQUEST_FAILED"
	BAD_REQUEST               ErrCode = "FAILED_TO_DECODE"
	NOT_FOUND                 ErrCode = "NOT_FOUND"
	LOCKED                    ErrCode = "LOCKED"
	SESSION_CONFLICT          ErrCode = "SESSION_CONFLICT"
	EARLY_CHECKOUT_REQUIRED   ErrCode = "EARLY_CHECKOUT_REQUIRED"
	CHECKOUT_LOOP             ErrCode = "CHECKOUT_LOOP"
	NO_ACTIVE_SESSION         ErrCode = "NO_ACTIVE_SESSION"
	REASON_REQUIRED           ErrCode = "REASON_REQUIRED"
)

var (
	ErrBadRequest      = errors.New("bad request")
	ErrNotFound        = errors.New("resource not found")
	ErrLocked          = errors.New("resource is locked")
	ErrNoActiveSession = errors.New("no active session")
)

func Error(code, msg string) Response {
	return Response{
		ResponseError: ResponseError{
			Code:    code,
			Message: msg,
		},
	}
}
