package errors

import (
	"net/http"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes shared by every module.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
)

// Membership module error codes.
const (
	ErrCodeGroupNotFound         ErrorCode = "MEM_001"
	ErrCodeSeatQuotaExceeded     ErrorCode = "MEM_002"
	ErrCodeInviteNotFound        ErrorCode = "MEM_003"
	ErrCodeInviteExpired         ErrorCode = "MEM_004"
	ErrCodeInviteAlreadyConsumed ErrorCode = "MEM_005"
	ErrCodeMembershipNotFound    ErrorCode = "MEM_006"
	ErrCodeNotGroupOwner         ErrorCode = "MEM_007"
)

// Presence module error codes.
const (
	ErrCodeIdentityUnknown  ErrorCode = "PRS_001"
	ErrCodePresenceNotFound ErrorCode = "PRS_002"
)

// Incident module error codes.
const (
	ErrCodeIncidentNotFound      ErrorCode = "INC_001"
	ErrCodeIncidentAlreadyActive ErrorCode = "INC_002"
	ErrCodeIllegalTransition     ErrorCode = "INC_003"
)

// Acknowledgement / escalation module error codes.
const (
	ErrCodeIncidentNotAcknowledgeable ErrorCode = "ESC_001"
	ErrCodeEscalationSweepFailed      ErrorCode = "ESC_002"
)

// Short aliases used at call sites throughout the codebase.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeUnauthorized = ErrCodeUnauthorized
	CodeForbidden    = ErrCodeForbidden
	CodeNotFound     = ErrCodeNotFound
	CodeConflict     = ErrCodeConflict
	CodeValidation   = ErrCodeValidation
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusInternalServerError,

	ErrCodeGroupNotFound:         http.StatusNotFound,
	ErrCodeSeatQuotaExceeded:     http.StatusConflict,
	ErrCodeInviteNotFound:        http.StatusNotFound,
	ErrCodeInviteExpired:         http.StatusGone,
	ErrCodeInviteAlreadyConsumed: http.StatusConflict,
	ErrCodeMembershipNotFound:    http.StatusNotFound,
	ErrCodeNotGroupOwner:         http.StatusForbidden,

	ErrCodeIdentityUnknown:  http.StatusNotFound,
	ErrCodePresenceNotFound: http.StatusNotFound,

	ErrCodeIncidentNotFound:      http.StatusNotFound,
	ErrCodeIncidentAlreadyActive: http.StatusConflict,
	ErrCodeIllegalTransition:     http.StatusConflict,

	ErrCodeIncidentNotAcknowledgeable: http.StatusConflict,
	ErrCodeEscalationSweepFailed:      http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status code associated with an ErrorCode,
// defaulting to 500 for unmapped codes.
func HTTPStatus(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
