package crypto

import (
	"errors"
)

// Code is a stable reason code carried by every failure the core returns.
// Codes are safe to log and to compare across versions.
type Code string

// Reason codes.
const (
	CodeInvalidLength        Code = "InvalidLength"
	CodeInvalidEncoding      Code = "InvalidEncoding"
	CodeMissingFields        Code = "MissingFields"
	CodeTimestampOutOfRange  Code = "TimestampOutOfRange"
	CodeReplayNonce          Code = "ReplayNonce"
	CodeBodyHashMismatch     Code = "BodyHashMismatch"
	CodeUnknownNode          Code = "UnknownNode"
	CodeInvalidSignature     Code = "InvalidSignature"
	CodeAuthenticationFailed Code = "AuthenticationFailed"
	CodeStaleEpoch           Code = "StaleEpoch"
	CodeUnknownEpoch         Code = "UnknownEpoch"
	CodeReplayedCounter      Code = "ReplayedCounter"
	CodeNonceExhausted       Code = "NonceExhausted"
	CodeNoSecureRandom       Code = "NoSecureRandom"
	CodeHandshakeAborted     Code = "HandshakeAborted"
	CodeChannelClosed        Code = "ChannelClosed"
	CodeInvalidState         Code = "InvalidState"
)

// Error is a typed failure with a stable reason code.
type Error struct {
	Code Code
	msg  string
}

func (e *Error) Error() string {
	return e.msg
}

// Is matches any *Error carrying the same code, so a wrapped sentinel
// compares equal with errors.Is regardless of its message.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	return ok && other.Code == e.Code
}

func newError(code Code, msg string) *Error {
	return &Error{Code: code, msg: msg}
}

// Sentinel errors, one per reason code. Call sites wrap them with
// fmt.Errorf("%w: ...") to add detail.
var (
	ErrInvalidLength        = newError(CodeInvalidLength, "invalid length")
	ErrInvalidEncoding      = newError(CodeInvalidEncoding, "invalid encoding")
	ErrMissingFields        = newError(CodeMissingFields, "missing required fields")
	ErrTimestampOutOfRange  = newError(CodeTimestampOutOfRange, "timestamp out of range")
	ErrReplayNonce          = newError(CodeReplayNonce, "nonce already seen")
	ErrBodyHashMismatch     = newError(CodeBodyHashMismatch, "body hash mismatch")
	ErrUnknownNode          = newError(CodeUnknownNode, "unknown node")
	ErrInvalidSignature     = newError(CodeInvalidSignature, "invalid signature")
	ErrAuthenticationFailed = newError(CodeAuthenticationFailed, "authentication failed")
	ErrStaleEpoch           = newError(CodeStaleEpoch, "stale epoch")
	ErrUnknownEpoch         = newError(CodeUnknownEpoch, "unknown epoch")
	ErrReplayedCounter      = newError(CodeReplayedCounter, "replayed counter")
	ErrNonceExhausted       = newError(CodeNonceExhausted, "nonce space exhausted")
	ErrNoSecureRandom       = newError(CodeNoSecureRandom, "secure random source unavailable")
	ErrHandshakeAborted     = newError(CodeHandshakeAborted, "handshake aborted")
	ErrChannelClosed        = newError(CodeChannelClosed, "channel closed")
	ErrInvalidState         = newError(CodeInvalidState, "invalid state")
)

// CodeOf extracts the reason code from err. It returns the empty Code when
// err is nil or carries no *Error in its chain.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
