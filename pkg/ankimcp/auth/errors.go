package auth

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a device flow failure.
type ErrorKind string

const (
	KindExpiredToken ErrorKind = "expired_token"
	KindAccessDenied ErrorKind = "access_denied"
	KindNetworkError ErrorKind = "network_error"
	KindTimeout      ErrorKind = "timeout"
	KindUnknown      ErrorKind = "unknown"
)

// FlowError is returned by every failing device flow operation.
type FlowError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Sentinels for errors.Is. They match any FlowError of the same kind.
var (
	ErrExpiredToken = &FlowError{Kind: KindExpiredToken}
	ErrAccessDenied = &FlowError{Kind: KindAccessDenied}
	ErrNetwork      = &FlowError{Kind: KindNetworkError}
	ErrTimeout      = &FlowError{Kind: KindTimeout}
	ErrUnknown      = &FlowError{Kind: KindUnknown}
)

func newFlowError(kind ErrorKind, message string, err error) *FlowError {
	return &FlowError{Kind: kind, Message: message, Err: err}
}

func (e *FlowError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

func (e *FlowError) Is(target error) bool {
	t, ok := target.(*FlowError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// KindOf returns the kind of the first FlowError in err's chain, or an empty
// kind when err is not a device flow failure.
func KindOf(err error) ErrorKind {
	var flowErr *FlowError
	if errors.As(err, &flowErr) {
		return flowErr.Kind
	}
	return ""
}

// DecodeError reports a token whose payload segment could not be decoded.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to decode token claims: %s: %v", e.Reason, e.Err)
	}
	return "failed to decode token claims: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
