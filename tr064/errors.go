package tr064

import "fmt"

// Kind classifies a failed operation, so callers can branch on the failure
// class instead of matching message text.
type Kind int

const (
	// KindValidation signals invalid or incomplete caller input.
	KindValidation Kind = iota + 1
	// KindTransport signals an HTTP failure (connect, timeout, non-200).
	KindTransport
	// KindProtocol signals an unexpected or incomplete device response.
	KindProtocol
	// KindParse signals malformed XML.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindParse:
		return "parse"
	}
	return "unknown"
}

// Error is the error type of this package.
type Error struct {
	Kind Kind
	Msg  string
	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func errorf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapf(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// UPnPError is the vendor error reported in a SOAP fault body. It is wrapped
// in an Error of kind KindTransport when a control request fails.
type UPnPError struct {
	Code        int
	Description string
}

// Error implements the error interface.
func (e *UPnPError) Error() string {
	return fmt.Sprintf("UPnP error %d: %s", e.Code, e.Description)
}
