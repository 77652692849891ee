package cdoc

import (
	"errors"
	"fmt"
)

// ErrInvalidContainer is matched by every error the parser returns. Callers
// that only need to know whether a container could be read should test for
// it with errors.Is.
var ErrInvalidContainer = errors.New("cdoc: invalid container")

// Code sub-classifies a ParseError for logs and diagnostics.
type Code string

const (
	// CodeRejectedXML covers malformed XML, DOCTYPE or entity use, oversize
	// input and every other refusal by the hardened XML walker.
	CodeRejectedXML Code = "rejected_xml"
	// CodeUnrecognizedFormat means the document is well-formed XML but not a
	// container of a known generation, or its declared and structural
	// generations disagree.
	CodeUnrecognizedFormat Code = "unrecognized_format"
	// CodeMissingElement means a required element or property is absent.
	CodeMissingElement Code = "missing_element"
	// CodeInvalidEncoding means embedded base64 text could not be decoded.
	CodeInvalidEncoding Code = "invalid_encoding"
	// CodeInvalidCertificate means a recipient certificate is unparseable or
	// carries no Common Name.
	CodeInvalidCertificate Code = "invalid_certificate"
)

// ParseError describes why a container was refused.
type ParseError struct {
	Op      string // "datafiles", "recipients", "format" or "inspect"
	Code    Code
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("cdoc %s: %s: %s", e.Op, e.Code, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// Is makes every ParseError match ErrInvalidContainer.
func (e *ParseError) Is(target error) bool {
	return target == ErrInvalidContainer
}

func newError(code Code, cause error, format string, args ...any) *ParseError {
	return &ParseError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// CodeOf returns the Code of a ParseError anywhere in err's chain, or "".
func CodeOf(err error) Code {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
