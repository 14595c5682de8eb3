package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrNotFound             = errors.New("not found")
	ErrParentNotFound       = errors.New("parent comment not found")
	ErrCursorNotFound       = errors.New("cursor comment not found")
	ErrSpamRejected         = errors.New("spam check rejected")
	ErrAttachmentProcessing = errors.New("attachment processing failed")
)

type FieldError struct {
	Field   string
	Message string
}

// ValidationError carries the per-field failures of one request so the
// transport can hand the caller a machine-readable list. It matches
// ErrInvalidRequest under errors.Is.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%v: %s", ErrInvalidRequest, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRequest
}

func newValidationError(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// wire names of request struct fields, for field-attributed errors
var fieldNames = map[string]string{
	"UserName":     "userName",
	"Email":        "email",
	"HomePage":     "homePage",
	"Text":         "text",
	"ParentID":     "parentId",
	"CaptchaToken": "captchaToken",
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	out := &ValidationError{Fields: make([]FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		name, ok := fieldNames[fe.Field()]
		if !ok {
			name = fe.Field()
		}
		out.Fields = append(out.Fields, FieldError{
			Field:   name,
			Message: validationMessage(fe),
		})
	}
	return out
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "alphanum":
		return "must contain only letters and digits"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed on rule " + fe.Tag()
	}
}
