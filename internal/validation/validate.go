// Package validation checks form and command payloads against their struct tags and
// reports failures as field → message maps that a form can render inline.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Error is a set of field validation failures keyed by JSON field name.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return "validation error: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already has a message.
func (e *Error) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// OrNil returns e when it holds at least one failure.
func (e *Error) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

// Struct validates v against its validate tags.
func Struct(v any) error {
	err := instance().Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	out := &Error{}
	for _, fe := range verrs {
		out.Add(fe.Field(), message(fe))
	}
	return out
}

// Fields returns the field messages of err, or nil when err is not a validation error.
func Fields(err error) map[string]string {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Fields
	}
	return nil
}

func message(fe validator.FieldError) string {
	isNumber := false
	switch fe.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Float32, reflect.Float64:
		isNumber = true
	}

	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Enter a valid email address"
	case "url":
		return "Enter a valid URL"
	case "datetime":
		return "Enter a date as YYYY-MM-DD"
	case "oneof":
		return "Must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "min":
		if isNumber {
			return "Must be at least " + fe.Param()
		}
		return "Must be at least " + fe.Param() + " characters"
	case "max":
		if isNumber {
			return "Must be at most " + fe.Param()
		}
		return "Must be at most " + fe.Param() + " characters"
	case "eqfield":
		return "Must match " + fe.Param()
	default:
		return "Invalid value"
	}
}
