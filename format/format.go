// Package format turns raw resource content into structured data, choosing
// the parser from the object key's extension.
package format

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupportedFormat indicates an extension without a registered parser.
	ErrUnsupportedFormat = errors.New("unsupported resource format")

	// ErrParse indicates the content could not be parsed.
	ErrParse = errors.New("resource could not be parsed")
)

// Resource is the parsed content of one translation file: keys mapped to
// strings or nested resources.
type Resource = map[string]any

// ParseFunc converts raw content into a Resource.
type ParseFunc func(raw []byte) (Resource, error)

// Format identifies a supported content format.
type Format string

const JSON Format = "json"

// formats maps an extension to its format, extend both tables to add one.
var formats = map[string]Format{
	"json": JSON,
}

var defaultParsers = map[Format]ParseFunc{
	JSON: DefaultParse,
}

// UnsupportedFormatError reports an object whose extension has no parser.
type UnsupportedFormatError struct {
	Key       string
	Extension string
}

// Error implements the error interface.
func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unrecognized extension %q of %s, only supports json files", e.Extension, e.Key)
}

// Is allows checking if an error is an UnsupportedFormatError.
func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// Unwrap returns the base error for error wrapping support.
func (e *UnsupportedFormatError) Unwrap() error {
	return ErrUnsupportedFormat
}

var errNotMapping = errors.New("content is not a mapping of keys to translations")

// ParseError reports content that failed to parse.
type ParseError struct {
	Key   string
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("error parsing %s: %s", e.Key, e.Cause.Error())
}

// Is allows checking if an error is a ParseError.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// Unwrap returns the cause for error wrapping support.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// DefaultParse decodes JSON content into a Resource.
func DefaultParse(raw []byte) (Resource, error) {
	var resource Resource
	if err := json.Unmarshal(raw, &resource); err != nil {
		return nil, err
	}
	return resource, nil
}

// Extension returns the text after the last dot of key, or "" when there is none.
func Extension(key string) string {
	idx := strings.LastIndex(key, ".")
	if idx < 0 {
		return ""
	}
	return key[idx+1:]
}

// Lookup returns the format registered for key's extension.
func Lookup(key string) (Format, bool) {
	f, ok := formats[Extension(key)]
	return f, ok
}

// Dispatch parses raw with the parser for key's format. A non nil parse
// overrides the default parser of the format.
func Dispatch(key string, raw []byte, parse ParseFunc) (Resource, error) {
	f, ok := Lookup(key)
	if !ok {
		return nil, &UnsupportedFormatError{Key: key, Extension: Extension(key)}
	}

	if parse == nil {
		parse = defaultParsers[f]
	}

	resource, err := parse(raw)
	if err != nil {
		return nil, &ParseError{Key: key, Cause: err}
	}
	if resource == nil {
		return nil, &ParseError{Key: key, Cause: errNotMapping}
	}

	return resource, nil
}
