package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format, only csv, xls and xlsx are accepted")
	ErrDuplicateUpload   = errors.New("file already uploaded")
	ErrMissingColumns    = errors.New("required columns missing")
	ErrDecode            = errors.New("could not decode file")
	ErrUnexpectedParse   = errors.New("unexpected error while parsing file")
	ErrInvalidDateFormat = errors.New("invalid date format, use YYYY-MM-DD")
	ErrInvalidPagination = errors.New("invalid pagination parameters")
	ErrNotFound          = errors.New("no uploads found")
)

// MissingColumnsError lists the required columns absent from an upload.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrMissingColumns, strings.Join(e.Columns, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return ErrMissingColumns }

// ParseError wraps a parser failure. Kind is ErrDecode or ErrUnexpectedParse.
type ParseError struct {
	Kind  error
	Cause error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *ParseError) Unwrap() []error { return []error{e.Kind, e.Cause} }
