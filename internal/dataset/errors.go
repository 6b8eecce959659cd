package dataset

import "errors"

var (
	// ErrMissingColumns is returned when the input lacks one of the required columns.
	ErrMissingColumns = errors.New("missing required columns")
	// ErrInvalidRow is returned when a row carries an empty truck number or a bad weight.
	ErrInvalidRow = errors.New("invalid row")
	// ErrUnreadable is returned when the input cannot be decoded at all.
	ErrUnreadable = errors.New("unreadable input")
	// ErrUnsupportedFormat is returned for file extensions other than .xlsx and .json.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)
