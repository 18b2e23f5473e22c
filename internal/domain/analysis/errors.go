package analysis

import "errors"

var (
	// ErrEmptyCode indicates the submitted code was empty or whitespace only.
	ErrEmptyCode = errors.New("code cannot be empty")

	// ErrCodeTooLarge indicates the submitted code exceeds the size ceiling.
	ErrCodeTooLarge = errors.New("code is too large")

	// ErrUpstream indicates the model call failed.
	ErrUpstream = errors.New("upstream model call failed")

	// ErrMalformedOutput indicates the model returned output that does not
	// parse into a SecurityReport.
	ErrMalformedOutput = errors.New("upstream returned malformed output")
)
