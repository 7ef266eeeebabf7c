package mail

import "errors"

var (
	// ErrInvalidData is returned when provider content is not valid base64.
	ErrInvalidData = errors.New("invalid encoded data")

	// ErrInvalidQuery is returned when a provider query string cannot be parsed.
	ErrInvalidQuery = errors.New("invalid mail query")

	// ErrPageLoop is returned when a provider repeats a page token.
	ErrPageLoop = errors.New("page token repeated")
)
