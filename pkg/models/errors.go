package models

import "errors"

var (
	// ErrProductNotFound: the identifier resolves to nothing in the
	// catalog, the cache, or via alias scan.
	ErrProductNotFound = errors.New("product not found")

	// ErrInvalidInput: malformed identifier or out-of-range parameter.
	ErrInvalidInput = errors.New("invalid input")
)
