package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrEmptyImage       = errors.New("empty image payload")
	ErrInvalidImage     = errors.New("content is not a recognizable image")
	ErrEmptyLabels      = errors.New("labels must not be empty")
	ErrInvalidLabels    = errors.New("labels must be a JSON list of strings")
	ErrInvalidFeedback  = errors.New("image_hash and theme are required")
	ErrStoreUnavailable = errors.New("persistent store unavailable")
	ErrEncoderFailed    = errors.New("embedding encoder failed")
)
