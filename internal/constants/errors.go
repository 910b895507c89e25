package constants

import "errors"

// Configuration errors.
var (
	ErrNoURLConfigured    = errors.New("no Wiki.js URL configured, use --url or WIKIJS_URL")
	ErrNoAPIKeyConfigured = errors.New("no API key configured, use --api-key or WIKIJS_API_KEY")
	ErrInvalidOutput      = errors.New("invalid output format")
)

// Transport errors.
var (
	ErrEmptyResponse   = errors.New("empty response from server")
	ErrMissingData     = errors.New("response is missing data")
	ErrOperationFailed = errors.New("operation failed")
)
