package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidConcurrency is returned when the scan limit is not positive.
	ErrInvalidConcurrency = errors.New("invalid max concurrent scans: must be positive")

	// ErrInvalidTimeout is returned when a scan timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid scan timeout: must be positive")

	// ErrTimeoutExceedsMax is returned when the default timeout is above the maximum.
	ErrTimeoutExceedsMax = errors.New("invalid scan timeout: default exceeds maximum")

	// ErrInvalidLogFormat is returned for a log format other than json or text.
	ErrInvalidLogFormat = errors.New("invalid log format: must be json or text")

	// ErrMissingStorePath is returned when the store is enabled without a path.
	ErrMissingStorePath = errors.New("store enabled but no database path set")
)
