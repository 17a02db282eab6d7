package config

import "errors"

// Configuration validation errors returned by Config.Validate.
var (
	// ErrInvalidBaseURL is returned when the base URL is not an absolute http(s) URL.
	ErrInvalidBaseURL = errors.New("invalid base URL: must be an absolute http or https URL")

	// ErrInvalidStartPage is returned when the first page is below 1.
	ErrInvalidStartPage = errors.New("invalid start page: must be at least 1")

	// ErrInvalidPageRange is returned when the last page does not lie after the start page.
	ErrInvalidPageRange = errors.New("invalid page range: last page must be greater than start page")

	// ErrInvalidMaxCount is returned when the record quota is negative.
	ErrInvalidMaxCount = errors.New("invalid max count: must be non-negative")

	// ErrInvalidConcurrency is returned when the detail fetch concurrency is out of range.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be between 1 and 64")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidMaxRetries is returned when the retry count is negative.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the body size limit is not positive.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be positive")

	// ErrInvalidFormat is returned for an unknown output format.
	ErrInvalidFormat = errors.New("invalid format: must be one of csv, json, markdown, text")

	// ErrInvalidOutputDir is returned when no output directory is set.
	ErrInvalidOutputDir = errors.New("invalid output directory: must not be empty")

	// ErrInvalidListenAddr is returned when the API listen address is empty.
	ErrInvalidListenAddr = errors.New("invalid listen address: must not be empty")

	// ErrInvalidEnv is returned when an environment variable cannot be parsed.
	ErrInvalidEnv = errors.New("invalid environment variable")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")
)
