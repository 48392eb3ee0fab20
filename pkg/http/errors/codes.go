package errors

// Error codes for standardized error responses
const (
	// Authentication errors
	ErrCodeUnauthorized           = "unauthorized"
	ErrCodeForbidden              = "forbidden"
	ErrCodeInvalidToken           = "invalid_token"
	ErrCodeTokenExpired           = "token_expired"
	ErrCodeAuthenticationRequired = "authentication_required"

	// Validation errors
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeMissingField     = "missing_field"
	ErrCodePayloadTooLarge  = "payload_too_large"
	ErrCodeInvalidFileType  = "invalid_file_type"

	// Import errors
	ErrCodeArchiveUnreadable  = "archive_unreadable"
	ErrCodeDataFileNotFound   = "data_file_not_found"
	ErrCodeDataFileUnreadable = "data_file_unreadable"
	ErrCodeParseFailed        = "parse_failed"
	ErrCodeImportBlocked      = "import_blocked"
	ErrCodeImageUploadFailed  = "image_upload_failed"
	ErrCodePersistFailed      = "persist_failed"

	// Resource errors
	ErrCodeNotFound = "not_found"

	// WebSocket errors
	ErrCodeConnectionError = "connection_error"

	// Server errors
	ErrCodeInternalError      = "internal_error"
	ErrCodeServiceUnavailable = "service_unavailable"
	ErrCodeUpstreamError      = "upstream_error"
)
